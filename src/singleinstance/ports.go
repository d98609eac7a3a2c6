package singleinstance

import (
	"os"
	"strconv"
)

const (
	defaultPortStart = 49620
	defaultPortEnd   = 49630
)

// getPortRange reads BUBBLE_OVERLAY_PORT_START and BUBBLE_OVERLAY_PORT_END
// (inclusive), clamped to [1024, 65535].
func getPortRange() (int, int) {
	start := defaultPortStart
	end := defaultPortEnd
	if v := os.Getenv("BUBBLE_OVERLAY_PORT_START"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			start = n
		}
	}
	if v := os.Getenv("BUBBLE_OVERLAY_PORT_END"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			end = n
		}
	}
	start = min(max(start, 1024), 65535)
	end = min(max(end, 1024), 65535)
	if end < start {
		start, end = end, start
	}
	return start, end
}

// PortRange is the effective range, for logging.
func PortRange() (int, int) { return getPortRange() }
