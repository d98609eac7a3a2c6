//go:build !windows

package main

import (
	"pkt.systems/pslog"

	"bubble-overlay/src/screenshot"
)

func logMonitorConfiguration(logger pslog.Logger) {
	b, err := screenshot.DisplayBounds()
	if err != nil {
		logger.Warn("no display found", "err", err)
		return
	}
	logger.Info("primary display", "bounds", b.String())
}
