package viewer

import (
	"strings"
	"sync"
	"time"
)

// DefaultConsoleLines caps the console history.
const DefaultConsoleLines = 500

// Console keeps timestamped log lines, newest first.
type Console struct {
	mu    sync.Mutex
	max   int
	lines []string
	now   func() time.Time
}

func NewConsole(max int) *Console {
	if max <= 0 {
		max = DefaultConsoleLines
	}
	return &Console{max: max, now: time.Now}
}

// Add prepends line with a [HH:MM:SS] stamp and returns the whole console text.
func (c *Console) Add(line string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := "[" + c.now().Format("15:04:05") + "] " + line
	c.lines = append([]string{entry}, c.lines...)
	if len(c.lines) > c.max {
		c.lines = c.lines[:c.max]
	}
	return strings.Join(c.lines, "\n")
}

func (c *Console) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}
