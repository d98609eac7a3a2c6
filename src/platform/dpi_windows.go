//go:build windows

package platform

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

// DPI_AWARENESS_CONTEXT_PER_MONITOR_AWARE_V2
const perMonitorAwareV2 = ^uintptr(3)

var (
	user32                            = windows.NewLazySystemDLL("user32.dll")
	procSetProcessDpiAwarenessContext = user32.NewProc("SetProcessDpiAwarenessContext")
	procSetProcessDPIAware            = user32.NewProc("SetProcessDPIAware")
)

func enableDPIAwareness() error {
	if procSetProcessDpiAwarenessContext.Find() == nil {
		if r, _, err := procSetProcessDpiAwarenessContext.Call(perMonitorAwareV2); r == 0 {
			// Already set by a manifest is fine.
			if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
				return nil
			}
			return fmt.Errorf("SetProcessDpiAwarenessContext: %w", err)
		}
		return nil
	}
	// Pre Windows 10 1703.
	if err := procSetProcessDPIAware.Find(); err != nil {
		return err
	}
	if r, _, err := procSetProcessDPIAware.Call(); r == 0 {
		return fmt.Errorf("SetProcessDPIAware: %w", err)
	}
	return nil
}
