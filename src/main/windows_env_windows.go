//go:build windows

package main

import (
	"golang.org/x/sys/windows"
	"pkt.systems/pslog"
)

const (
	smCXScreen        = 0
	smCYScreen        = 1
	smXVirtualScreen  = 76
	smYVirtualScreen  = 77
	smCXVirtualScreen = 78
	smCYVirtualScreen = 79
	smCMonitors       = 80
)

var procGetSystemMetrics = windows.NewLazySystemDLL("user32.dll").NewProc("GetSystemMetrics")

func systemMetric(index int) int {
	ret, _, _ := procGetSystemMetrics.Call(uintptr(index))
	return int(int32(ret))
}

func logMonitorConfiguration(logger pslog.Logger) {
	logger.Info("monitor configuration",
		"monitors", systemMetric(smCMonitors),
		"virtual_x", systemMetric(smXVirtualScreen),
		"virtual_y", systemMetric(smYVirtualScreen),
		"virtual_w", systemMetric(smCXVirtualScreen),
		"virtual_h", systemMetric(smCYVirtualScreen),
		"primary_w", systemMetric(smCXScreen),
		"primary_h", systemMetric(smCYScreen),
	)
}
