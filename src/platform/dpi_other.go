//go:build !windows

package platform

func enableDPIAwareness() error { return nil }
