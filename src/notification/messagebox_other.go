//go:build !windows

package notification

// Other platforms rely on the log line.
func showMessageBox(string, string) {}
