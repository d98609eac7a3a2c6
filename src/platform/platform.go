// Package platform holds process-wide OS setup.
package platform

// EnableDPIAwareness makes screen coordinates physical pixels so captures,
// selections and hook events agree on high-DPI displays. It is a no-op where
// the OS has no such setting.
func EnableDPIAwareness() error {
	return enableDPIAwareness()
}
