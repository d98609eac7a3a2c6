//go:build !windows

package overlay

import "pkt.systems/pslog"

// No drag overlay outside Windows; the primary display is used instead.
func newInteractiveSelector(logger pslog.Logger) Selector {
	logger.Info("interactive region selection not available on this platform, using the primary display")
	return Display{}
}
