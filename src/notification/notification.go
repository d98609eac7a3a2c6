// Package notification shows fatal startup errors to users who launched the
// app without a console.
package notification

import "pkt.systems/pslog"

// ShowBlockingError logs the error and, where the platform has one, shows a
// modal message box that blocks until dismissed.
func ShowBlockingError(logger pslog.Logger, title, message string) {
	logger.Error(title, "detail", message)
	showMessageBox(title, message)
}
