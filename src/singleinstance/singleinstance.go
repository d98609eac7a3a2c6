// Package singleinstance keeps one resident per user session. The resident
// listens on loopback; later launches forward an action name to it instead of
// installing a second keyboard hook.
package singleinstance

import (
	"context"

	"pkt.systems/pslog"
)

// Server owns the loopback endpoint and hands out forwarded requests.
type Server interface {
	// Start binds the first port of the configured range.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next forwarded request, or the ctx error.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is one forwarded request awaiting an answer.
type Conn interface {
	Request() Request
	RespondSuccess(text string) error
	RespondError(msg string) error
	Close() error
}

// Request carries the action name as typed by the caller, e.g. "snip".
type Request struct {
	Action string
}

// Client forwards an action to a resident if there is one.
type Client interface {
	// Send scans the port range. delegated is false with a nil error when no
	// resident answered.
	Send(ctx context.Context, action string) (delegated bool, reply string, err error)
}

func NewServer(logger pslog.Logger) Server { return newTcpServer(logger) }

func NewClient() Client { return &tcpClient{} }
