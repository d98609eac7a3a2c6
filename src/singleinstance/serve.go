package singleinstance

import (
	"context"
)

// Handler answers one forwarded request. A non-nil error is sent back as the
// error reply.
type Handler func(Request) (string, error)

// Serve answers requests until ctx ends or the server is closed.
func Serve(ctx context.Context, s Server, handle Handler) {
	for {
		conn, err := s.Next(ctx)
		if err != nil {
			return
		}
		reply, err := handle(conn.Request())
		if err != nil {
			_ = conn.RespondError(err.Error())
		} else {
			_ = conn.RespondSuccess(reply)
		}
		_ = conn.Close()
	}
}
