package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
)

const (
	residentHost  = "127.0.0.1"
	pingRequest   = "PING\n"
	pongResponse  = "PONG\n"
	actionPrefix  = "ACTION "
	statusSuccess = "SUCCESS\n"
	statusError   = "ERROR\n"
)

type tcpServer struct {
	logger   pslog.Logger
	lis      net.Listener
	incoming chan *tcpConn
	done     chan struct{}
	port     int
	once     sync.Once
}

func newTcpServer(logger pslog.Logger) *tcpServer {
	return &tcpServer{
		logger:   logger,
		incoming: make(chan *tcpConn, 4),
		done:     make(chan struct{}),
	}
}

// Start binds only the first port of the range; a busy port means another
// resident owns it.
func (s *tcpServer) Start(ctx context.Context) error {
	if s.lis != nil {
		return nil
	}
	start, _ := getPortRange()
	addr := net.JoinHostPort(residentHost, fmt.Sprint(start))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	s.lis = lis
	s.port = lis.Addr().(*net.TCPAddr).Port
	s.logger.Info("resident listening", "addr", lis.Addr().String())
	go s.acceptLoop(ctx)
	return nil
}

func (s *tcpServer) Port() int { return s.port }

func (s *tcpServer) acceptLoop(ctx context.Context) {
	for {
		c, err := s.lis.Accept()
		if err != nil {
			return
		}
		_ = c.SetDeadline(time.Now().Add(3 * time.Second))
		br := bufio.NewReader(c)
		line, _ := br.ReadString('\n')
		bw := bufio.NewWriter(c)

		switch {
		case line == pingRequest:
			_, _ = bw.WriteString(pongResponse)
			_ = bw.Flush()
			_ = c.Close()
			continue
		case strings.HasPrefix(line, actionPrefix):
		default:
			s.logger.Warn("resident: malformed request", "remote", c.RemoteAddr().String())
			_, _ = bw.WriteString(statusError + "malformed request")
			_ = bw.Flush()
			_ = c.Close()
			continue
		}

		action := strings.TrimSpace(strings.TrimPrefix(line, actionPrefix))
		s.logger.Debug("resident: request", "remote", c.RemoteAddr().String(), "action", action)
		select {
		case s.incoming <- &tcpConn{c: c, r: Request{Action: action}, w: bw}:
		case <-ctx.Done():
			_ = c.Close()
			return
		case <-s.done:
			_ = c.Close()
			return
		}
	}
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, net.ErrClosed
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.lis != nil {
			_ = s.lis.Close()
		}
	})
	return nil
}

type tcpConn struct {
	c net.Conn
	r Request
	w *bufio.Writer
}

func (tc *tcpConn) Request() Request { return tc.r }

func (tc *tcpConn) RespondSuccess(text string) error {
	if _, err := tc.w.WriteString(statusSuccess + text); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) RespondError(msg string) error {
	if _, err := tc.w.WriteString(statusError + msg); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }
