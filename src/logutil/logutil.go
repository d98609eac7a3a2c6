package logutil

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pkt.systems/pslog"
)

const (
	logFileName  = "bubble_overlay_debug.log"
	maxSizeBytes = 10 * 1024 * 1024 // 10 MB
	maxArchives  = 3
)

// Options selects where log lines go.
type Options struct {
	EnableFileLogging bool
	Level             string
	// Dir holds the log file; empty means the working directory.
	Dir string
	// Console additionally writes human readable lines to stderr.
	Console bool
}

// Setup builds the process logger. File output rotates by size (10MB, max 3 archives).
// The stdlib log package is redirected into the same logger so third-party output is kept.
func Setup(opts Options) (pslog.Logger, io.Closer) {
	level := ParseLevel(opts.Level)
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if opts.EnableFileLogging {
		rw, err := newRotatingWriter(filepath.Join(opts.Dir, logFileName))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		} else {
			writers = append(writers, rw)
			closer = rw
		}
	}

	var logger pslog.Logger
	switch {
	case len(writers) > 0:
		logger = pslog.NewWithOptions(writers[0], pslog.Options{
			Mode:     pslog.ModeStructured,
			NoColor:  true,
			MinLevel: level,
		})
	case opts.Console:
		logger = pslog.NewWithOptions(os.Stderr, pslog.Options{
			Mode:     pslog.ModeConsole,
			MinLevel: level,
		})
	default:
		logger = pslog.NewWithOptions(io.Discard, pslog.Options{
			Mode:     pslog.ModeStructured,
			NoColor:  true,
			MinLevel: level,
		})
	}

	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)
	return logger, closer
}

// Discard returns a logger that drops everything.
func Discard() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
}

func ParseLevel(s string) pslog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return pslog.TraceLevel
	case "debug":
		return pslog.DebugLevel
	case "error":
		return pslog.ErrorLevel
	default:
		return pslog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type rotatingWriter struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func newRotatingWriter(path string) (*rotatingWriter, error) {
	rotateIfNeeded(path, 0)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	return &rotatingWriter{path: path, f: f}, nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// naive rotation check per write
	if st, err := w.f.Stat(); err == nil && st.Size()+int64(len(p)) > maxSizeBytes {
		_ = w.f.Close()
		rotateIfNeeded(w.path, int64(len(p)))
		nf, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return 0, err
		}
		w.f = nf
	}
	return w.f.Write(p)
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

func rotateIfNeeded(path string, incoming int64) {
	// If base would exceed max size, rotate: .1, .2, .3 (oldest discarded)
	if st, err := os.Stat(path); err == nil && st.Size()+incoming > maxSizeBytes {
		_ = os.Remove(archiveName(path, maxArchives))
		for i := maxArchives - 1; i >= 1; i-- {
			_ = os.Rename(archiveName(path, i), archiveName(path, i+1))
		}
		_ = os.Rename(path, archiveName(path, 1))
	}
}

func archiveName(path string, n int) string { return fmt.Sprintf("%s.%d", path, n) }

// RedactKey masks an API key, leaving first/last 4 chars: xxxx...yyyy
func RedactKey(k string) string {
	if len(k) <= 8 {
		return "********"
	}
	return fmt.Sprintf("%s...%s", k[:4], k[len(k)-4:])
}
