// Package sink holds OutputSink implementations that need no UI.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pkt.systems/pslog"
)

// Sink receives composited frames (PNG bytes) and log lines. Calls are
// fire-and-forget.
type Sink interface {
	EmitFrame(png []byte)
	EmitLog(line string)
}

// Log writes log lines to the structured logger and records frame sizes.
type Log struct {
	Logger pslog.Logger
}

func (s Log) EmitFrame(png []byte) {
	s.Logger.Debug("frame emitted", "bytes", len(png))
}

func (s Log) EmitLog(line string) {
	s.Logger.Info(line)
}

// Dir writes every frame to a numbered PNG file and keeps the last one as latest.png.
type Dir struct {
	Path   string
	Logger pslog.Logger

	mu  sync.Mutex
	seq int
}

func NewDir(path string, logger pslog.Logger) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}
	return &Dir{Path: path, Logger: logger}, nil
}

func (d *Dir) EmitFrame(png []byte) {
	d.mu.Lock()
	d.seq++
	name := filepath.Join(d.Path, fmt.Sprintf("frame_%s_%05d.png", time.Now().Format("20060102_150405"), d.seq))
	d.mu.Unlock()

	if err := os.WriteFile(name, png, 0o644); err != nil {
		d.Logger.Warn("Could not save frame", "path", name, "err", err)
		return
	}
	latest := filepath.Join(d.Path, "latest.png")
	if err := os.WriteFile(latest, png, 0o644); err != nil {
		d.Logger.Warn("Could not save frame", "path", latest, "err", err)
	}
}

func (d *Dir) EmitLog(string) {}

// Multi fans out to every sink in order.
type Multi []Sink

func (m Multi) EmitFrame(png []byte) {
	for _, s := range m {
		s.EmitFrame(png)
	}
}

func (m Multi) EmitLog(line string) {
	for _, s := range m {
		s.EmitLog(line)
	}
}

// Recorder keeps everything it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	frames [][]byte
	logs   []string
}

func (r *Recorder) EmitFrame(png []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, png)
}

func (r *Recorder) EmitLog(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, line)
}

func (r *Recorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.frames...)
}

func (r *Recorder) Logs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.logs...)
}
