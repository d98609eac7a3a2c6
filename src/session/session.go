// Package session runs the continuous capture, detect and composite loop and
// the one-shot snip.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"pkt.systems/pslog"

	"bubble-overlay/src/layout"
	"bubble-overlay/src/logutil"
	"bubble-overlay/src/mask"
	"bubble-overlay/src/screenshot"
)

var (
	ErrSessionRunning = errors.New("a translation session is already running")
	ErrInvalidRegion  = errors.New("capture region is empty")
	ErrInvalidDelay   = errors.New("frame delay must be positive")
)

const (
	// TranslationErrorText replaces the text of a region whose OCR or translation failed.
	TranslationErrorText = "[TRANSLATION ERROR]"
	defaultBackoff       = time.Second
)

// Lifecycle lines sent to the sink.
const (
	MsgStarted  = "Continuous translation started."
	MsgStopping = "Stopping translation"
	MsgStopped  = "Continuous translation stopped."
)

type State int32

const (
	Idle State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "idle"
	}
}

type CaptureSource interface {
	Grab(r screenshot.Rect) (*image.RGBA, error)
}

type Detector interface {
	Detect(ctx context.Context, frame *image.RGBA) ([]mask.Region, error)
}

type Reader interface {
	Read(ctx context.Context, img image.Image) (string, error)
}

type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Sink receives PNG frames and log lines. It is called from the loop goroutine
// and does its own UI-thread marshalling.
type Sink interface {
	EmitFrame(png []byte)
	EmitLog(line string)
}

type Deps struct {
	Capture    CaptureSource
	Detector   Detector
	Reader     Reader
	Translator Translator
	Sink       Sink
	Layout     *layout.Engine
	Logger     pslog.Logger

	// CaptureBackoff is the pause after a failed capture. Zero means one second.
	CaptureBackoff time.Duration
	// ReuseSimilar re-emits the previous frame when the new capture is within
	// SimilarDistance (perceptual hash bits) of the last processed one.
	ReuseSimilar    bool
	SimilarDistance int
}

// Engine owns at most one running session.
type Engine struct {
	deps Deps

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	// emitMu orders emissions against cancellation so nothing is emitted once
	// Stop has cancelled the session context.
	emitMu sync.Mutex
}

func New(deps Deps) (*Engine, error) {
	if deps.Capture == nil || deps.Detector == nil || deps.Reader == nil || deps.Translator == nil || deps.Sink == nil {
		return nil, errors.New("session: capture, detector, reader, translator and sink are required")
	}
	if deps.Layout == nil {
		deps.Layout = layout.NewEngine(layout.NewOpenTypeLoader(""), deps.Logger)
	}
	if deps.Logger == nil {
		deps.Logger = logutil.Discard()
	}
	if deps.CaptureBackoff <= 0 {
		deps.CaptureBackoff = defaultBackoff
	}
	return &Engine{deps: deps}, nil
}

// Start begins a session over region. It fails with ErrSessionRunning while
// another session is running or stopping.
func (e *Engine) Start(ctx context.Context, region screenshot.Rect, delay time.Duration) error {
	if region.Empty() {
		return fmt.Errorf("%w: %s", ErrInvalidRegion, region)
	}
	if delay <= 0 {
		return ErrInvalidDelay
	}

	e.mu.Lock()
	if e.state != Idle {
		e.mu.Unlock()
		return ErrSessionRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.state = Running
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	e.deps.Logger.Info("session started", "region", region.String(), "delay", delay)
	e.deps.Sink.EmitLog(MsgStarted)
	go e.run(loopCtx, region, delay, done)
	return nil
}

// Restart stops and joins any running session, then starts a new one.
func (e *Engine) Restart(ctx context.Context, region screenshot.Rect, delay time.Duration) error {
	e.Stop()
	return e.Start(ctx, region, delay)
}

// Stop cancels the running session and waits for its loop to exit. It is a
// no-op when idle.
func (e *Engine) Stop() {
	e.mu.Lock()
	switch e.state {
	case Idle:
		e.mu.Unlock()
		return
	case Stopping:
		done := e.done
		e.mu.Unlock()
		<-done
		return
	}
	e.state = Stopping
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	e.deps.Sink.EmitLog(MsgStopping)
	e.emitMu.Lock()
	cancel()
	e.emitMu.Unlock()
	<-done

	e.deps.Logger.Info("session stopped")
	e.deps.Sink.EmitLog(MsgStopped)
}

func (e *Engine) IsRunning() bool { return e.State() == Running }

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) run(ctx context.Context, region screenshot.Rect, delay time.Duration, done chan struct{}) {
	defer func() {
		// Idle is set before done closes so every Stop caller returns to an
		// idle engine. The loop can also end on its own with the parent context.
		e.mu.Lock()
		if e.done == done {
			e.state = Idle
			e.cancel()
			e.cancel = nil
			e.done = nil
		}
		e.mu.Unlock()
		close(done)
	}()

	var cache *frameCache
	if e.deps.ReuseSimilar {
		cache = &frameCache{maxDistance: e.deps.SimilarDistance}
	}

	for {
		if !wait(ctx, delay) {
			return
		}
		frame, err := e.deps.Capture.Grab(region)
		if err != nil {
			e.deps.Logger.Warn("capture failed", "err", err)
			e.emitLog(ctx, "Capture failed: "+err.Error())
			if !wait(ctx, e.deps.CaptureBackoff) {
				return
			}
			continue
		}

		var hash frameHash
		if cache != nil {
			reused, h, ok := cache.lookup(frame)
			if ok {
				e.emitFrame(ctx, reused)
				continue
			}
			hash = h
		}

		png, detected, err := e.processSafe(ctx, frame)
		if err != nil {
			if ctx.Err() == nil {
				e.deps.Logger.Error("frame dropped", "err", err)
			}
			continue
		}
		// Frames whose detection failed are not cached so the detector is retried.
		if cache != nil && detected {
			cache.store(hash, png)
		}
		e.emitFrame(ctx, png)
	}
}

// processSafe turns a panic during compositing into an error so the loop
// survives it. detected is false when the detector failed.
func (e *Engine) processSafe(ctx context.Context, frame *image.RGBA) (png []byte, detected bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			png, detected, err = nil, false, fmt.Errorf("panic while compositing frame: %v", r)
		}
	}()
	res, err := e.Process(ctx, frame)
	if err != nil {
		return nil, false, err
	}
	png, err = screenshot.EncodePNG(res.Image)
	return png, res.DetectErr == nil, err
}

func (e *Engine) emitFrame(ctx context.Context, png []byte) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	if ctx.Err() != nil {
		return
	}
	e.deps.Sink.EmitFrame(png)
}

func (e *Engine) emitLog(ctx context.Context, line string) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	if ctx.Err() != nil {
		return
	}
	e.deps.Sink.EmitLog(line)
}

// wait sleeps for d and reports false if ctx was cancelled first.
func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
