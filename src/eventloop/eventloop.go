// Package eventloop is the single coordinator between fired chords, region
// selection, the continuous session and one-shot snips.
package eventloop

import (
	"context"
	"errors"
	"time"

	"pkt.systems/pslog"

	"bubble-overlay/src/hotkey"
	"bubble-overlay/src/logutil"
	"bubble-overlay/src/overlay"
	"bubble-overlay/src/screenshot"
	"bubble-overlay/src/session"
	"bubble-overlay/src/worker"
)

// Log lines sent to the sink by the loop itself.
const (
	MsgSelectionCancelled = "Selection cancelled."
	MsgBusy               = "Busy, please retry"
)

// Engine is the continuous session controller.
type Engine interface {
	Start(ctx context.Context, region screenshot.Rect, delay time.Duration) error
	Stop()
	IsRunning() bool
}

// Snipper performs one-shot translations.
type Snipper interface {
	Run(ctx context.Context, region screenshot.Rect) (*session.SnipResult, error)
}

// StatusFunc is told when the continuous session starts or stops, e.g. to
// update the tray tooltip.
type StatusFunc func(running bool)

type Options struct {
	Engine   Engine
	Snipper  Snipper
	Selector overlay.Selector
	Sink     session.Sink
	Logger   pslog.Logger
	// Delay is the inter-frame wait for continuous sessions.
	Delay time.Duration
	// SnipTimeout bounds one snip. Zero means 60 seconds.
	SnipTimeout time.Duration
	// Workers sizes the snip pool. Zero means NumCPU.
	Workers int
	Status  StatusFunc
}

// Loop is the single-threaded coordinator for hotkey and tray actions.
type Loop struct {
	opts    Options
	pool    *worker.Pool
	actions chan hotkey.Action
	snips   chan struct{}
	busy    bool
}

func New(opts Options) *Loop {
	if opts.Logger == nil {
		opts.Logger = logutil.Discard()
	}
	if opts.SnipTimeout <= 0 {
		opts.SnipTimeout = 60 * time.Second
	}
	return &Loop{
		opts:    opts,
		pool:    worker.New(opts.Workers, opts.Logger),
		actions: make(chan hotkey.Action, 4),
		snips:   make(chan struct{}, 1),
	}
}

// Post queues an action without blocking. Actions that arrive while the queue
// is full are dropped and false is returned. Safe from any goroutine.
func (l *Loop) Post(a hotkey.Action) bool {
	select {
	case l.actions <- a:
		return true
	default:
		l.opts.Logger.Warn("action dropped, loop busy", "action", a.String())
		return false
	}
}

// Run processes actions until ctx is cancelled, then stops any session and
// drains the snip pool.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.opts.Engine.Stop()
		l.setStatus()
		l.pool.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a := <-l.actions:
			l.handle(ctx, a)
		case <-l.snips:
			l.busy = false
		}
	}
}

func (l *Loop) handle(ctx context.Context, a hotkey.Action) {
	l.opts.Logger.Debug("action", "action", a.String())
	switch a {
	case hotkey.ActionStart:
		l.handleStart(ctx)
	case hotkey.ActionStop, hotkey.ActionStopAlt:
		l.opts.Engine.Stop()
		l.setStatus()
	case hotkey.ActionSnip:
		l.handleSnip(ctx)
	}
}

func (l *Loop) handleStart(ctx context.Context) {
	// A new selection replaces the running session.
	l.opts.Engine.Stop()
	l.setStatus()

	region, ok := l.selectRegion(ctx)
	if !ok {
		return
	}
	if err := l.opts.Engine.Start(ctx, region, l.opts.Delay); err != nil {
		l.opts.Logger.Error("session start failed", "err", err)
		l.opts.Sink.EmitLog("Could not start translation: " + err.Error())
		return
	}
	l.setStatus()
}

func (l *Loop) handleSnip(ctx context.Context) {
	if l.busy {
		l.opts.Sink.EmitLog(MsgBusy)
		return
	}
	region, ok := l.selectRegion(ctx)
	if !ok {
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, l.opts.SnipTimeout)
	l.busy = true
	submitted := l.pool.Submit(jobCtx, func(ctx context.Context) {
		defer cancel()
		defer func() { l.snips <- struct{}{} }()
		if _, err := l.opts.Snipper.Run(ctx, region); err != nil {
			l.opts.Logger.Warn("snip failed", "region", region.String(), "err", err)
		}
	})
	if !submitted {
		cancel()
		l.busy = false
		l.opts.Sink.EmitLog(MsgBusy)
	}
}

func (l *Loop) selectRegion(ctx context.Context) (screenshot.Rect, bool) {
	region, err := l.opts.Selector.Select(ctx)
	switch {
	case err == nil:
		return region, true
	case overlay.IsCancelled(err):
		l.opts.Logger.Info("selection cancelled", "err", err)
		l.opts.Sink.EmitLog(MsgSelectionCancelled)
	case errors.Is(err, context.Canceled):
	default:
		l.opts.Logger.Error("region selection failed", "err", err)
		l.opts.Sink.EmitLog("Selection failed: " + err.Error())
	}
	return screenshot.Rect{}, false
}

func (l *Loop) setStatus() {
	if l.opts.Status != nil {
		l.opts.Status(l.opts.Engine.IsRunning())
	}
}
