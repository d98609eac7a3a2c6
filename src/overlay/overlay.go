// Package overlay provides region selection for starting sessions and snips.
package overlay

import (
	"context"
	"errors"
	"fmt"

	"pkt.systems/pslog"

	"bubble-overlay/src/screenshot"
)

// MinSelectionSpan is the smallest accepted width and height. Anything at or
// below it counts as a cancelled selection.
const MinSelectionSpan = 10

var (
	ErrSelectionCancelled = errors.New("selection cancelled")
	ErrSelectionTooSmall  = errors.New("selection too small")
)

// Selector defines a synchronous region-selection API owned by the event loop.
// The call is blocking and must be invoked only from the event-loop goroutine.
type Selector interface {
	Select(ctx context.Context) (screenshot.Rect, error)
}

// Check rejects selections that are too small to translate.
func Check(r screenshot.Rect) error {
	if r.Width() <= MinSelectionSpan || r.Height() <= MinSelectionSpan {
		return fmt.Errorf("%w: %dx%d", ErrSelectionTooSmall, r.Width(), r.Height())
	}
	return nil
}

// IsCancelled reports whether err means the user gave no usable region.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrSelectionCancelled) || errors.Is(err, ErrSelectionTooSmall)
}

// Fixed always returns the same rectangle, e.g. one given with --region.
type Fixed struct {
	Rect screenshot.Rect
}

func (f Fixed) Select(ctx context.Context) (screenshot.Rect, error) {
	if err := ctx.Err(); err != nil {
		return screenshot.Rect{}, err
	}
	if err := Check(f.Rect); err != nil {
		return screenshot.Rect{}, err
	}
	return f.Rect, nil
}

// Display selects the whole primary display.
type Display struct {
	Bounds func() (screenshot.Rect, error)
}

func (d Display) Select(ctx context.Context) (screenshot.Rect, error) {
	if err := ctx.Err(); err != nil {
		return screenshot.Rect{}, err
	}
	bounds := d.Bounds
	if bounds == nil {
		bounds = screenshot.DisplayBounds
	}
	r, err := bounds()
	if err != nil {
		return screenshot.Rect{}, fmt.Errorf("display bounds: %w", err)
	}
	return r, Check(r)
}

// NewSelector returns Fixed when region is set, otherwise the platform's
// interactive selector.
func NewSelector(region *screenshot.Rect, logger pslog.Logger) Selector {
	if region != nil {
		return Fixed{Rect: *region}
	}
	return newInteractiveSelector(logger)
}
