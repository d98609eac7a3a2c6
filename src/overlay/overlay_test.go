package overlay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bubble-overlay/src/logutil"
	"bubble-overlay/src/screenshot"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name string
		rect screenshot.Rect
		ok   bool
	}{
		{"normal", screenshot.Rect{X1: 0, Y1: 0, X2: 200, Y2: 100}, true},
		{"just big enough", screenshot.Rect{X1: 5, Y1: 5, X2: 16, Y2: 16}, true},
		{"ten wide", screenshot.Rect{X1: 0, Y1: 0, X2: 10, Y2: 100}, false},
		{"ten high", screenshot.Rect{X1: 0, Y1: 0, X2: 100, Y2: 10}, false},
		{"empty", screenshot.Rect{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.rect)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrSelectionTooSmall)
			assert.True(t, IsCancelled(err))
		})
	}
}

func TestFixedSelector(t *testing.T) {
	r := screenshot.Rect{X1: 10, Y1: 20, X2: 300, Y2: 220}
	sel := NewSelector(&r, logutil.Discard())

	got, err := sel.Select(context.Background())
	require.NoError(t, err)
	assert.Equal(t, r, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sel.Select(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsCancelled(err))
}

func TestDisplaySelector(t *testing.T) {
	sel := Display{Bounds: func() (screenshot.Rect, error) {
		return screenshot.Rect{X1: 0, Y1: 0, X2: 1920, Y2: 1080}, nil
	}}
	got, err := sel.Select(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1920, got.Width())

	failing := Display{Bounds: func() (screenshot.Rect, error) { return screenshot.Rect{}, errors.New("headless") }}
	_, err = failing.Select(context.Background())
	assert.ErrorContains(t, err, "headless")
}
