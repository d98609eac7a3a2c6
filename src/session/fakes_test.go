package session

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"bubble-overlay/src/mask"
	"bubble-overlay/src/screenshot"
)

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

type fakeCapture struct {
	mu    sync.Mutex
	grabs []screenshot.Rect
	err   error
	frame func() *image.RGBA
}

func (c *fakeCapture) Grab(r screenshot.Rect) (*image.RGBA, error) {
	c.mu.Lock()
	c.grabs = append(c.grabs, r)
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if c.frame != nil {
		return c.frame(), nil
	}
	return solidFrame(r.Width(), r.Height(), white), nil
}

func (c *fakeCapture) count(r screenshot.Rect) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, g := range c.grabs {
		if g == r {
			n++
		}
	}
	return n
}

type fakeDetector struct {
	regions []mask.Region
	err     error
	delay   time.Duration
	panics  bool
	// failFirst makes the first n calls fail.
	failFirst int32
	calls     atomic.Int32
}

func (d *fakeDetector) Detect(ctx context.Context, frame *image.RGBA) ([]mask.Region, error) {
	n := d.calls.Add(1)
	if n <= d.failFirst {
		return nil, errors.New("sidecar unavailable")
	}
	if d.panics {
		panic("detector exploded")
	}
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return d.regions, d.err
}

// fakeReader answers by crop width; widths missing from texts fail.
type fakeReader struct {
	texts map[int]string
}

func (r fakeReader) Read(_ context.Context, img image.Image) (string, error) {
	if t, ok := r.texts[img.Bounds().Dx()]; ok {
		return t, nil
	}
	return "", errors.New("ocr failed")
}

type panicReader struct {
	calls atomic.Int32
}

func (r *panicReader) Read(context.Context, image.Image) (string, error) {
	r.calls.Add(1)
	panic("reader exploded")
}

type fakeTranslator struct {
	fail  string
	calls atomic.Int32
}

func (t *fakeTranslator) Translate(_ context.Context, text string) (string, error) {
	t.calls.Add(1)
	if text == t.fail {
		return "", errors.New("translator down")
	}
	return "EN(" + text + ")", nil
}
