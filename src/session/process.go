package session

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"

	"bubble-overlay/src/layout"
	"bubble-overlay/src/mask"
	"bubble-overlay/src/screenshot"
)

var (
	textColor    = color.Black
	outlineColor = color.White
)

// Overlay is one region's text as drawn on the frame.
type Overlay struct {
	Box    image.Rectangle
	Source string
	Text   string
	Failed bool
	Block  layout.TextBlock
}

// Result is a composited frame. Image is modified in place from the captured frame.
type Result struct {
	Image    *image.RGBA
	Overlays []Overlay
	Fill     color.RGBA
	Detected bool
	// DetectErr is set when the detector failed and Image is the unmodified frame.
	DetectErr error
}

// Process runs detection, per-region OCR and translation, masking and text
// layout on one frame. Detection failure yields the unmodified frame.
func (e *Engine) Process(ctx context.Context, frame *image.RGBA) (*Result, error) {
	if frame.Rect.Min != (image.Point{}) {
		frame = screenshot.ToRGBA(frame, frame.Rect)
	}
	res := &Result{Image: frame}

	found, err := e.detect(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.deps.Logger.Warn("detection failed", "err", err)
		e.emitLog(ctx, "Detection failed: "+err.Error())
		res.DetectErr = err
		return res, nil
	}

	regions := make([]mask.Region, 0, len(found))
	for _, r := range found {
		if r, ok := r.Clip(frame.Rect); ok {
			regions = append(regions, r)
		}
	}
	if len(regions) == 0 {
		return res, nil
	}
	res.Detected = true

	for _, r := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Overlays = append(res.Overlays, e.translateRegion(ctx, frame, r.Box))
	}

	m := mask.BuildMask(frame.Rect.Dx(), frame.Rect.Dy(), regions)
	res.Fill, _ = mask.FillWithAverage(frame, m)

	for i := range res.Overlays {
		o := &res.Overlays[i]
		o.Block = e.deps.Layout.Layout(o.Text, o.Box)
		layout.Draw(frame, o.Block, textColor, outlineColor)
	}
	return res, nil
}

// detect calls the detector, turning a panic into an error.
func (e *Engine) detect(ctx context.Context, frame *image.RGBA) (found []mask.Region, err error) {
	defer func() {
		if r := recover(); r != nil {
			found, err = nil, fmt.Errorf("detector panic: %v", r)
		}
	}()
	return e.deps.Detector.Detect(ctx, frame)
}

// translateRegion crops box, reads it and translates the text. Failures give
// the placeholder text instead of an error.
func (e *Engine) translateRegion(ctx context.Context, frame *image.RGBA, box image.Rectangle) Overlay {
	o := Overlay{Box: box}
	crop := screenshot.ToRGBA(frame, box)

	source, err := e.deps.Reader.Read(ctx, crop)
	if err != nil {
		e.deps.Logger.Warn("ocr failed", "box", box.String(), "err", err)
		o.Text, o.Failed = TranslationErrorText, true
		return o
	}
	o.Source = source
	if strings.TrimSpace(source) == "" {
		return o
	}

	text, err := e.deps.Translator.Translate(ctx, source)
	if err != nil {
		e.deps.Logger.Warn("translation failed", "box", box.String(), "err", err)
		o.Text, o.Failed = TranslationErrorText, true
		return o
	}
	o.Text = text
	e.deps.Logger.Debug("region translated", "box", box.String(), "source", source, "text", text)
	return o
}
