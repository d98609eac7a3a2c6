package session

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"

	"pkt.systems/pslog"

	"bubble-overlay/src/layout"
	"bubble-overlay/src/logutil"
	"bubble-overlay/src/mask"
	"bubble-overlay/src/screenshot"
)

// Display selects what a snip reports.
type Display struct {
	Original   bool
	Translated bool
	Image      bool
}

// Snipper performs one-shot translations of a whole region.
type Snipper struct {
	Capture    CaptureSource
	Reader     Reader
	Translator Translator
	Sink       Sink
	Layout     *layout.Engine
	Logger     pslog.Logger
	Display    Display
	// TargetLabel prefixes the translated line, e.g. "EN".
	TargetLabel string
	// Copy receives the translation when set, e.g. a clipboard writer.
	Copy func(string) error
}

// SnipResult is the outcome of one snip.
type SnipResult struct {
	Source      string
	Translation string
	Image       *image.RGBA
}

// Run captures region once, translates all of its text and reports the result
// to the sink according to Display.
func (s *Snipper) Run(ctx context.Context, region screenshot.Rect) (*SnipResult, error) {
	logger := s.Logger
	if logger == nil {
		logger = logutil.Discard()
	}
	frame, err := s.Capture.Grab(region)
	if err != nil {
		s.Sink.EmitLog("Capture failed: " + err.Error())
		return nil, fmt.Errorf("snip capture: %w", err)
	}

	res := &SnipResult{}
	res.Source, err = s.Reader.Read(ctx, frame)
	if err != nil {
		s.Sink.EmitLog(TranslationErrorText)
		return nil, fmt.Errorf("snip ocr: %w", err)
	}
	if strings.TrimSpace(res.Source) != "" {
		res.Translation, err = s.Translator.Translate(ctx, res.Source)
		if err != nil {
			s.Sink.EmitLog(TranslationErrorText)
			return nil, fmt.Errorf("snip translate: %w", err)
		}
	}
	logger.Info("snip translated", "region", region.String(), "chars", len(res.Source))

	var lines []string
	if s.Display.Original {
		lines = append(lines, "Source: "+res.Source)
	}
	if s.Display.Translated {
		label := s.TargetLabel
		if label == "" {
			label = "EN"
		}
		lines = append(lines, label+": "+res.Translation)
	}
	if len(lines) > 0 {
		s.Sink.EmitLog(strings.Join(lines, "\n"))
	}

	if s.Copy != nil && res.Translation != "" {
		if err := s.Copy(res.Translation); err != nil {
			logger.Warn("clipboard copy failed", "err", err)
		}
	}

	if s.Display.Image {
		res.Image = s.render(frame, res.Translation)
		png, err := screenshot.EncodePNG(res.Image)
		if err != nil {
			return res, err
		}
		s.Sink.EmitFrame(png)
	}
	return res, nil
}

// render fills the whole crop with its mean colour and draws text on it in
// black or white depending on the fill's luminance.
func (s *Snipper) render(frame *image.RGBA, text string) *image.RGBA {
	out := screenshot.ToRGBA(frame, frame.Rect)
	fill := mask.MeanColor(out)
	for y := 0; y < out.Rect.Dy(); y++ {
		for x := 0; x < out.Rect.Dx(); x++ {
			out.SetRGBA(x, y, fill)
		}
	}
	fg, outline := color.Color(color.White), color.Color(color.Black)
	if mask.Luminance(fill) > 128 {
		fg, outline = color.Black, color.White
	}
	engine := s.Layout
	if engine == nil {
		engine = layout.NewEngine(layout.NewOpenTypeLoader(""), s.Logger)
	}
	block := engine.Layout(text, out.Rect)
	layout.Draw(out, block, fg, outline)
	return out
}

// LanguageLabel turns "English" into "EN".
func LanguageLabel(language string) string {
	r := []rune(strings.TrimSpace(language))
	if len(r) > 2 {
		r = r[:2]
	}
	return strings.ToUpper(string(r))
}
