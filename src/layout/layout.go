// Package layout fits translated text into a bounding box: decreasing font size
// search, greedy word wrap and centred placement.
package layout

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"pkt.systems/pslog"
)

// Engine holds the fitting parameters. Sizes run from MaxSize down to MinSize by Step.
type Engine struct {
	Loader  FontLoader
	Padding int
	MaxSize int
	MinSize int
	Step    int
	Logger  pslog.Logger
}

// NewEngine returns an engine with sizes 14, 12, 10, 8 and padding 3.
func NewEngine(loader FontLoader, logger pslog.Logger) *Engine {
	return &Engine{Loader: loader, Padding: 3, MaxSize: 14, MinSize: 8, Step: 2, Logger: logger}
}

// TextBlock is laid-out text ready to draw. Origin is the top-left corner of the block.
type TextBlock struct {
	Lines      []string
	FontSize   int
	Origin     image.Point
	Width      int
	Height     int
	LineHeight int
	// Fallback is set when the built-in glyph set was used.
	Fallback bool

	face font.Face
}

// Empty reports a block with nothing to draw.
func (b TextBlock) Empty() bool { return len(b.Lines) == 0 }

// Layout fits text into box. Whitespace-only text gives an empty block.
func (e *Engine) Layout(text string, box image.Rectangle) TextBlock {
	if strings.TrimSpace(text) == "" {
		return TextBlock{}
	}
	w, h := box.Dx(), box.Dy()
	safeW := max(10, w-2*e.Padding)
	safeH := max(10, h-2*e.Padding)

	var (
		face     font.Face
		size     int
		lines    []string
		lh       int
		fallback bool
	)
	for size = e.MaxSize; size >= e.MinSize; size -= e.step() {
		f, err := e.Loader.Face(size)
		if err != nil {
			if e.Logger != nil {
				e.Logger.Warn("font load failed, using built-in glyphs", "size", size, "err", err)
			}
			face, size, fallback = fallbackFace(), FallbackSize, true
			lines = Wrap(face, text, safeW)
			lh = LineHeight(face)
			break
		}
		face = f
		lines = Wrap(face, text, safeW)
		lh = LineHeight(face)
		if lh*len(lines) <= safeH || size-e.step() < e.MinSize {
			break
		}
	}
	if face == nil {
		face, size, fallback = fallbackFace(), FallbackSize, true
		lines = Wrap(face, text, safeW)
		lh = LineHeight(face)
	}

	bw := 0
	for _, l := range lines {
		bw = max(bw, measure(face, l))
	}
	bh := lh * len(lines)
	return TextBlock{
		Lines:      lines,
		FontSize:   size,
		Origin:     image.Pt(box.Min.X+(w-bw)/2, box.Min.Y+(h-bh)/2),
		Width:      bw,
		Height:     bh,
		LineHeight: lh,
		Fallback:   fallback,
		face:       face,
	}
}

func (e *Engine) step() int {
	if e.Step < 1 {
		return 1
	}
	return e.Step
}

// Wrap greedily packs words into lines no wider than maxWidth. Words are never
// split; a word wider than maxWidth gets a line of its own.
func Wrap(face font.Face, text string, maxWidth int) []string {
	words := strings.Fields(text)
	var lines []string
	current := ""
	for _, word := range words {
		if current == "" {
			current = word
			continue
		}
		candidate := current + " " + word
		if measure(face, candidate) <= maxWidth {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// LineHeight is ascent plus descent rounded up to whole pixels.
func LineHeight(face font.Face) int {
	m := face.Metrics()
	return (m.Ascent + m.Descent).Ceil()
}

func measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// outlineRadius is the stroke width in pixels.
const outlineRadius = 2

// Draw renders the block onto dst. Each line is centred within the block and
// stroked with outline before the fill colour is drawn on top.
func Draw(dst draw.Image, b TextBlock, fill, outline color.Color) {
	if b.Empty() || b.face == nil {
		return
	}
	ascent := b.face.Metrics().Ascent.Ceil()
	d := &font.Drawer{Dst: dst, Face: b.face}
	for i, line := range b.Lines {
		x := b.Origin.X + (b.Width-measure(b.face, line))/2
		y := b.Origin.Y + i*b.LineHeight + ascent

		d.Src = image.NewUniform(outline)
		for dy := -outlineRadius; dy <= outlineRadius; dy++ {
			for dx := -outlineRadius; dx <= outlineRadius; dx++ {
				if (dx == 0 && dy == 0) || dx*dx+dy*dy > outlineRadius*outlineRadius {
					continue
				}
				d.Dot = fixed.P(x+dx, y+dy)
				d.DrawString(line)
			}
		}
		d.Src = image.NewUniform(fill)
		d.Dot = fixed.P(x, y)
		d.DrawString(line)
	}
}
