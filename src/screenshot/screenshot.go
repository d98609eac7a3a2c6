package screenshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"github.com/kbinani/screenshot"
)

var ErrInvalidRect = errors.New("invalid rectangle")

// Rect is a screen rectangle in virtual-screen coordinates, x2/y2 exclusive.
type Rect struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

func (r Rect) Width() int  { return r.X2 - r.X1 }
func (r Rect) Height() int { return r.Y2 - r.Y1 }

// Empty reports a degenerate rectangle.
func (r Rect) Empty() bool { return r.X1 >= r.X2 || r.Y1 >= r.Y2 }

func (r Rect) Image() image.Rectangle { return image.Rect(r.X1, r.Y1, r.X2, r.Y2) }

func (r Rect) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X1, r.Y1, r.X2, r.Y2)
}

func FromImage(b image.Rectangle) Rect {
	return Rect{X1: b.Min.X, Y1: b.Min.Y, X2: b.Max.X, Y2: b.Max.Y}
}

// ParseRect parses "x1,y1,x2,y2". Corners may be given in any order.
func ParseRect(s string) (Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Rect{}, fmt.Errorf("%w: %q: want x1,y1,x2,y2", ErrInvalidRect, s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Rect{}, fmt.Errorf("%w: %q: %v", ErrInvalidRect, s, err)
		}
		v[i] = n
	}
	r := FromImage(image.Rect(v[0], v[1], v[2], v[3]))
	if r.Empty() {
		return Rect{}, fmt.Errorf("%w: %q is empty", ErrInvalidRect, s)
	}
	return r, nil
}

// Capturer grabs screen rectangles with kbinani/screenshot.
type Capturer struct{}

// Grab captures r. The returned image has its origin at (0,0).
func (Capturer) Grab(r Rect) (*image.RGBA, error) {
	if r.Empty() {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", r.Width(), r.Height())
	}
	img, err := screenshot.CaptureRect(r.Image())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}
	return img, nil
}

// CaptureDisplay captures the entire virtual screen across all active displays.
func CaptureDisplay() (*image.RGBA, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays found")
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return screenshot.CaptureRect(union)
}

// DisplayBounds returns the bounds of the primary display.
func DisplayBounds() (Rect, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return Rect{}, fmt.Errorf("no active displays found")
	}
	return FromImage(screenshot.GetDisplayBounds(0)), nil
}

// StaticSource serves crops of a fixed image, for offline runs and tests.
type StaticSource struct {
	Img image.Image
}

func (s StaticSource) Grab(r Rect) (*image.RGBA, error) {
	clip := r.Image().Intersect(s.Img.Bounds())
	if clip.Empty() {
		return nil, fmt.Errorf("%w: %s outside image %v", ErrInvalidRect, r, s.Img.Bounds())
	}
	return ToRGBA(s.Img, clip), nil
}

// ToRGBA copies the part of src inside r into a new image with origin (0,0).
func ToRGBA(src image.Image, r image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)
	return dst
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodePNG(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG: %w", err)
	}
	return img, nil
}
