// Package mask aggregates detector masks and flattens the masked area to its
// mean colour.
package mask

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
)

// threshold is the 0.5 occupancy cut on 8-bit mask values.
const threshold = 127

// Region is one detected text area. Mask holds per-pixel probabilities scaled
// to 0..255 and covers the whole frame at the detector's resolution; nil means
// the full box.
type Region struct {
	Box  image.Rectangle
	Mask *image.Gray
}

// Clip intersects the box with the frame and reports whether anything is left.
func (r Region) Clip(frame image.Rectangle) (Region, bool) {
	r.Box = r.Box.Canon().Intersect(frame)
	return r, !r.Box.Empty()
}

// RegionMask resizes the region mask to w x h, thresholds it and clips it to the box.
func RegionMask(w, h int, r Region) *image.Alpha {
	out := image.NewAlpha(image.Rect(0, 0, w, h))
	box := r.Box.Intersect(out.Rect)
	if box.Empty() {
		return out
	}
	if r.Mask == nil {
		for y := box.Min.Y; y < box.Max.Y; y++ {
			for x := box.Min.X; x < box.Max.X; x++ {
				out.Pix[out.PixOffset(x, y)] = 0xff
			}
		}
		return out
	}

	scaled := toGray(resize.Resize(uint(w), uint(h), r.Mask, resize.Bilinear))
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			if scaled.GrayAt(x+scaled.Rect.Min.X, y+scaled.Rect.Min.Y).Y > threshold {
				out.Pix[out.PixOffset(x, y)] = 0xff
			}
		}
	}
	return out
}

// BuildMask is the pixel-wise OR of every RegionMask.
func BuildMask(w, h int, regions []Region) *image.Alpha {
	out := image.NewAlpha(image.Rect(0, 0, w, h))
	for _, r := range regions {
		m := RegionMask(w, h, r)
		for i, v := range m.Pix {
			if v != 0 {
				out.Pix[i] = 0xff
			}
		}
	}
	return out
}

// Empty reports whether no pixel is set.
func Empty(m *image.Alpha) bool {
	for _, v := range m.Pix {
		if v != 0 {
			return false
		}
	}
	return true
}

// FillWithAverage overwrites every masked pixel of frame with the mean colour of
// the masked pixels. It returns false and leaves frame alone when the mask is empty.
func FillWithAverage(frame *image.RGBA, m *image.Alpha) (color.RGBA, bool) {
	b := frame.Rect.Intersect(m.Rect)
	var sum [4]uint64
	var n uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if m.Pix[m.PixOffset(x, y)] == 0 {
				continue
			}
			i := frame.PixOffset(x, y)
			sum[0] += uint64(frame.Pix[i])
			sum[1] += uint64(frame.Pix[i+1])
			sum[2] += uint64(frame.Pix[i+2])
			sum[3] += uint64(frame.Pix[i+3])
			n++
		}
	}
	if n == 0 {
		return color.RGBA{}, false
	}
	mean := color.RGBA{R: uint8(sum[0] / n), G: uint8(sum[1] / n), B: uint8(sum[2] / n), A: uint8(sum[3] / n)}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if m.Pix[m.PixOffset(x, y)] == 0 {
				continue
			}
			i := frame.PixOffset(x, y)
			frame.Pix[i] = mean.R
			frame.Pix[i+1] = mean.G
			frame.Pix[i+2] = mean.B
			frame.Pix[i+3] = mean.A
		}
	}
	return mean, true
}

// MeanColor averages every pixel of img.
func MeanColor(img *image.RGBA) color.RGBA {
	var sum [4]uint64
	var n uint64
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
			c := img.RGBAAt(x, y)
			sum[0] += uint64(c.R)
			sum[1] += uint64(c.G)
			sum[2] += uint64(c.B)
			sum[3] += uint64(c.A)
			n++
		}
	}
	if n == 0 {
		return color.RGBA{}
	}
	return color.RGBA{R: uint8(sum[0] / n), G: uint8(sum[1] / n), B: uint8(sum[2] / n), A: uint8(sum[3] / n)}
}

// Luminance is the Rec. 601 luma of c on a 0..255 scale.
func Luminance(c color.RGBA) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return g
}
