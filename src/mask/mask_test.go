package mask

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformGray(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func filled(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func countSet(m *image.Alpha) int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

func TestRegionMaskClipsToBox(t *testing.T) {
	r := Region{Box: image.Rect(2, 3, 6, 5), Mask: uniformGray(10, 8, 255)}
	m := RegionMask(10, 8, r)
	assert.Equal(t, 4*2, countSet(m))
	assert.Equal(t, uint8(0xff), m.AlphaAt(2, 3).A)
	assert.Equal(t, uint8(0), m.AlphaAt(6, 3).A)
}

func TestRegionMaskThreshold(t *testing.T) {
	box := image.Rect(0, 0, 10, 8)
	assert.Equal(t, 0, countSet(RegionMask(10, 8, Region{Box: box, Mask: uniformGray(10, 8, 127)})))
	assert.Equal(t, 80, countSet(RegionMask(10, 8, Region{Box: box, Mask: uniformGray(10, 8, 128)})))
}

func TestRegionMaskResizesLowResolutionMask(t *testing.T) {
	low := image.NewGray(image.Rect(0, 0, 2, 1))
	low.Pix[0] = 255
	low.Pix[1] = 0

	m := RegionMask(20, 10, Region{Box: image.Rect(0, 0, 20, 10), Mask: low})
	assert.Equal(t, uint8(0xff), m.AlphaAt(0, 5).A, "left side comes from the set half")
	assert.Equal(t, uint8(0), m.AlphaAt(19, 5).A, "right side comes from the unset half")
}

func TestRegionMaskWithoutInstanceMaskFillsBox(t *testing.T) {
	m := RegionMask(10, 10, Region{Box: image.Rect(1, 1, 4, 4)})
	assert.Equal(t, 9, countSet(m))
}

func TestBuildMaskIsUnionOfRegionMasks(t *testing.T) {
	a := image.NewGray(image.Rect(0, 0, 12, 12))
	b := image.NewGray(image.Rect(0, 0, 12, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			a.Pix[a.PixOffset(x, y)] = uint8((x * 23) % 256)
			b.Pix[b.PixOffset(x, y)] = uint8((y * 41) % 256)
		}
	}
	regions := []Region{
		{Box: image.Rect(0, 0, 8, 8), Mask: a},
		{Box: image.Rect(4, 4, 12, 12), Mask: b},
		{Box: image.Rect(9, 0, 12, 3)},
	}

	got := BuildMask(12, 12, regions)

	want := image.NewAlpha(image.Rect(0, 0, 12, 12))
	for _, r := range regions {
		m := RegionMask(12, 12, r)
		for i := range m.Pix {
			want.Pix[i] |= m.Pix[i]
		}
	}
	assert.Equal(t, want.Pix, got.Pix)
	assert.False(t, Empty(got))
}

func TestBuildMaskEmpty(t *testing.T) {
	m := BuildMask(5, 4, nil)
	assert.True(t, Empty(m))
	assert.Equal(t, 0, countSet(m))
}

func TestFillWithAverage(t *testing.T) {
	frame := filled(4, 2, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	frame.SetRGBA(0, 0, color.RGBA{R: 250, G: 100, B: 0, A: 255})
	frame.SetRGBA(1, 0, color.RGBA{R: 150, G: 200, B: 50, A: 255})

	m := image.NewAlpha(frame.Rect)
	m.SetAlpha(0, 0, color.Alpha{A: 0xff})
	m.SetAlpha(1, 0, color.Alpha{A: 0xff})

	mean, ok := FillWithAverage(frame, m)
	require.True(t, ok)
	want := color.RGBA{R: 200, G: 150, B: 25, A: 255}
	assert.Equal(t, want, mean)
	assert.Equal(t, want, frame.RGBAAt(0, 0))
	assert.Equal(t, want, frame.RGBAAt(1, 0))
	assert.Equal(t, color.RGBA{R: 10, G: 10, B: 10, A: 255}, frame.RGBAAt(2, 0), "unmasked pixels stay")
}

func TestFillWithAverageEmptyMaskLeavesFrame(t *testing.T) {
	frame := filled(3, 3, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	before := append([]uint8(nil), frame.Pix...)

	_, ok := FillWithAverage(frame, image.NewAlpha(frame.Rect))
	assert.False(t, ok)
	assert.Equal(t, before, frame.Pix)
}

func TestRegionClip(t *testing.T) {
	frame := image.Rect(0, 0, 100, 50)
	r, ok := Region{Box: image.Rect(90, 40, 120, 70)}.Clip(frame)
	require.True(t, ok)
	assert.Equal(t, image.Rect(90, 40, 100, 50), r.Box)

	_, ok = Region{Box: image.Rect(10, 10, 10, 30)}.Clip(frame)
	assert.False(t, ok, "zero-width box is degenerate")
	_, ok = Region{Box: image.Rect(200, 0, 300, 10)}.Clip(frame)
	assert.False(t, ok)
}

func TestMeanColorAndLuminance(t *testing.T) {
	img := filled(2, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{A: 255})
	mean := MeanColor(img)
	assert.Equal(t, color.RGBA{R: 127, G: 127, B: 127, A: 255}, mean)
	assert.InDelta(t, 255.0, Luminance(color.RGBA{R: 255, G: 255, B: 255}), 0.001)
	assert.Less(t, Luminance(mean), 128.0)
}
