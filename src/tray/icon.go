package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
)

const iconSize = 32

var (
	bubbleFill    = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	bubbleOutline = color.RGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	runningDot    = color.RGBA{R: 0xe8, G: 0x3b, B: 0x2e, A: 0xff}
)

// IconPNG draws a speech bubble, with a red dot while a session is running.
func IconPNG(running bool) []byte {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	cx, cy, rx, ry := 16.0, 13.0, 14.0, 10.5
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := (float64(x)+0.5-cx)/rx, (float64(y)+0.5-cy)/ry
			d := dx*dx + dy*dy
			switch {
			case d <= 0.72:
				img.SetRGBA(x, y, bubbleFill)
			case d <= 1:
				img.SetRGBA(x, y, bubbleOutline)
			}
		}
	}
	// tail
	for i := 0; i < 7; i++ {
		for x := 8; x < 8+7-i; x++ {
			img.SetRGBA(x, 22+i, bubbleOutline)
		}
	}
	if running {
		for y := 20; y < 32; y++ {
			for x := 20; x < 32; x++ {
				if dx, dy := x-26, y-26; dx*dx+dy*dy <= 30 {
					img.SetRGBA(x, y, runningDot)
				}
			}
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// Icon returns the tray icon in the format the platform tray expects:
// an ICO container on Windows, plain PNG elsewhere.
func Icon(running bool) []byte {
	data := IconPNG(running)
	if runtime.GOOS == "windows" {
		return wrapICO(data, iconSize)
	}
	return data
}

// wrapICO embeds a PNG as the single image of an ICO file.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	header := struct {
		Reserved, Type, Count uint16
	}{0, 1, 1}
	entry := struct {
		Width, Height, Colors, Reserved uint8
		Planes, BitCount                uint16
		Size, Offset                    uint32
	}{
		Width:    uint8(size),
		Height:   uint8(size),
		Planes:   1,
		BitCount: 32,
		Size:     uint32(len(pngData)),
		Offset:   6 + 16,
	}
	_ = binary.Write(&buf, binary.LittleEndian, header)
	_ = binary.Write(&buf, binary.LittleEndian, entry)
	buf.Write(pngData)
	return buf.Bytes()
}
