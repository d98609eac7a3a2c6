package layout

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FallbackSize is the nominal size reported for the built-in glyph set.
const FallbackSize = 13

// FontLoader produces a face for a pixel size.
type FontLoader interface {
	Face(size int) (font.Face, error)
}

// OpenTypeLoader parses a TrueType/OpenType font once and builds faces on demand.
// An empty Path uses the bundled Go Regular font.
type OpenTypeLoader struct {
	Path string

	once sync.Once
	font *opentype.Font
	err  error
}

func NewOpenTypeLoader(path string) *OpenTypeLoader {
	return &OpenTypeLoader{Path: path}
}

func (l *OpenTypeLoader) Face(size int) (font.Face, error) {
	l.once.Do(l.parse)
	if l.err != nil {
		return nil, l.err
	}
	face, err := opentype.NewFace(l.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("font face size %d: %w", size, err)
	}
	return face, nil
}

func (l *OpenTypeLoader) parse() {
	data := goregular.TTF
	if l.Path != "" {
		b, err := os.ReadFile(l.Path)
		if err != nil {
			l.err = fmt.Errorf("read font %s: %w", l.Path, err)
			return
		}
		data = b
	}
	f, err := opentype.Parse(data)
	if err != nil {
		l.err = fmt.Errorf("parse font: %w", err)
		return
	}
	l.font = f
}

// fallbackFace is the built-in glyph set used when no font can be loaded.
func fallbackFace() font.Face { return basicfont.Face7x13 }
