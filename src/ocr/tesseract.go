//go:build tesseract

package ocr

import (
	"context"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"bubble-overlay/src/screenshot"
)

// tesseractLangs maps language names used in config to traineddata codes.
var tesseractLangs = map[string]string{
	"japanese": "jpn",
	"chinese":  "chi_sim",
	"korean":   "kor",
	"english":  "eng",
}

// TesseractReader runs a local Tesseract engine. The client is not safe for
// concurrent use, so calls are serialized.
type TesseractReader struct {
	mu     sync.Mutex
	client *gosseract.Client
}

func newTesseract(language string) (Reader, error) {
	client := gosseract.NewClient()
	lang := tesseractLangs[strings.ToLower(language)]
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, err
	}
	return &TesseractReader{client: client}, nil
}

func (r *TesseractReader) Read(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := screenshot.EncodePNG(img)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.client.SetImageFromBytes(data); err != nil {
		return "", err
	}
	text, err := r.client.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (r *TesseractReader) Close() error {
	return r.client.Close()
}
