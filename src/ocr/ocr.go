package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"

	"bubble-overlay/src/llm"
	"bubble-overlay/src/screenshot"
)

var ErrBackendUnavailable = errors.New("OCR backend not available in this build")

// Reader extracts text from an image crop. Empty text is not an error.
type Reader interface {
	Read(ctx context.Context, img image.Image) (string, error)
}

// VisionReader performs OCR with an OpenRouter vision model.
type VisionReader struct {
	Client *llm.Client
}

func (r VisionReader) Read(ctx context.Context, img image.Image) (string, error) {
	data, err := screenshot.EncodePNG(img)
	if err != nil {
		return "", err
	}
	text, err := r.Client.QueryVision(ctx, data)
	if errors.Is(err, llm.ErrNoText) {
		return "", nil
	}
	return text, err
}

// New builds the reader for backend ("openrouter" or "tesseract").
func New(backend string, client *llm.Client, language string) (Reader, error) {
	switch backend {
	case "", "openrouter":
		return VisionReader{Client: client}, nil
	case "tesseract":
		return newTesseract(language)
	default:
		return nil, fmt.Errorf("unknown OCR backend %q", backend)
	}
}
