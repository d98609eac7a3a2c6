// Package detect finds speech bubbles in a frame by calling a segmentation
// sidecar over HTTP.
//
// The sidecar accepts a PNG body on POST and answers with
//
//	{"regions":[{"box":[x1,y1,x2,y2],"score":0.93,
//	             "mask":{"width":W,"height":H,"data":"<base64 uint8 per pixel>"}}]}
//
// where the mask covers the whole frame at the detector's own resolution.
package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"bubble-overlay/src/mask"
	"bubble-overlay/src/screenshot"
)

// Detector returns the text-bearing regions of a frame.
type Detector interface {
	Detect(ctx context.Context, frame *image.RGBA) ([]mask.Region, error)
}

type wireMask struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   string `json:"data"`
}

type wireRegion struct {
	Box   [4]int    `json:"box"`
	Score float64   `json:"score,omitempty"`
	Mask  *wireMask `json:"mask,omitempty"`
}

type wireResponse struct {
	Regions []wireRegion `json:"regions"`
	Error   string       `json:"error,omitempty"`
}

// HTTPDetector posts frames to a sidecar endpoint.
type HTTPDetector struct {
	URL string
	// MinScore drops regions the sidecar is not confident about.
	MinScore float64
	client   *http.Client
}

func NewHTTP(url string, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDetector{URL: url, client: &http.Client{Timeout: timeout}}
}

func (d *HTTPDetector) Detect(ctx context.Context, frame *image.RGBA) ([]mask.Region, error) {
	body, err := screenshot.EncodePNG(frame)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detector returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode detector response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("detector error: %s", out.Error)
	}
	return d.convert(frame.Bounds(), out.Regions)
}

// convert clips boxes to the frame and drops degenerate or low-score regions.
func (d *HTTPDetector) convert(frame image.Rectangle, in []wireRegion) ([]mask.Region, error) {
	regions := make([]mask.Region, 0, len(in))
	for i, w := range in {
		if w.Score > 0 && w.Score < d.MinScore {
			continue
		}
		r := mask.Region{Box: image.Rect(w.Box[0], w.Box[1], w.Box[2], w.Box[3])}
		if w.Box[0] >= w.Box[2] || w.Box[1] >= w.Box[3] {
			continue
		}
		r, ok := r.Clip(frame)
		if !ok {
			continue
		}
		if w.Mask != nil {
			g, err := decodeMask(w.Mask)
			if err != nil {
				return nil, fmt.Errorf("region %d: %w", i, err)
			}
			r.Mask = g
		}
		regions = append(regions, r)
	}
	return regions, nil
}

func decodeMask(m *wireMask) (*image.Gray, error) {
	if m.Width <= 0 || m.Height <= 0 {
		return nil, fmt.Errorf("invalid mask size %dx%d", m.Width, m.Height)
	}
	data, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid mask data: %w", err)
	}
	if len(data) != m.Width*m.Height {
		return nil, fmt.Errorf("mask data has %d bytes, want %d", len(data), m.Width*m.Height)
	}
	return &image.Gray{Pix: data, Stride: m.Width, Rect: image.Rect(0, 0, m.Width, m.Height)}, nil
}

// Nop finds nothing; every frame is shown unmodified.
type Nop struct{}

func (Nop) Detect(context.Context, *image.RGBA) ([]mask.Region, error) { return nil, nil }

// New returns an HTTP detector for url dropping regions scored below minScore,
// or Nop when url is empty.
func New(url string, timeout time.Duration, minScore float64) Detector {
	if url == "" {
		return Nop{}
	}
	d := NewHTTP(url, timeout)
	d.MinScore = minScore
	return d
}
