package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiTranslator calls the Gemini API. The client is created on first use
// and reused for every call.
type GeminiTranslator struct {
	APIKey string
	Model  string
	Source string
	Target string

	once   sync.Once
	client *genai.Client
	err    error
}

func NewGemini(_ context.Context, apiKey, model, source, target string) (*GeminiTranslator, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiTranslator{APIKey: apiKey, Model: model, Source: source, Target: target}, nil
}

func (g *GeminiTranslator) connect(ctx context.Context) (*genai.Client, error) {
	g.once.Do(func() {
		// The client outlives the first request, so it must not inherit its cancellation.
		g.client, g.err = genai.NewClient(context.WithoutCancel(ctx), option.WithAPIKey(g.APIKey))
	})
	return g.client, g.err
}

func (g *GeminiTranslator) Translate(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	cl, err := g.connect(ctx)
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}

	m := cl.GenerativeModel(g.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: ptrFloat32(0.2),
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt(g.Source, g.Target))},
	}

	resp, err := m.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return "", fmt.Errorf("gemini translate: %w", err)
	}
	out := firstText(resp)
	if out == "" {
		return "", fmt.Errorf("gemini translate: empty response")
	}
	return strings.TrimSpace(out), nil
}

func (g *GeminiTranslator) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
