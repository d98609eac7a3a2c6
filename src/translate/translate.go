// Package translate turns recognized text into the target language.
package translate

import (
	"context"
	"fmt"
	"strings"

	"bubble-overlay/src/llm"
)

// Translator converts text. Empty input yields empty output without a call.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Options selects and configures a backend.
type Options struct {
	Backend      string
	Source       string
	Target       string
	OpenRouter   *llm.Client
	GeminiAPIKey string
	GeminiModel  string
}

func New(ctx context.Context, opts Options) (Translator, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "openrouter":
		if opts.OpenRouter == nil {
			return nil, fmt.Errorf("openrouter translator: %w", llm.ErrNotConfigured)
		}
		return &LLMTranslator{Client: opts.OpenRouter, Source: opts.Source, Target: opts.Target}, nil
	case "gemini":
		return NewGemini(ctx, opts.GeminiAPIKey, opts.GeminiModel, opts.Source, opts.Target)
	case "none":
		return Passthrough{}, nil
	default:
		return nil, fmt.Errorf("unknown translator %q", opts.Backend)
	}
}

func systemPrompt(source, target string) string {
	if source == "" {
		source = "the source language"
	}
	if target == "" {
		target = "English"
	}
	return fmt.Sprintf("You translate comic speech bubbles from %s to %s. "+
		"Reply with the translation only: no quotes, no notes, no romanization. "+
		"Keep it short enough to fit the original bubble.", source, target)
}

// LLMTranslator uses an OpenRouter chat model.
type LLMTranslator struct {
	Client *llm.Client
	Source string
	Target string
}

func (t *LLMTranslator) Translate(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	out, err := t.Client.QueryText(ctx, systemPrompt(t.Source, t.Target), text)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Passthrough returns the recognized text unchanged.
type Passthrough struct{}

func (Passthrough) Translate(_ context.Context, text string) (string, error) {
	return strings.TrimSpace(text), nil
}
