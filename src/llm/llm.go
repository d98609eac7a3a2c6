package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pkt.systems/pslog"

	"bubble-overlay/src/logutil"
)

var (
	ErrNotConfigured = errors.New("LLM client not configured")
	ErrNoText        = errors.New("no text detected in image")
)

type Config struct {
	APIKey    string
	Model     string
	Providers []string
	// BaseURL overrides the OpenRouter chat completions endpoint.
	BaseURL string
	Timeout time.Duration
}

// OpenRouter API structures
type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

type Content struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ProviderPreferences struct {
	Order          []string `json:"order,omitempty"`
	Quantizations  []string `json:"quantizations,omitempty"`
	AllowFallbacks *bool    `json:"allow_fallbacks,omitempty"`
}

type ChatRequest struct {
	Model       string               `json:"model"`
	Messages    []Message            `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	Provider    *ProviderPreferences `json:"provider,omitempty"`
}

type ChatResponse struct {
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

type Choice struct {
	Message ResponseMessage `json:"message"`
}

type ResponseMessage struct {
	Content string `json:"content"`
}

type APIError struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"` // Can be string or number
}

const (
	openRouterURL  = "https://openrouter.ai/api/v1/chat/completions"
	maxRetries     = 3
	initialDelay   = 1 * time.Second
	defaultTimeout = 45 * time.Second
	noTextMarker   = "NO_TEXT_FOUND"
)

const ocrPrompt = "Perform OCR on this image. Return ONLY the raw extracted text with:\n" +
	"- No formatting\n" +
	"- No XML/HTML tags\n" +
	"- No markdown\n" +
	"- No explanations\n" +
	"- Preserve line breaks accurately from the visual layout.\n" +
	"If no text found, return '" + noTextMarker + "'"

// Client talks to the OpenRouter chat completions API.
type Client struct {
	cfg        Config
	http       *http.Client
	retryDelay time.Duration
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openRouterURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		http:       &http.Client{Timeout: cfg.Timeout},
		retryDelay: initialDelay,
	}
}

// WithModel returns a client that shares the HTTP client but uses model.
func (c *Client) WithModel(model string) *Client {
	if model == "" {
		return c
	}
	cp := *c
	cp.cfg.Model = model
	return &cp
}

func (c *Client) Model() string { return c.cfg.Model }

// getProviderPreferences returns provider preferences based on config
func (c *Client) getProviderPreferences() *ProviderPreferences {
	if len(c.cfg.Providers) == 0 {
		// No providers specified, use default OpenRouter routing
		return nil
	}
	allowFallbacks := false
	return &ProviderPreferences{
		Order:          c.cfg.Providers,
		AllowFallbacks: &allowFallbacks,
	}
}

func (c *Client) validate() error {
	if c == nil {
		return ErrNotConfigured
	}
	if c.cfg.APIKey == "" {
		return fmt.Errorf("%w: API key is required", ErrNotConfigured)
	}
	if c.cfg.Model == "" {
		return fmt.Errorf("%w: model is required", ErrNotConfigured)
	}
	return nil
}

// QueryVision sends a PNG image to the vision model for OCR.
func (c *Client) QueryVision(ctx context.Context, imageData []byte) (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}

	imageURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(imageData)
	request := ChatRequest{
		Model: c.cfg.Model,
		Messages: []Message{
			{
				Role: "user",
				Content: []Content{
					{Type: "text", Text: ocrPrompt},
					{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
				},
			},
		},
		Temperature: 0.1,
		MaxTokens:   2000,
		Provider:    c.getProviderPreferences(),
	}

	text, err := c.complete(ctx, request)
	if err != nil {
		return "", err
	}
	if text == "" || text == noTextMarker {
		return "", ErrNoText
	}
	return text, nil
}

// QueryText runs a plain chat completion with a system and a user message.
func (c *Client) QueryText(ctx context.Context, system, user string) (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}
	var messages []Message
	if system != "" {
		messages = append(messages, Message{Role: "system", Content: []Content{{Type: "text", Text: system}}})
	}
	messages = append(messages, Message{Role: "user", Content: []Content{{Type: "text", Text: user}}})

	return c.complete(ctx, ChatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: 0.2,
		MaxTokens:   1000,
		Provider:    c.getProviderPreferences(),
	})
}

// Ping checks the key and model with a one-token request.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.validate(); err != nil {
		return err
	}
	_, err := c.makeAPIRequest(ctx, ChatRequest{
		Model:     c.cfg.Model,
		Messages:  []Message{{Role: "user", Content: []Content{{Type: "text", Text: "ping"}}}},
		MaxTokens: 1,
		Provider:  c.getProviderPreferences(),
	})
	return err
}

// complete retries with a growing delay and returns the cleaned first choice.
func (c *Client) complete(ctx context.Context, request ChatRequest) (string, error) {
	logger := pslog.Ctx(ctx)
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.retryDelay) * (1.5 * float64(attempt)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		response, err := c.makeAPIRequest(ctx, request)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			logger.Debug("llm request failed", "attempt", attempt+1, "model", request.Model, "err", err)
			lastErr = err
			continue
		}
		if len(response.Choices) == 0 {
			lastErr = fmt.Errorf("no choices in API response")
			continue
		}
		return cleanExtractedText(response.Choices[0].Message.Content), nil
	}
	return "", fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

func (c *Client) makeAPIRequest(ctx context.Context, request ChatRequest) (*ChatResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-Title", "Bubble Overlay")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed (key %s): %w", logutil.RedactKey(c.cfg.APIKey), err)
	}
	defer resp.Body.Close()

	var response ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("API error: %s (type: %s, code: %v)", response.Error.Message, response.Error.Type, response.Error.Code)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	return &response, nil
}

func cleanExtractedText(text string) string {
	text = strings.TrimSpace(text)
	// Remove any remaining image tags or artifacts
	text = strings.TrimSuffix(text, "</image>")
	return strings.TrimSpace(text)
}
