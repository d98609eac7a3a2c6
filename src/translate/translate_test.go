package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bubble-overlay/src/llm"
)

func TestLLMTranslator(t *testing.T) {
	var got llm.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(llm.ChatResponse{Choices: []llm.Choice{{Message: llm.ResponseMessage{Content: " Stop it! "}}}})
	}))
	defer srv.Close()

	tr, err := New(context.Background(), Options{
		Backend:    "openrouter",
		Source:     "Japanese",
		Target:     "English",
		OpenRouter: llm.New(llm.Config{APIKey: "k", Model: "m", BaseURL: srv.URL}),
	})
	require.NoError(t, err)

	out, err := tr.Translate(context.Background(), "やめて")
	require.NoError(t, err)
	assert.Equal(t, "Stop it!", out)
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[0].Content[0].Text, "from Japanese to English")
	assert.Equal(t, "やめて", got.Messages[1].Content[0].Text)
}

func TestEmptyTextSkipsBackend(t *testing.T) {
	tr := &LLMTranslator{Client: llm.New(llm.Config{BaseURL: "http://127.0.0.1:1"})}
	out, err := tr.Translate(context.Background(), "  \n")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNewBackends(t *testing.T) {
	ctx := context.Background()

	tr, err := New(ctx, Options{Backend: "none"})
	require.NoError(t, err)
	out, err := tr.Translate(ctx, " same ")
	require.NoError(t, err)
	assert.Equal(t, "same", out)

	_, err = New(ctx, Options{Backend: "openrouter"})
	assert.ErrorIs(t, err, llm.ErrNotConfigured)

	_, err = New(ctx, Options{Backend: "gemini"})
	assert.Error(t, err, "gemini needs an API key")

	g, err := New(ctx, Options{Backend: "Gemini", GeminiAPIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", g.(*GeminiTranslator).Model)

	_, err = New(ctx, Options{Backend: "babelfish"})
	assert.Error(t, err)
}

func TestFirstText(t *testing.T) {
	assert.Empty(t, firstText(nil))
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: nil},
		{Content: &genai.Content{Parts: []genai.Part{genai.Text("hello")}}},
	}}
	assert.Equal(t, "hello", firstText(resp))
}
