package external

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickai/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestChatClient(baseURL string) *ChatClient {
	return NewChatClient(http.DefaultClient, ChatClientConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "gemini-2.0-flash",
		Logger:  discardLogger(),
	})
}

func TestChatClient_Generate(t *testing.T) {
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Here is your article."}},
			},
		})
	}))
	defer srv.Close()

	c := newTestChatClient(srv.URL)
	out, err := c.Generate(context.Background(), "write about sailing", 800)
	require.NoError(t, err)
	assert.Equal(t, "Here is your article.", out)

	assert.Equal(t, "gemini-2.0-flash", captured.Model)
	assert.Equal(t, 800, captured.MaxTokens)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "write about sailing", captured.Messages[0].Content)
}

func TestChatClient_RejectedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestChatClient(srv.URL)
	_, err := c.Generate(context.Background(), "x", 100)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamAI, errorCodeOf(t, err))
}

func TestChatClient_EmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := newTestChatClient(srv.URL)
	_, err := c.Generate(context.Background(), "x", 100)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamAI, errorCodeOf(t, err))
}

func TestChatClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestChatClient(srv.URL)
	_, err := c.Generate(context.Background(), "x", 100)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, errorCodeOf(t, err))
}
