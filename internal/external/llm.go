package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"quickai/internal/types"
)

// ChatClientConfig holds the configuration for creating a ChatClient.
type ChatClientConfig struct {
	APIKey  string
	BaseURL string // OpenAI-compatible endpoint root, no trailing slash
	Model   string
	Logger  *slog.Logger
}

// ChatClient implements TextGenerator against an OpenAI-compatible chat
// completions endpoint (Gemini's OpenAI compatibility layer in production).
type ChatClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	model   string
	logger  *slog.Logger
}

// NewChatClient creates a ChatClient routed through the shared resilience
// layer.
func NewChatClient(httpClient *http.Client, cfg ChatClientConfig) *ChatClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatClient{
		base:    NewBaseClient(httpClient, "chat-completions", DefaultRetryPolicy()),
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		logger:  logger,
	}
}

// chatRequest is the OpenAI-compatible chat completion request envelope.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the subset of the completion response the service consumes.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate implements TextGenerator.
func (c *ChatClient) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.7,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to serialize completion request", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create completion request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.logger.WarnContext(ctx, "completion request rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("model", c.model),
		)
		return "", types.NewAppError(
			types.ErrCodeUpstreamAI,
			fmt.Sprintf("text provider returned status %d", resp.StatusCode),
			nil,
		)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamAI, "failed to decode completion response", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamAI, "text provider returned no completion", nil)
	}

	return out.Choices[0].Message.Content, nil
}
