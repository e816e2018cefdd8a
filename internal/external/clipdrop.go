package external

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"quickai/internal/types"
)

// ClipDropConfig holds the configuration for creating a ClipDropClient.
type ClipDropConfig struct {
	APIKey  string
	BaseURL string // Override for testing; defaults to the public API
	Logger  *slog.Logger
}

const clipDropAPIBase = "https://clipdrop-api.co"

// ClipDropClient implements ImageGenerator and ImageEditor against the
// ClipDrop REST API. All operations POST multipart forms and receive raw
// image bytes back.
type ClipDropClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewClipDropClient creates a ClipDropClient routed through the shared
// resilience layer.
func NewClipDropClient(httpClient *http.Client, cfg ClipDropConfig) *ClipDropClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = clipDropAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ClipDropClient{
		base:    NewBaseClient(httpClient, "clipdrop", DefaultRetryPolicy()),
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// Generate implements ImageGenerator via the text-to-image endpoint.
func (c *ClipDropClient) Generate(ctx context.Context, prompt string) ([]byte, error) {
	fields := []formField{{name: "prompt", value: prompt}}
	return c.postForm(ctx, "/text-to-image/v1", fields, nil)
}

// RemoveBackground implements ImageEditor.
func (c *ClipDropClient) RemoveBackground(ctx context.Context, image []byte) ([]byte, error) {
	return c.postForm(ctx, "/remove-background/v1", nil, image)
}

// RemoveObject implements ImageEditor via the text-inpainting endpoint: the
// named object is described in the text prompt and painted out.
func (c *ClipDropClient) RemoveObject(ctx context.Context, image []byte, object string) ([]byte, error) {
	fields := []formField{{name: "text_prompt", value: "remove " + object}}
	return c.postForm(ctx, "/text-inpainting/v1", fields, image)
}

type formField struct {
	name  string
	value string
}

// postForm builds the multipart request, sends it with the vendor API key
// header, and returns the response image bytes.
func (c *ClipDropClient) postForm(ctx context.Context, path string, fields []formField, image []byte) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build form field", err)
		}
	}
	if image != nil {
		part, err := mw.CreateFormFile("image_file", "image.png")
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build form file", err)
		}
		if _, err := part.Write(image); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to write form file", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to finalize form", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create image request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.logger.WarnContext(ctx, "image request rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("path", path),
		)
		return nil, types.NewAppError(
			types.ErrCodeUpstreamAI,
			fmt.Sprintf("image provider returned status %d", resp.StatusCode),
			nil,
		)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamAI, "failed to read image response", err)
	}
	if len(data) == 0 {
		return nil, types.NewAppError(types.ErrCodeUpstreamAI, "image provider returned an empty body", nil)
	}
	return data, nil
}
