// Package handlers contains the HTTP handler implementations for the QuickAI API.
//
// This file implements the AI feature endpoints:
//   - Article and blog-title generation
//   - Text-to-image generation
//   - Background and object removal
//   - Resume review
//
// Every endpoint follows the same shape: authenticate, validate, authorize
// against the caller's plan, dispatch to the downstream capability under a
// bounded deadline, persist the result, and only then charge the usage
// ledger. A dispatch that fails or times out is never billed.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"quickai/internal/core"
	"quickai/internal/external"
	"quickai/internal/gate"
	"quickai/internal/types"
)

const (
	// maxUploadBytes caps image and resume uploads.
	maxUploadBytes = 5 << 20

	// articleTokens scales the completion budget by requested length.
	shortArticleTokens = 800
	longArticleTokens  = 2000
	blogTitleTokens    = 200
	resumeReviewTokens = 1200
)

// AIGate is the authorization surface the AI handler depends on.
// Satisfied by *gate.Gate.
type AIGate interface {
	Authorize(ctx context.Context, actor *types.Actor, feature types.Feature) (gate.Decision, error)
	RecordCompletion(ctx context.Context, actor types.Actor, feature types.Feature) (int, error)
}

// AICreationRepo persists generation output for the caller's dashboard and
// the community feed.
type AICreationRepo interface {
	Create(ctx context.Context, c *types.Creation) error
}

// AICapabilities groups the optional downstream providers. A nil provider
// means the capability is not configured; its endpoints respond 503 without
// touching the gate or the ledger.
type AICapabilities struct {
	Text   external.TextGenerator
	Image  external.ImageGenerator
	Editor external.ImageEditor
	Media  external.MediaStore
}

// --- Request/Response Models ---

// GenerateArticleRequest is the request body for POST /api/ai/generate-article.
type GenerateArticleRequest struct {
	Prompt string `json:"prompt" validate:"required,max=2000"`
	Length string `json:"length" validate:"omitempty,oneof=short long"`
}

// GenerateBlogTitleRequest is the request body for POST /api/ai/generate-blog-title.
type GenerateBlogTitleRequest struct {
	Keyword  string `json:"keyword" validate:"required,max=200"`
	Category string `json:"category" validate:"omitempty,max=100"`
}

// GenerateImageRequest is the request body for POST /api/ai/generate-image.
type GenerateImageRequest struct {
	Prompt  string `json:"prompt" validate:"required,max=2000"`
	Publish bool   `json:"publish"`
}

// CreationResponse is the success payload for every AI endpoint: the stored
// creation plus the caller's post-charge usage count.
type CreationResponse struct {
	Creation *types.Creation `json:"creation"`
	Usage    int             `json:"usage"`
}

// --- Handler ---

// AIHandler serves the plan-gated AI feature endpoints.
type AIHandler struct {
	gate            AIGate
	creations       AICreationRepo
	caps            AICapabilities
	validator       *core.Validator
	logger          *slog.Logger
	dispatchTimeout time.Duration
}

// NewAIHandler creates an AIHandler with the provided dependencies.
func NewAIHandler(
	g AIGate,
	creations AICreationRepo,
	caps AICapabilities,
	v *core.Validator,
	l *slog.Logger,
	dispatchTimeout time.Duration,
) *AIHandler {
	if l == nil {
		l = slog.Default()
	}
	if dispatchTimeout <= 0 {
		dispatchTimeout = 45 * time.Second
	}
	return &AIHandler{
		gate:            g,
		creations:       creations,
		caps:            caps,
		validator:       v,
		logger:          l,
		dispatchTimeout: dispatchTimeout,
	}
}

// RegisterRoutes mounts the AI routes on the provided chi.Router.
func (h *AIHandler) RegisterRoutes(r chi.Router) {
	r.Route("/ai", func(r chi.Router) {
		r.Post("/generate-article", h.GenerateArticle)
		r.Post("/generate-blog-title", h.GenerateBlogTitle)
		r.Post("/generate-image", h.GenerateImage)
		r.Post("/remove-image-background", h.RemoveImageBackground)
		r.Post("/remove-image-object", h.RemoveImageObject)
		r.Post("/resume-review", h.ResumeReview)
	})
}

// authorize runs the shared front half of every endpoint: actor extraction
// and the gate decision. A deny is written to the response and (nil, false)
// returned.
func (h *AIHandler) authorize(w http.ResponseWriter, r *http.Request, feature types.Feature) (*types.Actor, bool) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"Authentication required",
			nil,
		))
		return nil, false
	}

	decision, err := h.gate.Authorize(r.Context(), &actor, feature)
	if err != nil {
		core.Error(w, r, err)
		return nil, false
	}
	if !decision.Allowed {
		if decision.Reason == gate.DenyUnauthenticated {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeAuthTokenMissing,
				"Authentication required",
				nil,
			))
			return nil, false
		}
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeLimitQuotaExceeded,
			"Daily usage limit reached. Upgrade to premium for unlimited access.",
			nil,
			map[string]any{
				"plan":  decision.Plan,
				"used":  decision.Used,
				"limit": decision.Limit,
			},
		))
		return nil, false
	}

	return &actor, true
}

// complete runs the shared back half: persist the creation, charge the
// ledger, and respond. The charge happens only after both the capability and
// the persist succeeded.
func (h *AIHandler) complete(w http.ResponseWriter, r *http.Request, actor types.Actor, feature types.Feature, c *types.Creation) {
	if err := h.creations.Create(r.Context(), c); err != nil {
		core.Error(w, r, err)
		return
	}

	count, err := h.gate.RecordCompletion(r.Context(), actor, feature)
	if err != nil {
		// The result is already produced and stored; the caller gets it even
		// though the charge failed. RecordCompletion has logged the failure.
		count = 0
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: CreationResponse{Creation: c, Usage: count},
	})
}

// dispatchCtx bounds a downstream capability call. Expiry counts as a failed
// dispatch: nothing is persisted and nothing is charged.
func (h *AIHandler) dispatchCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.dispatchTimeout)
}

// GenerateArticle handles POST /api/ai/generate-article.
func (h *AIHandler) GenerateArticle(w http.ResponseWriter, r *http.Request) {
	if h.caps.Text == nil {
		core.Error(w, r, errFeatureNotConfigured("article generation"))
		return
	}

	var req GenerateArticleRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	actor, ok := h.authorize(w, r, types.FeatureGenerateArticle)
	if !ok {
		return
	}

	maxTokens := shortArticleTokens
	if req.Length == "long" {
		maxTokens = longArticleTokens
	}
	prompt := fmt.Sprintf("Write an article about %s in %s form.", req.Prompt, articleLength(req.Length))

	ctx, cancel := h.dispatchCtx(r.Context())
	defer cancel()

	content, err := h.caps.Text.Generate(ctx, prompt, maxTokens)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	c := newCreation(actor.ID, req.Prompt, content, types.CreationArticle, false)
	h.complete(w, r, *actor, types.FeatureGenerateArticle, c)
}

// GenerateBlogTitle handles POST /api/ai/generate-blog-title.
func (h *AIHandler) GenerateBlogTitle(w http.ResponseWriter, r *http.Request) {
	if h.caps.Text == nil {
		core.Error(w, r, errFeatureNotConfigured("blog title generation"))
		return
	}

	var req GenerateBlogTitleRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	actor, ok := h.authorize(w, r, types.FeatureGenerateBlogTitle)
	if !ok {
		return
	}

	category := req.Category
	if category == "" {
		category = "General"
	}
	prompt := fmt.Sprintf("Generate a blog title for the keyword %s in the category %s.", req.Keyword, category)

	ctx, cancel := h.dispatchCtx(r.Context())
	defer cancel()

	content, err := h.caps.Text.Generate(ctx, prompt, blogTitleTokens)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	c := newCreation(actor.ID, prompt, content, types.CreationBlogTitle, false)
	h.complete(w, r, *actor, types.FeatureGenerateBlogTitle, c)
}

// GenerateImage handles POST /api/ai/generate-image.
//
// The rendered image is uploaded to media storage and the stored URL is
// persisted as the creation content. Publish=true surfaces it in the
// community feed.
func (h *AIHandler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	if h.caps.Image == nil || h.caps.Media == nil {
		core.Error(w, r, errFeatureNotConfigured("image generation"))
		return
	}

	var req GenerateImageRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	actor, ok := h.authorize(w, r, types.FeatureGenerateImage)
	if !ok {
		return
	}

	ctx, cancel := h.dispatchCtx(r.Context())
	defer cancel()

	img, err := h.caps.Image.Generate(ctx, req.Prompt)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	url, err := h.uploadMedia(ctx, actor.ID, img)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	c := newCreation(actor.ID, req.Prompt, url, types.CreationImage, req.Publish)
	h.complete(w, r, *actor, types.FeatureGenerateImage, c)
}

// RemoveImageBackground handles POST /api/ai/remove-image-background.
// Accepts a multipart form with an "image" file field.
func (h *AIHandler) RemoveImageBackground(w http.ResponseWriter, r *http.Request) {
	if h.caps.Editor == nil || h.caps.Media == nil {
		core.Error(w, r, errFeatureNotConfigured("background removal"))
		return
	}

	img, err := readUpload(r, "image")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	actor, ok := h.authorize(w, r, types.FeatureRemoveBackground)
	if !ok {
		return
	}

	ctx, cancel := h.dispatchCtx(r.Context())
	defer cancel()

	out, err := h.caps.Editor.RemoveBackground(ctx, img)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	url, err := h.uploadMedia(ctx, actor.ID, out)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	c := newCreation(actor.ID, "Remove background from image", url, types.CreationImage, false)
	h.complete(w, r, *actor, types.FeatureRemoveBackground, c)
}

// RemoveImageObject handles POST /api/ai/remove-image-object.
// Accepts a multipart form with an "image" file field and an "object" text
// field naming what to remove.
func (h *AIHandler) RemoveImageObject(w http.ResponseWriter, r *http.Request) {
	if h.caps.Editor == nil || h.caps.Media == nil {
		core.Error(w, r, errFeatureNotConfigured("object removal"))
		return
	}

	img, err := readUpload(r, "image")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	object := strings.TrimSpace(r.FormValue("object"))
	if object == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"object field is required",
			nil,
		))
		return
	}

	actor, ok := h.authorize(w, r, types.FeatureRemoveObject)
	if !ok {
		return
	}

	ctx, cancel := h.dispatchCtx(r.Context())
	defer cancel()

	out, err := h.caps.Editor.RemoveObject(ctx, img, object)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	url, err := h.uploadMedia(ctx, actor.ID, out)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	c := newCreation(actor.ID, "Removed "+object+" from image", url, types.CreationImage, false)
	h.complete(w, r, *actor, types.FeatureRemoveObject, c)
}

// ResumeReview handles POST /api/ai/resume-review.
// Accepts a multipart form with a "resume" PDF file field (max 5MB), extracts
// the text, and returns a structured review.
func (h *AIHandler) ResumeReview(w http.ResponseWriter, r *http.Request) {
	if h.caps.Text == nil {
		core.Error(w, r, errFeatureNotConfigured("resume review"))
		return
	}

	raw, err := readUpload(r, "resume")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	text, err := extractPDFText(raw)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	actor, ok := h.authorize(w, r, types.FeatureResumeReview)
	if !ok {
		return
	}

	prompt := "Review the following resume and provide constructive feedback on its strengths, weaknesses, and areas for improvement.\n\nResume content:\n" + text

	ctx, cancel := h.dispatchCtx(r.Context())
	defer cancel()

	content, err := h.caps.Text.Generate(ctx, prompt, resumeReviewTokens)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	c := newCreation(actor.ID, "Review the uploaded resume", content, types.CreationResume, false)
	h.complete(w, r, *actor, types.FeatureResumeReview, c)
}

// --- Helper Functions ---

func (h *AIHandler) uploadMedia(ctx context.Context, userID string, data []byte) (string, error) {
	key := fmt.Sprintf("creations/%s/%s.png", userID, uuid.New().String())
	return h.caps.Media.Upload(ctx, key, data, "image/png")
}

func newCreation(userID, prompt, content string, kind types.CreationKind, publish bool) *types.Creation {
	return &types.Creation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Prompt:    prompt,
		Content:   content,
		Kind:      kind,
		Publish:   publish,
		CreatedAt: time.Now().UTC(),
	}
}

func articleLength(length string) string {
	if length == "long" {
		return "long (800-1200 words)"
	}
	return "short (500-800 words)"
}

func errFeatureNotConfigured(name string) error {
	return types.NewAppError(
		types.ErrCodeFeatureNotConfigured,
		name+" is not configured on this deployment",
		nil,
	)
}

// readUpload extracts a single file field from a multipart form, enforcing
// the upload size cap before reading the body into memory.
func readUpload(r *http.Request, field string) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes+4096)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		if isBodyTooLarge(err) {
			return nil, types.NewAppError(
				types.ErrCodeValidationFileTooLarge,
				fmt.Sprintf("uploaded file exceeds the %dMB limit", maxUploadBytes>>20),
				err,
			)
		}
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidFile,
			"request body must be a multipart form",
			err,
		)
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			field+" file field is required",
			err,
		)
	}
	defer file.Close()

	if header.Size > maxUploadBytes {
		return nil, types.NewAppError(
			types.ErrCodeValidationFileTooLarge,
			fmt.Sprintf("uploaded file exceeds the %dMB limit", maxUploadBytes>>20),
			nil,
		)
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidFile,
			"failed to read uploaded file",
			err,
		)
	}
	return data, nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

// extractPDFText pulls plain text out of an uploaded PDF.
func extractPDFText(raw []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeValidationInvalidFile,
			"uploaded file is not a valid PDF",
			err,
		)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", types.NewAppError(
			types.ErrCodeValidationInvalidFile,
			"could not extract any text from the uploaded PDF",
			nil,
		)
	}
	return text, nil
}
