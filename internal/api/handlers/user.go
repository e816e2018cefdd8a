// This file implements the account endpoints: the caller's creation history,
// the community feed of published creations, like toggling, and current-period
// usage standing.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"quickai/internal/core"
	"quickai/internal/gate"
	"quickai/internal/types"
)

// UserCreationRepo is the data access contract for the account endpoints.
// Mirrors the concrete db.CreationRepo methods used by this handler.
type UserCreationRepo interface {
	ListByUser(ctx context.Context, userID string) ([]types.Creation, error)
	ListPublished(ctx context.Context) ([]types.Creation, error)
	ListLikedIDs(ctx context.Context, userID string) ([]string, error)
	ToggleLike(ctx context.Context, creationID, userID string) (bool, error)
}

// UserGate reports current-period usage standing. Satisfied by *gate.Gate.
type UserGate interface {
	Usage(ctx context.Context, actor types.Actor) (gate.Decision, error)
}

// --- Request/Response Models ---

// ToggleLikeRequest is the request body for POST /api/user/toggle-like-creation.
type ToggleLikeRequest struct {
	CreationID string `json:"creation_id" validate:"required,uuid"`
}

// ToggleLikeResponse reports the like state after the toggle.
type ToggleLikeResponse struct {
	CreationID string `json:"creation_id"`
	Liked      bool   `json:"liked"`
}

// FeedCreation decorates a published creation with whether the caller has
// liked it.
type FeedCreation struct {
	types.Creation
	LikedByMe bool `json:"liked_by_me"`
}

// UsageResponse reports the caller's standing for the current period.
type UsageResponse struct {
	Plan      types.PlanTier `json:"plan"`
	Used      int            `json:"used"`
	Limit     int            `json:"limit"` // 0 means unlimited
	Remaining int            `json:"remaining"`
	PeriodEnd time.Time      `json:"period_end"`
}

// --- Handler ---

// UserHandler serves the account and community feed endpoints.
type UserHandler struct {
	creations UserCreationRepo
	gate      UserGate
	validator *core.Validator
	logger    *slog.Logger
}

// NewUserHandler creates a UserHandler with the provided dependencies.
func NewUserHandler(creations UserCreationRepo, g UserGate, v *core.Validator, l *slog.Logger) *UserHandler {
	if l == nil {
		l = slog.Default()
	}
	return &UserHandler{
		creations: creations,
		gate:      g,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the account routes on the provided chi.Router.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Route("/user", func(r chi.Router) {
		r.Get("/get-user-creations", h.GetUserCreations)
		r.Get("/get-published-creations", h.GetPublishedCreations)
		r.Post("/toggle-like-creation", h.ToggleLikeCreation)
		r.Get("/usage", h.GetUsage)
	})
}

// GetUserCreations handles GET /api/user/get-user-creations. Returns the
// caller's creations, newest first.
func (h *UserHandler) GetUserCreations(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	creations, err := h.creations.ListByUser(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: creations})
}

// GetPublishedCreations handles GET /api/user/get-published-creations.
//
// The feed and the caller's liked set are independent queries, so they run
// concurrently; the response joins them into per-item liked_by_me flags.
func (h *UserHandler) GetPublishedCreations(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	var (
		published []types.Creation
		likedIDs  []string
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		published, err = h.creations.ListPublished(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		likedIDs, err = h.creations.ListLikedIDs(ctx, actor.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		core.Error(w, r, err)
		return
	}

	liked := make(map[string]bool, len(likedIDs))
	for _, id := range likedIDs {
		liked[id] = true
	}

	feed := make([]FeedCreation, len(published))
	for i, c := range published {
		feed[i] = FeedCreation{Creation: c, LikedByMe: liked[c.ID]}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: feed})
}

// ToggleLikeCreation handles POST /api/user/toggle-like-creation. Likes the
// creation if the caller hasn't liked it yet, unlikes it otherwise. Only
// published creations can be liked.
func (h *UserHandler) ToggleLikeCreation(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	var req ToggleLikeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	liked, err := h.creations.ToggleLike(r.Context(), req.CreationID, actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: ToggleLikeResponse{CreationID: req.CreationID, Liked: liked},
	})
}

// GetUsage handles GET /api/user/usage. Reports plan, counted usage, and the
// end of the current period without charging anything.
func (h *UserHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	decision, err := h.gate.Usage(r.Context(), actor)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: UsageResponse{
			Plan:      decision.Plan,
			Used:      decision.Used,
			Limit:     decision.Limit,
			Remaining: decision.Remaining(),
			PeriodEnd: decision.Period.Add(24 * time.Hour),
		},
	})
}
