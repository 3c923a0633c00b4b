package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/k4631938-beep/Dangwar/internal/cache"
	"github.com/k4631938-beep/Dangwar/internal/middleware"
	"github.com/k4631938-beep/Dangwar/internal/pkg/apperrors"
	"github.com/k4631938-beep/Dangwar/internal/pkg/response"
	"github.com/k4631938-beep/Dangwar/internal/social"
)

// SocialHandler handles user search and follow toggling.
type SocialHandler struct {
	sessions   *middleware.Sessions
	manager    *social.Manager
	redis      *cache.Redis
	searchRate int
}

// NewSocialHandler creates a new social handler.
func NewSocialHandler(sessions *middleware.Sessions, manager *social.Manager, redis *cache.Redis, searchRatePerMin int) *SocialHandler {
	return &SocialHandler{
		sessions:   sessions,
		manager:    manager,
		redis:      redis,
		searchRate: searchRatePerMin,
	}
}

// Routes returns a chi router with social routes. Search carries its own
// rate limiter since keystroke-driven clients hit it hardest.
func (h *SocialHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.sessions.RequireAuth)

	searchLimiter := middleware.RateLimit(h.redis, middleware.RateLimitConfig{
		RequestsPerMinute: h.searchRate,
		BurstSize:         10,
	})
	r.With(searchLimiter).Get("/search", h.Search)
	r.Post("/{id}/follow", h.ToggleFollow)

	return r
}

// Search handles GET /v1/users/search?q=
func (h *SocialHandler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.manager.SearchByUsernamePrefix(r.Context(), middleware.GetHandle(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, results)
}

// ToggleFollow handles POST /v1/users/{id}/follow
func (h *SocialHandler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")
	if targetID == "" {
		response.Error(w, apperrors.NewValidationError("id", "user id is required"))
		return
	}

	result, err := h.manager.ToggleFollow(r.Context(), middleware.GetHandle(r.Context()), targetID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, result)
}
