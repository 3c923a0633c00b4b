package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/k4631938-beep/Dangwar/internal/feed"
	"github.com/k4631938-beep/Dangwar/internal/middleware"
	"github.com/k4631938-beep/Dangwar/internal/pkg/apperrors"
	"github.com/k4631938-beep/Dangwar/internal/pkg/response"
)

// maxMultipartMemory bounds how much of a post upload is buffered in memory.
const maxMultipartMemory = 8 << 20

// FeedHandler handles post creation, the feed read, and like toggling.
type FeedHandler struct {
	sessions *middleware.Sessions
	manager  *feed.Manager
}

// NewFeedHandler creates a new feed handler.
func NewFeedHandler(sessions *middleware.Sessions, manager *feed.Manager) *FeedHandler {
	return &FeedHandler{sessions: sessions, manager: manager}
}

// Routes returns a chi router with feed routes.
func (h *FeedHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/feed", h.Feed)
	r.With(h.sessions.RequireAuth).Post("/posts", h.CreatePost)
	r.With(h.sessions.RequireAuth).Post("/posts/{id}/like", h.ToggleLike)

	return r
}

// Feed handles GET /v1/feed
func (h *FeedHandler) Feed(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	items, err := h.manager.LoadFeed(r.Context(), middleware.GetHandle(r.Context()), limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, items)
}

// CreatePost handles POST /v1/posts (multipart: caption + image)
func (h *FeedHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		response.BadRequest(w, "Expected multipart form with caption and image")
		return
	}

	caption := r.FormValue("caption")

	var image *feed.Image
	file, header, err := r.FormFile("image")
	if err == nil {
		defer file.Close()
		image = &feed.Image{
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		}
	}

	post, err := h.manager.SubmitPost(r.Context(), middleware.GetHandle(r.Context()), caption, image)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, post)
}

// ToggleLike handles POST /v1/posts/{id}/like
func (h *FeedHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")
	if postID == "" {
		response.Error(w, apperrors.NewValidationError("id", "post id is required"))
		return
	}

	result, err := h.manager.ToggleLike(r.Context(), middleware.GetHandle(r.Context()), postID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, result)
}
