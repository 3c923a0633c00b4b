// Package handler provides HTTP handlers for the Dangwar API.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/k4631938-beep/Dangwar/internal/middleware"
	"github.com/k4631938-beep/Dangwar/internal/pkg/apperrors"
	"github.com/k4631938-beep/Dangwar/internal/pkg/response"
	"github.com/k4631938-beep/Dangwar/internal/session"
)

// AuthHandler handles signup, signin, and signout requests.
type AuthHandler struct {
	sessions *middleware.Sessions
	manager  *session.Manager
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(sessions *middleware.Sessions, manager *session.Manager) *AuthHandler {
	return &AuthHandler{sessions: sessions, manager: manager}
}

// Routes returns a chi router with auth routes.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/signup", h.SignUp)
	r.Post("/signin", h.SignIn)
	r.Post("/signout", h.SignOut)
	r.Get("/me", h.Me)

	return r
}

// SignUp handles POST /v1/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req session.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	profile, err := h.manager.SignUp(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}

	// A fresh account is signed in immediately.
	handle, err := h.manager.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.sessions.Issue(w, r, handle); err != nil {
		response.Error(w, apperrors.ErrInternal)
		return
	}

	response.Created(w, profile)
}

// SignInRequest is the HTTP request body for signing in.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn handles POST /v1/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	handle, err := h.manager.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.sessions.Issue(w, r, handle); err != nil {
		response.Error(w, apperrors.ErrInternal)
		return
	}

	response.OK(w, session.State{SignedIn: true, AccountID: handle.AccountID})
}

// SignOut handles POST /v1/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if handle := middleware.GetHandle(r.Context()); handle != nil {
		if err := h.manager.SignOut(r.Context(), handle); err != nil {
			response.Error(w, err)
			return
		}
	}
	if err := h.sessions.Clear(w, r); err != nil {
		response.Error(w, apperrors.ErrInternal)
		return
	}
	response.NoContent(w)
}

// Me handles GET /v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	handle := middleware.GetHandle(r.Context())
	if handle == nil {
		response.OK(w, session.State{SignedIn: false})
		return
	}

	profile, err := h.manager.Profile(r.Context(), handle.AccountID)
	if err != nil {
		response.Error(w, err)
		return
	}
	if profile == nil {
		// Cookie outlived the profile record.
		response.Error(w, apperrors.ErrNotAuthenticated)
		return
	}
	response.OK(w, profile)
}
