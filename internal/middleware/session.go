package middleware

import (
	"context"
	"net/http"

	gsessions "github.com/gorilla/sessions"

	"github.com/k4631938-beep/Dangwar/internal/config"
	"github.com/k4631938-beep/Dangwar/internal/pkg/response"
	"github.com/k4631938-beep/Dangwar/internal/session"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// HandleKey is the context key for the session handle.
	HandleKey contextKey = "session_handle"
)

const (
	sessionAccountID = "account_id"
	sessionToken     = "token"
)

// Sessions wraps the cookie store that carries the browser session. The
// cookie holds the account id and platform session token; everything else is
// re-read from records on demand.
type Sessions struct {
	store *gsessions.CookieStore
	name  string
}

// NewSessions creates a cookie-backed session layer.
func NewSessions(cfg config.SessionConfig) *Sessions {
	store := gsessions.NewCookieStore([]byte(cfg.CookieSecret))
	store.Options = &gsessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.Expiry.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: store, name: cfg.CookieName}
}

// Issue writes a signed-in session cookie for the handle.
func (s *Sessions) Issue(w http.ResponseWriter, r *http.Request, h *session.Handle) error {
	sess, _ := s.store.Get(r, s.name)
	sess.Values[sessionAccountID] = h.AccountID
	sess.Values[sessionToken] = h.Token
	return sess.Save(r, w)
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, s.name)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// Handle reads the session handle from the request cookie, or nil when
// signed out.
func (s *Sessions) Handle(r *http.Request) *session.Handle {
	sess, err := s.store.Get(r, s.name)
	if err != nil {
		return nil
	}
	accountID, ok := sess.Values[sessionAccountID].(string)
	if !ok || accountID == "" {
		return nil
	}
	token, _ := sess.Values[sessionToken].(string)
	return &session.Handle{AccountID: accountID, Token: token}
}

// WithSession attaches the session handle, when present, to the request
// context. It never rejects; endpoints that work signed out read a nil handle.
func (s *Sessions) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := s.Handle(r); h != nil {
			r = r.WithContext(context.WithValue(r.Context(), HandleKey, h))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects requests without a signed-in session.
func (s *Sessions) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetHandle(r.Context()) == nil {
			response.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHandle retrieves the session handle from context, or nil.
func GetHandle(ctx context.Context) *session.Handle {
	if v := ctx.Value(HandleKey); v != nil {
		return v.(*session.Handle)
	}
	return nil
}

// GetAccountID retrieves the signed-in account id from context.
func GetAccountID(ctx context.Context) string {
	if h := GetHandle(ctx); h != nil {
		return h.AccountID
	}
	return ""
}
