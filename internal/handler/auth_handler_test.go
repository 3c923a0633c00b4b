package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k4631938-beep/Dangwar/internal/config"
	"github.com/k4631938-beep/Dangwar/internal/middleware"
	"github.com/k4631938-beep/Dangwar/internal/platform/platformtest"
	"github.com/k4631938-beep/Dangwar/internal/session"
)

type authFixture struct {
	router   chi.Router
	identity *platformtest.FakeIdentity
	records  *platformtest.FakeRecordStore
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	identity := platformtest.NewFakeIdentity()
	records := platformtest.NewFakeRecordStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := session.NewManager(identity, records, logger)

	sessions := middleware.NewSessions(config.SessionConfig{
		CookieName:   "dangwar_session",
		CookieSecret: "test-secret",
		Expiry:       time.Hour,
	})

	r := chi.NewRouter()
	r.Use(sessions.WithSession)
	r.Mount("/v1/auth", NewAuthHandler(sessions, manager).Routes())
	return &authFixture{router: r, identity: identity, records: records}
}

// do issues a request, carrying over any cookies from a previous response.
func (f *authFixture) do(method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data  map[string]any `json:"data"`
		Error map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	if envelope.Error != nil {
		return envelope.Error
	}
	return envelope.Data
}

const signUpBody = `{"username":"alice","email":"alice@example.com","password":"secret123"}`

func TestSignUpEndpoint(t *testing.T) {
	t.Run("creates the account and issues a session cookie", func(t *testing.T) {
		f := newAuthFixture(t)
		rec := f.do(http.MethodPost, "/v1/auth/signup", signUpBody, nil)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		data := decodeEnvelope(t, rec)
		assert.Equal(t, "alice", data["username"])
		assert.NotEmpty(t, rec.Result().Cookies())
	})

	t.Run("surfaces validation messages", func(t *testing.T) {
		f := newAuthFixture(t)
		rec := f.do(http.MethodPost, "/v1/auth/signup",
			`{"username":"al","email":"alice@example.com","password":"secret123"}`, nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		errBody := decodeEnvelope(t, rec)
		assert.Equal(t, "Username must be at least 3 characters long.", errBody["message"])
	})

	t.Run("conflicting username", func(t *testing.T) {
		f := newAuthFixture(t)
		require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/auth/signup", signUpBody, nil).Code)

		rec := f.do(http.MethodPost, "/v1/auth/signup",
			`{"username":"ALICE","email":"other@example.com","password":"secret123"}`, nil)
		require.Equal(t, http.StatusConflict, rec.Code)
		errBody := decodeEnvelope(t, rec)
		assert.Equal(t, "username_taken", errBody["code"])
	})
}

func TestSignInSignOutFlow(t *testing.T) {
	f := newAuthFixture(t)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/auth/signup", signUpBody, nil).Code)

	rec := f.do(http.MethodPost, "/v1/auth/signin",
		`{"email":"alice@example.com","password":"secret123"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	// /me with the cookie resolves the profile.
	me := f.do(http.MethodGet, "/v1/auth/me", "", cookies)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "alice", decodeEnvelope(t, me)["username"])

	// /me without the cookie reports signed out.
	anon := f.do(http.MethodGet, "/v1/auth/me", "", nil)
	require.Equal(t, http.StatusOK, anon.Code)
	assert.Equal(t, false, decodeEnvelope(t, anon)["signed_in"])

	out := f.do(http.MethodPost, "/v1/auth/signout", "", cookies)
	require.Equal(t, http.StatusNoContent, out.Code)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	f := newAuthFixture(t)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/auth/signup", signUpBody, nil).Code)

	rec := f.do(http.MethodPost, "/v1/auth/signin",
		`{"email":"alice@example.com","password":"wrong-password"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	errBody := decodeEnvelope(t, rec)
	assert.Equal(t, "Incorrect password. Please try again.", errBody["message"])
	assert.Empty(t, rec.Result().Cookies())
}
