package session

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k4631938-beep/Dangwar/internal/models"
	"github.com/k4631938-beep/Dangwar/internal/pkg/apperrors"
	"github.com/k4631938-beep/Dangwar/internal/platform/platformtest"
)

func newTestManager(t *testing.T) (*Manager, *platformtest.FakeIdentity, *platformtest.FakeRecordStore) {
	t.Helper()
	identity := platformtest.NewFakeIdentity()
	records := platformtest.NewFakeRecordStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(identity, records, logger), identity, records
}

func validSignUp() SignUpRequest {
	return SignUpRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret123",
	}
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account, profile, and reservation", func(t *testing.T) {
		m, identity, records := newTestManager(t)

		profile, err := m.SignUp(ctx, validSignUp())
		require.NoError(t, err)
		require.NotNil(t, profile)
		assert.Equal(t, "alice", profile.Username)
		assert.Equal(t, 1, identity.CreateCalls)

		stored := records.Fields(models.CollectionUsers, profile.AccountID)
		require.NotNil(t, stored)
		assert.Equal(t, "alice", stored["username"])
		assert.Equal(t, 0, stored["postsCount"])

		reservation := records.Fields(models.CollectionUsernames, "alice")
		require.NotNil(t, reservation)
		assert.Equal(t, profile.AccountID, reservation["uid"])
	})

	t.Run("rejects taken username before touching identity", func(t *testing.T) {
		m, identity, records := newTestManager(t)
		records.Seed(models.CollectionUsernames, "alice", map[string]any{"uid": "acct-0", "username": "alice"})

		_, err := m.SignUp(ctx, validSignUp())
		assert.ErrorIs(t, err, apperrors.ErrUsernameTaken)
		assert.Equal(t, 0, identity.CreateCalls)
	})

	t.Run("folds username case for the reservation check", func(t *testing.T) {
		m, _, records := newTestManager(t)
		records.Seed(models.CollectionUsernames, "alice", map[string]any{"uid": "acct-0", "username": "alice"})

		req := validSignUp()
		req.Username = "ALICE"
		_, err := m.SignUp(ctx, req)
		assert.ErrorIs(t, err, apperrors.ErrUsernameTaken)
	})

	t.Run("maps duplicate email to auth error", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		_, err := m.SignUp(ctx, validSignUp())
		require.NoError(t, err)

		req := validSignUp()
		req.Username = "alice2"
		_, err = m.SignUp(ctx, req)
		require.Error(t, err)
		assert.Equal(t, "An account with this email already exists.", err.Error())
	})

	t.Run("validation messages", func(t *testing.T) {
		cases := []struct {
			name    string
			mutate  func(*SignUpRequest)
			message string
		}{
			{"short username", func(r *SignUpRequest) { r.Username = "ab" }, "Username must be at least 3 characters long."},
			{"long username", func(r *SignUpRequest) { r.Username = "a_very_long_username_indeed" }, "Username must be less than 20 characters long."},
			{"bad username chars", func(r *SignUpRequest) { r.Username = "al ice" }, "Username can only contain letters, numbers, and underscores."},
			{"bad email", func(r *SignUpRequest) { r.Email = "not-an-email" }, "Please enter a valid email address."},
			{"short password", func(r *SignUpRequest) { r.Password = "12345" }, "Password must be at least 6 characters long."},
			{"missing fields", func(r *SignUpRequest) { r.Username = "" }, "Please fill in all required fields."},
			{"bad phone", func(r *SignUpRequest) { r.Phone = "abc" }, "Please enter a valid phone number."},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				m, identity, _ := newTestManager(t)
				req := validSignUp()
				tc.mutate(&req)

				_, err := m.SignUp(ctx, req)
				require.Error(t, err)
				assert.Equal(t, tc.message, err.Error())
				assert.True(t, apperrors.IsValidation(err))
				// Validation is local; the identity service is never reached.
				assert.Equal(t, 0, identity.CreateCalls)
			})
		}
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("returns handle for valid credentials", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		_, err := m.SignUp(ctx, validSignUp())
		require.NoError(t, err)

		h, err := m.SignIn(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)
		assert.NotEmpty(t, h.AccountID)
		assert.NotEmpty(t, h.Token)
	})

	t.Run("unknown account", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		_, err := m.SignIn(ctx, "ghost@example.com", "secret123")
		require.Error(t, err)
		assert.Equal(t, "No account found with this email address.", err.Error())
	})

	t.Run("wrong password", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		_, err := m.SignUp(ctx, validSignUp())
		require.NoError(t, err)

		_, err = m.SignIn(ctx, "alice@example.com", "wrong-password")
		require.Error(t, err)
		assert.Equal(t, "Incorrect password. Please try again.", err.Error())
	})

	t.Run("local validation before any network call", func(t *testing.T) {
		cases := []struct {
			name     string
			email    string
			password string
			message  string
		}{
			{"empty fields", "", "", "Please fill in all required fields."},
			{"bad email", "nope", "secret123", "Please enter a valid email address."},
			{"short password", "alice@example.com", "123", "Password must be at least 6 characters long."},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				m, identity, _ := newTestManager(t)
				_, err := m.SignIn(ctx, tc.email, tc.password)
				require.Error(t, err)
				assert.Equal(t, tc.message, err.Error())
				assert.Equal(t, 0, identity.AuthCalls)
			})
		}
	})
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	assert.ErrorIs(t, m.SignOut(ctx, nil), apperrors.ErrNotAuthenticated)

	_, err := m.SignUp(ctx, validSignUp())
	require.NoError(t, err)
	h, err := m.SignIn(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)

	assert.NoError(t, m.SignOut(ctx, h))
}

func TestObserve(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	var states []State
	cancel := m.Observe(func(s State) { states = append(states, s) })
	defer cancel()

	// Immediate callback with the signed-out state.
	require.Len(t, states, 1)
	assert.False(t, states[0].SignedIn)

	_, err := m.SignUp(ctx, validSignUp())
	require.NoError(t, err)
	h, err := m.SignIn(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)

	require.Len(t, states, 2)
	assert.True(t, states[1].SignedIn)
	assert.Equal(t, h.AccountID, states[1].AccountID)

	require.NoError(t, m.SignOut(ctx, h))
	require.Len(t, states, 3)
	assert.False(t, states[2].SignedIn)
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	profile, err := m.SignUp(ctx, validSignUp())
	require.NoError(t, err)

	got, err := m.Profile(ctx, profile.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = m.Profile(ctx, "acct-missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "not_found"))
}
