// Package session owns the signed-in/signed-out state machine and the
// credential-based mutations against the identity and profile-record services.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/k4631938-beep/Dangwar/internal/models"
	"github.com/k4631938-beep/Dangwar/internal/pkg/apperrors"
	"github.com/k4631938-beep/Dangwar/internal/pkg/debounce"
	"github.com/k4631938-beep/Dangwar/internal/pkg/textutil"
	"github.com/k4631938-beep/Dangwar/internal/platform"
)

// Handle identifies an authenticated caller. It is passed explicitly to every
// operation that requires a session; there is no ambient current-user global.
type Handle struct {
	AccountID string `json:"account_id"`
	Token     string `json:"-"`
}

// State is the session state reported to observers.
type State struct {
	SignedIn  bool   `json:"signed_in"`
	AccountID string `json:"account_id,omitempty"`
}

// SignUpRequest carries the signup form fields.
type SignUpRequest struct {
	Username string `json:"username" validate:"required,min=3,max=20"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password" validate:"required,min=6"`
}

// Manager coordinates the identity service and the profile records.
type Manager struct {
	identity platform.IdentityService
	records  platform.RecordStore
	validate *validator.Validate
	logger   *slog.Logger

	mu        sync.Mutex
	profile   *models.Profile // best-effort snapshot for display only
	pendingID string

	// refresh coalesces rapid state transitions into one snapshot read.
	// Signup signs in right after account creation and fires two transitions.
	refresh func()
}

// NewManager creates a session manager and registers its profile cache against
// the identity service's state transitions.
func NewManager(identity platform.IdentityService, records platform.RecordStore, logger *slog.Logger) *Manager {
	m := &Manager{
		identity: identity,
		records:  records,
		validate: validator.New(),
		logger:   logger,
	}

	m.refresh = debounce.New(250*time.Millisecond, func() {
		m.mu.Lock()
		id := m.pendingID
		m.mu.Unlock()
		if id != "" {
			m.refreshProfileCache(id)
		}
	})

	identity.OnStateChange(func(account *platform.Account) {
		if account == nil {
			// Cache cleared synchronously on sign-out.
			m.mu.Lock()
			m.profile = nil
			m.pendingID = ""
			m.mu.Unlock()
			return
		}
		m.mu.Lock()
		m.pendingID = account.ID
		m.mu.Unlock()
		m.refresh()
	})

	return m
}

// SignUp validates the form, checks the username reservation, then issues the
// three platform writes: account creation, profile record, reservation record.
// The three writes are not transactional; a failure after account creation
// leaves an orphaned account with no profile and is surfaced as-is.
func (m *Manager) SignUp(ctx context.Context, req SignUpRequest) (*models.Profile, error) {
	if err := m.validateSignUp(req); err != nil {
		return nil, err
	}

	username := textutil.Sanitize(req.Username)
	folded := textutil.FoldUsername(username)

	// Check-then-create: a concurrent signup can pass this check too; only one
	// reservation write ultimately wins.
	existing, err := m.records.Get(ctx, models.CollectionUsernames, folded)
	if err != nil {
		return nil, apperrors.FromPlatform(err)
	}
	if existing != nil {
		return nil, apperrors.ErrUsernameTaken
	}

	account, err := m.identity.CreateAccount(ctx, req.Email, req.Password)
	if err != nil {
		return nil, mapIdentityError(err)
	}

	if err := m.identity.UpdateDisplayName(ctx, account.ID, username); err != nil {
		m.logger.Error("failed to set display name", "account_id", account.ID, "error", err)
		return nil, apperrors.FromPlatform(err)
	}

	profile := &models.Profile{
		AccountID: account.ID,
		Username:  username,
		Email:     req.Email,
		Phone:     req.Phone,
	}
	if err := m.records.Put(ctx, models.CollectionUsers, account.ID, profile.Fields()); err != nil {
		m.logger.Error("failed to create profile record", "account_id", account.ID, "error", err)
		return nil, apperrors.FromPlatform(err)
	}

	reservation := &models.Reservation{AccountID: account.ID, Username: username}
	if err := m.records.Put(ctx, models.CollectionUsernames, folded, reservation.Fields()); err != nil {
		m.logger.Error("failed to reserve username", "account_id", account.ID, "username", folded, "error", err)
		return nil, apperrors.FromPlatform(err)
	}

	return profile, nil
}

// SignIn delegates credential verification to the identity service and maps
// provider error codes to user-facing messages.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Handle, error) {
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("", "Please fill in all required fields.")
	}
	if !textutil.IsValidEmail(email) {
		return nil, apperrors.NewValidationError("email", "Please enter a valid email address.")
	}
	if len(password) < 6 {
		return nil, apperrors.NewValidationError("password", "Password must be at least 6 characters long.")
	}

	auth, err := m.identity.Authenticate(ctx, email, password)
	if err != nil {
		return nil, mapIdentityError(err)
	}

	return &Handle{AccountID: auth.AccountID, Token: auth.Token}, nil
}

// SignOut revokes the session with the identity service. The profile cache is
// cleared synchronously by the state-change listener.
func (m *Manager) SignOut(ctx context.Context, h *Handle) error {
	if h == nil {
		return apperrors.ErrNotAuthenticated
	}
	if err := m.identity.SignOut(ctx, h.Token); err != nil {
		return apperrors.FromPlatform(err)
	}
	return nil
}

// Observe registers a listener invoked once immediately with the current state
// and again on every transition. The returned func cancels the registration.
func (m *Manager) Observe(cb func(State)) (cancel func()) {
	return m.identity.OnStateChange(func(account *platform.Account) {
		if account == nil {
			cb(State{})
			return
		}
		cb(State{SignedIn: true, AccountID: account.ID})
	})
}

// Profile fetches the authoritative profile record for an account.
func (m *Manager) Profile(ctx context.Context, accountID string) (*models.Profile, error) {
	rec, err := m.records.Get(ctx, models.CollectionUsers, accountID)
	if err != nil {
		return nil, apperrors.FromPlatform(err)
	}
	if rec == nil {
		return nil, apperrors.NewNotFoundError("Profile")
	}
	return models.ProfileFromRecord(rec), nil
}

// CachedProfile returns the best-effort profile snapshot, or nil. The snapshot
// is for display only, never a source of truth for writes.
func (m *Manager) CachedProfile() *models.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

func (m *Manager) refreshProfileCache(accountID string) {
	rec, err := m.records.Get(context.Background(), models.CollectionUsers, accountID)
	if err != nil || rec == nil {
		// Best-effort: failure is logged, not fatal.
		m.logger.Warn("failed to load profile snapshot", "account_id", accountID, "error", err)
		return
	}

	m.mu.Lock()
	m.profile = models.ProfileFromRecord(rec)
	m.mu.Unlock()
}

func (m *Manager) validateSignUp(req SignUpRequest) error {
	if err := m.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if ve, ok := err.(validator.ValidationErrors); ok {
			fieldErrs = ve
		}
		return signUpValidationMessage(fieldErrs)
	}
	if !textutil.IsValidUsername(req.Username) {
		return apperrors.NewValidationError("username", "Username can only contain letters, numbers, and underscores.")
	}
	if req.Phone != "" && !textutil.IsValidPhone(req.Phone) {
		return apperrors.NewValidationError("phone", "Please enter a valid phone number.")
	}
	return nil
}

// signUpValidationMessage maps the first struct validation failure to the
// message shown in the auth banner.
func signUpValidationMessage(errs validator.ValidationErrors) error {
	if len(errs) == 0 {
		return apperrors.NewValidationError("", "Please fill in all required fields.")
	}

	fe := errs[0]
	switch fe.Field() {
	case "Username":
		switch fe.Tag() {
		case "min":
			return apperrors.NewValidationError("username", "Username must be at least 3 characters long.")
		case "max":
			return apperrors.NewValidationError("username", "Username must be less than 20 characters long.")
		}
		return apperrors.NewValidationError("username", "Please fill in all required fields.")
	case "Email":
		if fe.Tag() == "email" {
			return apperrors.NewValidationError("email", "Please enter a valid email address.")
		}
		return apperrors.NewValidationError("email", "Please fill in all required fields.")
	case "Password":
		if fe.Tag() == "min" {
			return apperrors.NewValidationError("password", "Password must be at least 6 characters long.")
		}
		return apperrors.NewValidationError("password", "Please fill in all required fields.")
	}
	return apperrors.NewValidationError("", "Please fill in all required fields.")
}

// mapIdentityError converts identity-service error codes to static
// user-facing auth errors.
func mapIdentityError(err error) error {
	switch platform.ErrorCode(err) {
	case platform.CodeUnknownAccount:
		return apperrors.NewAuthError("No account found with this email address.")
	case platform.CodeInvalidCredential:
		return apperrors.NewAuthError("Incorrect password. Please try again.")
	case platform.CodeInvalidEmailFormat:
		return apperrors.NewAuthError("Please enter a valid email address.")
	case platform.CodeEmailAlreadyUsed:
		return apperrors.NewAuthError("An account with this email already exists.")
	case platform.CodeWeakPassword:
		return apperrors.NewAuthError("Password should be at least 6 characters long.")
	case platform.CodeRateLimited:
		return apperrors.ErrRateLimited
	case platform.CodeNetworkFailure:
		return apperrors.ErrTransientNetwork
	}
	return apperrors.NewAuthError("Authentication failed. Please try again.")
}
