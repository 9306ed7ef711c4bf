package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"socialconnect/internal/auth"
	"socialconnect/internal/mailer"
	"socialconnect/internal/models"
	"socialconnect/internal/observability"
	"socialconnect/internal/repository"
	"socialconnect/internal/validation"

	"github.com/google/uuid"
)

// TokenIssuer issues and verifies JWTs.
type TokenIssuer interface {
	IssueAccess(id auth.Identity) (string, time.Time, error)
	IssueRefresh(id auth.Identity) (string, time.Time, error)
	VerifyRefresh(token string) (*auth.Claims, error)
}

// AuthService implements registration, login and the refresh-token lifecycle.
type AuthService struct {
	users    repository.UserRepository
	refresh  repository.RefreshTokenStore
	tokens   TokenIssuer
	hasher   *auth.PasswordHasher
	resets   ResetTokenStore
	mail     mailer.Mailer
	resetURL string
	resetTTL time.Duration
	now      func() time.Time
}

// AuthDeps wires an AuthService.
type AuthDeps struct {
	Users            repository.UserRepository
	RefreshTokens    repository.RefreshTokenStore
	Tokens           TokenIssuer
	Hasher           *auth.PasswordHasher
	Resets           ResetTokenStore
	Mailer           mailer.Mailer
	PasswordResetURL string
	PasswordResetTTL time.Duration
}

// NewAuthService returns an AuthService. Missing optional dependencies get
// in-process defaults.
func NewAuthService(d AuthDeps) *AuthService {
	if d.Hasher == nil {
		d.Hasher = auth.NewPasswordHasher(0)
	}
	if d.Resets == nil {
		d.Resets = NewResetTokenStore(nil)
	}
	if d.Mailer == nil {
		d.Mailer = mailer.NewLogMailer(nil)
	}
	if d.PasswordResetTTL <= 0 {
		d.PasswordResetTTL = 30 * time.Minute
	}
	return &AuthService{
		users:    d.Users,
		refresh:  d.RefreshTokens,
		tokens:   d.Tokens,
		hasher:   d.Hasher,
		resets:   d.Resets,
		mail:     d.Mailer,
		resetURL: d.PasswordResetURL,
		resetTTL: d.PasswordResetTTL,
		now:      time.Now,
	}
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Validate normalizes the input and reports the first invalid field.
func (in *RegisterInput) Validate() error {
	in.Email = validation.NormalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	checks := []error{
		validation.ValidateEmail(in.Email),
		validation.ValidateUsername(in.Username),
		validation.ValidatePassword(in.Password),
		validation.ValidateName("first_name", in.FirstName),
		validation.ValidateName("last_name", in.LastName),
	}
	for _, err := range checks {
		if err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	return nil
}

// Register creates an active account with public visibility.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if existing, err := s.users.GetByEmail(ctx, in.Email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("Email already registered")
	}
	if existing, err := s.users.GetByUsername(ctx, in.Username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("Username already taken")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Email:             in.Email,
		Username:          in.Username,
		PasswordHash:      hash,
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		IsActive:          true,
		ProfileVisibility: models.VisibilityPublic,
	}
	// The unique indexes decide races between concurrent registrations.
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	observability.RecordAuth("register", true)
	return user, nil
}

// LoginInput identifies the account by email or username.
type LoginInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Session is the token pair returned by a successful login.
type Session struct {
	User                  *models.User `json:"user"`
	AccessToken           string       `json:"access_token"`
	RefreshToken          string       `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time    `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time    `json:"refresh_token_expires_at"`
}

var errInvalidCredentials = models.NewUnauthorizedError("Invalid credentials")

// Login verifies the password, records last_login and issues a token pair.
// The refresh token is persisted before it is returned.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	login := strings.TrimSpace(in.Email)
	lookup := s.users.GetByEmail
	if login == "" {
		login = strings.TrimSpace(in.Username)
		lookup = s.users.GetByUsername
	} else {
		login = validation.NormalizeEmail(login)
	}
	if login == "" || in.Password == "" {
		return nil, models.NewValidationError("Email or username and password are required")
	}

	user, err := lookup(ctx, login)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.hasher.Verify(in.Password, user.PasswordHash) {
		observability.RecordAuth("login", false)
		observability.LogSecurityEvent(ctx, "login_failed", 0, map[string]any{"login": login})
		return nil, errInvalidCredentials
	}
	if !user.IsActive {
		observability.RecordAuth("login", false)
		observability.LogSecurityEvent(ctx, "login_inactive", user.ID, nil)
		return nil, models.NewForbiddenError("Account is deactivated")
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now
	counts, err := s.users.Counts(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.ApplyCounts(counts)

	sess, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	observability.RecordAuth("login", true)
	return sess, nil
}

func (s *AuthService) issuePair(ctx context.Context, user *models.User) (*Session, error) {
	id := identityOf(user)
	access, accessExp, err := s.tokens.IssueAccess(id)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(id)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.refresh.Insert(ctx, refresh, user.ID, refreshExp); err != nil {
		return nil, err
	}
	return &Session{
		User:                  user,
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: refreshExp,
	}, nil
}

func identityOf(u *models.User) auth.Identity {
	return auth.Identity{UserID: u.ID, Email: u.Email, Username: u.Username, IsAdmin: u.IsAdmin}
}

// AccessGrant is the result of a refresh.
type AccessGrant struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"access_token_expires_at"`
}

// Refresh mints a new access token. The refresh token must verify, be active
// in the store, belong to the token's subject, and that user must be active.
// Claims in the new access token are read from the user's current row.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AccessGrant, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, models.NewValidationError("refresh_token is required")
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		observability.RecordAuth("refresh", false)
		return nil, models.NewUnauthorizedError("Invalid or expired refresh token")
	}
	subject, err := claims.UserID()
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid or expired refresh token")
	}

	rec, err := s.refresh.FindActive(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.UserID != subject {
		observability.RecordAuth("refresh", false)
		observability.LogSecurityEvent(ctx, "refresh_rejected", subject, map[string]any{"reason": "revoked_or_unknown"})
		return nil, models.NewUnauthorizedError("Refresh token has been revoked")
	}

	user, err := s.users.GetByID(ctx, subject)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("User not found")
		}
		return nil, err
	}
	if !user.IsActive {
		observability.RecordAuth("refresh", false)
		observability.LogSecurityEvent(ctx, "refresh_rejected", subject, map[string]any{"reason": "inactive"})
		return nil, models.NewUnauthorizedError("User account is inactive")
	}

	access, exp, err := s.tokens.IssueAccess(identityOf(user))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	observability.RecordAuth("refresh", true)
	return &AccessGrant{AccessToken: access, ExpiresAt: exp}, nil
}

// Logout revokes refreshToken if it belongs to userID. Unknown or foreign
// tokens are ignored so logout always succeeds for the caller.
func (s *AuthService) Logout(ctx context.Context, userID uint, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return models.NewValidationError("refresh_token is required")
	}
	rec, err := s.refresh.FindActive(ctx, refreshToken)
	if err != nil {
		return err
	}
	if rec == nil || rec.UserID != userID {
		return nil
	}
	if _, err := s.refresh.BlacklistOne(ctx, refreshToken); err != nil {
		return err
	}
	observability.LogSecurityEvent(ctx, "logout", userID, nil)
	return nil
}

// ChangePasswordInput is the change-password payload.
type ChangePasswordInput struct {
	UserID          uint   `json:"-"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword replaces the password and revokes every refresh token of the user.
func (s *AuthService) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	if in.CurrentPassword == "" || in.NewPassword == "" {
		return models.NewValidationError("current_password and new_password are required")
	}
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(in.CurrentPassword, user.PasswordHash) {
		observability.LogSecurityEvent(ctx, "password_change_failed", user.ID, nil)
		return models.NewUnauthorizedError("Current password is incorrect")
	}
	if in.CurrentPassword == in.NewPassword {
		return models.NewValidationError("New password must be different from the current password")
	}
	if err := s.setPassword(ctx, user.ID, in.NewPassword); err != nil {
		return err
	}
	observability.LogSecurityEvent(ctx, "password_changed", user.ID, nil)
	return nil
}

func (s *AuthService) setPassword(ctx context.Context, userID uint, password string) error {
	if err := validation.ValidatePassword(password); err != nil {
		return models.NewValidationError(err.Error())
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.NewInternalError(err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	_, err = s.refresh.BlacklistAll(ctx, userID)
	return err
}

// UsernameAvailability is the check-username result.
type UsernameAvailability struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// CheckUsername reports whether username is valid and unclaimed.
func (s *AuthService) CheckUsername(ctx context.Context, username string) (*UsernameAvailability, error) {
	username = strings.TrimSpace(username)
	if err := validation.ValidateUsername(username); err != nil {
		return &UsernameAvailability{Available: false, Error: err.Error()}, nil
	}
	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &UsernameAvailability{Available: false, Error: "Username already taken"}, nil
	}
	return &UsernameAvailability{Available: true}, nil
}

// RequestPasswordReset emails a single-use reset link when an active account
// matches email. The outcome is not revealed to the caller.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return models.NewValidationError(err.Error())
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || !user.IsActive {
		observability.LogSecurityEvent(ctx, "password_reset_unknown", 0, nil)
		return nil
	}

	token := uuid.NewString()
	if err := s.resets.Save(ctx, token, user.ID, s.resetTTL); err != nil {
		return models.NewInternalError(err)
	}
	link, err := s.resetLink(user.Email, token)
	if err != nil {
		return models.NewInternalError(err)
	}
	if err := s.mail.SendPasswordReset(ctx, user.Email, user.Username, link); err != nil {
		return models.NewInternalError(err)
	}
	observability.LogSecurityEvent(ctx, "password_reset_requested", user.ID, nil)
	return nil
}

func (s *AuthService) resetLink(email, token string) (string, error) {
	base := s.resetURL
	if base == "" {
		base = "http://localhost:5173/reset-password"
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse reset url: %w", err)
	}
	q := u.Query()
	q.Set("email", email)
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ConfirmResetInput completes a password reset.
type ConfirmResetInput struct {
	Email       string `json:"email"`
	ResetToken  string `json:"reset_token"`
	NewPassword string `json:"new_password"`
}

// ConfirmPasswordReset consumes the reset token, sets the new password and
// revokes every refresh token of the account.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, in ConfirmResetInput) error {
	email := validation.NormalizeEmail(in.Email)
	if email == "" || strings.TrimSpace(in.ResetToken) == "" || in.NewPassword == "" {
		return models.NewValidationError("email, reset_token and new_password are required")
	}
	if err := validation.ValidatePassword(in.NewPassword); err != nil {
		return models.NewValidationError(err.Error())
	}

	userID, err := s.resets.Consume(ctx, strings.TrimSpace(in.ResetToken))
	if errors.Is(err, ErrResetTokenInvalid) {
		return models.NewValidationError("Invalid or expired reset token")
	}
	if err != nil {
		return models.NewInternalError(err)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || user.ID != userID {
		return models.NewValidationError("Invalid or expired reset token")
	}
	if err := s.setPassword(ctx, user.ID, in.NewPassword); err != nil {
		return err
	}
	observability.LogSecurityEvent(ctx, "password_reset_completed", user.ID, nil)
	return nil
}
