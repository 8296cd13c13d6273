package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/hash"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

const minPasswordLen = 8

type AuthStore interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	SaveRefreshToken(ctx context.Context, t *models.RefreshToken) error
	RotateRefreshToken(ctx context.Context, oldJTI, oldHash string, next *models.RefreshToken) error
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
}

// AccessRevoker remembers signed-out access token ids until they expire.
type AccessRevoker interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
}

type AuthService struct {
	Repo          AuthStore
	AccessSecret  []byte
	RefreshSecret []byte
	Revoker       AccessRevoker
	Events        events.Publisher
}

type SignUpInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

type LoginResult struct {
	User         *models.User
	AccessToken  string
	AccessJTI    string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

func (r *LoginResult) IsAdmin() bool {
	return r.User != nil && r.User.IsAdmin()
}

func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.sign_up")

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case in.Name == "":
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	case in.Email == "" || !strings.Contains(in.Email, "@"):
		return nil, fmt.Errorf("%w: a valid email is required", ErrValidation)
	case len(in.Password) < minPasswordLen:
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}

	pwHash, err := hash.HashPassword(in.Password)
	if errors.Is(err, hash.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: password must be at most 72 bytes", ErrValidation)
	}
	if err != nil {
		l.Error("sign_up_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	u := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: pwHash,
		Role:         models.RoleCustomer,
	}
	if p := strings.TrimSpace(in.Phone); p != "" {
		u.Phone = &p
	}

	if err := s.Repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			l.Warn("sign_up_error", "status", 409, "reason", "email already registered")
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		l.Error("sign_up_error", "status", 500, "error", err)
		return nil, err
	}

	events.Emit(ctx, s.Events, events.TopicUserEvents, u.ID.String(), events.New("user_registered", map[string]any{
		"userId": u.ID,
		"email":  u.Email,
		"role":   u.Role,
	}))
	return u, nil
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	l := logging.FromContext(ctx).With("svc", "auth.sign_in", "email", email)

	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	u, err := s.Repo.FindUserByEmail(ctx, email)
	if err != nil {
		l.Error("sign_in_error", "status", 500, "error", err)
		return nil, err
	}
	if u == nil || !hash.CheckPassword(u.PasswordHash, password) {
		l.Warn("sign_in_failed", "status", 401, "reason", "invalid email or password")
		return nil, ErrInvalidCredentials
	}

	res, next, err := s.issue(u)
	if err != nil {
		l.Error("sign_in_error", "status", 500, "error", err)
		return nil, err
	}
	if err := s.Repo.SaveRefreshToken(ctx, next); err != nil {
		l.Error("sign_in_error", "status", 500, "reason", "cannot store refresh token", "error", err)
		return nil, err
	}

	events.Emit(ctx, s.Events, events.TopicUserEvents, u.ID.String(), events.New("user_signed_in", map[string]any{
		"userId": u.ID,
	}))
	return res, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked in the same transaction that stores its successor.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidRefreshToken)
	}

	u, err := s.Repo.FindUserByID(ctx, userID)
	if err != nil {
		l.Error("refresh_error", "status", 500, "error", err)
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user no longer exists", ErrInvalidRefreshToken)
	}

	res, next, err := s.issue(u)
	if err != nil {
		l.Error("refresh_error", "status", 500, "error", err)
		return nil, err
	}

	err = s.Repo.RotateRefreshToken(ctx, claims.ID, tokens.Sha256Hex(refreshToken), next)
	switch {
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, repo.ErrTokenRevoked):
		l.Warn("refresh_failed", "status", 401, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	case err != nil:
		l.Error("refresh_error", "status", 500, "error", err)
		return nil, err
	}
	return res, nil
}

// SignOut revokes the refresh token and, when a revocation list is
// configured, the access token id until it would have expired. Empty values
// are skipped.
func (s *AuthService) SignOut(ctx context.Context, refreshToken, accessJTI string, accessExp time.Time) error {
	if refreshToken != "" {
		if err := s.Repo.RevokeRefreshToken(ctx, tokens.Sha256Hex(refreshToken)); err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
	}
	if accessJTI != "" && s.Revoker != nil && accessExp.After(time.Now()) {
		if err := s.Revoker.Revoke(ctx, accessJTI, accessExp); err != nil {
			return fmt.Errorf("revoke access token: %w", err)
		}
	}
	return nil
}

func (s *AuthService) issue(u *models.User) (*LoginResult, *models.RefreshToken, error) {
	now := time.Now()
	accessExp := now.Add(tokens.AccessTTL)
	refreshExp := now.Add(tokens.RefreshTTL)

	access, accessJTI, err := tokens.NewAccessToken(s.AccessSecret, u.ID.String(), string(u.Role), accessExp)
	if err != nil {
		return nil, nil, err
	}
	refresh, refreshJTI, err := tokens.NewRefreshToken(s.RefreshSecret, u.ID.String(), refreshExp)
	if err != nil {
		return nil, nil, err
	}

	stored := &models.RefreshToken{
		UserID:    u.ID,
		Token:     tokens.Sha256Hex(refresh),
		JTI:       refreshJTI,
		ExpiresAt: refreshExp.Unix(),
	}
	return &LoginResult{
		User:         u,
		AccessToken:  access,
		AccessJTI:    accessJTI,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, stored, nil
}
