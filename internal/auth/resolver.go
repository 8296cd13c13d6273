// Package auth resolves the signed-in user of a request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

// ErrMalformedCredential means a credential was sent but cannot be trusted:
// wrong scheme, bad signature, expired, unknown subject format or revoked.
var ErrMalformedCredential = errors.New("malformed credential")

// UserLookup returns (nil, nil) when the user does not exist.
type UserLookup interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type Revocations interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type Resolver struct {
	Users   UserLookup
	Secret  []byte
	Revoked Revocations
	Metrics *metrics.Metrics
}

// Resolve returns the user behind the request credential. A request without
// any credential, or whose user no longer exists, resolves to (nil, nil).
// It never writes to the request, the response or the stores.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*models.User, error) {
	l := logging.FromContext(ctx).With("component", "auth.resolver")

	raw, present, err := Credential(req)
	if !present {
		r.Metrics.AuthOutcome("anonymous")
		return nil, nil
	}
	if err != nil {
		r.Metrics.AuthOutcome("malformed")
		return nil, err
	}

	claims, err := tokens.AccessClaimsFromToken(raw, r.Secret)
	if err != nil {
		r.Metrics.AuthOutcome("malformed")
		return nil, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		r.Metrics.AuthOutcome("malformed")
		return nil, fmt.Errorf("%w: bad subject", ErrMalformedCredential)
	}

	if r.Revoked != nil && claims.ID != "" {
		revoked, err := r.Revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			r.Metrics.AuthOutcome("error")
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			r.Metrics.AuthOutcome("malformed")
			return nil, fmt.Errorf("%w: token revoked", ErrMalformedCredential)
		}
	}

	user, err := r.Users.FindUserByID(ctx, userID)
	if err != nil {
		r.Metrics.AuthOutcome("error")
		l.Error("resolve_user_error", "user_id", userID, "error", err)
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		l.Info("resolve_user_missing", "user_id", userID)
		r.Metrics.AuthOutcome("anonymous")
		return nil, nil
	}

	r.Metrics.AuthOutcome("user")
	return user, nil
}

// Credential picks the bearer token from the Authorization header, falling
// back to the access token cookie. present reports whether anything was sent.
func Credential(req *http.Request) (token string, present bool, err error) {
	if h := strings.TrimSpace(req.Header.Get("Authorization")); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		tok = strings.TrimSpace(tok)
		if !ok || !strings.EqualFold(scheme, "Bearer") || tok == "" {
			return "", true, fmt.Errorf("%w: expected bearer token", ErrMalformedCredential)
		}
		return tok, true, nil
	}

	if c, err := req.Cookie(tokens.AccessCookie); err == nil && c.Value != "" {
		return c.Value, true, nil
	}
	return "", false, nil
}

type userCtxKey struct{}

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext returns nil for anonymous requests.
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userCtxKey{}).(*models.User)
	return u
}
