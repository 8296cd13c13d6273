// Package guard is the request boundary policy. It runs before routing and
// decides, from the path and the Authorization header alone, whether a
// request may continue.
package guard

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/auth"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/models"
)

type Decision int

const (
	// Pass lets the request through without touching credentials.
	Pass Decision = iota
	// PassDeferred lets an admin API call through; the handler chain
	// validates the token and the role.
	PassDeferred
	RejectUnauthenticated
	RequireUser
)

func (d Decision) String() string {
	switch d {
	case Pass:
		return "pass"
	case PassDeferred:
		return "pass_deferred"
	case RejectUnauthenticated:
		return "reject_unauthenticated"
	case RequireUser:
		return "require_user"
	default:
		return "unknown"
	}
}

type Policy struct {
	PublicExact       []string
	PublicPrefixes    []string
	AdminAPIPrefix    string
	ProtectedPrefixes []string

	// EnforceProtected turns protected page paths from passthrough into
	// "signed-in user required". Off while page-level guards own that check.
	EnforceProtected bool
}

func DefaultPolicy() Policy {
	return Policy{
		PublicExact: []string{"/", "/favicon.ico"},
		PublicPrefixes: []string{
			"/sign-in",
			"/sign-up",
			"/api/auth",
			"/assets",
			"/static",
			"/public",
			"/health",
			"/metrics",
		},
		AdminAPIPrefix:    "/api/admin",
		ProtectedPrefixes: []string{"/products", "/cart", "/admin"},
	}
}

// Evaluate applies the branches in order: public bypass, admin API,
// protected pages, default pass.
func (p Policy) Evaluate(rawPath, authHeader string) Decision {
	clean := cleanPath(rawPath)

	for _, e := range p.PublicExact {
		if clean == e {
			return Pass
		}
	}
	for _, prefix := range p.PublicPrefixes {
		if hasPathPrefix(clean, prefix) {
			return Pass
		}
	}

	if p.AdminAPIPrefix != "" && hasPathPrefix(clean, p.AdminAPIPrefix) {
		if strings.TrimSpace(authHeader) == "" {
			return RejectUnauthenticated
		}
		return PassDeferred
	}

	if p.EnforceProtected {
		for _, prefix := range p.ProtectedPrefixes {
			if hasPathPrefix(clean, prefix) {
				return RequireUser
			}
		}
	}

	return Pass
}

type Resolver interface {
	Resolve(ctx context.Context, req *http.Request) (*models.User, error)
}

// Middleware enforces the policy. The resolver is only called for
// RequireUser decisions.
func Middleware(p Policy, r Resolver, m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			decision := p.Evaluate(req.URL.Path, req.Header.Get(echo.HeaderAuthorization))
			m.GuardDecision(decision.String())

			switch decision {
			case RejectUnauthenticated:
				logging.FromContext(req.Context()).Warn("guard_reject", "status", 401, "path", req.URL.Path)
				return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: MsgAuthenticationRequired})

			case RequireUser:
				ctx := req.Context()
				l := logging.FromContext(ctx).With("component", "guard")

				user, err := r.Resolve(ctx, req)
				if err != nil {
					if errors.Is(err, auth.ErrMalformedCredential) {
						l.Warn("guard_reject", "status", 401, "error", err)
						return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: MsgAuthenticationRequired})
					}
					l.Error("guard_resolve_error", "status", 500, "error", err)
					return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
				}
				if user == nil {
					l.Warn("guard_reject", "status", 401)
					return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: MsgAuthenticationRequired})
				}
				c.SetRequest(req.WithContext(auth.WithUser(ctx, user)))
			}

			return next(c)
		}
	}
}

const MsgAuthenticationRequired = "Authentication required"

type ErrorResponse struct {
	Error string `json:"error"`
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// hasPathPrefix matches whole segments, so "/api/admin" does not cover
// "/api/administrators".
func hasPathPrefix(p, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return p == "/"
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
