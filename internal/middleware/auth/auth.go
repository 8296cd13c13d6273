package authmw

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/auth"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
)

const (
	MsgAuthenticationRequired = "Authentication required"
	MsgInvalidCredentials     = "Invalid credentials"
	MsgAdminRequired          = "Admin access required"
)

type Resolver interface {
	Resolve(ctx context.Context, req *http.Request) (*models.User, error)
}

type Middleware struct {
	Resolver Resolver
}

func New(r Resolver) *Middleware {
	return &Middleware{Resolver: r}
}

// ValidatorFunc returns a non-nil *echo.HTTPError to reject the user.
type ValidatorFunc func(u *models.User) *echo.HTTPError

func (m *Middleware) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireWithValidator(next, nil)
}

func (m *Middleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireWithValidator(next, func(u *models.User) *echo.HTTPError {
		if !u.IsAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, MsgAdminRequired)
		}
		return nil
	})
}

// Identify attaches the user when one can be resolved and lets anonymous
// requests through. A credential that cannot be trusted counts as anonymous.
func (m *Middleware) Identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()
		if auth.UserFromContext(ctx) != nil {
			return next(c)
		}

		user, err := m.Resolver.Resolve(ctx, req)
		if err != nil {
			l := logging.FromContext(ctx).With("middleware", "identify")
			if !errors.Is(err, auth.ErrMalformedCredential) {
				l.Error("identify_error", "status", 500, "error", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}
			l.Warn("identify_ignored_credential", "error", err)
		}
		if user != nil {
			c.SetRequest(req.WithContext(auth.WithUser(ctx, user)))
		}
		return next(c)
	}
}

func (m *Middleware) requireWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()
		l := logging.FromContext(ctx).With("middleware", "require_auth")

		user := auth.UserFromContext(ctx)
		if user == nil {
			resolved, err := m.Resolver.Resolve(ctx, req)
			if err != nil {
				if errors.Is(err, auth.ErrMalformedCredential) {
					l.Warn("auth_rejected", "status", 401, "error", err)
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": MsgInvalidCredentials})
				}
				l.Error("auth_error", "status", 500, "error", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}
			if resolved == nil {
				l.Warn("auth_rejected", "status", 401, "reason", "no user")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": MsgAuthenticationRequired})
			}
			user = resolved
			c.SetRequest(req.WithContext(auth.WithUser(ctx, user)))
		}

		if validator != nil {
			if he := validator(user); he != nil {
				l.Warn("auth_rejected", "status", he.Code, "user_id", user.ID)
				return c.JSON(he.Code, echo.Map{"error": he.Message})
			}
		}

		return next(c)
	}
}

// CurrentUser returns nil for anonymous requests.
func CurrentUser(c echo.Context) *models.User {
	return auth.UserFromContext(c.Request().Context())
}
