package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/auth"
	"github.com/Skotchmaster/storefront/internal/logging"
	authmw "github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

type AuthHTTP struct {
	Svc          *service.AuthService
	CookieSecure bool
}

type SignUpRequest struct {
	Name     string `json:"name"     validate:"required,max=120"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Phone    string `json:"phone"    validate:"omitempty,max=32"`
}

type SignInRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type SessionResponse struct {
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	IsAdmin     bool         `json:"isAdmin"`
	User        *models.User `json:"user"`
}

type UserResponse struct {
	User *models.User `json:"user"`
}

func (h *AuthHTTP) SignUp(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.sign_up")

	var req SignUpRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("sign_up_error", "status", 400, "error", err)
		return err
	}

	u, err := h.Svc.SignUp(ctx, service.SignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrConflict):
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot create user")
		}
	}

	l.Info("sign_up_success", "user_id", u.ID)
	return c.JSON(http.StatusCreated, UserResponse{User: u})
}

func (h *AuthHTTP) SignIn(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.sign_in")

	var req SignInRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("sign_in_error", "status", 400, "error", err)
		return err
	}

	res, err := h.Svc.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot sign in")
		}
	}

	h.setSessionCookies(c, res)
	l.Info("sign_in_success", "user_id", res.User.ID)
	return c.JSON(http.StatusOK, sessionResponse(res))
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	raw := h.refreshToken(c)
	if raw == "" {
		l.Warn("refresh_error", "status", 401, "reason", "no refresh token")
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}

	res, err := h.Svc.Refresh(ctx, raw)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			c.SetCookie(tokens.DeleteCookie(tokens.RefreshCookie, "/", h.CookieSecure))
			c.SetCookie(tokens.DeleteCookie(tokens.AccessCookie, "/", h.CookieSecure))
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot refresh session")
	}

	h.setSessionCookies(c, res)
	return c.JSON(http.StatusOK, sessionResponse(res))
}

// SignOut always clears the cookies. Expired or unreadable access tokens are
// simply not added to the revocation list.
func (h *AuthHTTP) SignOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.sign_out")

	var (
		jti string
		exp time.Time
	)
	if raw, present, err := auth.Credential(c.Request()); present && err == nil {
		if claims, err := tokens.AccessClaimsFromToken(raw, h.Svc.AccessSecret); err == nil && claims.ExpiresAt != nil {
			jti, exp = claims.ID, claims.ExpiresAt.Time
		}
	}

	err := h.Svc.SignOut(ctx, h.refreshToken(c), jti, exp)

	c.SetCookie(tokens.DeleteCookie(tokens.RefreshCookie, "/", h.CookieSecure))
	c.SetCookie(tokens.DeleteCookie(tokens.AccessCookie, "/", h.CookieSecure))

	if err != nil {
		l.Error("sign_out_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot revoke session")
	}

	l.Info("sign_out_success")
	return c.JSON(http.StatusOK, echo.Map{"message": "signed out"})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	u := authmw.CurrentUser(c)
	if u == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, authmw.MsgAuthenticationRequired)
	}
	return c.JSON(http.StatusOK, UserResponse{User: u})
}

func (h *AuthHTTP) refreshToken(c echo.Context) string {
	if ck, err := c.Cookie(tokens.RefreshCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	var req RefreshRequest
	if err := c.Bind(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHTTP) setSessionCookies(c echo.Context, res *service.LoginResult) {
	c.SetCookie(tokens.CreateCookie(tokens.AccessCookie, res.AccessToken, "/", res.AccessExp, h.CookieSecure))
	c.SetCookie(tokens.CreateCookie(tokens.RefreshCookie, res.RefreshToken, "/", res.RefreshExp, h.CookieSecure))
}

func sessionResponse(res *service.LoginResult) SessionResponse {
	return SessionResponse{
		AccessToken: res.AccessToken,
		ExpiresAt:   res.AccessExp,
		IsAdmin:     res.IsAdmin(),
		User:        res.User,
	}
}
