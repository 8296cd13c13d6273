package httpserver

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/auth"
	"github.com/Skotchmaster/storefront/internal/cart"
)

const (
	CartSessionCookie = "cartSession"
	cartSessionTTL    = 30 * 24 * time.Hour
)

// CartProvider binds a cart.Accessor for the request owner: the signed-in
// user when Identify resolved one, else the guest session from the
// cartSession cookie, which is issued on first use.
type CartProvider struct {
	Deps         cart.Deps
	CookieSecure bool
}

func (p *CartProvider) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()

		var owner cart.Owner
		if u := auth.UserFromContext(ctx); u != nil {
			owner = cart.UserOwner(u.ID)
		} else {
			owner = cart.SessionOwner(p.session(c))
		}

		a := cart.NewAccessor(p.Deps, owner)
		c.SetRequest(req.WithContext(cart.WithAccessor(ctx, a)))
		return next(c)
	}
}

func (p *CartProvider) session(c echo.Context) string {
	if ck, err := c.Cookie(CartSessionCookie); err == nil {
		if id, err := uuid.Parse(ck.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     CartSessionCookie,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(cartSessionTTL),
		HttpOnly: true,
		Secure:   p.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
