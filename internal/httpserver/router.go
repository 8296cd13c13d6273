package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/metrics"
	authmw "github.com/Skotchmaster/storefront/internal/middleware/auth"
)

// ReadyCheck is one dependency probed by /health/ready.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Deps struct {
	Auth     *AuthHTTP
	Users    *UsersHTTP
	Products *ProductsHTTP
	Cart     *CartHTTP
	Orders   *OrdersHTTP

	AuthMW    *authmw.Middleware
	CartScope *CartProvider
	Metrics   *metrics.Metrics
	Ready     []ReadyCheck

	DebugEndpoints bool
}

func Register(e *echo.Echo, d *Deps) {
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", ready(d.Ready))
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	api := e.Group("/api")

	authg := api.Group("/auth")
	authg.POST("/sign-up", d.Auth.SignUp)
	authg.POST("/sign-in", d.Auth.SignIn)
	authg.POST("/refresh", d.Auth.Refresh)
	authg.POST("/sign-out", d.Auth.SignOut)
	authg.GET("/me", d.Auth.Me, d.AuthMW.RequireUser)

	api.GET("/products", d.Products.List)
	api.GET("/products/:id", d.Products.Get)

	admin := api.Group("/admin", d.AuthMW.RequireAdmin)
	admin.GET("/users", d.Users.List)
	admin.POST("/products", d.Products.Create)

	cartg := api.Group("/cart", d.AuthMW.Identify, d.CartScope.Middleware)
	cartg.GET("", d.Cart.Get)
	cartg.DELETE("", d.Cart.Clear)
	cartg.POST("/items", d.Cart.AddItem)
	cartg.PATCH("/items/:productId", d.Cart.UpdateItem)
	cartg.DELETE("/items/:productId", d.Cart.RemoveItem)
	cartg.POST("/refresh", d.Cart.Refresh)
	cartg.POST("/sync", d.Cart.Sync)
	cartg.POST("/checkout", d.Cart.Checkout)

	api.GET("/orders", d.Orders.List, d.AuthMW.RequireUser)

	if d.DebugEndpoints {
		debug := api.Group("/debug")
		debug.GET("/users", d.Users.List)
		debug.POST("/seed-users", d.Users.Seed)
		debug.GET("/auth", d.Users.AuthDiagnostic, d.AuthMW.Identify)
	}
}

func ready(checks []ReadyCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for _, rc := range checks {
			if err := rc.Check(ctx); err != nil {
				logging.FromContext(ctx).Warn("readiness_check_failed", "dependency", rc.Name, "error", err)
				failed[rc.Name] = err.Error()
			}
		}
		if len(failed) > 0 {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "failed": failed})
		}
		return c.NoContent(http.StatusOK)
	}
}
