package httpserver

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/storefront/internal/middleware/csrf"
	"github.com/Skotchmaster/storefront/internal/middleware/guard"
	loggingmw "github.com/Skotchmaster/storefront/internal/middleware/logging"
)

type Options struct {
	Logger        *slog.Logger
	Guard         guard.Policy
	GuardResolver guard.Resolver
	CSRF          bool
	CookieSecure  bool
}

// New builds the echo instance with the middleware chain and every route.
func New(opts Options, d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(loggingmw.RequestLogger(opts.Logger, d.Metrics))
	e.Use(guard.Middleware(opts.Guard, opts.GuardResolver, d.Metrics))
	if opts.CSRF {
		cfg := csrf.DefaultConfig()
		cfg.Secure = opts.CookieSecure
		e.Use(csrf.Middleware(cfg))
	}

	Register(e, d)
	return e
}
