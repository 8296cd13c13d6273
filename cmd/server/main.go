package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Skotchmaster/storefront/internal/auth"
	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/cartsync"
	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/db"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/httpserver"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/metrics"
	authmw "github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/middleware/guard"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service"
)

func main() {
	cfg := config.MustLoad()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)
	m := metrics.New(cfg.ServiceName)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	if err == nil {
		err = db.Migrate(initCtx, gdb)
	}
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	r := repo.New(gdb)
	ready := []httpserver.ReadyCheck{{Name: "db", Check: func(ctx context.Context) error { return db.Ping(ctx, gdb) }}}
	var closers []func() error

	var (
		revocations auth.Revocations
		revoker     service.AccessRevoker
	)
	if cfg.RedisAddr != "" {
		dl, err := auth.NewRedisDenylist(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis init error: %v", err)
		}
		revocations, revoker = dl, dl
		ready = append(ready, httpserver.ReadyCheck{Name: "redis", Check: dl.Ping})
		closers = append(closers, dl.Close)
	} else {
		logger.Warn("redis_disabled", "reason", "REDIS_ADDR not set, signed-out access tokens stay valid until expiry")
	}

	var remote cart.Remote
	if cfg.MongoURI != "" {
		mctx, mcancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err := cartsync.NewStore(mctx, cfg.MongoURI, cfg.MongoDB, cfg.CartSnapshotTTL)
		mcancel()
		if err != nil {
			log.Fatalf("mongo init error: %v", err)
		}
		remote = store
		ready = append(ready, httpserver.ReadyCheck{Name: "mongo", Check: store.Ping})
		closers = append(closers, store.Close)
	} else {
		logger.Warn("cart_sync_disabled", "reason", "MONGO_URI not set")
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		prod, err := events.NewProducer(cfg.KafkaBrokers, m)
		if err != nil {
			log.Fatalf("kafka init error: %v", err)
		}
		publisher = prod
		closers = append(closers, prod.Close)
	} else {
		logger.Warn("events_disabled", "reason", "KAFKA_BROKERS not set")
	}

	resolver := &auth.Resolver{
		Users:   r,
		Secret:  cfg.JWTAccessSecret,
		Revoked: revocations,
		Metrics: m,
	}

	policy := guard.DefaultPolicy()
	policy.EnforceProtected = cfg.GuardEnforceProtected

	e := httpserver.New(httpserver.Options{
		Logger:        logger,
		Guard:         policy,
		GuardResolver: resolver,
		CSRF:          cfg.CSRFEnabled,
		CookieSecure:  cfg.CookieSecure,
	}, &httpserver.Deps{
		Auth: &httpserver.AuthHTTP{
			Svc: &service.AuthService{
				Repo:          r,
				AccessSecret:  cfg.JWTAccessSecret,
				RefreshSecret: cfg.JWTRefreshSecret,
				Revoker:       revoker,
				Events:        publisher,
			},
			CookieSecure: cfg.CookieSecure,
		},
		Users:    &httpserver.UsersHTTP{Svc: &service.UsersService{Repo: r, Events: publisher}},
		Products: &httpserver.ProductsHTTP{Svc: &service.CatalogService{Repo: r, Events: publisher, Currency: cfg.Cart.Currency}},
		Cart:     &httpserver.CartHTTP{},
		Orders:   &httpserver.OrdersHTTP{Svc: &service.OrdersService{Repo: r}},
		AuthMW:   authmw.New(resolver),
		CartScope: &httpserver.CartProvider{
			Deps: cart.Deps{
				Store:   r,
				Catalog: r,
				Remote:  remote,
				Pricer: cart.FlatRate{
					TaxRateBps:       cfg.Cart.TaxRateBps,
					Shipping:         cfg.Cart.ShippingFlat,
					FreeShippingFrom: cfg.Cart.FreeShippingFrom,
				},
				Events:   publisher,
				Metrics:  m,
				Currency: cfg.Cart.Currency,
			},
			CookieSecure: cfg.CookieSecure,
		},
		Metrics:        m,
		Ready:          ready,
		DebugEndpoints: cfg.DebugEndpoints,
	})

	if cfg.DebugEndpoints {
		logger.Warn("debug_endpoints_enabled", "prefix", "/api/debug")
	}

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	go func() {
		logger.Info("server_starting", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("server_shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo_shutdown_error", "error", err)
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Error("close_error", "error", err)
		}
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db_close_error", "error", err)
	}

	logger.Info("server_stopped")
}
