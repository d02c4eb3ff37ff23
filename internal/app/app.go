package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/member-cart/internal/checkout/stripe"
	"github.com/xenking/member-cart/internal/domain/cart"
	"github.com/xenking/member-cart/internal/domain/membership"
	"github.com/xenking/member-cart/internal/domain/order"
	"github.com/xenking/member-cart/internal/domain/shop"
	"github.com/xenking/member-cart/internal/handler"
	"github.com/xenking/member-cart/internal/storage/postgres"
	"github.com/xenking/member-cart/internal/storage/redis"
	"github.com/xenking/member-cart/pkg/health"
	"github.com/xenking/member-cart/pkg/httpmiddleware"
)

const serviceName = "member-cart"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	shipping, err := cfg.Shipping.Policy()
	if err != nil {
		return errors.Wrap(err, "shipping policy")
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))

	// Ledger persistence: Redis when configured, process memory otherwise.
	var persister cart.Persister = cart.NewMemoryPersister()
	if cfg.RedisURL != "" {
		rdb, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()

		p := redis.NewPersister(rdb, cfg.Cart.TTL)
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(p))
		persister = p
	} else {
		lg.Warn("No Redis URL configured, carts are kept in memory")
	}

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	membershipRepo := postgres.NewMembershipRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	// Checkout collaborator. Without a key the ledger reports checkout as
	// unavailable.
	var checkout cart.Checkouter
	if cfg.Stripe.APIKey != "" {
		sc, err := stripe.New(stripe.Config{
			APIKey:         cfg.Stripe.APIKey,
			SuccessURL:     cfg.Stripe.SuccessURL,
			CancelURL:      cfg.Stripe.CancelURL,
			MemberCouponID: cfg.Stripe.MemberCouponID,
		}, m.TracerProvider())
		if err != nil {
			return errors.Wrap(err, "create stripe checkout")
		}
		checkout = order.NewRecorder(sc, orderRepo)
	} else {
		lg.Warn("No Stripe API key configured, checkout is disabled")
	}

	// Domain services.
	sessions := cart.NewSessions(cfg.Cart.Namespace, cfg.Cart.IdleTTL, cart.Options{
		Persister: persister,
		Notifier:  handler.Notifier{},
		Opener:    handler.Opener{},
		Checkout:  checkout,
		Shipping:  shipping,
	})
	sessions.StartSweeper(ctx)
	healthSvc.AddLivenessCheck("cart_sessions", time.Second,
		health.GaugeCheck("open cart sessions", sessions.Len, 100000),
	)

	shopSvc, err := shop.NewService(
		productRepo,
		membership.NewRepoSource(membershipRepo),
		sessions,
		orderRepo,
		m.MeterProvider().Meter(serviceName),
	)
	if err != nil {
		return errors.Wrap(err, "create shop service")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	handler.New(shopSvc).Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Covers the checkout collaborator round trip.
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins: cfg.CORS.Origins,
				AllowHeaders: []string{
					"Content-Type",
					handler.SessionHeader,
					handler.CustomerIDHeader,
					handler.CustomerEmailHeader,
				},
				ExposeHeaders:    httpmiddleware.DefaultExposeHeaders,
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				KeyFunc: httpmiddleware.HeaderOrClientIP(handler.SessionHeader),
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})
	return g.Wait()
}
