package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/token-checkout/internal/checkout"
	"github.com/xenking/token-checkout/internal/domain/cart"
	"github.com/xenking/token-checkout/internal/domain/money"
	"github.com/xenking/token-checkout/internal/domain/pricing"
	"github.com/xenking/token-checkout/internal/domain/promotion"
	"github.com/xenking/token-checkout/internal/handler"
	"github.com/xenking/token-checkout/internal/pricefeed"
	"github.com/xenking/token-checkout/internal/storage/memory"
	"github.com/xenking/token-checkout/internal/storage/postgres"
	"github.com/xenking/token-checkout/pkg/health"
	"github.com/xenking/token-checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	engine, err := buildEngine(cfg.Promotions)
	if err != nil {
		return errors.Wrap(err, "build promotion engine")
	}

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	var (
		carts  cart.Repository
		prices pricing.Provider
		idem   checkout.IdempotencyStore
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
			return pool.Ping(ctx)
		})

		idemStore, err := postgres.NewIdempotencyStore(ctx, pool)
		if err != nil {
			return errors.Wrap(err, "create idempotency store")
		}
		carts = postgres.NewCartRepository(pool)
		prices = postgres.NewPriceProvider(pool)
		idem = idemStore
		lg.Info("Using PostgreSQL storage")
	} else {
		priceTable, err := buildPrices(cfg.Prices)
		if err != nil {
			return errors.Wrap(err, "build price table")
		}
		carts = memory.NewCartRepository()
		prices = pricefeed.NewStatic(priceTable)
		idem = checkout.NewMemoryIdempotencyStore()
		lg.Info("Using in-memory storage")
	}

	service := checkout.NewService(carts, prices, engine, idem)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	handler.New(service).Register(mux)

	healthSvc.SetReady(true)

	var apiHandler http.Handler = otelhttp.NewHandler(mux, "checkout-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(apiHandler,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Idempotency-Key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func buildEngine(rules []promotion.RuleConfig) (*promotion.Engine, error) {
	if len(rules) == 0 {
		rules = promotion.DefaultRules()
	}
	promos, err := promotion.Build(rules)
	if err != nil {
		return nil, err
	}
	return promotion.NewEngine(promos), nil
}

func buildPrices(entries []PriceConfig) (pricing.Prices, error) {
	if len(entries) == 0 {
		return pricefeed.DefaultPrices(), nil
	}
	table := make(pricing.Prices, len(entries))
	for _, e := range entries {
		sku, err := cart.ParseSKU(e.SKU)
		if err != nil {
			return nil, errors.Wrapf(err, "price entry %q", e.SKU)
		}
		price, err := money.FromDecimalString(e.Price)
		if err != nil {
			return nil, errors.Wrapf(err, "price for %s", sku)
		}
		table[sku] = price
	}
	return table, nil
}
