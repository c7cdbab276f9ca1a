// Package app wires configuration, storage, domain services, and the HTTP
// server into a running application.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/bookhaven/storefront/internal/domain/entitlement"
	"github.com/bookhaven/storefront/internal/domain/fulfillment"
	"github.com/bookhaven/storefront/internal/domain/order"
	"github.com/bookhaven/storefront/internal/domain/pricing"
	"github.com/bookhaven/storefront/internal/domain/promo"
	"github.com/bookhaven/storefront/internal/handler"
	"github.com/bookhaven/storefront/internal/repository"
	"github.com/bookhaven/storefront/pkg/health"
	"github.com/bookhaven/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	bookRepo := repository.NewBookRepository(pool)
	inventoryRepo := repository.NewInventoryRepository(pool)
	promoRepo := repository.NewPromoRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	subscriptionRepo := repository.NewSubscriptionRepository(pool)

	// Domain services.
	taxRate, err := cfg.Pricing.TaxRateDecimal()
	if err != nil {
		return err
	}
	freeShippingMin, err := cfg.Pricing.FreeShippingMinDecimal()
	if err != nil {
		return err
	}
	pricingEngine := pricing.NewEngine(pricing.Config{
		TaxRate:         taxRate,
		FreeShippingMin: freeShippingMin,
		HomeCountry:     cfg.Pricing.HomeCountry,
	})
	promoValidator := promo.NewRepoValidator(promoRepo)
	orderService := order.NewService(bookRepo, inventoryRepo, promoValidator, pricingEngine, orderRepo)
	tracker := fulfillment.NewTracker(orderRepo, inventoryRepo, pricingEngine, fulfillment.Policy{
		RestockOnReturn: cfg.Fulfillment.RestockOnReturn,
	})
	entitlementSvc := entitlement.NewService(entitlement.DefaultCatalog(), subscriptionRepo)

	// HTTP handlers.
	h := handler.New(bookRepo, orderService, tracker, promoValidator, pricingEngine, entitlementSvc)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
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
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
