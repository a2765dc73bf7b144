package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mytheresa/go-storefront/app/api"
	"github.com/mytheresa/go-storefront/app/catalog"
	"github.com/mytheresa/go-storefront/app/config"
	"github.com/mytheresa/go-storefront/app/database"
	"github.com/mytheresa/go-storefront/app/health"
	"github.com/mytheresa/go-storefront/app/logging"
	"github.com/mytheresa/go-storefront/app/metrics"
	"github.com/mytheresa/go-storefront/app/orders"
	"github.com/mytheresa/go-storefront/models"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting server", zap.Int("port", cfg.Port), zap.String("environment", cfg.Env))

	db := database.NewManager(cfg.Database, logger)
	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	telemetry, err := metrics.New()
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}
	defer func() { _ = telemetry.Shutdown(context.Background()) }()
	otel.SetMeterProvider(telemetry.Provider())

	coordinator, err := orders.NewCoordinator(db, logger, otel.Meter("github.com/mytheresa/go-storefront/app/orders"))
	if err != nil {
		return fmt.Errorf("create order coordinator: %w", err)
	}

	router := api.NewRouter(api.Handlers{
		Catalog: catalog.NewCatalogHandler(models.NewProductsRepository(db), logger),
		Orders:  orders.NewOrderHandler(coordinator, models.NewOrdersRepository(db), logger),
		Health:  health.NewHealthHandler(db, logger),
		Metrics: telemetry.Handler(),
	}, api.Options{
		CORSOrigin:    cfg.CORSOrigin,
		MeterProvider: telemetry.Provider(),
	}, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
