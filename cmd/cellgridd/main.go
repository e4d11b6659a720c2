package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ryanbastic/go-cellgrid/internal/api"
	"github.com/ryanbastic/go-cellgrid/internal/config"
	"github.com/ryanbastic/go-cellgrid/internal/metrics"
	"github.com/ryanbastic/go-cellgrid/internal/storage"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("invalid DATABASE_URL", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database", "max_conns", cfg.DBMaxConns)

	if err := storage.RunMigrations(ctx, pool); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations complete")

	store := storage.NewPostgresStore(pool, cfg.DBQueryTimeout)

	if cfg.LayoutConfigPath != "" {
		if err := seedLayout(ctx, store, cfg.LayoutConfigPath, logger); err != nil {
			logger.Error("failed to seed layout", "path", cfg.LayoutConfigPath, "error", err)
			os.Exit(1)
		}
	}

	prometheus.MustRegister(metrics.NewPoolCollector(pool))

	handler := api.NewServer(logger, store, map[string]api.Pinger{"postgres": store}, cfg.JWTSecret)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// seedLayout provisions the cells described by the layout file. Cells that
// already exist are left untouched.
func seedLayout(ctx context.Context, store storage.CellStore, path string, logger *slog.Logger) error {
	layout, err := config.LoadLayoutConfig(path)
	if err != nil {
		return err
	}
	cells := layout.Cells()
	inserted, err := store.InsertCells(ctx, cells)
	if err != nil {
		return err
	}
	metrics.CellsSeeded(inserted)
	logger.Info("layout seeded",
		"warehouses", len(layout.Warehouses),
		"cells", len(cells),
		"inserted", inserted,
	)
	return nil
}
