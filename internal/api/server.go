package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ryanbastic/go-cellgrid/internal/auth"
	"github.com/ryanbastic/go-cellgrid/internal/metrics"
	"github.com/ryanbastic/go-cellgrid/internal/storage"
)

const (
	apiTitle   = "Cell Grid API"
	apiVersion = "1.0.0"
)

// NewServer creates an HTTP server with all routes configured.
func NewServer(logger *slog.Logger, store storage.CellStore, backends map[string]Pinger, jwtSecret string) http.Handler {
	mux := chi.NewRouter()

	mux.Use(RequestID)
	mux.Use(Logging(logger))
	mux.Use(Recovery(logger))
	mux.Use(metrics.HTTP)
	mux.Use(auth.Middleware(jwtSecret, logger))

	mux.Handle("/metrics", promhttp.Handler())

	api := humachi.New(mux, huma.DefaultConfig(apiTitle, apiVersion))
	registerCellRoutes(api, NewCellHandler(store, logger))
	registerHealthRoutes(api, NewHealthHandler(backends, logger))

	return mux
}
