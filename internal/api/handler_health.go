package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// Pinger is satisfied by *pgxpool.Pool and *storage.PostgresStore.
type Pinger interface {
	Ping(ctx context.Context) error
}

const readinessTimeout = 3 * time.Second

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	backends map[string]Pinger
	logger   *slog.Logger
}

func NewHealthHandler(backends map[string]Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{backends: backends, logger: logger}
}

type BackendStatus struct {
	Status    string `json:"status" enum:"ok,error"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

type LivezOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

type ReadyzBody struct {
	Status   string                   `json:"status" enum:"ok,unavailable"`
	Backends map[string]BackendStatus `json:"backends,omitempty"`
}

type ReadyzOutput struct {
	Status int
	Body   ReadyzBody
}

func registerHealthRoutes(api huma.API, h *HealthHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "livez",
		Method:      http.MethodGet,
		Path:        "/v1/livez",
		Summary:     "Liveness probe",
		Tags:        []string{"health"},
	}, h.Livez)

	huma.Register(api, huma.Operation{
		OperationID: "readyz",
		Method:      http.MethodGet,
		Path:        "/v1/readyz",
		Summary:     "Readiness probe",
		Tags:        []string{"health"},
		Responses: map[string]*huma.Response{
			"503": {Description: "A backend is unreachable"},
		},
	}, h.Readyz)
}

func (h *HealthHandler) Livez(ctx context.Context, _ *struct{}) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// Readyz pings every backend concurrently and reports each one.
func (h *HealthHandler) Readyz(ctx context.Context, _ *struct{}) (*ReadyzOutput, error) {
	out := &ReadyzOutput{Status: http.StatusOK, Body: ReadyzBody{Status: "ok"}}
	if len(h.backends) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	out.Body.Backends = make(map[string]BackendStatus, len(h.backends))
	for name, p := range h.backends {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := p.Ping(ctx)
			st := BackendStatus{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				st.Status = "error"
				st.Error = err.Error()
			}
			mu.Lock()
			out.Body.Backends[name] = st
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, st := range out.Body.Backends {
		if st.Status != "ok" {
			out.Status = http.StatusServiceUnavailable
			out.Body.Status = "unavailable"
		}
	}
	if out.Status != http.StatusOK {
		h.logger.Warn("readiness check failed", "backends", out.Body.Backends)
	}
	return out, nil
}
