// Package ops is the register's local operations endpoint: liveness, the
// sync backlog for staff dashboards and Prometheus metrics.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/logging"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Backlog is the local sync queue.
type Backlog interface {
	PendingCount(ctx context.Context) (int, error)
	Failures(ctx context.Context) ([]*models.Order, error)
}

// Info describes the register for /healthz.
type Info struct {
	RegisterID   string `json:"register_id"`
	RegisterName string `json:"register_name"`
	Mode         string `json:"mode"`
}

type failure struct {
	OrderID    string `json:"order_id"`
	Status     string `json:"status"`
	RetryCount int    `json:"retry_count"`
	ErrorKind  string `json:"error_kind,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

type pendingResponse struct {
	Pending  int       `json:"pending"`
	Failures []failure `json:"failures"`
}

func NewRouter(backlog Backlog, info func() Info, m *Metrics, l logging.Logger) http.Handler {
	logger := l.With("module", "ops")
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Status string `json:"status"`
			Info
		}{Status: "ok", Info: info()})
	})

	r.Get("/sync/pending", func(w http.ResponseWriter, r *http.Request) {
		n, err := backlog.PendingCount(r.Context())
		if err != nil {
			logger.Error(r.Context(), "pending count", "error", err)
			http.Error(w, "backlog unavailable", http.StatusServiceUnavailable)
			return
		}
		orders, err := backlog.Failures(r.Context())
		if err != nil {
			logger.Error(r.Context(), "sync failures", "error", err)
			http.Error(w, "backlog unavailable", http.StatusServiceUnavailable)
			return
		}
		resp := pendingResponse{Pending: n, Failures: make([]failure, 0, len(orders))}
		for _, o := range orders {
			resp.Failures = append(resp.Failures, failure{
				OrderID:    o.ID,
				Status:     string(o.Status),
				RetryCount: o.Sync.RetryCount,
				ErrorKind:  o.Sync.ErrorKind,
				LastError:  o.Sync.LastError,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Run serves h on addr until ctx is done.
func Run(ctx context.Context, addr string, h http.Handler, l logging.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	l.Info(ctx, "Starting ops endpoint", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
