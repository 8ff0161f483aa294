// Package adminapi serves the cacher's observability and operator surface:
// liveness, Prometheus exposition, and an out-of-band filter reload trigger.
// It never touches the receive loop's buffers or the parser's decode path;
// it only reads counters and calls Filter.Reload through the Parser, both
// already safe for concurrent callers.
package adminapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/radius-cacher/internal/metrics"
)

// FilterReloader is the subset of *parser.Parser the admin API needs; kept
// as an interface so tests can substitute a stub.
type FilterReloader interface {
	FilterSize() int
	Reload()
}

// New builds the admin HTTP handler. addr is not bound here; callers wrap
// the returned handler in an *http.Server themselves so they control
// graceful shutdown alongside the receive loop(s).
func New(p FilterReloader, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if reg := m.Registry(); reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	r.Post("/filter/reload", func(w http.ResponseWriter, _ *http.Request) {
		p.Reload()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"filter_size": p.FilterSize()})
	})

	return r
}
