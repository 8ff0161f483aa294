package commands

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/radius-cacher/internal/logger"
)

// newAdminServer starts the admin HTTP surface (healthz/metrics/filter
// reload) on addr in its own goroutine and returns a serveCloser whose
// shutdown method gracefully stops it.
func newAdminServer(addr string, handler http.Handler) *serveCloser {
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server: listen failed", logger.Source(addr), logger.Err(err))
		}
	}()

	return &serveCloser{shutdown: func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("admin server: shutdown error", logger.Err(err))
		}
	}}
}
