package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds per-packet logging context threaded through one
// receive-classify-apply cycle so every line for a packet can be
// grepped out of an interleaved multi-worker log stream.
type LogContext struct {
	PacketID  string
	ClientIP  string
	Worker    int
	StartTime time.Time
}

// WithContext returns a new context carrying the given LogContext.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from ctx, or nil if absent.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for a freshly received packet.
func NewLogContext(packetID, clientIP string, worker int) *LogContext {
	return &LogContext{
		PacketID:  packetID,
		ClientIP:  clientIP,
		Worker:    worker,
		StartTime: time.Now(),
	}
}

// DurationMs returns the elapsed time since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
