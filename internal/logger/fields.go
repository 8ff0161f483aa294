package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the cacher.
// Use these keys consistently so operators can grep/aggregate on them.
const (
	KeyPacketID  = "packet_id"  // per-packet correlation id (uuid)
	KeyClientIP  = "client_ip"  // source address of the accounting datagram
	KeyWorker    = "worker"     // receive-loop worker index (multi-core mode)
	KeyAction    = "action"     // classified action: store, remove, filter, nothing
	KeyCacheKey  = "cache_key"  // framed IP address used as cache key
	KeyCacheVal  = "cache_val"  // username used as cache value
	KeyFilterLen = "filter_len" // number of entries in the current filter snapshot
	KeyBytes     = "bytes"      // datagram length in bytes
	KeyAttrType  = "attr_type"  // RADIUS attribute type being decoded
	KeyError     = "error"      // error message
	KeySource    = "source"     // data source: local file, s3, etc.
	KeyDuration  = "duration_ms"
)

// PacketID returns a slog.Attr for the per-packet correlation id.
func PacketID(id string) slog.Attr {
	return slog.String(KeyPacketID, id)
}

// ClientIP returns a slog.Attr for the datagram's source address.
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Worker returns a slog.Attr for the receive-loop worker index.
func Worker(idx int) slog.Attr {
	return slog.Int(KeyWorker, idx)
}

// Action returns a slog.Attr for the classified action kind.
func Action(kind string) slog.Attr {
	return slog.String(KeyAction, kind)
}

// CacheKey returns a slog.Attr for the cache key (framed IP).
func CacheKey(key string) slog.Attr {
	return slog.String(KeyCacheKey, key)
}

// CacheVal returns a slog.Attr for the cache value (username).
func CacheVal(val string) slog.Attr {
	return slog.String(KeyCacheVal, val)
}

// FilterLen returns a slog.Attr for the current filter snapshot size.
func FilterLen(n int) slog.Attr {
	return slog.Int(KeyFilterLen, n)
}

// Bytes returns a slog.Attr for a datagram length.
func Bytes(n int) slog.Attr {
	return slog.Int(KeyBytes, n)
}

// AttrType returns a slog.Attr for a RADIUS attribute type.
func AttrType(t uint8) slog.Attr {
	return slog.Int(KeyAttrType, int(t))
}

// Err returns a slog.Attr for an error, or a zero Attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Source returns a slog.Attr for a data source identifier.
func Source(src string) slog.Attr {
	return slog.String(KeySource, src)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDuration, ms)
}
