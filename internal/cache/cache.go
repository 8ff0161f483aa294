// Package cache defines the two-method contract the server uses to project
// classified actions into an external key/value store, plus two concrete
// bindings: a memcached text-protocol client and a no-op binding for
// environments with no cache configured.
package cache

import (
	"context"
	"fmt"
	"net"
	"net/textproto"
	"time"

	"github.com/marmos91/radius-cacher/internal/logger"
)

// Cache is the external collaborator the core depends on. Implementations
// are expected to be safe for concurrent use by multiple server workers.
type Cache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// NullCache logs and no-ops every operation. The radius-cacher command does
// not select it: it always binds MemcacheText.
type NullCache struct{}

func (NullCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	logger.Debug("cache: set (null binding)", logger.CacheKey(key), logger.CacheVal(value))
	return nil
}

func (NullCache) Remove(_ context.Context, key string) error {
	logger.Debug("cache: remove (null binding)", logger.CacheKey(key))
	return nil
}

// MemcacheText is a minimal memcached text-protocol client implementing
// Cache. It opens one connection per operation; callers sit behind a
// bounded-rate UDP accounting sink so this is not a hot loop in practice,
// and it keeps the client free of pooling complexity the spec does not ask
// for.
type MemcacheText struct {
	Addr    string
	Timeout time.Duration
}

func NewMemcacheText(host string, port int) *MemcacheText {
	return &MemcacheText{
		Addr:    net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		Timeout: 2 * time.Second,
	}
}

func (m *MemcacheText) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	conn, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	tc := textproto.NewConn(conn)
	ttlSeconds := int(ttl.Seconds())
	req := fmt.Sprintf("set %s 0 %d %d\r\n%s\r\n", key, ttlSeconds, len(value), value)
	if _, err := tc.W.WriteString(req); err != nil {
		return err
	}
	if err := tc.W.Flush(); err != nil {
		return err
	}
	line, err := tc.ReadLine()
	if err != nil {
		return err
	}
	if line != "STORED" {
		return fmt.Errorf("cache: set %q failed: %s", key, line)
	}
	return nil
}

func (m *MemcacheText) Remove(ctx context.Context, key string) error {
	conn, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	tc := textproto.NewConn(conn)
	if _, err := tc.W.WriteString(fmt.Sprintf("delete %s\r\n", key)); err != nil {
		return err
	}
	if err := tc.W.Flush(); err != nil {
		return err
	}
	line, err := tc.ReadLine()
	if err != nil {
		return err
	}
	if line != "DELETED" && line != "NOT_FOUND" {
		return fmt.Errorf("cache: delete %q failed: %s", key, line)
	}
	return nil
}

func (m *MemcacheText) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: m.Timeout}
	return d.DialContext(ctx, "tcp", m.Addr)
}
