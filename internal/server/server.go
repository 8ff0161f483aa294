// Package server owns the UDP socket(s), receive buffers, and per-packet
// dispatch that turn a parsed Action into a cache operation. The canonical
// mode is a single blocking receive loop on one OS thread; an optional
// multi-core mode runs N independent loops sharing one port via
// SO_REUSEPORT, all consulting the same read-only Parser.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/radius-cacher/internal/action"
	"github.com/marmos91/radius-cacher/internal/cache"
	"github.com/marmos91/radius-cacher/internal/logger"
	"github.com/marmos91/radius-cacher/internal/metrics"
	"github.com/marmos91/radius-cacher/internal/parser"
)

const receiveBufferSize = 8 * 1024

// Config holds the knobs the server itself consumes (as opposed to the
// parser/filter construction knobs, which the caller resolves first).
type Config struct {
	Port           int
	ThreadPoolSize int
	SingleCore     bool
	CacheTTL       time.Duration
}

// Server owns zero or more worker receive loops plus the shared Parser and
// Cache they dispatch into.
type Server struct {
	config  Config
	parser  *parser.Parser
	cache   cache.Cache
	metrics *metrics.Metrics

	wg sync.WaitGroup
}

// New constructs a Server. p must already have completed its filter's
// initial load (see parser.New) before Serve is called.
func New(cfg Config, p *parser.Parser, c cache.Cache, m *metrics.Metrics) *Server {
	return &Server{config: cfg, parser: p, cache: c, metrics: m}
}

// Serve binds the configured port and runs the receive loop(s) until ctx is
// cancelled. In single-core mode it runs exactly one loop on one socket; in
// multi-core mode it runs config.ThreadPoolSize independent loops, each on
// its own SO_REUSEPORT socket, all sharing the Parser and Cache.
func (s *Server) Serve(ctx context.Context) error {
	workers := 1
	if !s.config.SingleCore {
		workers = s.config.ThreadPoolSize
		if workers < 1 {
			workers = 1
		}
	} else if s.config.ThreadPoolSize > 1 {
		logger.Warn("server: thread_pool_size > 1 ignored in single-core mode")
	}

	conns := make([]*net.UDPConn, workers)
	for i := 0; i < workers; i++ {
		conn, err := s.listen(workers > 1)
		if err != nil {
			for j := 0; j < i; j++ {
				conns[j].Close()
			}
			return fmt.Errorf("server: listen worker %d: %w", i, err)
		}
		conns[i] = conn
	}

	logger.Info("server: listening", "port", s.config.Port, "workers", workers)

	s.wg.Add(workers)
	for i, conn := range conns {
		go func(idx int, c *net.UDPConn) {
			defer s.wg.Done()
			defer c.Close()
			s.receiveLoop(ctx, idx, c)
		}(i, conn)
	}

	<-ctx.Done()
	for _, conn := range conns {
		conn.Close()
	}
	s.wg.Wait()
	return nil
}

// listen binds a UDP socket on the configured port. When reusePort is true
// (multi-core mode) it sets SO_REUSEPORT via listenConfig so every worker
// can bind the same port independently; the OS load-balances datagrams
// across the bound sockets.
func (s *Server) listen(reusePort bool) (*net.UDPConn, error) {
	addr := fmt.Sprintf(":%d", s.config.Port)
	lc := net.ListenConfig{}
	if reusePort {
		lc.Control = reusePortControl
	}
	pc, err := lc.ListenPacket(context.Background(), "udp", addr)
	if err != nil {
		return nil, err
	}
	udpConn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, errors.New("server: listener is not a UDP connection")
	}
	return udpConn, nil
}

func (s *Server) receiveLoop(ctx context.Context, worker int, conn *net.UDPConn) {
	buf := make([]byte, receiveBufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
				logger.Warn("server: socket error", logger.Err(err), logger.Worker(worker))
				continue
			}
		}

		s.dispatch(ctx, worker, buf[:n], from)
	}
}

func (s *Server) dispatch(ctx context.Context, worker int, datagram []byte, from *net.UDPAddr) {
	s.metrics.PacketReceived()

	packetID := uuid.NewString()
	lc := logger.NewLogContext(packetID, from.IP.String(), worker)
	ctx = logger.WithContext(ctx, lc)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCtx(ctx, "server: recovered from panic while dispatching packet", "panic", r)
		}
	}()

	act := s.parser.Parse(len(datagram), datagram)
	s.metrics.PacketClassified(act.Kind.String())
	s.apply(ctx, act)
}

func (s *Server) apply(ctx context.Context, act action.Action) {
	switch act.Kind {
	case action.Store:
		if err := s.cache.Set(ctx, act.Key, act.Value, s.config.CacheTTL); err != nil {
			s.metrics.CacheOperation("set", "error")
			logger.ErrorCtx(ctx, "server: cache set failed", logger.CacheKey(act.Key), logger.Err(err))
			return
		}
		s.metrics.CacheOperation("set", "ok")
		logger.InfoCtx(ctx, "server: stored", logger.CacheKey(act.Key), logger.CacheVal(act.Value))

	case action.Remove:
		if err := s.cache.Remove(ctx, act.Key); err != nil {
			s.metrics.CacheOperation("remove", "error")
			logger.ErrorCtx(ctx, "server: cache remove failed", logger.CacheKey(act.Key), logger.Err(err))
			return
		}
		s.metrics.CacheOperation("remove", "ok")
		logger.InfoCtx(ctx, "server: removed", logger.CacheKey(act.Key))

	case action.Filter:
		logger.InfoCtx(ctx, "server: suppressed by filter", logger.CacheVal(act.Value))

	case action.DoNothing:
		// no-op
	}
}
