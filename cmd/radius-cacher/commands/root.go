// Package commands builds the cacher's single flat cobra command: there are
// no subcommands, matching the spec's CLI surface of -s/-m/-v flags plus
// the implicit -h.
package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/radius-cacher/internal/adminapi"
	"github.com/marmos91/radius-cacher/internal/cache"
	"github.com/marmos91/radius-cacher/internal/config"
	"github.com/marmos91/radius-cacher/internal/logger"
	"github.com/marmos91/radius-cacher/internal/metrics"
	"github.com/marmos91/radius-cacher/internal/parser"
	"github.com/marmos91/radius-cacher/internal/server"
)

var (
	serverConfigPath string
	cacheConfigPath  string
	verbose          string
)

// NewRootCmd builds the cacher's top-level (and only) command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "radius-cacher",
		Short:         "Project RADIUS accounting identities into a key/value cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	cmd.Flags().StringVarP(&serverConfigPath, "server-config", "s", "", "path to the server config file")
	cmd.Flags().StringVarP(&cacheConfigPath, "cache-config", "m", "", "path to the cache config file")
	cmd.Flags().StringVarP(&verbose, "verbose", "v", "INFO", "log level: NONE, FATAL, ERROR, WARN, LOG, INFO, DEBUG")

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	if err := logger.Init(logger.Config{Level: mapVerbosity(verbose), Format: "text", Output: "stdout"}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	serverCfg, err := config.LoadServer(serverConfigPath)
	if err != nil {
		return err
	}
	cacheCfg, err := config.LoadCache(cacheConfigPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()

	p, err := buildParser(ctx, serverCfg, m)
	if err != nil {
		return err
	}

	c := cache.NewMemcacheText(cacheCfg.Host, cacheCfg.Port)

	srv := server.New(server.Config{
		Port:           serverCfg.Port,
		ThreadPoolSize: serverCfg.ThreadPoolSize,
		SingleCore:     serverCfg.SingleCore,
		CacheTTL:       time.Duration(cacheCfg.TTLSeconds) * time.Second,
	}, p, c, m)

	var adminSrv *serveCloser
	if serverCfg.AdminAddr != "" {
		adminSrv = startAdminServer(serverCfg.AdminAddr, p, m)
		defer adminSrv.shutdown()
	}

	logger.Info("radius-cacher: starting", "port", serverCfg.Port, "single_core", serverCfg.SingleCore)
	return srv.Serve(ctx)
}

func buildParser(ctx context.Context, serverCfg *config.ServerConfig, m *metrics.Metrics) (*parser.Parser, error) {
	interval := time.Duration(serverCfg.FilterRefreshMinutes) * time.Minute

	if config.IsS3Path(serverCfg.FilterFile) {
		source, err := config.S3FilterSource(ctx)
		if err != nil {
			return nil, fmt.Errorf("build s3 filter source: %w", err)
		}
		return parser.NewWithSource(ctx, serverCfg.FilterFile, interval, source, m), nil
	}
	return parser.New(ctx, serverCfg.FilterFile, interval, m), nil
}

func mapVerbosity(level string) string {
	switch level {
	case "NONE", "FATAL":
		return "ERROR"
	case "LOG":
		return "INFO"
	default:
		return level
	}
}

// serveCloser wraps the admin http.Server so run() can defer a graceful
// shutdown without importing net/http directly into this file's signature.
type serveCloser struct {
	shutdown func()
}

func startAdminServer(addr string, p *parser.Parser, m *metrics.Metrics) *serveCloser {
	return newAdminServer(addr, adminapi.New(p, m))
}
