// Package config loads the server and cache configuration records from a
// KEY = VALUE file with environment-variable overrides, following the same
// viper/mapstructure/validator stack used throughout this codebase's
// ambient configuration layer, adapted to the properties-style file format
// this cacher's operators already deploy.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ServerConfig mirrors the server-side environment variables, all prefixed
// RADIUS_ when set via environment (e.g. RADIUS_PORT).
type ServerConfig struct {
	Port                 int    `mapstructure:"PORT" validate:"min=1,max=65535"`
	ThreadPoolSize       int    `mapstructure:"THREAD_POOL_SIZE" validate:"min=1,max=65535"`
	SingleCore           bool   `mapstructure:"SINGLE_CORE"`
	Key                  string `mapstructure:"KEY"`
	Value                string `mapstructure:"VALUE"`
	FilterFile           string `mapstructure:"FILTER_FILE" validate:"required"`
	FilterRefreshMinutes int    `mapstructure:"FILTER_REFRESH_MINUTES" validate:"min=1,max=65535"`
	AdminAddr            string `mapstructure:"ADMIN_ADDR"`
}

// CacheConfig mirrors the cache-side environment variables, all prefixed
// RADIUS_CACHE_ when set via environment (e.g. RADIUS_CACHE_HOST).
type CacheConfig struct {
	Host         string `mapstructure:"HOST" validate:"required"`
	Port         int    `mapstructure:"PORT" validate:"min=1,max=65535"`
	TTLSeconds   int    `mapstructure:"TTL" validate:"min=1"`
	NoReply      bool   `mapstructure:"NO_REPLY"`
	UseBinary    bool   `mapstructure:"USE_BINARY"`
	TCPKeepAlive bool   `mapstructure:"TCP_KEEP_ALIVE"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:                 1813,
		ThreadPoolSize:       1,
		SingleCore:           true,
		Key:                  "FRAMED_IP_ADDRESS",
		Value:                "USER_NAME",
		FilterFile:           "/etc/radius-cacher/filter.txt",
		FilterRefreshMinutes: 720,
	}
}

func defaultCacheConfig() CacheConfig {
	return CacheConfig{
		Host:         "localhost",
		Port:         11211,
		TTLSeconds:   5400,
		NoReply:      true,
		UseBinary:    true,
		TCPKeepAlive: true,
	}
}

var validate = validator.New()

// LoadServer loads a ServerConfig from path (if non-empty) and the RADIUS_
// environment prefix, applying defaults for anything unset.
func LoadServer(path string) (*ServerConfig, error) {
	def := defaultServerConfig()
	defaults := map[string]any{
		"PORT":                   def.Port,
		"THREAD_POOL_SIZE":       def.ThreadPoolSize,
		"SINGLE_CORE":            def.SingleCore,
		"KEY":                    def.Key,
		"VALUE":                  def.Value,
		"FILTER_FILE":            def.FilterFile,
		"FILTER_REFRESH_MINUTES": def.FilterRefreshMinutes,
		"ADMIN_ADDR":             def.AdminAddr,
	}
	var cfg ServerConfig
	if err := load(path, "RADIUS", defaults, &cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("server config invalid: %w", err)
	}
	return &cfg, nil
}

// LoadCache loads a CacheConfig from path (if non-empty) and the
// RADIUS_CACHE_ environment prefix, applying defaults for anything unset.
func LoadCache(path string) (*CacheConfig, error) {
	def := defaultCacheConfig()
	defaults := map[string]any{
		"HOST":           def.Host,
		"PORT":           def.Port,
		"TTL":            def.TTLSeconds,
		"NO_REPLY":       def.NoReply,
		"USE_BINARY":     def.UseBinary,
		"TCP_KEEP_ALIVE": def.TCPKeepAlive,
	}
	var cfg CacheConfig
	if err := load(path, "RADIUS_CACHE", defaults, &cfg); err != nil {
		return nil, fmt.Errorf("cache config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("cache config invalid: %w", err)
	}
	return &cfg, nil
}

// load populates dst (a pointer to ServerConfig or CacheConfig) from
// defaults, then a KEY = VALUE file at path, then environment variables
// under envPrefix — each layer overriding the last, per the precedence
// order environment > file > defaults. Registering defaults as viper
// defaults (rather than pre-filling the Go struct) is required for
// AutomaticEnv to see and override them: viper's env lookup only fires for
// keys it already knows about.
func load(path, envPrefix string, defaults map[string]any, dst any) error {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigType("properties")
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return fmt.Errorf("read config file %q: %w", path, err)
			}
		}
	}

	if err := v.Unmarshal(dst); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}
