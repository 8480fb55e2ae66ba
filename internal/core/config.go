// Package core holds the service configuration.
package core

import (
	"errors"
	"fmt"
	"time"

	"trackmeta/internal/i18n"
	"trackmeta/internal/metadata"
	"trackmeta/pkg/soundcloud"
)

// Configuration defaults.
const (
	DefaultServerPort            = 8080
	DefaultServerHost            = "0.0.0.0"
	DefaultServerTimeout         = 10 * time.Second
	DefaultResolveTimeout        = 15 * time.Second
	DefaultResolveLimitPerMinute = 20
	DefaultCacheTTL              = 10 * time.Minute
	DefaultCacheFalsePositive    = 0.001
	DefaultSQLitePath            = "./trackmeta.db"
	DefaultRedisAddr             = "localhost:6379"
	DefaultRedisPrefix           = "trackmeta:"
	DefaultLogMaxSizeMB          = 50
	DefaultLogMaxBackups         = 5
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

var (
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)

type Config struct {
	SoundCloud SoundCloudConfig
	Store      StoreConfig
	Cache      CacheConfig
	Server     ServerConfig
	Log        LogConfig
	App        AppConfig
}

type SoundCloudConfig struct {
	APIBaseURL string
	// ClientID is used until one is saved through the configuration API.
	ClientID string
	Fields   string
}

type StoreConfig struct {
	Driver        string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

type CacheConfig struct {
	// Size is the number of cached resolutions; zero disables the cache.
	Size              int
	TTL               time.Duration
	FalsePositiveRate float64
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

type AppConfig struct {
	Language              string
	ResolveTimeout        time.Duration
	ResolveLimitPerMinute int
}

func DefaultConfig() *Config {
	return &Config{
		SoundCloud: SoundCloudConfig{
			APIBaseURL: soundcloud.DefaultAPIBaseURL,
			Fields:     metadata.FieldsFull.String(),
		},
		Store: StoreConfig{
			Driver:      StoreSQLite,
			SQLitePath:  DefaultSQLitePath,
			RedisAddr:   DefaultRedisAddr,
			RedisPrefix: DefaultRedisPrefix,
		},
		Cache: CacheConfig{
			TTL:               DefaultCacheTTL,
			FalsePositiveRate: DefaultCacheFalsePositive,
		},
		Server: ServerConfig{
			Host:         DefaultServerHost,
			Port:         DefaultServerPort,
			ReadTimeout:  DefaultServerTimeout,
			WriteTimeout: DefaultServerTimeout + DefaultResolveTimeout,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
		},
		App: AppConfig{
			Language:              i18n.DefaultLanguage,
			ResolveTimeout:        DefaultResolveTimeout,
			ResolveLimitPerMinute: DefaultResolveLimitPerMinute,
		},
	}
}

// Validate checks values that flags and the environment cannot constrain.
func (c *Config) Validate() error {
	if _, err := metadata.ParseFields(c.SoundCloud.Fields); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite path is required", ErrInvalidConfig)
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("%w: redis address is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.Store.Driver)
	}

	if c.Cache.Size < 0 {
		return fmt.Errorf("%w: cache size must not be negative", ErrInvalidConfig)
	}
	if c.Cache.Size > 0 && (c.Cache.FalsePositiveRate <= 0 || c.Cache.FalsePositiveRate >= 1) {
		return fmt.Errorf("%w: cache false positive rate must be in (0,1)", ErrInvalidConfig)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.App.ResolveTimeout < 0 {
		return fmt.Errorf("%w: resolve timeout must not be negative", ErrInvalidConfig)
	}
	if c.App.ResolveLimitPerMinute < 0 {
		return fmt.Errorf("%w: resolve limit must not be negative", ErrInvalidConfig)
	}
	if !i18n.IsSupported(c.App.Language) {
		return fmt.Errorf("%w: unsupported language %q (supported: %v)",
			ErrInvalidConfig, c.App.Language, i18n.GetSupportedLanguages())
	}
	return nil
}
