package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"trackmeta/internal/core"
	"trackmeta/internal/field"
	"trackmeta/internal/flood"
	httpserver "trackmeta/internal/http"
	"trackmeta/internal/metadata"
	"trackmeta/internal/store"
	"trackmeta/pkg/soundcloud"
)

type services struct {
	store    store.Store
	config   *field.StoredConfig
	resolver field.Resolver
	cache    *store.MetadataCache
	manager  *field.Manager
	limiter  *flood.Floodgate
	metrics  *httpserver.Metrics
	registry *prometheus.Registry
}

func initializeServices(ctx context.Context) (*services, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	fields, err := requestedFields()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics := httpserver.NewMetrics(registry)

	client, err := soundcloud.NewClient(config.SoundCloud.APIBaseURL,
		soundcloud.WithLogger(logger.Named("soundcloud")),
		soundcloud.WithRequestObserver(metrics.ObserveUpstream))
	if err != nil {
		return nil, fmt.Errorf("failed to create SoundCloud client: %w", err)
	}

	backing, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	var (
		resolver field.Resolver = metadata.NewResolver(client, fields, logger.Named("resolver"))
		cache    *store.MetadataCache
	)
	if config.Cache.Size > 0 {
		cache = store.NewMetadataCache(config.Cache.Size, config.Cache.TTL, config.Cache.FalsePositiveRate)
		resolver = store.NewCachingResolver(resolver, cache)
		httpserver.RegisterCache(registry, cache)
	}

	installation := field.NewStoredConfig(backing, field.InstallationParameters{ClientID: config.SoundCloud.ClientID})
	manager := field.NewManager(backing, resolver, installation, config.App.ResolveTimeout, logger.Named("field"))

	svcs := &services{
		store:    backing,
		config:   installation,
		resolver: resolver,
		cache:    cache,
		manager:  manager,
		metrics:  metrics,
		registry: registry,
	}
	if config.App.ResolveLimitPerMinute > 0 {
		svcs.limiter = flood.New(config.App.ResolveLimitPerMinute)
	}

	logger.Info("Services initialized",
		zap.String("store", config.Store.Driver),
		zap.String("fields", fields.String()),
		zap.Int("cache_size", config.Cache.Size),
		zap.Int("resolve_limit_per_minute", config.App.ResolveLimitPerMinute))

	return svcs, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	switch config.Store.Driver {
	case core.StoreMemory:
		return store.NewMemoryStore(), nil
	case core.StoreSQLite:
		return store.NewSQLiteStore(config.Store.SQLitePath, logger.Named("sqlite"))
	case core.StoreRedis:
		return store.NewRedisStore(ctx, store.RedisOptions{
			Addr:     config.Store.RedisAddr,
			Password: config.Store.RedisPassword,
			DB:       config.Store.RedisDB,
			Prefix:   config.Store.RedisPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", config.Store.Driver)
	}
}

func (s *services) close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if err := s.store.Close(); err != nil {
		logger.Debug("Failed to close store", zap.Error(err))
	}
}

func (s *services) httpServer() *httpserver.Server {
	deps := httpserver.Dependencies{
		Fields:  s.manager,
		Config:  s.config,
		Store:   s.store,
		Limiter: s.limiter,
	}
	return httpserver.NewServer(&config.Server, deps, s.metrics, s.registry, config.App.Language, logger.Named("http"))
}
