// Package engine orchestrates one depth computation: deadline, cache,
// adapter dispatch. It is request-scoped by construction; nothing here is
// mutable across queries.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ammdepth/internal/depthcache"
	"ammdepth/internal/dex"
	"ammdepth/internal/model"
)

// Resolver picks the adapter for a query, probing when needed.
// *dex.Registry is the production implementation.
type Resolver interface {
	Resolve(ctx context.Context, q model.Query) (dex.Adapter, error)
}

// Config holds engine-level settings.
type Config struct {
	// QueryTimeout bounds the whole computation. On expiry the query fails
	// wholesale; a half-walked book is misleading, not merely incomplete.
	QueryTimeout time.Duration
	// CacheTTL bounds cached snapshots. Zero disables caching.
	CacheTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 30 * time.Second
	}
	return c
}

// Engine computes depth snapshots through the adapter layer.
type Engine struct {
	resolver Resolver
	cache    depthcache.Cache
	logger   *zap.Logger
	cfg      Config
}

// New builds an engine. cache may be nil to disable caching.
func New(resolver Resolver, cache depthcache.Cache, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		resolver: resolver,
		cache:    cache,
		logger:   logger,
		cfg:      cfg.withDefaults(),
	}
}

// ComputeDepth runs one query end to end. Transport failures and
// unsupported protocols surface as errors; everything else degrades to a
// smaller or empty DepthData.
func (e *Engine) ComputeDepth(ctx context.Context, q model.Query) (model.DepthData, error) {
	if e.resolver == nil {
		return model.DepthData{}, fmt.Errorf("resolver is nil")
	}
	if err := q.Validate(); err != nil {
		return model.DepthData{}, fmt.Errorf("invalid query: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout)
	defer cancel()

	key := depthcache.Key(q)
	if e.cache != nil && e.cfg.CacheTTL > 0 {
		if data, ok, err := e.cache.Get(ctx, key); err != nil {
			e.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			e.logger.Debug("cache hit", zap.String("key", key))
			return data, nil
		}
	}

	adapter, err := e.resolver.Resolve(ctx, q)
	if err != nil {
		return model.DepthData{}, fmt.Errorf("resolve pool %s: %w", q.Pool, err)
	}

	started := time.Now()
	data, err := adapter.ComputeDepth(ctx, q)
	if err != nil {
		return model.DepthData{}, fmt.Errorf("compute depth for %s: %w", q.Pool, err)
	}

	e.logger.Info("depth computed",
		zap.String("pool", q.Pool),
		zap.String("protocol", string(data.Protocol)),
		zap.Int("bids", len(data.Bids)),
		zap.Int("asks", len(data.Asks)),
		zap.Duration("elapsed", time.Since(started)),
	)

	if e.cache != nil && e.cfg.CacheTTL > 0 {
		if err := e.cache.Set(ctx, key, data, e.cfg.CacheTTL); err != nil {
			e.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return data, nil
}
