package main

import (
	"context"
	"fmt"

	"github.com/mborders/logmatic"

	"github.com/filiksyos/ghostmrr/internal/config"
	"github.com/filiksyos/ghostmrr/internal/domain"
	"github.com/filiksyos/ghostmrr/internal/infra/badgemem"
	"github.com/filiksyos/ghostmrr/internal/infra/db"
	"github.com/filiksyos/ghostmrr/internal/infra/policyopa"
	"github.com/filiksyos/ghostmrr/internal/infra/ratelimit"
	"github.com/filiksyos/ghostmrr/internal/infra/sqlitestore"
	"github.com/filiksyos/ghostmrr/internal/usecase"
)

type storage struct {
	mode   string
	badges usecase.BadgeRepository
	audit  usecase.AuditEventRepository
	close  func() error
}

func openStorage(ctx context.Context, cfg config.Config, logger *logmatic.Logger) (storage, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("using in-memory storage; badges are lost on restart")
		return storage{
			mode:   config.StorageMemory,
			badges: badgemem.New(),
			audit:  badgemem.NewAuditLog(),
			close:  func() error { return nil },
		}, nil
	case config.StorageSQLite:
		store, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			return storage{}, err
		}
		logger.Info("using sqlite storage at %s", store.Path())
		return storage{
			mode:   config.StorageSQLite,
			badges: store.Badges(),
			audit:  store.Audit(),
			close:  store.Close,
		}, nil
	case config.StoragePostgres:
		store, err := db.NewStore(cfg, logger)
		if err != nil {
			return storage{}, err
		}
		out := storage{
			mode:   "no-db",
			badges: store.Badges,
			audit:  store.Audit,
			close:  func() error { return nil },
		}
		if store.DB == nil {
			return out, nil
		}
		if err := db.Migrate(ctx, store.DB); err != nil {
			return storage{}, fmt.Errorf("migrate: %w", err)
		}
		out.mode = config.StoragePostgres
		if sqlDB, err := store.DB.DB(); err == nil {
			out.close = sqlDB.Close
		}
		return out, nil
	default:
		return storage{}, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}

func loadPolicy(ctx context.Context, cfg config.Config) (*policyopa.Engine, error) {
	if cfg.PolicyPath != "" {
		return policyopa.NewEngineFromBundlePath(ctx, cfg.PolicyPath)
	}
	return policyopa.NewEngine(ctx)
}

// buildRateLimiter prefers redis so limits hold across replicas, and falls
// back to an in-process limiter when redis is not configured or unreachable.
func buildRateLimiter(ctx context.Context, cfg config.Config, logger *logmatic.Logger) (domain.RateLimiter, func()) {
	noop := func() {}
	if cfg.RateLimitRequests <= 0 {
		return nil, noop
	}
	if cfg.RedisAddr != "" {
		limiter, err := ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, nil)
		if err == nil {
			if err = limiter.Ping(ctx); err == nil {
				logger.Info("rate limiting via redis at %s", cfg.RedisAddr)
				return limiter, func() { _ = limiter.Close() }
			}
			_ = limiter.Close()
		}
		logger.Warn("redis rate limiter unavailable, using memory: %v", err)
	}
	return ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{MaxKeys: cfg.RateLimitMaxKeys}), noop
}
