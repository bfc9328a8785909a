package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/filiksyos/ghostmrr/internal/config"
	"github.com/filiksyos/ghostmrr/internal/infra/cachelru"
	"github.com/filiksyos/ghostmrr/internal/infra/feed"
	httpinfra "github.com/filiksyos/ghostmrr/internal/infra/http"
	"github.com/filiksyos/ghostmrr/internal/logging"
	"github.com/filiksyos/ghostmrr/internal/usecase"
)

func main() {
	cfg := config.FromEnv()
	logger := logging.New(cfg.LogLevel)
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openStorage(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}
	defer func() {
		if err := backend.close(); err != nil {
			logger.Warn("storage close: %v", err)
		}
	}()

	policy, err := loadPolicy(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to load group policy: %v", err)
	}
	logger.Info("group policy loaded (hash=%s)", policy.PolicyHash())

	cache, err := cachelru.New(cfg.VerifyCacheSize)
	if err != nil {
		log.Fatalf("failed to init verification cache: %v", err)
	}
	limiter, closeLimiter := buildRateLimiter(ctx, cfg, logger)
	defer closeLimiter()

	hub := feed.NewHub(logger)
	audit := usecase.NewAuditEmitter(backend.audit, nil)

	srv := httpinfra.NewServerWithDeps(cfg, httpinfra.ServerDeps{
		Submit: &usecase.SubmitBadge{
			Badges: backend.badges,
			Policy: policy,
			Audit:  audit,
			Feed:   hub,
			Log:    logger,
		},
		Replace: &usecase.ReplaceBadge{
			Badges: backend.badges,
			Audit:  audit,
			Feed:   hub,
			Log:    logger,
		},
		Verify:      &usecase.VerifyBadge{Cache: cache},
		Query:       &usecase.QueryBadges{Badges: backend.badges},
		Feed:        hub,
		RateLimiter: limiter,
		StorageMode: backend.mode,
		Log:         logger,
	})
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
