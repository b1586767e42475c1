package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/wellness-reschedule/internal/config"
	"github.com/hackgods/wellness-reschedule/internal/db"
	"github.com/hackgods/wellness-reschedule/internal/logging"
	"github.com/hackgods/wellness-reschedule/internal/metrics"
	"github.com/hackgods/wellness-reschedule/internal/reschedule"
)

const sweepBatch = 200

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("expiry-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PostgresMaxConn, logger)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()

	// Expiry never proposes, so it needs no Redis lock.
	svc := reschedule.NewService(reschedule.NewPgTxRunner(pgPool), nil, cfg, logger, metrics.New(nil))

	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *reschedule.Service, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	total := 0
	for {
		n, err := svc.ExpireOverdue(runCtx, sweepBatch)
		total += n
		if err != nil {
			logger.Error("expiry run error", zap.Error(err), zap.Int("expired", total))
			return
		}
		if n < sweepBatch {
			break
		}
	}
	logger.Info("expiry run complete", zap.Int("expired", total), zap.Duration("took", time.Since(start)))
}
