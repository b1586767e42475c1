package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hackgods/wellness-reschedule/internal/api"
	"github.com/hackgods/wellness-reschedule/internal/config"
	"github.com/hackgods/wellness-reschedule/internal/db"
	"github.com/hackgods/wellness-reschedule/internal/logging"
	"github.com/hackgods/wellness-reschedule/internal/metrics"
	"github.com/hackgods/wellness-reschedule/internal/notification"
	redisclient "github.com/hackgods/wellness-reschedule/internal/redis"
	"github.com/hackgods/wellness-reschedule/internal/reschedule"
	"github.com/hackgods/wellness-reschedule/internal/wallet"
)

var version = "dev"

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

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.Duration("reschedule_window", cfg.RescheduleTTL),
		zap.Duration("lock_ttl", cfg.LockTTL),
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

	rdb, err := redisclient.Connect(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc := reschedule.NewService(
		reschedule.NewPgTxRunner(pgPool),
		redisclient.NewRedisLocker(rdb, cfg.LockTTL),
		cfg,
		logger,
		m,
	)

	router := api.NewRouter(api.RouterConfig{
		Reschedule: svc,
		Wallets:    wallet.NewLedger(wallet.NewPgRepository(pgPool), logger, m),
		Inbox:      notification.NewPgRepository(pgPool),
		Checks: []api.Check{
			api.PostgresCheck(pgPool),
			api.RedisCheck(redisclient.Ping(rdb)),
		},
		Logger:             logger,
		Gatherer:           reg,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AdminToken:         cfg.AdminAPIToken,
		Env:                cfg.Env,
		Version:            version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
