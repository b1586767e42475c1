package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/hackgods/wellness-reschedule/internal/config"
	"github.com/hackgods/wellness-reschedule/internal/db"
	"github.com/hackgods/wellness-reschedule/internal/logging"
	"github.com/hackgods/wellness-reschedule/internal/metrics"
	"github.com/hackgods/wellness-reschedule/internal/notification"
)

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

	logger.Info("outbox-relay starting up",
		zap.String("queue", cfg.NotificationQueue),
		zap.Int("batch_size", cfg.OutboxBatchSize),
		zap.Duration("interval", cfg.OutboxInterval),
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

	conn, err := amqp091.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Fatal("rabbitmq connection error", zap.Error(err))
	}
	defer func() { _ = conn.Close() }()

	publisher, err := notification.NewAMQPPublisher(conn, cfg.NotificationQueue)
	if err != nil {
		logger.Fatal("rabbitmq publisher error", zap.Error(err))
	}
	defer func() { _ = publisher.Close() }()

	relay := notification.NewRelay(notification.NewPgRepository(pgPool), publisher, logger, metrics.New(nil)).
		WithBatchSize(cfg.OutboxBatchSize).
		WithInterval(cfg.OutboxInterval)

	relay.Start(rootCtx)
	logger.Info("outbox-relay stopped")
}
