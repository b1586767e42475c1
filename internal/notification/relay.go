package notification

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/wellness-reschedule/internal/logging"
	"github.com/hackgods/wellness-reschedule/internal/metrics"
)

// Publisher hands a notification to a downstream transport.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// Relay polls unsent inbox rows and publishes them.
type Relay struct {
	repo      Repository
	publisher Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
	batchSize int
	interval  time.Duration
}

func NewRelay(repo Repository, publisher Publisher, logger *zap.Logger, m *metrics.Metrics) *Relay {
	return &Relay{
		repo:      repo,
		publisher: publisher,
		logger:    logging.OrNop(logger),
		metrics:   m,
		batchSize: 25,
		interval:  2 * time.Second,
	}
}

func (r *Relay) WithBatchSize(size int) *Relay {
	if size > 0 {
		r.batchSize = size
	}
	return r
}

func (r *Relay) WithInterval(interval time.Duration) *Relay {
	if interval > 0 {
		r.interval = interval
	}
	return r
}

func (r *Relay) Start(ctx context.Context) {
	if r.repo == nil || r.publisher == nil {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Drain(ctx)
		}
	}
}

// Drain publishes one batch per audience and returns how many rows were
// marked sent.
func (r *Relay) Drain(ctx context.Context) int {
	sent := 0
	for _, audience := range []Audience{AudienceUser, AudienceProvider} {
		sent += r.drainAudience(ctx, audience)
	}
	return sent
}

func (r *Relay) drainAudience(ctx context.Context, audience Audience) int {
	pending, err := r.repo.FetchUnsent(ctx, audience, r.batchSize)
	if err != nil {
		r.logger.Error("outbox fetch failed", zap.String("audience", string(audience)), zap.Error(err))
		return 0
	}

	sent := 0
	for _, n := range pending {
		if err := r.publisher.Publish(ctx, n); err != nil {
			r.metrics.ObserveOutbox("failed")
			r.logger.Error("outbox publish failed",
				zap.String("notification_id", n.ID.String()),
				zap.String("type", n.Type),
				zap.Error(err),
			)
			continue
		}

		ok, err := r.repo.MarkSent(ctx, audience, n.ID)
		if err != nil {
			r.logger.Error("failed to mark notification sent", zap.String("notification_id", n.ID.String()), zap.Error(err))
			continue
		}
		if ok {
			sent++
			r.metrics.ObserveOutbox("sent")
			r.logger.Debug("notification relayed", zap.String("notification_id", n.ID.String()), zap.String("type", n.Type))
		}
	}
	return sent
}
