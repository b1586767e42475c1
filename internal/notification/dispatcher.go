package notification

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/wellness-reschedule/internal/logging"
	"github.com/hackgods/wellness-reschedule/internal/metrics"
)

// Dispatcher writes inbox rows. Delivery is best-effort: failures are logged
// and counted, never returned to the caller.
type Dispatcher struct {
	repo    Repository
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewDispatcher(repo Repository, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		repo:    repo,
		logger:  logging.OrNop(logger),
		metrics: m,
	}
}

func (d *Dispatcher) NotifyUser(ctx context.Context, msg Message) {
	d.dispatch(ctx, AudienceUser, msg)
}

func (d *Dispatcher) NotifyProvider(ctx context.Context, msg Message) {
	d.dispatch(ctx, AudienceProvider, msg)
}

func (d *Dispatcher) dispatch(ctx context.Context, audience Audience, msg Message) {
	if msg.RecipientID == uuid.Nil {
		d.logger.Debug("notification skipped, no recipient",
			zap.String("audience", string(audience)),
			zap.String("type", msg.Type),
		)
		d.metrics.ObserveNotification(string(audience), "skipped")
		return
	}

	err := d.repo.Insert(ctx, Notification{
		ID:            uuid.New(),
		Audience:      audience,
		RecipientID:   msg.RecipientID,
		Type:          msg.Type,
		Title:         msg.Title,
		Message:       msg.Message,
		ReferenceID:   msg.ReferenceID,
		ReferenceType: msg.ReferenceType,
	})
	if err != nil {
		d.logger.Warn("notification insert failed",
			zap.String("audience", string(audience)),
			zap.String("recipient_id", msg.RecipientID.String()),
			zap.String("type", msg.Type),
			zap.Error(err),
		)
		d.metrics.ObserveNotification(string(audience), "failed")
		return
	}
	d.metrics.ObserveNotification(string(audience), "created")
}
