package notification

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrUnknownAudience      = errors.New("unknown notification audience")
)

// Repository stores the user and provider inboxes. Unsent rows double as the
// outbox drained by the Relay.
type Repository interface {
	Insert(ctx context.Context, n Notification) error
	ListForRecipient(ctx context.Context, audience Audience, recipientID uuid.UUID, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, audience Audience, id, recipientID uuid.UUID) error

	FetchUnsent(ctx context.Context, audience Audience, limit int) ([]Notification, error)
	// MarkSent reports false when the row was already marked by another relay.
	MarkSent(ctx context.Context, audience Audience, id uuid.UUID) (bool, error)
}
