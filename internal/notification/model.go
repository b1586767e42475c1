package notification

import (
	"time"

	"github.com/google/uuid"
)

// Audience selects the inbox a notification lands in.
type Audience string

const (
	AudienceUser     Audience = "user"
	AudienceProvider Audience = "provider"
)

func (a Audience) Valid() bool {
	return a == AudienceUser || a == AudienceProvider
}

const (
	TypeRescheduleRequest  = "reschedule_request"
	TypeRescheduleAccepted = "reschedule_accepted"
	TypeRescheduleDeclined = "reschedule_declined"
	TypeRescheduleExpired  = "reschedule_expired"
	TypeRefundIssued       = "refund_issued"
)

const ReferenceTypeReschedule = "reschedule_request"

// Message is what callers hand to the dispatcher.
type Message struct {
	RecipientID   uuid.UUID
	Type          string
	Title         string
	Message       string
	ReferenceID   string
	ReferenceType string
}

type Notification struct {
	ID            uuid.UUID
	Audience      Audience
	RecipientID   uuid.UUID
	Type          string
	Title         string
	Message       string
	ReferenceID   string
	ReferenceType string
	ReadAt        *time.Time
	SentAt        *time.Time
	CreatedAt     time.Time
}
