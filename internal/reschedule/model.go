// Package reschedule implements provider-initiated reschedule proposals and
// the patient's accept/decline response, including the refund on decline.
package reschedule

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
	StatusExpired  Status = "expired"
)

func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusDeclined || s == StatusExpired
}

type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
)

func (a Action) Valid() bool {
	return a == ActionAccept || a == ActionDecline
}

const DeclineReason = "Declined reschedule request"

type Request struct {
	ID             uuid.UUID
	AppointmentID  uuid.UUID
	ProviderID     *uuid.UUID
	UserID         uuid.UUID
	OriginalDate   string
	OriginalTime   string
	ProposedDate   string
	ProposedTime   string
	Reason         *string
	Status         Status
	CreatedAt      time.Time
	ExpiresAt      time.Time
	UserResponseAt *time.Time
}

// Overdue reports whether a pending request has passed its deadline.
// A request is valid strictly before ExpiresAt.
func (r *Request) Overdue(now time.Time) bool {
	return r.Status == StatusPending && !now.Before(r.ExpiresAt)
}

type ProposeInput struct {
	AppointmentID uuid.UUID
	ProviderID    *uuid.UUID
	ProposedDate  string
	ProposedTime  string
	Reason        *string
}

type RespondInput struct {
	RequestID uuid.UUID
	UserID    uuid.UUID
	Action    Action
}

// Outcome is the result of a successful response.
type Outcome struct {
	Request      *Request
	Action       Action
	RefundAmount decimal.Decimal
	Refunded     bool
}
