package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrAppointmentInactive = errors.New("appointment is no longer active")
	ErrRefundNotPending    = errors.New("appointment refund is not pending")
)

type CancelParams struct {
	Reason       string
	CancelledBy  string
	RefundAmount decimal.Decimal
}

// Repository is the appointment store. Appointments are created at checkout
// and never deleted; this interface only covers the lifecycle mutations.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetForUpdate locks the row for the rest of the surrounding transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// UpdateSchedule moves an active appointment; status and payment are untouched.
	UpdateSchedule(ctx context.Context, id uuid.UUID, date, clock string) (*Appointment, error)
	// CancelForRefund cancels an active appointment and moves its payment to
	// refund_pending, remembering whether it had been paid.
	CancelForRefund(ctx context.Context, id uuid.UUID, p CancelParams) (*Appointment, error)
	// MarkRefunded completes a pending refund.
	MarkRefunded(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListRefundPending lists paid cancellations whose wallet credit never landed.
	ListRefundPending(ctx context.Context, limit int) ([]Appointment, error)
}
