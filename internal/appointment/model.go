package appointment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPaid          PaymentStatus = "paid"
	PaymentRefundPending PaymentStatus = "refund_pending"
	PaymentRefunded      PaymentStatus = "refunded"
)

const (
	CancelledByUser = "user"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	ErrInvalidDate = errors.New("date must be formatted YYYY-MM-DD")
	ErrInvalidTime = errors.New("time must be formatted HH:MM")
)

type Appointment struct {
	ID                 uuid.UUID
	PatientID          *uuid.UUID
	ProviderID         *uuid.UUID
	ServiceID          string
	ScheduledDate      string
	ScheduledTime      string
	DurationMinutes    int
	ServicePrice       decimal.NullDecimal
	Status             Status
	PaymentStatus      PaymentStatus
	CancellationReason *string
	CancelledBy        *string
	RefundAmount       decimal.NullDecimal
	PaidBeforeCancel   bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Active reports whether the appointment can still be moved or cancelled.
func (a *Appointment) Active() bool {
	return a.Status == StatusPending || a.Status == StatusConfirmed
}

// RefundDue is the amount returned to the patient when the appointment is
// cancelled: the price snapshot taken at booking, or zero when unset.
func (a *Appointment) RefundDue() decimal.Decimal {
	if !a.ServicePrice.Valid {
		return decimal.Zero
	}
	return a.ServicePrice.Decimal
}

// ValidateSchedule checks the wire formats used for appointment dates and times.
func ValidateSchedule(date, clock string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	if _, err := time.Parse(TimeLayout, clock); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}
	return nil
}
