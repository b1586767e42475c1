package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/wellness-reschedule/internal/db"
)

type PgRepository struct {
	db db.DBTX
}

// NewPgRepository binds the repository to a pool or to a running transaction.
func NewPgRepository(q db.DBTX) *PgRepository {
	return &PgRepository{db: q}
}

const appointmentColumns = `
	id, patient_id, provider_id, service_id,
	scheduled_date::text, to_char(scheduled_time, 'HH24:MI'), duration_minutes,
	service_price, status, payment_status, cancellation_reason, cancelled_by,
	refund_amount, paid_before_cancel, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProviderID,
		&a.ServiceID,
		&a.ScheduledDate,
		&a.ScheduledTime,
		&a.DurationMinutes,
		&a.ServicePrice,
		&a.Status,
		&a.PaymentStatus,
		&a.CancellationReason,
		&a.CancelledBy,
		&a.RefundAmount,
		&a.PaidBeforeCancel,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateSchedule(ctx context.Context, id uuid.UUID, date, clock string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET scheduled_date = $2::date,
		    scheduled_time = $3::time,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'confirmed')
		RETURNING `+appointmentColumns, id, date, clock)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrAppointmentInactive
	}
	if err != nil {
		return nil, fmt.Errorf("update appointment schedule: %w", err)
	}
	return a, nil
}

func (r *PgRepository) CancelForRefund(ctx context.Context, id uuid.UUID, p CancelParams) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancelled_by = $2,
		    cancellation_reason = $3,
		    refund_amount = $4,
		    paid_before_cancel = (payment_status = 'paid'),
		    payment_status = 'refund_pending',
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'confirmed')
		RETURNING `+appointmentColumns, id, p.CancelledBy, p.Reason, p.RefundAmount)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrAppointmentInactive
	}
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}
	return a, nil
}

func (r *PgRepository) MarkRefunded(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET payment_status = 'refunded',
		    updated_at = now()
		WHERE id = $1
		  AND payment_status = 'refund_pending'
		RETURNING `+appointmentColumns, id)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrRefundNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("mark appointment refunded: %w", err)
	}
	return a, nil
}

func (r *PgRepository) ListRefundPending(ctx context.Context, limit int) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'cancelled'
		  AND payment_status = 'refund_pending'
		  AND paid_before_cancel
		  AND refund_amount > 0
		ORDER BY updated_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
