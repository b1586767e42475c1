// Package slot keeps the calendar placeholder of an appointment in step with
// the appointment's schedule.
package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/wellness-reschedule/internal/db"
)

type BookingSlot struct {
	AppointmentID uuid.UUID
	SlotDate      string
	StartTime     string
	UpdatedAt     time.Time
}

var ErrSlotNotFound = errors.New("booking slot not found")

// Reconciler is the only writer of booking_slots outside of checkout.
type Reconciler interface {
	SyncSlotToAppointment(ctx context.Context, appointmentID uuid.UUID, date, clock string) error
	RemoveSlot(ctx context.Context, appointmentID uuid.UUID) error
	GetSlot(ctx context.Context, appointmentID uuid.UUID) (*BookingSlot, error)
}

type PgReconciler struct {
	db db.DBTX
}

func NewPgReconciler(q db.DBTX) *PgReconciler {
	return &PgReconciler{db: q}
}

// SyncSlotToAppointment upserts the slot so it mirrors the given schedule.
func (r *PgReconciler) SyncSlotToAppointment(ctx context.Context, appointmentID uuid.UUID, date, clock string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO booking_slots (appointment_id, slot_date, start_time, created_at, updated_at)
		VALUES ($1, $2::date, $3::time, now(), now())
		ON CONFLICT (appointment_id) DO UPDATE
		SET slot_date = EXCLUDED.slot_date,
		    start_time = EXCLUDED.start_time,
		    updated_at = now()
	`, appointmentID, date, clock)
	if err != nil {
		return fmt.Errorf("sync booking slot: %w", err)
	}
	return nil
}

// RemoveSlot deletes the slot; removing a missing slot is not an error.
func (r *PgReconciler) RemoveSlot(ctx context.Context, appointmentID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM booking_slots WHERE appointment_id = $1`, appointmentID); err != nil {
		return fmt.Errorf("remove booking slot: %w", err)
	}
	return nil
}

func (r *PgReconciler) GetSlot(ctx context.Context, appointmentID uuid.UUID) (*BookingSlot, error) {
	var s BookingSlot
	err := r.db.QueryRow(ctx, `
		SELECT appointment_id, slot_date::text, to_char(start_time, 'HH24:MI'), updated_at
		FROM booking_slots
		WHERE appointment_id = $1
	`, appointmentID).Scan(&s.AppointmentID, &s.SlotDate, &s.StartTime, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("get booking slot: %w", err)
	}
	return &s, nil
}
