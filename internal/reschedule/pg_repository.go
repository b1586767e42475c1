package reschedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/wellness-reschedule/internal/db"
)

const onePendingConstraint = "reschedule_requests_one_pending"

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(q db.DBTX) *PgRepository {
	return &PgRepository{db: q}
}

const requestColumns = `
	id, appointment_id, provider_id, user_id,
	original_date::text, to_char(original_time, 'HH24:MI'),
	proposed_date::text, to_char(proposed_time, 'HH24:MI'),
	reason, status, created_at, expires_at, user_response_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	err := row.Scan(
		&r.ID,
		&r.AppointmentID,
		&r.ProviderID,
		&r.UserID,
		&r.OriginalDate,
		&r.OriginalTime,
		&r.ProposedDate,
		&r.ProposedTime,
		&r.Reason,
		&r.Status,
		&r.CreatedAt,
		&r.ExpiresAt,
		&r.UserResponseAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (p *PgRepository) Insert(ctx context.Context, r Request) (*Request, error) {
	row := p.db.QueryRow(ctx, `
		INSERT INTO reschedule_requests (
			id, appointment_id, provider_id, user_id,
			original_date, original_time, proposed_date, proposed_time,
			reason, status, created_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5::date, $6::time, $7::date, $8::time, $9, 'pending', $10, $11)
		RETURNING `+requestColumns,
		r.ID, r.AppointmentID, r.ProviderID, r.UserID,
		r.OriginalDate, r.OriginalTime, r.ProposedDate, r.ProposedTime,
		r.Reason, r.CreatedAt, r.ExpiresAt,
	)

	created, err := scanRequest(row)
	if err != nil {
		if db.IsUniqueViolation(err, onePendingConstraint) {
			return nil, ErrPendingRequestExists
		}
		return nil, fmt.Errorf("insert reschedule request: %w", err)
	}
	return created, nil
}

func (p *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	row := p.db.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM reschedule_requests
		WHERE id = $1
	`, id)
	return scanRequest(row)
}

func (p *PgRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Request, error) {
	row := p.db.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM reschedule_requests
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanRequest(row)
}

func (p *PgRepository) GetPendingForAppointment(ctx context.Context, appointmentID uuid.UUID) (*Request, error) {
	row := p.db.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM reschedule_requests
		WHERE appointment_id = $1
		  AND status = 'pending'
		FOR UPDATE
	`, appointmentID)
	return scanRequest(row)
}

func (p *PgRepository) TransitionStatus(ctx context.Context, id uuid.UUID, to Status, respondedAt *time.Time) (*Request, error) {
	if !to.Terminal() {
		return nil, fmt.Errorf("%w: cannot move request to %q", ErrInvalidArgument, to)
	}

	row := p.db.QueryRow(ctx, `
		UPDATE reschedule_requests
		SET status = $2,
		    user_response_at = COALESCE($3, user_response_at)
		WHERE id = $1
		  AND status = 'pending'
		RETURNING `+requestColumns, id, to, respondedAt)

	r, err := scanRequest(row)
	if errors.Is(err, ErrRequestNotFound) {
		return nil, ErrNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("transition reschedule request: %w", err)
	}
	return r, nil
}

func (p *PgRepository) ListOverduePending(ctx context.Context, now time.Time, limit int) ([]Request, error) {
	rows, err := p.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM reschedule_requests
		WHERE status = 'pending'
		  AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue reschedule requests: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

func (p *PgRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]Request, error) {
	rows, err := p.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM reschedule_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list reschedule requests: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows pgx.Rows) ([]Request, error) {
	var result []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}
