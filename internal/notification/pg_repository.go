package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/wellness-reschedule/internal/db"
)

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(q db.DBTX) *PgRepository {
	return &PgRepository{db: q}
}

func tableFor(a Audience) (string, error) {
	switch a {
	case AudienceUser:
		return "user_notifications", nil
	case AudienceProvider:
		return "provider_notifications", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAudience, a)
	}
}

func scanNotification(row pgx.Row, audience Audience) (*Notification, error) {
	n := Notification{Audience: audience}
	err := row.Scan(
		&n.ID,
		&n.RecipientID,
		&n.Type,
		&n.Title,
		&n.Message,
		&n.ReferenceID,
		&n.ReferenceType,
		&n.ReadAt,
		&n.SentAt,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

const notificationColumns = `id, recipient_id, type, title, message, reference_id, reference_type, read_at, sent_at, created_at`

// Insert writes the row inside its own savepoint when the repository is bound
// to a transaction, so a failed insert leaves the caller's transaction usable.
func (r *PgRepository) Insert(ctx context.Context, n Notification) error {
	table, err := tableFor(n.Audience)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, recipient_id, type, title, message, reference_id, reference_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`, table)

	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query,
			n.ID, n.RecipientID, n.Type, n.Title, n.Message, n.ReferenceID, n.ReferenceType,
		); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
		return nil
	})
}

func (r *PgRepository) ListForRecipient(ctx context.Context, audience Audience, recipientID uuid.UUID, limit int) ([]Notification, error) {
	table, err := tableFor(audience)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, notificationColumns, table), recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	return collect(rows, audience)
}

func (r *PgRepository) MarkRead(ctx context.Context, audience Audience, id, recipientID uuid.UUID) error {
	table, err := tableFor(audience)
	if err != nil {
		return err
	}

	ct, err := r.db.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET read_at = COALESCE(read_at, now())
		WHERE id = $1 AND recipient_id = $2
	`, table), id, recipientID)
	if err != nil {
		return fmt.Errorf("mark %s read: %w", table, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *PgRepository) FetchUnsent(ctx context.Context, audience Audience, limit int) ([]Notification, error) {
	table, err := tableFor(audience)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE sent_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, notificationColumns, table), limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unsent %s: %w", table, err)
	}
	defer rows.Close()

	return collect(rows, audience)
}

func (r *PgRepository) MarkSent(ctx context.Context, audience Audience, id uuid.UUID) (bool, error) {
	table, err := tableFor(audience)
	if err != nil {
		return false, err
	}

	ct, err := r.db.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET sent_at = now()
		WHERE id = $1 AND sent_at IS NULL
	`, table), id)
	if err != nil {
		return false, fmt.Errorf("mark %s sent: %w", table, err)
	}
	return ct.RowsAffected() == 1, nil
}

func collect(rows pgx.Rows, audience Audience) ([]Notification, error) {
	var result []Notification
	for rows.Next() {
		n, err := scanNotification(rows, audience)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}
