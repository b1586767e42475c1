package reschedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Insert fails with ErrPendingRequestExists when the appointment already
	// has a pending request.
	Insert(ctx context.Context, r Request) (*Request, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	// GetForUpdate locks the request row for the surrounding transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Request, error)
	GetPendingForAppointment(ctx context.Context, appointmentID uuid.UUID) (*Request, error)

	// TransitionStatus moves a pending request to a terminal status. It returns
	// ErrNotPending when the request already left pending.
	TransitionStatus(ctx context.Context, id uuid.UUID, to Status, respondedAt *time.Time) (*Request, error)

	ListOverduePending(ctx context.Context, now time.Time, limit int) ([]Request, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]Request, error)
}
