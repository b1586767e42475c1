package reschedule

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/wellness-reschedule/internal/appointment"
	"github.com/hackgods/wellness-reschedule/internal/db"
	"github.com/hackgods/wellness-reschedule/internal/notification"
	"github.com/hackgods/wellness-reschedule/internal/slot"
	"github.com/hackgods/wellness-reschedule/internal/wallet"
)

// Tx exposes every store the workflow touches, bound to one unit of work.
type Tx interface {
	Appointments() appointment.Repository
	Slots() slot.Reconciler
	Wallets() wallet.Repository
	Requests() Repository
	Notifications() notification.Repository

	// Savepoint runs fn in a nested unit. Its writes are discarded when fn
	// fails and the enclosing unit stays usable.
	Savepoint(ctx context.Context, fn func(Tx) error) error
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

// PgTxRunner runs each unit of work in one Postgres transaction.
type PgTxRunner struct {
	starter db.TxStarter
}

func NewPgTxRunner(starter db.TxStarter) *PgTxRunner {
	return &PgTxRunner{starter: starter}
}

func (r *PgTxRunner) InTx(ctx context.Context, fn func(Tx) error) error {
	return db.WithTx(ctx, r.starter, func(tx pgx.Tx) error {
		return fn(pgTx{q: tx})
	})
}

type pgTx struct {
	q db.DBTX
}

func (t pgTx) Appointments() appointment.Repository { return appointment.NewPgRepository(t.q) }
func (t pgTx) Slots() slot.Reconciler { return slot.NewPgReconciler(t.q) }
func (t pgTx) Wallets() wallet.Repository { return wallet.NewPgRepository(t.q) }
func (t pgTx) Requests() Repository { return NewPgRepository(t.q) }
func (t pgTx) Notifications() notification.Repository { return notification.NewPgRepository(t.q) }

func (t pgTx) Savepoint(ctx context.Context, fn func(Tx) error) error {
	return db.WithTx(ctx, t.q, func(sp pgx.Tx) error {
		return fn(pgTx{q: sp})
	})
}
