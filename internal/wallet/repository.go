package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrDuplicateTransaction = errors.New("wallet transaction already recorded for this reference")
)

// Repository persists wallets and their transaction log. Writes are only
// atomic when the repository is bound to a transaction.
type Repository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	// GetOrCreateForUpdate returns the user's wallet, creating an empty one
	// first if needed, and locks it for the surrounding transaction.
	GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	UpdateBalance(ctx context.Context, walletID uuid.UUID, balance decimal.Decimal) error
	InsertTransaction(ctx context.Context, t Transaction) (*Transaction, error)

	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error)
	SumByType(ctx context.Context, walletID uuid.UUID) (credits, debits decimal.Decimal, err error)
}
