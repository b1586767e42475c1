package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/wellness-reschedule/internal/logging"
	"github.com/hackgods/wellness-reschedule/internal/metrics"
)

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)

// Entry describes one balance movement.
type Entry struct {
	UserID        uuid.UUID
	Amount        decimal.Decimal
	Category      string
	Description   string
	ReferenceID   string
	ReferenceType string
}

// Ledger is the only writer of wallet balances. It must be built over a
// repository bound to a transaction for Credit and Debit to be atomic.
type Ledger struct {
	repo    Repository
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewLedger(repo Repository, logger *zap.Logger, m *metrics.Metrics) *Ledger {
	return &Ledger{
		repo:    repo,
		logger:  logging.OrNop(logger),
		metrics: m,
	}
}

func (l *Ledger) Credit(ctx context.Context, e Entry) (*Transaction, error) {
	t, err := l.apply(ctx, TypeCredit, e)
	amount, _ := e.Amount.Float64()
	if err != nil {
		l.metrics.ObserveWalletCredit(e.Category, "error", amount)
		return nil, err
	}
	l.metrics.ObserveWalletCredit(e.Category, "ok", amount)
	l.logger.Info("wallet credited",
		zap.String("user_id", e.UserID.String()),
		zap.String("amount", e.Amount.StringFixed(2)),
		zap.String("balance_after", t.BalanceAfter.StringFixed(2)),
		zap.String("category", e.Category),
		zap.String("reference_id", e.ReferenceID),
	)
	return t, nil
}

func (l *Ledger) Debit(ctx context.Context, e Entry) (*Transaction, error) {
	t, err := l.apply(ctx, TypeDebit, e)
	if err != nil {
		return nil, err
	}
	l.logger.Info("wallet debited",
		zap.String("user_id", e.UserID.String()),
		zap.String("amount", e.Amount.StringFixed(2)),
		zap.String("balance_after", t.BalanceAfter.StringFixed(2)),
		zap.String("category", e.Category),
	)
	return t, nil
}

func (l *Ledger) apply(ctx context.Context, typ TransactionType, e Entry) (*Transaction, error) {
	if !e.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	w, err := l.repo.GetOrCreateForUpdate(ctx, e.UserID)
	if err != nil {
		return nil, err
	}

	newBalance := w.Balance.Add(e.Amount)
	if typ == TypeDebit {
		newBalance = w.Balance.Sub(e.Amount)
		if newBalance.IsNegative() {
			return nil, ErrInsufficientFunds
		}
	}

	if err := l.repo.UpdateBalance(ctx, w.ID, newBalance); err != nil {
		return nil, err
	}

	t, err := l.repo.InsertTransaction(ctx, Transaction{
		ID:            uuid.New(),
		WalletID:      w.ID,
		UserID:        e.UserID,
		Type:          typ,
		Amount:        e.Amount,
		BalanceAfter:  newBalance,
		Category:      e.Category,
		Description:   e.Description,
		ReferenceID:   e.ReferenceID,
		ReferenceType: e.ReferenceType,
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Balance returns the stored balance, zero for users without a wallet.
func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	w, err := l.repo.GetByUserID(ctx, userID)
	if errors.Is(err, ErrWalletNotFound) {
		return &Wallet{UserID: userID, Balance: decimal.Zero}, nil
	}
	return w, err
}

func (l *Ledger) Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return l.repo.ListTransactions(ctx, userID, limit, offset)
}

// Audit recomputes the balance from the transaction log.
func (l *Ledger) Audit(ctx context.Context, userID uuid.UUID) (*AuditResult, error) {
	w, err := l.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			return &AuditResult{UserID: userID, Consistent: true}, nil
		}
		return nil, err
	}

	credits, debits, err := l.repo.SumByType(ctx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("audit wallet %s: %w", w.ID, err)
	}

	derived := credits.Sub(debits)
	res := &AuditResult{
		UserID:         userID,
		StoredBalance:  w.Balance,
		Credits:        credits,
		Debits:         debits,
		DerivedBalance: derived,
		Consistent:     derived.Equal(w.Balance),
	}
	if !res.Consistent {
		l.logger.Error("wallet balance does not match ledger",
			zap.String("user_id", userID.String()),
			zap.String("stored", w.Balance.String()),
			zap.String("derived", derived.String()),
		)
	}
	return res, nil
}
