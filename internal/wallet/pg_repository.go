package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/hackgods/wellness-reschedule/internal/db"
)

const refundReferenceConstraint = "wallet_transactions_reference_once"

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(q db.DBTX) *PgRepository {
	return &PgRepository{db: q}
}

func scanWallet(row pgx.Row) (*Wallet, error) {
	var w Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID,
		&t.WalletID,
		&t.UserID,
		&t.Type,
		&t.Amount,
		&t.BalanceAfter,
		&t.Category,
		&t.Description,
		&t.ReferenceID,
		&t.ReferenceType,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PgRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, balance, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`, userID)
	return scanWallet(row)
}

func (r *PgRepository) GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO wallets (id, user_id, balance, created_at, updated_at)
		VALUES ($1, $2, 0, now(), now())
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New(), userID); err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, balance, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	w, err := scanWallet(row)
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	return w, nil
}

func (r *PgRepository) UpdateBalance(ctx context.Context, walletID uuid.UUID, balance decimal.Decimal) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE wallets
		SET balance = $2,
		    updated_at = now()
		WHERE id = $1
	`, walletID, balance)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return ErrWalletNotFound
	}
	return nil
}

func (r *PgRepository) InsertTransaction(ctx context.Context, t Transaction) (*Transaction, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO wallet_transactions (
			id, wallet_id, user_id, type, amount, balance_after,
			category, description, reference_id, reference_type, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		RETURNING id, wallet_id, user_id, type, amount, balance_after,
		          category, description, reference_id, reference_type, created_at
	`, t.ID, t.WalletID, t.UserID, t.Type, t.Amount, t.BalanceAfter,
		t.Category, t.Description, t.ReferenceID, t.ReferenceType)

	inserted, err := scanTransaction(row)
	if err != nil {
		if db.IsUniqueViolation(err, refundReferenceConstraint) {
			return nil, ErrDuplicateTransaction
		}
		return nil, fmt.Errorf("insert wallet transaction: %w", err)
	}
	return inserted, nil
}

func (r *PgRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, wallet_id, user_id, type, amount, balance_after,
		       category, description, reference_id, reference_type, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()

	var result []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func (r *PgRepository) SumByType(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	var credits, debits decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'credit'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'debit'), 0)
		FROM wallet_transactions
		WHERE wallet_id = $1
	`, walletID).Scan(&credits, &debits)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("sum wallet transactions: %w", err)
	}
	return credits, debits, nil
}
