package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	walletCols      = []string{"id", "user_id", "balance", "created_at", "updated_at"}
	transactionCols = []string{
		"id", "wallet_id", "user_id", "type", "amount", "balance_after",
		"category", "description", "reference_id", "reference_type", "created_at",
	}
)

func TestGetOrCreateForUpdateEnsuresThenLocks(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	user := uuid.New()
	walletID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(pgxmock.AnyArg(), user).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT .+ FROM wallets .+ FOR UPDATE").
		WithArgs(user).
		WillReturnRows(pgxmock.NewRows(walletCols).AddRow(walletID, user, decimal.NewFromInt(120), now, now))

	w, err := NewPgRepository(mock).GetOrCreateForUpdate(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, walletID, w.ID)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(120)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByUserIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	user := uuid.New()
	mock.ExpectQuery("SELECT .+ FROM wallets").WithArgs(user).WillReturnError(pgx.ErrNoRows)

	_, err = NewPgRepository(mock).GetByUserID(context.Background(), user)
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestUpdateBalanceMissingWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE wallets").
		WithArgs(id, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewPgRepository(mock).UpdateBalance(context.Background(), id, decimal.NewFromInt(5))
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestInsertTransactionReturnsStoredRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	in := Transaction{
		ID:            uuid.New(),
		WalletID:      uuid.New(),
		UserID:        uuid.New(),
		Type:          TypeCredit,
		Amount:        decimal.NewFromInt(400),
		BalanceAfter:  decimal.NewFromInt(400),
		Category:      CategoryAppointmentRefund,
		Description:   "Refund for declined reschedule",
		ReferenceID:   uuid.NewString(),
		ReferenceType: ReferenceTypeAppointment,
	}
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO wallet_transactions").
		WithArgs(in.ID, in.WalletID, in.UserID, in.Type, pgxmock.AnyArg(), pgxmock.AnyArg(),
			in.Category, in.Description, in.ReferenceID, in.ReferenceType).
		WillReturnRows(pgxmock.NewRows(transactionCols).AddRow(
			in.ID, in.WalletID, in.UserID, in.Type, in.Amount, in.BalanceAfter,
			in.Category, in.Description, in.ReferenceID, in.ReferenceType, now,
		))

	out, err := NewPgRepository(mock).InsertTransaction(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, now, out.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertTransactionDuplicateReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	anyArgs := make([]any, 10)
	for i := range anyArgs {
		anyArgs[i] = pgxmock.AnyArg()
	}
	mock.ExpectQuery("INSERT INTO wallet_transactions").
		WithArgs(anyArgs...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "wallet_transactions_reference_once"})

	_, err = NewPgRepository(mock).InsertTransaction(context.Background(), Transaction{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrDuplicateTransaction)
}

func TestSumByType(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	walletID := uuid.New()
	mock.ExpectQuery("SUM\\(amount\\)").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"credits", "debits"}).
			AddRow(decimal.NewFromInt(500), decimal.NewFromInt(120)))

	credits, debits, err := NewPgRepository(mock).SumByType(context.Background(), walletID)
	require.NoError(t, err)
	assert.True(t, credits.Equal(decimal.NewFromInt(500)))
	assert.True(t, debits.Equal(decimal.NewFromInt(120)))
}

func TestListTransactions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	user := uuid.New()
	walletID := uuid.New()
	now := time.Now().UTC()
	rows := pgxmock.NewRows(transactionCols)
	for i := 0; i < 3; i++ {
		rows.AddRow(uuid.New(), walletID, user, TypeCredit, decimal.NewFromInt(10), decimal.NewFromInt(int64(10*(i+1))),
			CategoryAppointmentRefund, "refund", uuid.NewString(), ReferenceTypeAppointment, now)
	}
	mock.ExpectQuery("FROM wallet_transactions").WithArgs(user, 20, 0).WillReturnRows(rows)

	txs, err := NewPgRepository(mock).ListTransactions(context.Background(), user, 20, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 3)
}
