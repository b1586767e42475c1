package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeCredit TransactionType = "credit"
	TypeDebit  TransactionType = "debit"
)

const CategoryAppointmentRefund = "appointment_refund"

const ReferenceTypeAppointment = "appointment"

type Wallet struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction is an append-only ledger entry. BalanceAfter is the wallet
// balance at the instant the entry was written.
type Transaction struct {
	ID            uuid.UUID
	WalletID      uuid.UUID
	UserID        uuid.UUID
	Type          TransactionType
	Amount        decimal.Decimal
	BalanceAfter  decimal.Decimal
	Category      string
	Description   string
	ReferenceID   string
	ReferenceType string
	CreatedAt     time.Time
}

// AuditResult compares the stored balance with the one derived from the log.
type AuditResult struct {
	UserID         uuid.UUID
	StoredBalance  decimal.Decimal
	Credits        decimal.Decimal
	Debits         decimal.Decimal
	DerivedBalance decimal.Decimal
	Consistent     bool
}
