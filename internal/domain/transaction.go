package domain

import (
	"time"

	"github.com/go-petr/pet-wallet/pkg/moneypkg"
	"github.com/google/uuid"
)

// TransactionKind tells whether a record credits or debits its account.
type TransactionKind string

// Transaction kinds.
const (
	KindCredit TransactionKind = "credit"
	KindDebit  TransactionKind = "debit"
)

// Valid reports whether k is a known kind.
func (k TransactionKind) Valid() bool {
	return k == KindCredit || k == KindDebit
}

// TransactionStatus is the lifecycle state of a record.
type TransactionStatus string

// Transaction statuses.
const (
	StatusPending TransactionStatus = "pending"
	StatusSuccess TransactionStatus = "success"
	StatusFailed  TransactionStatus = "failed"
)

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed:
		return true
	}

	return false
}

// Operation is the kind of money movement requested by the caller.
type Operation string

// Supported operations.
const (
	OperationFund     Operation = "fund"
	OperationWithdraw Operation = "withdraw"
	OperationTransfer Operation = "transfer"
)

// Transaction is an immutable ledger record explaining one balance change of AccountID.
//
// For a debit BalanceAfter = BalanceBefore - Amount - Fee,
// for a credit BalanceAfter = BalanceBefore + Amount.
type Transaction struct {
	ID              uuid.UUID         `json:"id"`
	AccountID       int64             `json:"account_id"`
	SenderWallet    string            `json:"sender_wallet"`
	RecipientWallet string            `json:"recipient_wallet"`
	Kind            TransactionKind   `json:"transaction_type"`
	Status          TransactionStatus `json:"transaction_status"`
	Operation       Operation         `json:"operation"`
	Amount          moneypkg.Money    `json:"amount"`
	Fee             moneypkg.Money    `json:"transaction_fee"`
	BalanceBefore   moneypkg.Money    `json:"balance_before"`
	BalanceAfter    moneypkg.Money    `json:"balance_after"`
	LinkID          uuid.NullUUID     `json:"link_id"`
	Description     string            `json:"description"`
	CreatedAt       time.Time         `json:"created_at"`
}

// BalanceUpdate sets the balance of an account read at Version.
type BalanceUpdate struct {
	AccountID  int64
	Version    int64
	NewBalance moneypkg.Money
}

// CommitBatch is the unit written atomically by the ledger store.
type CommitBatch struct {
	Updates []BalanceUpdate
	Records []Transaction
}

// OperationResult is the outcome of a fund or withdraw command.
type OperationResult struct {
	Transaction Transaction    `json:"transaction"`
	Balance     moneypkg.Money `json:"balance"`
}

// TransferResult summarizes a committed transfer for the sender.
type TransferResult struct {
	Status          TransactionStatus `json:"status"`
	TransactionID   uuid.UUID         `json:"transaction_id"`
	Amount          moneypkg.Money    `json:"amount"`
	Fee             moneypkg.Money    `json:"transaction_fee"`
	Balance         moneypkg.Money    `json:"balance"`
	RecipientWallet string            `json:"recipient_wallet"`
	RecipientOwner  string            `json:"recipient_owner"`
	Description     string            `json:"description"`

	Debit  Transaction `json:"-"`
	Credit Transaction `json:"-"`
}

// Stats aggregates the committed records of an account.
type Stats struct {
	TotalTransactions int64          `json:"total_transactions"`
	TotalCredit       moneypkg.Money `json:"total_credit"`
	TotalDebit        moneypkg.Money `json:"total_debit"`
	AverageAmount     moneypkg.Money `json:"avg_transaction_amount"`
}

// TransactionEvent is published after a record is committed.
type TransactionEvent struct {
	Type          string            `json:"event_type"`
	TransactionID uuid.UUID         `json:"transaction_id"`
	AccountID     int64             `json:"account_id"`
	Operation     Operation         `json:"operation"`
	Kind          TransactionKind   `json:"transaction_type"`
	Status        TransactionStatus `json:"transaction_status"`
	Amount        moneypkg.Money    `json:"amount"`
	Fee           moneypkg.Money    `json:"transaction_fee"`
	BalanceAfter  moneypkg.Money    `json:"balance_after"`
	CreatedAt     time.Time         `json:"created_at"`
}

// EventTransactionCompleted is the type of events about committed records.
const EventTransactionCompleted = "transaction.completed"

// NewTransactionEvent builds the completion event of a committed record.
func NewTransactionEvent(t Transaction) TransactionEvent {
	return TransactionEvent{
		Type:          EventTransactionCompleted,
		TransactionID: t.ID,
		AccountID:     t.AccountID,
		Operation:     t.Operation,
		Kind:          t.Kind,
		Status:        t.Status,
		Amount:        t.Amount,
		Fee:           t.Fee,
		BalanceAfter:  t.BalanceAfter,
		CreatedAt:     t.CreatedAt,
	}
}
