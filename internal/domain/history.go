package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// SortField is a sortable record column. Only the constants below are accepted.
type SortField string

// Sortable fields.
const (
	SortByCreatedAt SortField = "created_at"
	SortByAmount    SortField = "amount"
	SortByFee       SortField = "transaction_fee"
	SortByKind      SortField = "transaction_type"
	SortByStatus    SortField = "transaction_status"
)

// SortFields lists every accepted sort field.
var SortFields = []SortField{
	SortByCreatedAt,
	SortByAmount,
	SortByFee,
	SortByKind,
	SortByStatus,
}

// Valid reports whether f is in the allow-list.
func (f SortField) Valid() bool {
	for _, sf := range SortFields {
		if sf == f {
			return true
		}
	}

	return false
}

// Sort orders records by a single field.
type Sort struct {
	Field SortField
	Desc  bool
}

// TransactionFilter selects records of a single account.
//
// Empty fields match everything. From and To bound CreatedAt inclusively.
type TransactionFilter struct {
	AccountID     int64
	Kind          TransactionKind
	Status        TransactionStatus
	Wallet        string
	TransactionID uuid.NullUUID
	From          time.Time
	To            time.Time
}

// PageRequest addresses a 1-indexed page.
type PageRequest struct {
	Number int
	Size   int
}

// Offset returns the number of records preceding the page. It saturates at
// math.MaxInt instead of overflowing for very large page numbers.
func (p PageRequest) Offset() int {
	if p.Number <= 1 || p.Size <= 0 {
		return 0
	}

	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}

	return (p.Number - 1) * p.Size
}

// HistoryParams holds the raw, caller supplied history query.
type HistoryParams struct {
	Page          int
	Size          int
	Kind          string
	Status        string
	Wallet        string
	TransactionID string
	StartDate     *time.Time
	EndDate       *time.Time
	SortBy        string
}

// HistoryPage is one page of an account history.
type HistoryPage struct {
	Transactions      []Transaction `json:"transactions"`
	CurrentPage       int           `json:"current_page"`
	TotalPages        int           `json:"total_pages"`
	TotalTransactions int64         `json:"total_transactions"`
	Limit             int           `json:"limit"`
}
