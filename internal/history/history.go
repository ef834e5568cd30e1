// Package history turns caller supplied history parameters into a validated
// filter, sort and page, and runs them against a ledger store.
package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-wallet/internal/domain"
)

// Paging defaults.
const (
	DefaultPage  = 1
	DefaultSize  = 10
	MaxSize      = 100
	DefaultOrder = "created_at:desc"
)

// aliases accepts camel case names for the allowed sort fields.
var aliases = map[string]domain.SortField{
	"createdAt":         domain.SortByCreatedAt,
	"transactionFee":    domain.SortByFee,
	"transactionType":   domain.SortByKind,
	"transactionStatus": domain.SortByStatus,
}

//go:generate mockgen -source history.go -destination history_mock.go -package history

// Finder is the read side of the ledger store used by history queries.
type Finder interface {
	Find(ctx context.Context, filter domain.TransactionFilter, order domain.Sort, page domain.PageRequest) ([]domain.Transaction, int64, error)
}

// Service runs history queries.
type Service struct {
	finder Finder
}

// New returns history Service.
func New(finder Finder) *Service {
	return &Service{finder: finder}
}

// Query returns the requested page of the account history.
//
// No matching records is an empty page, not an error.
func (s *Service) Query(ctx context.Context, accountID int64, params domain.HistoryParams) (domain.HistoryPage, error) {
	l := zerolog.Ctx(ctx)

	filter, err := BuildFilter(accountID, params)
	if err != nil {
		return domain.HistoryPage{}, err
	}

	order, err := ParseSort(params.SortBy)
	if err != nil {
		return domain.HistoryPage{}, err
	}

	page, err := BuildPage(params.Page, params.Size)
	if err != nil {
		return domain.HistoryPage{}, err
	}

	items, total, err := s.finder.Find(ctx, filter, order, page)
	if err != nil {
		l.Error().Err(err).Msg("history query failed")
		return domain.HistoryPage{}, err
	}

	if items == nil {
		items = []domain.Transaction{}
	}

	return domain.HistoryPage{
		Transactions:      items,
		CurrentPage:       page.Number,
		TotalPages:        TotalPages(total, page.Size),
		TotalTransactions: total,
		Limit:             page.Size,
	}, nil
}

// TotalPages returns ceil(total/size).
func TotalPages(total int64, size int) int {
	if size <= 0 {
		return 0
	}

	return int((total + int64(size) - 1) / int64(size))
}

// BuildPage applies defaults to a raw page number and size.
func BuildPage(number, size int) (domain.PageRequest, error) {
	if number < 0 || size < 0 {
		return domain.PageRequest{}, fmt.Errorf("%w: page and limit must not be negative", domain.ErrInvalidFilter)
	}

	if number == 0 {
		number = DefaultPage
	}

	if size == 0 {
		size = DefaultSize
	}

	if size > MaxSize {
		size = MaxSize
	}

	return domain.PageRequest{Number: number, Size: size}, nil
}

// ParseSort parses "field:asc" or "field:desc". The direction defaults to desc
// and an empty string sorts by creation time, newest first.
func ParseSort(raw string) (domain.Sort, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultOrder
	}

	name, dir, _ := strings.Cut(raw, ":")

	field := domain.SortField(name)
	if alias, ok := aliases[name]; ok {
		field = alias
	}

	if !field.Valid() {
		return domain.Sort{}, fmt.Errorf("%w: %q", domain.ErrInvalidSort, name)
	}

	switch strings.ToLower(dir) {
	case "", "desc":
		return domain.Sort{Field: field, Desc: true}, nil
	case "asc":
		return domain.Sort{Field: field}, nil
	default:
		return domain.Sort{}, fmt.Errorf("%w: direction %q", domain.ErrInvalidSort, dir)
	}
}

// BuildFilter validates the filter part of params.
func BuildFilter(accountID int64, params domain.HistoryParams) (domain.TransactionFilter, error) {
	f := domain.TransactionFilter{
		AccountID: accountID,
		Kind:      domain.TransactionKind(params.Kind),
		Status:    domain.TransactionStatus(params.Status),
		Wallet:    strings.TrimSpace(params.Wallet),
	}

	if f.Kind != "" && !f.Kind.Valid() {
		return f, fmt.Errorf("%w: transaction_type %q", domain.ErrInvalidFilter, params.Kind)
	}

	if f.Status != "" && !f.Status.Valid() {
		return f, fmt.Errorf("%w: transaction_status %q", domain.ErrInvalidFilter, params.Status)
	}

	if params.TransactionID != "" {
		id, err := uuid.Parse(params.TransactionID)
		if err != nil {
			return f, fmt.Errorf("%w: transaction_id %q", domain.ErrInvalidFilter, params.TransactionID)
		}

		f.TransactionID = uuid.NullUUID{UUID: id, Valid: true}
	}

	if params.StartDate != nil {
		f.From = params.StartDate.UTC()
	}

	if params.EndDate != nil {
		f.To = params.EndDate.UTC()
	}

	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return f, fmt.Errorf("%w: start_date is after end_date", domain.ErrInvalidFilter)
	}

	return f, nil
}
