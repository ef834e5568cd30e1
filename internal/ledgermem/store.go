// Package ledgermem is an in-process ledger store.
//
// It honours the same contract as the Postgres store: balances and records of a
// commit become visible together, and a balance update carrying a stale version
// fails the whole commit with domain.ErrConflict.
package ledgermem

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/go-petr/pet-wallet/internal/domain"
	"github.com/go-petr/pet-wallet/pkg/moneypkg"
)

// Store keeps accounts and the append-only transaction log in memory.
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	accounts map[int64]domain.Account
	byWallet map[string]int64
	byOwner  map[string]int64
	records  []domain.Transaction
	byID     map[uuid.UUID]int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[int64]domain.Account),
		byWallet: make(map[string]int64),
		byOwner:  make(map[string]int64),
		byID:     make(map[uuid.UUID]int),
	}
}

// CreateAccount opens an account with zero balance.
func (s *Store) CreateAccount(ctx context.Context, arg domain.CreateAccountParams) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byOwner[arg.Owner]; ok {
		return domain.Account{}, domain.ErrAccountAlreadyExists
	}

	if _, ok := s.byWallet[arg.WalletAddress]; ok {
		return domain.Account{}, domain.ErrAccountAlreadyExists
	}

	s.nextID++

	a := domain.Account{
		ID:            s.nextID,
		Owner:         arg.Owner,
		WalletAddress: arg.WalletAddress,
		Balance:       moneypkg.Zero,
		CreatedAt:     time.Now().UTC(),
	}

	s.accounts[a.ID] = a
	s.byWallet[a.WalletAddress] = a.ID
	s.byOwner[a.Owner] = a.ID

	return a, nil
}

// GetAccount returns the account with the given id.
func (s *Store) GetAccount(ctx context.Context, id int64) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}

	return a, nil
}

// GetAccountByWallet returns the account owning wallet.
func (s *Store) GetAccountByWallet(ctx context.Context, wallet string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byWallet[wallet]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}

	return s.accounts[id], nil
}

// GetAccountByOwner returns the account of owner.
func (s *Store) GetAccountByOwner(ctx context.Context, owner string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byOwner[owner]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}

	return s.accounts[id], nil
}

// GetBalance returns the committed balance of the account.
func (s *Store) GetBalance(ctx context.Context, id int64) (moneypkg.Money, error) {
	a, err := s.GetAccount(ctx, id)
	if err != nil {
		return moneypkg.Zero, err
	}

	return a.Balance, nil
}

// Commit applies every balance update and appends every record, or nothing.
func (s *Store) Commit(ctx context.Context, batch domain.CommitBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range batch.Updates {
		a, ok := s.accounts[u.AccountID]
		if !ok {
			return domain.ErrAccountNotFound
		}

		if a.Version != u.Version {
			return domain.ErrConflict
		}
	}

	seen := make(map[uuid.UUID]struct{}, len(batch.Records))

	for _, r := range batch.Records {
		if _, ok := s.byID[r.ID]; ok {
			return domain.ErrConflict
		}

		if _, ok := seen[r.ID]; ok {
			return domain.ErrConflict
		}

		seen[r.ID] = struct{}{}
	}

	for _, u := range batch.Updates {
		a := s.accounts[u.AccountID]
		a.Balance = u.NewBalance
		a.Version++
		s.accounts[u.AccountID] = a
	}

	for _, r := range batch.Records {
		s.byID[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}

	return nil
}

// GetTransaction returns the record with the given id.
func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}

	return s.records[i], nil
}

// Find returns the requested page of records matching filter and their total count.
func (s *Store) Find(ctx context.Context, filter domain.TransactionFilter, order domain.Sort, page domain.PageRequest) ([]domain.Transaction, int64, error) {
	s.mu.RLock()

	matched := make([]domain.Transaction, 0)

	for _, r := range s.records {
		if matches(r, filter) {
			matched = append(matched, r)
		}
	}

	s.mu.RUnlock()

	// matched is in commit order, a stable sort keeps it as the tie breaker.
	sort.SliceStable(matched, func(i, j int) bool {
		c := compare(matched[i], matched[j], order.Field)
		if order.Desc {
			return c > 0
		}

		return c < 0
	})

	if order.Desc {
		reverseTies(matched, order.Field)
	}

	total := int64(len(matched))

	start := page.Offset()
	if start < 0 || start >= len(matched) {
		return []domain.Transaction{}, total, nil
	}

	end := start + page.Size
	if page.Size <= 0 || end > len(matched) {
		end = len(matched)
	}

	items := make([]domain.Transaction, end-start)
	copy(items, matched[start:end])

	return items, total, nil
}

// Aggregate summarizes all committed records of the account.
func (s *Store) Aggregate(ctx context.Context, accountID int64) (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		stats domain.Stats
		sum   = moneypkg.Zero
	)

	for _, r := range s.records {
		if r.AccountID != accountID {
			continue
		}

		stats.TotalTransactions++
		sum = sum.Add(r.Amount)

		switch r.Kind {
		case domain.KindCredit:
			stats.TotalCredit = stats.TotalCredit.Add(r.Amount)
		case domain.KindDebit:
			stats.TotalDebit = stats.TotalDebit.Add(r.Amount)
		}
	}

	if stats.TotalTransactions > 0 {
		stats.AverageAmount = sum.Div(stats.TotalTransactions)
	}

	return stats, nil
}

func matches(r domain.Transaction, f domain.TransactionFilter) bool {
	if r.AccountID != f.AccountID {
		return false
	}

	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}

	if f.Status != "" && r.Status != f.Status {
		return false
	}

	if f.Wallet != "" && r.SenderWallet != f.Wallet && r.RecipientWallet != f.Wallet {
		return false
	}

	if f.TransactionID.Valid && r.ID != f.TransactionID.UUID {
		return false
	}

	if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
		return false
	}

	if !f.To.IsZero() && r.CreatedAt.After(f.To) {
		return false
	}

	return true
}

func compare(a, b domain.Transaction, field domain.SortField) int {
	switch field {
	case domain.SortByAmount:
		return a.Amount.Cmp(b.Amount)
	case domain.SortByFee:
		return a.Fee.Cmp(b.Fee)
	case domain.SortByKind:
		return strings.Compare(string(a.Kind), string(b.Kind))
	case domain.SortByStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

// reverseTies flips runs of equal keys so that newer records come first,
// matching "ORDER BY field DESC, seq DESC".
func reverseTies(items []domain.Transaction, field domain.SortField) {
	for i := 0; i < len(items); {
		j := i + 1
		for j < len(items) && compare(items[i], items[j], field) == 0 {
			j++
		}

		for l, r := i, j-1; l < r; l, r = l+1, r-1 {
			items[l], items[r] = items[r], items[l]
		}

		i = j
	}
}
