package ledgermem

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-wallet/internal/domain"
	"github.com/go-petr/pet-wallet/pkg/moneypkg"
	"github.com/go-petr/pet-wallet/pkg/randompkg"
)

func seedAccount(t *testing.T, s *Store) domain.Account {
	t.Helper()

	a, err := s.CreateAccount(context.Background(), domain.CreateAccountParams{
		Owner:         randompkg.Owner(),
		WalletAddress: randompkg.WalletAddress(),
	})
	require.NoError(t, err)

	return a
}

func credit(a domain.Account, amount string, at time.Time) domain.Transaction {
	m := moneypkg.MustParse(amount)

	return domain.Transaction{
		ID:              uuid.New(),
		AccountID:       a.ID,
		SenderWallet:    a.WalletAddress,
		RecipientWallet: a.WalletAddress,
		Kind:            domain.KindCredit,
		Status:          domain.StatusSuccess,
		Operation:       domain.OperationFund,
		Amount:          m,
		BalanceBefore:   a.Balance,
		BalanceAfter:    a.Balance.Add(m),
		CreatedAt:       at,
	}
}

func TestCreateAccount(t *testing.T) {
	s := New()
	ctx := context.Background()

	a := seedAccount(t, s)
	require.True(t, a.Balance.IsZero())
	require.NotZero(t, a.ID)

	_, err := s.CreateAccount(ctx, domain.CreateAccountParams{Owner: a.Owner, WalletAddress: randompkg.WalletAddress()})
	require.ErrorIs(t, err, domain.ErrAccountAlreadyExists)

	_, err = s.CreateAccount(ctx, domain.CreateAccountParams{Owner: randompkg.Owner(), WalletAddress: a.WalletAddress})
	require.ErrorIs(t, err, domain.ErrAccountAlreadyExists)

	got, err := s.GetAccountByWallet(ctx, a.WalletAddress)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)

	got, err = s.GetAccountByOwner(ctx, a.Owner)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)

	_, err = s.GetAccount(ctx, a.ID+100)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestCommit(t *testing.T) {
	ctx := context.Background()

	t.Run("AppliesAll", func(t *testing.T) {
		s := New()
		a := seedAccount(t, s)
		rec := credit(a, "10.00", time.Now())

		err := s.Commit(ctx, domain.CommitBatch{
			Updates: []domain.BalanceUpdate{{AccountID: a.ID, Version: a.Version, NewBalance: rec.BalanceAfter}},
			Records: []domain.Transaction{rec},
		})
		require.NoError(t, err)

		bal, err := s.GetBalance(ctx, a.ID)
		require.NoError(t, err)
		require.True(t, bal.Equal(moneypkg.MustParse("10.00")))

		got, err := s.GetTransaction(ctx, rec.ID)
		require.NoError(t, err)
		require.Equal(t, rec.ID, got.ID)

		updated, err := s.GetAccount(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, a.Version+1, updated.Version)
	})

	t.Run("StaleVersionChangesNothing", func(t *testing.T) {
		s := New()
		a := seedAccount(t, s)
		b := seedAccount(t, s)

		first := credit(b, "5.00", time.Now())
		require.NoError(t, s.Commit(ctx, domain.CommitBatch{
			Updates: []domain.BalanceUpdate{{AccountID: b.ID, Version: b.Version, NewBalance: first.BalanceAfter}},
			Records: []domain.Transaction{first},
		}))

		rec := credit(a, "1.00", time.Now())
		err := s.Commit(ctx, domain.CommitBatch{
			Updates: []domain.BalanceUpdate{
				{AccountID: a.ID, Version: a.Version, NewBalance: rec.BalanceAfter},
				{AccountID: b.ID, Version: b.Version, NewBalance: moneypkg.MustParse("99.00")},
			},
			Records: []domain.Transaction{rec},
		})
		require.ErrorIs(t, err, domain.ErrConflict)

		bal, err := s.GetBalance(ctx, a.ID)
		require.NoError(t, err)
		require.True(t, bal.IsZero())

		bal, err = s.GetBalance(ctx, b.ID)
		require.NoError(t, err)
		require.True(t, bal.Equal(moneypkg.MustParse("5.00")))

		_, err = s.GetTransaction(ctx, rec.ID)
		require.ErrorIs(t, err, domain.ErrTransactionNotFound)
	})

	t.Run("DuplicateRecordID", func(t *testing.T) {
		s := New()
		a := seedAccount(t, s)
		rec := credit(a, "1.00", time.Now())

		err := s.Commit(ctx, domain.CommitBatch{Records: []domain.Transaction{rec, rec}})
		require.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("UnknownAccount", func(t *testing.T) {
		s := New()

		err := s.Commit(ctx, domain.CommitBatch{
			Updates: []domain.BalanceUpdate{{AccountID: 7, NewBalance: moneypkg.Zero}},
		})
		require.True(t, errors.Is(err, domain.ErrAccountNotFound))
	})
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := seedAccount(t, s)
	other := seedAccount(t, s)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	amounts := []string{"3.00", "1.00", "2.00", "1.00"}

	var records []domain.Transaction

	for i, amount := range amounts {
		rec := credit(a, amount, base.Add(time.Duration(i)*time.Hour))
		records = append(records, rec)
	}

	records[3].CreatedAt = records[2].CreatedAt

	foreign := credit(other, "50.00", base)
	foreign.SenderWallet = a.WalletAddress

	require.NoError(t, s.Commit(ctx, domain.CommitBatch{Records: append(records, foreign)}))

	testCases := []struct {
		name      string
		filter    domain.TransactionFilter
		order     domain.Sort
		page      domain.PageRequest
		wantIDs   []uuid.UUID
		wantTotal int64
	}{
		{
			name:      "NewestFirst",
			filter:    domain.TransactionFilter{AccountID: a.ID},
			order:     domain.Sort{Field: domain.SortByCreatedAt, Desc: true},
			page:      domain.PageRequest{Number: 1, Size: 10},
			wantIDs:   []uuid.UUID{records[3].ID, records[2].ID, records[1].ID, records[0].ID},
			wantTotal: 4,
		},
		{
			name:      "AmountAscending",
			filter:    domain.TransactionFilter{AccountID: a.ID},
			order:     domain.Sort{Field: domain.SortByAmount},
			page:      domain.PageRequest{Number: 1, Size: 10},
			wantIDs:   []uuid.UUID{records[1].ID, records[3].ID, records[2].ID, records[0].ID},
			wantTotal: 4,
		},
		{
			name:      "SecondPage",
			filter:    domain.TransactionFilter{AccountID: a.ID},
			order:     domain.Sort{Field: domain.SortByCreatedAt},
			page:      domain.PageRequest{Number: 2, Size: 3},
			wantIDs:   []uuid.UUID{records[3].ID},
			wantTotal: 4,
		},
		{
			name:      "PastLastPage",
			filter:    domain.TransactionFilter{AccountID: a.ID},
			order:     domain.Sort{Field: domain.SortByCreatedAt},
			page:      domain.PageRequest{Number: 5, Size: 3},
			wantIDs:   []uuid.UUID{},
			wantTotal: 4,
		},
		{
			name:      "PageBeyondIntRange",
			filter:    domain.TransactionFilter{AccountID: a.ID},
			order:     domain.Sort{Field: domain.SortByCreatedAt},
			page:      domain.PageRequest{Number: math.MaxInt, Size: 100},
			wantIDs:   []uuid.UUID{},
			wantTotal: 4,
		},
		{
			name: "DateRangeInclusive",
			filter: domain.TransactionFilter{
				AccountID: a.ID,
				From:      base.Add(time.Hour),
				To:        base.Add(2 * time.Hour),
			},
			order:     domain.Sort{Field: domain.SortByCreatedAt},
			page:      domain.PageRequest{Number: 1, Size: 10},
			wantIDs:   []uuid.UUID{records[1].ID, records[2].ID, records[3].ID},
			wantTotal: 3,
		},
		{
			name:      "ByTransactionID",
			filter:    domain.TransactionFilter{AccountID: a.ID, TransactionID: uuid.NullUUID{UUID: records[2].ID, Valid: true}},
			order:     domain.Sort{Field: domain.SortByCreatedAt},
			page:      domain.PageRequest{Number: 1, Size: 10},
			wantIDs:   []uuid.UUID{records[2].ID},
			wantTotal: 1,
		},
		{
			name:      "NoMatches",
			filter:    domain.TransactionFilter{AccountID: a.ID, Kind: domain.KindDebit},
			order:     domain.Sort{Field: domain.SortByCreatedAt},
			page:      domain.PageRequest{Number: 1, Size: 10},
			wantIDs:   []uuid.UUID{},
			wantTotal: 0,
		},
		{
			name:      "OtherAccountViaWallet",
			filter:    domain.TransactionFilter{AccountID: other.ID, Wallet: a.WalletAddress},
			order:     domain.Sort{Field: domain.SortByCreatedAt},
			page:      domain.PageRequest{Number: 1, Size: 10},
			wantIDs:   []uuid.UUID{foreign.ID},
			wantTotal: 1,
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			items, total, err := s.Find(ctx, tc.filter, tc.order, tc.page)
			require.NoError(t, err)
			require.Equal(t, tc.wantTotal, total)

			gotIDs := make([]uuid.UUID, 0, len(items))
			for _, it := range items {
				gotIDs = append(gotIDs, it.ID)
			}

			require.Equal(t, tc.wantIDs, gotIDs)
		})
	}
}

func TestAggregate(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := seedAccount(t, s)

	stats, err := s.Aggregate(ctx, a.ID)
	require.NoError(t, err)
	require.Zero(t, stats.TotalTransactions)
	require.True(t, stats.AverageAmount.IsZero())

	in := credit(a, "100.00", time.Now())
	out := credit(a, "25.00", time.Now())
	out.Kind = domain.KindDebit
	extra := credit(a, "0.01", time.Now())

	require.NoError(t, s.Commit(ctx, domain.CommitBatch{Records: []domain.Transaction{in, out, extra}}))

	stats, err = s.Aggregate(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.TotalTransactions)
	require.Equal(t, "100.01", stats.TotalCredit.String())
	require.Equal(t, "25.00", stats.TotalDebit.String())
	require.Equal(t, "41.67", stats.AverageAmount.String())
}
