//go:build integration

package ledgerrepo_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-wallet/internal/domain"
	"github.com/go-petr/pet-wallet/internal/integrationtest"
	"github.com/go-petr/pet-wallet/internal/ledgerrepo"
	"github.com/go-petr/pet-wallet/pkg/moneypkg"
)

var (
	dbSource string
	ctx      = context.Background()
)

func TestMain(m *testing.M) {
	source, terminate, err := integrationtest.StartPostgres(ctx, "file://../../db/migration")
	if err != nil {
		log.Fatal("cannot start postgres:", err)
	}

	dbSource = source

	code := m.Run()

	terminate()
	os.Exit(code)
}

var moneyComparer = cmp.Comparer(moneypkg.Money.Equal)

func TestCommit(t *testing.T) {
	db := integrationtest.SetupDB(t, dbSource)
	repo := ledgerrepo.NewRepoPGS(db)

	sender := integrationtest.SeedAccount(t, db, "100.00")
	recipient := integrationtest.SeedAccount(t, db, "0.00")

	now := time.Now().UTC().Truncate(time.Microsecond)
	link := uuid.NullUUID{UUID: uuid.New(), Valid: true}

	debit := domain.Transaction{
		ID:              uuid.New(),
		AccountID:       sender.ID,
		SenderWallet:    sender.WalletAddress,
		RecipientWallet: recipient.WalletAddress,
		Kind:            domain.KindDebit,
		Status:          domain.StatusSuccess,
		Operation:       domain.OperationTransfer,
		Amount:          moneypkg.MustParse("10.00"),
		Fee:             moneypkg.MustParse("0.10"),
		BalanceBefore:   moneypkg.MustParse("100.00"),
		BalanceAfter:    moneypkg.MustParse("89.90"),
		LinkID:          link,
		Description:     "transfer",
		CreatedAt:       now,
	}
	credit := debit
	credit.ID = uuid.New()
	credit.AccountID = recipient.ID
	credit.Kind = domain.KindCredit
	credit.Fee = moneypkg.Zero
	credit.BalanceBefore = moneypkg.Zero
	credit.BalanceAfter = moneypkg.MustParse("10.00")

	batch := domain.CommitBatch{
		Updates: []domain.BalanceUpdate{
			{AccountID: sender.ID, Version: sender.Version, NewBalance: debit.BalanceAfter},
			{AccountID: recipient.ID, Version: recipient.Version, NewBalance: credit.BalanceAfter},
		},
		Records: []domain.Transaction{debit, credit},
	}

	require.NoError(t, repo.Commit(ctx, batch))

	got, err := repo.GetTransaction(ctx, debit.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(debit, got, moneyComparer); diff != "" {
		t.Errorf("GetTransaction(ctx, %v) returned unexpected difference (-want +got):\n%s", debit.ID, diff)
	}

	bal, err := repo.GetBalance(ctx, sender.ID)
	require.NoError(t, err)
	require.Equal(t, "89.90", bal.String())

	// Replaying the batch carries stale versions and must change nothing.
	batch.Records = []domain.Transaction{integrationtest.Credit(sender, "1.00", now)}
	require.ErrorIs(t, repo.Commit(ctx, batch), domain.ErrConflict)

	bal, err = repo.GetBalance(ctx, recipient.ID)
	require.NoError(t, err)
	require.Equal(t, "10.00", bal.String())

	_, err = repo.GetTransaction(ctx, batch.Records[0].ID)
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestFind(t *testing.T) {
	db := integrationtest.SetupDB(t, dbSource)
	repo := ledgerrepo.NewRepoPGS(db)

	a := integrationtest.SeedAccount(t, db, "0.00")
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []domain.Transaction{
		integrationtest.Credit(a, "3.00", base),
		integrationtest.Credit(a, "1.00", base.Add(time.Hour)),
		integrationtest.Credit(a, "2.00", base.Add(2*time.Hour)),
		integrationtest.Credit(a, "1.00", base.Add(2*time.Hour)),
	}
	require.NoError(t, repo.Commit(ctx, domain.CommitBatch{Records: records}))

	ids := func(items []domain.Transaction) []uuid.UUID {
		out := make([]uuid.UUID, 0, len(items))
		for _, it := range items {
			out = append(out, it.ID)
		}

		return out
	}

	items, total, err := repo.Find(ctx,
		domain.TransactionFilter{AccountID: a.ID},
		domain.Sort{Field: domain.SortByCreatedAt, Desc: true},
		domain.PageRequest{Number: 1, Size: 10},
	)
	require.NoError(t, err)
	require.Equal(t, int64(4), total)
	require.Equal(t, []uuid.UUID{records[3].ID, records[2].ID, records[1].ID, records[0].ID}, ids(items))

	items, total, err = repo.Find(ctx,
		domain.TransactionFilter{AccountID: a.ID, From: base.Add(time.Hour), To: base.Add(2 * time.Hour)},
		domain.Sort{Field: domain.SortByAmount},
		domain.PageRequest{Number: 1, Size: 2},
	)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Equal(t, []uuid.UUID{records[1].ID, records[3].ID}, ids(items))

	items, total, err = repo.Find(ctx,
		domain.TransactionFilter{AccountID: a.ID, Wallet: a.WalletAddress, Kind: domain.KindDebit},
		domain.Sort{Field: domain.SortByCreatedAt},
		domain.PageRequest{Number: 1, Size: 10},
	)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, items)

	_, _, err = repo.Find(ctx, domain.TransactionFilter{AccountID: a.ID}, domain.Sort{Field: "balance; DROP TABLE accounts"}, domain.PageRequest{Number: 1, Size: 1})
	require.ErrorIs(t, err, domain.ErrInvalidSort)

	stats, err := repo.Aggregate(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, int64(4), stats.TotalTransactions)
	require.Equal(t, "7.00", stats.TotalCredit.String())
	require.Equal(t, "0.00", stats.TotalDebit.String())
	require.Equal(t, "1.75", stats.AverageAmount.String())
}
