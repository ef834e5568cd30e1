// Package integrationtest provides db helpers used in integration tests.
package integrationtest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres driver
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/go-petr/pet-wallet/internal/domain"
	"github.com/go-petr/pet-wallet/pkg/dbpkg"
	"github.com/go-petr/pet-wallet/pkg/moneypkg"
	"github.com/go-petr/pet-wallet/pkg/randompkg"
)

// Driver is the database/sql driver name used by integration tests.
const Driver = "postgres"

// StartPostgres runs a disposable postgres container and applies the migrations
// found at migrationURL. It returns the connection string and a terminate func.
//
// It is meant to be called from TestMain, hence no *testing.T.
func StartPostgres(ctx context.Context, migrationURL string) (string, func(), error) {
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("wallet"),
		tcpostgres.WithUsername("wallet"),
		tcpostgres.WithPassword("wallet"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return "", nil, fmt.Errorf("start postgres container: %w", err)
	}

	terminate := func() {
		_ = container.Terminate(context.Background())
	}

	source, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		return "", nil, fmt.Errorf("container connection string: %w", err)
	}

	db, err := dbpkg.Setup(Driver, source)
	if err != nil {
		terminate()
		return "", nil, err
	}
	defer db.Close()

	if err := dbpkg.Migrate(db, migrationURL); err != nil {
		terminate()
		return "", nil, fmt.Errorf("migrate: %w", err)
	}

	return source, terminate, nil
}

// Flush flushes all db tables without droping.
func Flush(t *testing.T, db *sql.DB) {
	t.Helper()

	var tables string

	const query = `
	SELECT string_agg(table_name, ', ')
	FROM information_schema.tables
	WHERE table_schema='public' AND table_name <> 'schema_migrations';`

	if err := db.QueryRow(query).Scan(&tables); err != nil {
		t.Fatalf("db cleanup failed. err: %v", err)
	}

	if _, err := db.Exec(`TRUNCATE TABLE ` + tables + " CASCADE"); err != nil {
		t.Fatalf("db cleanup failed. err: %v", err)
	}
}

// SetupDB sets up connection with database for testing and then cleans it.
func SetupDB(t *testing.T, source string) *sql.DB {
	t.Helper()

	db, err := dbpkg.Setup(Driver, source)
	if err != nil {
		t.Fatalf("db initialization failed. err: %v", err)
	}

	t.Cleanup(func() {
		Flush(t, db)

		if err := db.Close(); err != nil {
			t.Fatalf("db cleanup failed. err: %v", err)
		}
	})

	return db
}

// SetupTX sets up a database transaction to be used in tests.
//
// Once the tests are done it will rollback the transaction.
func SetupTX(t *testing.T, source string) *sql.Tx {
	t.Helper()

	db, err := dbpkg.Setup(Driver, source)
	if err != nil {
		t.Fatalf("db initialization failed. err: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("db.Begin() failed: %v", err)
	}

	t.Cleanup(func() {
		if err := tx.Rollback(); err != nil {
			t.Fatalf("tx.Rollback() failed: %v", err)
		}
		if err := db.Close(); err != nil {
			t.Fatalf("db.Close() failed: %v", err)
		}
	})

	return tx
}

const seedAccountQuery = `
INSERT INTO accounts (owner, wallet_address, balance)
VALUES ($1, $2, $3)
RETURNING id, owner, wallet_address, balance, version, created_at
`

// SeedAccount inserts a random account holding balance.
func SeedAccount(t *testing.T, db dbpkg.SQLInterface, balance string) domain.Account {
	t.Helper()

	var a domain.Account

	row := db.QueryRowContext(context.Background(), seedAccountQuery,
		randompkg.Owner(),
		randompkg.WalletAddress(),
		balance,
	)

	if err := row.Scan(&a.ID, &a.Owner, &a.WalletAddress, &a.Balance, &a.Version, &a.CreatedAt); err != nil {
		t.Fatalf("SeedAccount(%q) failed: %v", balance, err)
	}

	return a
}

// Credit builds a successful fund record for a, amount on top of its balance.
func Credit(a domain.Account, amount string, at time.Time) domain.Transaction {
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
		Fee:             moneypkg.Zero,
		BalanceBefore:   a.Balance,
		BalanceAfter:    a.Balance.Add(m),
		Description:     "wallet funded",
		CreatedAt:       at.UTC().Truncate(time.Microsecond),
	}
}
