// Package accountrepo manages repository layer of accounts.
package accountrepo

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-wallet/internal/domain"
	"github.com/go-petr/pet-wallet/pkg/dbpkg"
	"github.com/go-petr/pet-wallet/pkg/errorspkg"
	"github.com/go-petr/pet-wallet/pkg/moneypkg"
)

// RepoPGS facilitates account repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns account RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const accountColumns = `id, owner, wallet_address, balance, version, created_at`

func scanAccount(row interface{ Scan(...any) error }) (domain.Account, error) {
	var a domain.Account

	err := row.Scan(
		&a.ID,
		&a.Owner,
		&a.WalletAddress,
		&a.Balance,
		&a.Version,
		&a.CreatedAt,
	)

	return a, err
}

const createQuery = `
INSERT INTO
    accounts (owner, wallet_address)
VALUES
    ($1, $2)
RETURNING ` + accountColumns

// Create creates the account with zero balance and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateAccountParams) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, createQuery, arg.Owner, arg.WalletAddress))
	if err != nil {
		l.Error().Stack().Err(errors.WithStack(err)).Msgf("Create(ctx, %+v)", arg)

		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Constraint {
			case "accounts_owner_key", "accounts_wallet_address_key":
				return a, domain.ErrAccountAlreadyExists
			}
		}

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const getQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE id = $1
`

// Get returns the account with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Account, error) {
	return r.getBy(ctx, getQuery, id)
}

const getByWalletQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE wallet_address = $1
`

// GetByWallet returns the account owning the given wallet address.
func (r *RepoPGS) GetByWallet(ctx context.Context, wallet string) (domain.Account, error) {
	return r.getBy(ctx, getByWalletQuery, wallet)
}

const getByOwnerQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE owner = $1
`

// GetByOwner returns the account of the given owner.
func (r *RepoPGS) GetByOwner(ctx context.Context, owner string) (domain.Account, error) {
	return r.getBy(ctx, getByOwnerQuery, owner)
}

func (r *RepoPGS) getBy(ctx context.Context, query string, arg any) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, domain.ErrAccountNotFound
		}

		zerolog.Ctx(ctx).Error().Stack().Err(errors.WithStack(err)).Send()

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const updateBalanceQuery = `
UPDATE accounts
SET balance = $1, version = version + 1
WHERE id = $2 AND version = $3
`

// UpdateBalance overwrites the balance if the stored version still equals version.
//
// A mismatched version returns domain.ErrConflict and leaves the row untouched.
func (r *RepoPGS) UpdateBalance(ctx context.Context, id, version int64, balance moneypkg.Money) error {
	l := zerolog.Ctx(ctx)

	res, err := r.db.ExecContext(ctx, updateBalanceQuery, balance, id, version)
	if err != nil {
		l.Error().Stack().Err(errors.WithStack(err)).Int64("account_id", id).Send()

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == "accounts_balance_check" {
			return domain.ErrInsufficientFunds
		}

		return errorspkg.ErrInternal
	}

	n, err := res.RowsAffected()
	if err != nil {
		l.Error().Stack().Err(errors.WithStack(err)).Send()
		return errorspkg.ErrInternal
	}

	if n == 0 {
		l.Warn().Int64("account_id", id).Int64("version", version).Msg("stale account version")
		return domain.ErrConflict
	}

	return nil
}
