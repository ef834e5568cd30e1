// Package ledgerrepo is the Postgres ledger store: accounts plus the
// append-only transactions table.
package ledgerrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-wallet/internal/accountrepo"
	"github.com/go-petr/pet-wallet/internal/domain"
	"github.com/go-petr/pet-wallet/pkg/dbpkg"
	"github.com/go-petr/pet-wallet/pkg/errorspkg"
	"github.com/go-petr/pet-wallet/pkg/moneypkg"
)

// RepoPGS facilitates ledger repository layer logic.
type RepoPGS struct {
	db       dbpkg.SQLInterface
	conn     *sql.DB
	accounts *accountrepo.RepoPGS
}

// NewTxRepoPGS returns ledger RepoPGS bound to an open transaction. It cannot Commit.
func NewTxRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db:       db,
		accounts: accountrepo.NewRepoPGS(db),
	}
}

// NewRepoPGS returns ledger RepoPGS wiht connection to start transactions.
func NewRepoPGS(db *sql.DB) *RepoPGS {
	return &RepoPGS{
		db:       db,
		conn:     db,
		accounts: accountrepo.NewRepoPGS(db),
	}
}

// CreateAccount opens an account with zero balance.
func (r *RepoPGS) CreateAccount(ctx context.Context, arg domain.CreateAccountParams) (domain.Account, error) {
	return r.accounts.Create(ctx, arg)
}

// GetAccount returns the account with the given id.
func (r *RepoPGS) GetAccount(ctx context.Context, id int64) (domain.Account, error) {
	return r.accounts.Get(ctx, id)
}

// GetAccountByWallet returns the account owning wallet.
func (r *RepoPGS) GetAccountByWallet(ctx context.Context, wallet string) (domain.Account, error) {
	return r.accounts.GetByWallet(ctx, wallet)
}

// GetAccountByOwner returns the account of owner.
func (r *RepoPGS) GetAccountByOwner(ctx context.Context, owner string) (domain.Account, error) {
	return r.accounts.GetByOwner(ctx, owner)
}

// GetBalance returns the committed balance of the account.
func (r *RepoPGS) GetBalance(ctx context.Context, id int64) (moneypkg.Money, error) {
	a, err := r.accounts.Get(ctx, id)
	if err != nil {
		return moneypkg.Zero, err
	}

	return a.Balance, nil
}

// Commit applies every balance update and inserts every record in one db transaction.
func (r *RepoPGS) Commit(ctx context.Context, batch domain.CommitBatch) error {
	l := zerolog.Ctx(ctx)

	if r.conn == nil {
		l.Error().Msg("Commit called on a transaction bound repo")
		return errorspkg.ErrInternal
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Stack().Err(errors.WithStack(err)).Send()
		return errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			l.Error().Stack().Err(errors.WithStack(err)).Send()
		}
	}()

	txRepo := NewTxRepoPGS(tx)

	for _, u := range batch.Updates {
		if err := txRepo.accounts.UpdateBalance(ctx, u.AccountID, u.Version, u.NewBalance); err != nil {
			return err
		}
	}

	for _, rec := range batch.Records {
		if err := txRepo.insert(ctx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		l.Error().Stack().Err(errors.WithStack(err)).Send()
		return errorspkg.ErrInternal
	}

	return nil
}

const transactionColumns = `id, account_id, sender_wallet, recipient_wallet,
	transaction_type, transaction_status, operation, amount, transaction_fee,
	balance_before, balance_after, link_id, description, created_at`

const insertQuery = `
INSERT INTO transactions (` + transactionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`

func (r *RepoPGS) insert(ctx context.Context, t domain.Transaction) error {
	_, err := r.db.ExecContext(ctx, insertQuery,
		t.ID,
		t.AccountID,
		t.SenderWallet,
		t.RecipientWallet,
		t.Kind,
		t.Status,
		t.Operation,
		t.Amount,
		t.Fee,
		t.BalanceBefore,
		t.BalanceAfter,
		t.LinkID,
		t.Description,
		t.CreatedAt,
	)
	if err != nil {
		zerolog.Ctx(ctx).Error().Stack().Err(errors.WithStack(err)).Str("transaction_id", t.ID.String()).Send()

		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Constraint {
			case "transactions_pkey":
				return domain.ErrConflict
			case "transactions_account_id_fkey":
				return domain.ErrAccountNotFound
			case "transactions_amount_check":
				return domain.ErrInvalidAmount
			}
		}

		return errorspkg.ErrInternal
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (domain.Transaction, error) {
	var t domain.Transaction

	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.SenderWallet,
		&t.RecipientWallet,
		&t.Kind,
		&t.Status,
		&t.Operation,
		&t.Amount,
		&t.Fee,
		&t.BalanceBefore,
		&t.BalanceAfter,
		&t.LinkID,
		&t.Description,
		&t.CreatedAt,
	)
	t.CreatedAt = t.CreatedAt.UTC()

	return t, err
}

const getTransactionQuery = `
SELECT ` + transactionColumns + `
FROM transactions
WHERE id = $1
`

// GetTransaction returns the record with the given id.
func (r *RepoPGS) GetTransaction(ctx context.Context, id uuid.UUID) (domain.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, getTransactionQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, domain.ErrTransactionNotFound
		}

		zerolog.Ctx(ctx).Error().Stack().Err(errors.WithStack(err)).Send()

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

// sortColumns maps allowed sort fields to columns. Nothing else reaches ORDER BY.
var sortColumns = map[domain.SortField]string{
	domain.SortByCreatedAt: "created_at",
	domain.SortByAmount:    "amount",
	domain.SortByFee:       "transaction_fee",
	domain.SortByKind:      "transaction_type",
	domain.SortByStatus:    "transaction_status",
}

func whereClause(f domain.TransactionFilter) (string, []any) {
	conds := []string{"account_id = $1"}
	args := []any{f.AccountID}

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if f.Kind != "" {
		add("transaction_type = ?", f.Kind)
	}

	if f.Status != "" {
		add("transaction_status = ?", f.Status)
	}

	if f.Wallet != "" {
		add("(sender_wallet = ? OR recipient_wallet = ?)", f.Wallet)
	}

	if f.TransactionID.Valid {
		add("id = ?", f.TransactionID.UUID)
	}

	if !f.From.IsZero() {
		add("created_at >= ?", f.From)
	}

	if !f.To.IsZero() {
		add("created_at <= ?", f.To)
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

// Find returns the requested page of records matching filter and their total count.
func (r *RepoPGS) Find(ctx context.Context, filter domain.TransactionFilter, order domain.Sort, page domain.PageRequest) ([]domain.Transaction, int64, error) {
	l := zerolog.Ctx(ctx)

	column, ok := sortColumns[order.Field]
	if !ok {
		return nil, 0, domain.ErrInvalidSort
	}

	where, args := whereClause(filter)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT count(*) FROM transactions"+where, args...).Scan(&total); err != nil {
		l.Error().Stack().Err(errors.WithStack(err)).Send()
		return nil, 0, errorspkg.ErrInternal
	}

	dir := "ASC"
	if order.Desc {
		dir = "DESC"
	}

	query := fmt.Sprintf("SELECT %s FROM transactions%s ORDER BY %s %s, seq %s LIMIT $%d OFFSET $%d",
		transactionColumns, where, column, dir, dir, len(args)+1, len(args)+2)

	rows, err := r.db.QueryContext(ctx, query, append(args, page.Size, page.Offset())...)
	if err != nil {
		l.Error().Stack().Err(errors.WithStack(err)).Send()
		return nil, 0, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Transaction{}

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			l.Error().Stack().Err(errors.WithStack(err)).Send()
			return nil, 0, errorspkg.ErrInternal
		}

		items = append(items, t)
	}

	if err := rows.Err(); err != nil {
		l.Error().Stack().Err(errors.WithStack(err)).Send()
		return nil, 0, errorspkg.ErrInternal
	}

	return items, total, nil
}

const aggregateQuery = `
SELECT
	count(*),
	COALESCE(sum(amount) FILTER (WHERE transaction_type = 'credit'), 0),
	COALESCE(sum(amount) FILTER (WHERE transaction_type = 'debit'), 0),
	COALESCE(trunc(avg(amount), 2), 0)
FROM transactions
WHERE account_id = $1
`

// Aggregate summarizes all committed records of the account.
func (r *RepoPGS) Aggregate(ctx context.Context, accountID int64) (domain.Stats, error) {
	var s domain.Stats

	err := r.db.QueryRowContext(ctx, aggregateQuery, accountID).Scan(
		&s.TotalTransactions,
		&s.TotalCredit,
		&s.TotalDebit,
		&s.AverageAmount,
	)
	if err != nil {
		zerolog.Ctx(ctx).Error().Stack().Err(errors.WithStack(err)).Send()
		return s, errorspkg.ErrInternal
	}

	return s, nil
}
