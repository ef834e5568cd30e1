// Package walletservice is the transfer engine: it moves money between
// accounts and records every balance change in the ledger.
package walletservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-wallet/internal/domain"
	"github.com/go-petr/pet-wallet/internal/feepolicy"
	"github.com/go-petr/pet-wallet/pkg/configpkg"
	"github.com/go-petr/pet-wallet/pkg/moneypkg"
)

// Engine defaults.
const (
	DefaultLockTimeout    = configpkg.DefaultLockTimeout
	DefaultCommitAttempts = configpkg.DefaultCommitAttempts
	DefaultPublishTimeout = configpkg.DefaultPublishTimeout
)

//go:generate mockgen -source service.go -destination service_mock.go -package walletservice

// Store is the ledger store the engine reads and commits to.
type Store interface {
	GetAccount(ctx context.Context, id int64) (domain.Account, error)
	GetAccountByWallet(ctx context.Context, wallet string) (domain.Account, error)
	GetBalance(ctx context.Context, id int64) (moneypkg.Money, error)
	Commit(ctx context.Context, batch domain.CommitBatch) error
	GetTransaction(ctx context.Context, id uuid.UUID) (domain.Transaction, error)
	Aggregate(ctx context.Context, accountID int64) (domain.Stats, error)
}

// Locker grants exclusive access to one account.
type Locker interface {
	Acquire(ctx context.Context, accountID int64) (func(), error)
}

// Publisher is notified of every committed record.
type Publisher interface {
	Publish(ctx context.Context, event domain.TransactionEvent) error
}

// HistoryQuerier serves the paginated account history.
type HistoryQuerier interface {
	Query(ctx context.Context, accountID int64, params domain.HistoryParams) (domain.HistoryPage, error)
}

// Options tune the engine. Zero values select the defaults.
type Options struct {
	LockTimeout    time.Duration
	CommitAttempts int
	// PublishTimeout bounds the post-commit event delivery of one command.
	PublishTimeout time.Duration
	Now            func() time.Time
}

// Service facilitates wallet service layer logic.
type Service struct {
	store       Store
	locker      Locker
	publisher   Publisher
	history     HistoryQuerier
	lockTimeout    time.Duration
	publishTimeout time.Duration
	attempts       int
	now            func() time.Time
}

// New returns wallet service struct to manage wallet business logic.
func New(store Store, locker Locker, publisher Publisher, history HistoryQuerier, opts Options) *Service {
	s := &Service{
		store:       store,
		locker:      locker,
		publisher:   publisher,
		history:     history,
		lockTimeout:    opts.LockTimeout,
		publishTimeout: opts.PublishTimeout,
		attempts:       opts.CommitAttempts,
		now:            opts.Now,
	}

	if s.lockTimeout <= 0 {
		s.lockTimeout = DefaultLockTimeout
	}

	if s.publishTimeout <= 0 {
		s.publishTimeout = DefaultPublishTimeout
	}

	if s.attempts <= 0 {
		s.attempts = DefaultCommitAttempts
	}

	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// Fund credits amount to the account. Funding is free of charge.
func (s *Service) Fund(ctx context.Context, accountID int64, amount moneypkg.Money) (domain.OperationResult, error) {
	if !amount.IsPositive() {
		return domain.OperationResult{}, domain.ErrInvalidAmount
	}

	batch, err := s.execute(ctx, []int64{accountID}, func(accounts map[int64]domain.Account) (domain.CommitBatch, error) {
		acc := accounts[accountID]
		after := acc.Balance.Add(amount)

		rec := s.record(acc, domain.OperationFund, domain.KindCredit, amount, moneypkg.Zero, after)
		rec.SenderWallet = acc.WalletAddress
		rec.RecipientWallet = acc.WalletAddress
		rec.Description = fmt.Sprintf("%s, your wallet has been funded with %s", acc.Owner, amount)

		return domain.CommitBatch{
			Updates: []domain.BalanceUpdate{{AccountID: acc.ID, Version: acc.Version, NewBalance: after}},
			Records: []domain.Transaction{rec},
		}, nil
	})
	if err != nil {
		return domain.OperationResult{}, err
	}

	rec := batch.Records[0]

	return domain.OperationResult{Transaction: rec, Balance: rec.BalanceAfter}, nil
}

// Withdraw debits amount plus the withdrawal fee from the account.
func (s *Service) Withdraw(ctx context.Context, accountID int64, amount moneypkg.Money) (domain.OperationResult, error) {
	if !amount.IsPositive() {
		return domain.OperationResult{}, domain.ErrInvalidAmount
	}

	fee := feepolicy.Fee(domain.OperationWithdraw, amount)

	batch, err := s.execute(ctx, []int64{accountID}, func(accounts map[int64]domain.Account) (domain.CommitBatch, error) {
		acc := accounts[accountID]

		after, err := debit(acc.Balance, amount, fee)
		if err != nil {
			return domain.CommitBatch{}, err
		}

		rec := s.record(acc, domain.OperationWithdraw, domain.KindDebit, amount, fee, after)
		rec.SenderWallet = acc.WalletAddress
		rec.RecipientWallet = acc.WalletAddress
		rec.Description = fmt.Sprintf("%s, your wallet has been debited with %s", acc.Owner, amount)

		return domain.CommitBatch{
			Updates: []domain.BalanceUpdate{{AccountID: acc.ID, Version: acc.Version, NewBalance: after}},
			Records: []domain.Transaction{rec},
		}, nil
	})
	if err != nil {
		return domain.OperationResult{}, err
	}

	rec := batch.Records[0]

	return domain.OperationResult{Transaction: rec, Balance: rec.BalanceAfter}, nil
}

// Transfer moves amount from the sender to the account owning recipientWallet.
// The sender also pays the transfer fee.
func (s *Service) Transfer(ctx context.Context, senderID int64, recipientWallet string, amount moneypkg.Money) (domain.TransferResult, error) {
	l := zerolog.Ctx(ctx)

	if !amount.IsPositive() {
		return domain.TransferResult{}, domain.ErrInvalidAmount
	}

	sender, err := s.store.GetAccount(ctx, senderID)
	if err != nil {
		return domain.TransferResult{}, err
	}

	if sender.WalletAddress == recipientWallet {
		return domain.TransferResult{}, domain.ErrSelfTransfer
	}

	recipient, err := s.store.GetAccountByWallet(ctx, recipientWallet)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.TransferResult{}, domain.ErrRecipientNotFound
		}

		return domain.TransferResult{}, err
	}

	if recipient.ID == sender.ID {
		return domain.TransferResult{}, domain.ErrSelfTransfer
	}

	fee := feepolicy.Fee(domain.OperationTransfer, amount)
	link := uuid.NullUUID{UUID: uuid.New(), Valid: true}

	batch, err := s.execute(ctx, []int64{sender.ID, recipient.ID}, func(accounts map[int64]domain.Account) (domain.CommitBatch, error) {
		from, to := accounts[sender.ID], accounts[recipient.ID]

		fromAfter, err := debit(from.Balance, amount, fee)
		if err != nil {
			return domain.CommitBatch{}, err
		}

		toAfter := to.Balance.Add(amount)

		out := s.record(from, domain.OperationTransfer, domain.KindDebit, amount, fee, fromAfter)
		out.SenderWallet = from.WalletAddress
		out.RecipientWallet = to.WalletAddress
		out.LinkID = link
		out.Description = fmt.Sprintf("transfer of %s to %s", amount, to.Owner)

		in := s.record(to, domain.OperationTransfer, domain.KindCredit, amount, moneypkg.Zero, toAfter)
		in.SenderWallet = from.WalletAddress
		in.RecipientWallet = to.WalletAddress
		in.LinkID = link
		in.CreatedAt = out.CreatedAt
		in.Description = fmt.Sprintf("transfer of %s from %s", amount, from.Owner)

		return domain.CommitBatch{
			Updates: []domain.BalanceUpdate{
				{AccountID: from.ID, Version: from.Version, NewBalance: fromAfter},
				{AccountID: to.ID, Version: to.Version, NewBalance: toAfter},
			},
			Records: []domain.Transaction{out, in},
		}, nil
	})
	if err != nil {
		return domain.TransferResult{}, err
	}

	out, in := batch.Records[0], batch.Records[1]

	l.Info().
		Str("transaction_id", out.ID.String()).
		Int64("from_account_id", sender.ID).
		Int64("to_account_id", recipient.ID).
		Str("amount", amount.String()).
		Msg("transfer committed")

	return domain.TransferResult{
		Status:          out.Status,
		TransactionID:   out.ID,
		Amount:          out.Amount,
		Fee:             out.Fee,
		Balance:         out.BalanceAfter,
		RecipientWallet: recipient.WalletAddress,
		RecipientOwner:  recipient.Owner,
		Description:     fmt.Sprintf("you have successfully credited %s", recipient.Owner),
		Debit:           out,
		Credit:          in,
	}, nil
}

// Balance returns the committed balance of the account.
func (s *Service) Balance(ctx context.Context, accountID int64) (moneypkg.Money, error) {
	return s.store.GetBalance(ctx, accountID)
}

// Transaction returns the record with the given id. A malformed id is not found.
func (s *Service) Transaction(ctx context.Context, id string) (domain.Transaction, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}

	return s.store.GetTransaction(ctx, uid)
}

// Stats aggregates the committed records of the account.
func (s *Service) Stats(ctx context.Context, accountID int64) (domain.Stats, error) {
	return s.store.Aggregate(ctx, accountID)
}

// History returns one page of the account history.
func (s *Service) History(ctx context.Context, accountID int64, params domain.HistoryParams) (domain.HistoryPage, error) {
	return s.history.Query(ctx, accountID, params)
}

func debit(balance, amount, fee moneypkg.Money) (moneypkg.Money, error) {
	after, err := balance.Sub(amount.Add(fee))
	if err != nil {
		return moneypkg.Zero, domain.ErrInsufficientFunds
	}

	return after, nil
}

func (s *Service) record(acc domain.Account, op domain.Operation, kind domain.TransactionKind, amount, fee, after moneypkg.Money) domain.Transaction {
	return domain.Transaction{
		ID:            uuid.New(),
		AccountID:     acc.ID,
		Kind:          kind,
		Status:        domain.StatusSuccess,
		Operation:     op,
		Amount:        amount,
		Fee:           fee,
		BalanceBefore: acc.Balance,
		BalanceAfter:  after,
		CreatedAt:     s.now().UTC().Truncate(time.Microsecond),
	}
}

type computeFunc func(accounts map[int64]domain.Account) (domain.CommitBatch, error)

// execute runs compute under the locks of ids and commits its batch, retrying
// on version conflicts. Committed records are published afterwards.
func (s *Service) execute(ctx context.Context, ids []int64, compute computeFunc) (domain.CommitBatch, error) {
	l := zerolog.Ctx(ctx)
	order := lockOrder(ids)

	for attempt := 1; attempt <= s.attempts; attempt++ {
		batch, err := s.attempt(ctx, order, compute)
		if err == nil {
			s.publish(ctx, batch.Records)
			return batch, nil
		}

		if !errors.Is(err, domain.ErrConflict) {
			return domain.CommitBatch{}, err
		}

		l.Warn().Err(err).Int("attempt", attempt).Ints64("account_ids", order).Msg("commit conflict")
	}

	return domain.CommitBatch{}, domain.ErrTransferAborted
}

func (s *Service) attempt(ctx context.Context, order []int64, compute computeFunc) (domain.CommitBatch, error) {
	release, err := s.lockAll(ctx, order)
	if err != nil {
		return domain.CommitBatch{}, err
	}
	defer release()

	accounts := make(map[int64]domain.Account, len(order))

	for _, id := range order {
		acc, err := s.store.GetAccount(ctx, id)
		if err != nil {
			return domain.CommitBatch{}, err
		}

		accounts[id] = acc
	}

	batch, err := compute(accounts)
	if err != nil {
		return domain.CommitBatch{}, err
	}

	if err := s.store.Commit(ctx, batch); err != nil {
		return domain.CommitBatch{}, err
	}

	return batch, nil
}

// lockAll acquires every lock of order within the lock timeout, or none.
func (s *Service) lockAll(ctx context.Context, order []int64) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	releases := make([]func(), 0, len(order))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, id := range order {
		release, err := s.locker.Acquire(lockCtx, id)
		if err != nil {
			releaseAll()
			return nil, err
		}

		releases = append(releases, release)
	}

	return releaseAll, nil
}

// publish delivers the events of committed records. Delivery is bounded by
// publishTimeout and outlives cancellation of the request.
func (s *Service) publish(ctx context.Context, records []domain.Transaction) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	for _, rec := range records {
		if err := s.publisher.Publish(pctx, domain.NewTransactionEvent(rec)); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("transaction_id", rec.ID.String()).Msg("cannot publish transaction event")
		}
	}
}

// lockOrder returns the distinct ids in ascending order.
func lockOrder(ids []int64) []int64 {
	order := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		order = append(order, id)
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	return order
}
