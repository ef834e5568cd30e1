// Package accountservice manages business logic layer of accounts.
package accountservice

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-wallet/internal/domain"
)

//go:generate mockgen -source service.go -destination service_mock.go -package accountservice

// Repo provides data access layer interface needed by account service layer.
type Repo interface {
	CreateAccount(ctx context.Context, arg domain.CreateAccountParams) (domain.Account, error)
	GetAccount(ctx context.Context, id int64) (domain.Account, error)
	GetAccountByOwner(ctx context.Context, owner string) (domain.Account, error)
	GetAccountByWallet(ctx context.Context, wallet string) (domain.Account, error)
}

// Service facilitates account service layer logic.
type Service struct {
	repo Repo

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New returns account service struct to manage account bussines logic.
func New(ar Repo) *Service {
	return &Service{
		repo:    ar,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewWalletAddress returns a fresh 26 character wallet address.
func (s *Service) NewWalletAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// Open creates the wallet account of owner with zero balance.
//
// An owner holds at most one account.
func (s *Service) Open(ctx context.Context, owner string) (domain.Account, error) {
	account, err := s.repo.CreateAccount(ctx, domain.CreateAccountParams{
		Owner:         owner,
		WalletAddress: s.NewWalletAddress(),
	})
	if err != nil {
		return account, err
	}

	zerolog.Ctx(ctx).Info().Int64("account_id", account.ID).Str("wallet", account.WalletAddress).Msg("account opened")

	return account, nil
}

// Get returns account for the given account ID.
func (s *Service) Get(ctx context.Context, id int64) (domain.Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// GetByOwner returns the account of owner.
func (s *Service) GetByOwner(ctx context.Context, owner string) (domain.Account, error) {
	account, err := s.repo.GetAccountByOwner(ctx, owner)
	if err != nil {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			zerolog.Ctx(ctx).Error().Err(err).Str("owner", owner).Send()
		}

		return account, err
	}

	return account, nil
}

// GetByWallet returns the account holding wallet.
func (s *Service) GetByWallet(ctx context.Context, wallet string) (domain.Account, error) {
	account, err := s.repo.GetAccountByWallet(ctx, wallet)
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		zerolog.Ctx(ctx).Error().Err(err).Str("wallet", wallet).Send()
	}

	return account, err
}
