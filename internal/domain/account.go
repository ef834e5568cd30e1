// Package domain provides defenitions of all entities.
package domain

import (
	"time"

	"github.com/go-petr/pet-wallet/pkg/moneypkg"
)

// Account holds the wallet of a single owner.
//
// Balance only changes as part of a committed ledger write.
type Account struct {
	ID            int64          `json:"id"`
	Owner         string         `json:"owner"`
	WalletAddress string         `json:"wallet_address"`
	Balance       moneypkg.Money `json:"balance"`
	Version       int64          `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
}

// CreateAccountParams is the input data to open an account.
type CreateAccountParams struct {
	Owner         string
	WalletAddress string
}
