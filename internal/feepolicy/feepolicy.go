// Package feepolicy maps operations to the fee charged to the debited account.
package feepolicy

import (
	"github.com/go-petr/pet-wallet/internal/domain"
	"github.com/go-petr/pet-wallet/pkg/moneypkg"
)

// Fee percentages per operation.
const (
	WithdrawPercent = 1
	TransferPercent = 1
)

// Fee returns the fee of op for amount, truncated to the smallest currency unit.
func Fee(op domain.Operation, amount moneypkg.Money) moneypkg.Money {
	switch op {
	case domain.OperationWithdraw:
		return amount.Percent(WithdrawPercent)
	case domain.OperationTransfer:
		return amount.Percent(TransferPercent)
	default:
		return moneypkg.Zero
	}
}

// Total returns amount plus its fee, the sum a debit needs to be covered.
func Total(op domain.Operation, amount moneypkg.Money) moneypkg.Money {
	return amount.Add(Fee(op, amount))
}
