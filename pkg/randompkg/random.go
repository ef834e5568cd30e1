// Package randompkg provides functionality gor generating random applications common items.
package randompkg

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/go-petr/pet-wallet/pkg/moneypkg"
)

const (
	alphabet       = "abcdefghijklmnopqrstuvwxyz"
	walletAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
)

// Intn is a shortcut for generating a random integer between 0 and max using crypto/rand.
func Intn(max int) int64 {
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic(err)
	}

	return nBig.Int64()
}

// IntBetween generates a random integer between min and max inclusive.
func IntBetween(min, max int) int64 {
	return int64(min) + Intn(max-min+1)
}

// String generates a random string of length n.
func String(n int) string {
	return fromAlphabet(alphabet, n)
}

func fromAlphabet(a string, n int) string {
	var sb strings.Builder

	k := len(a)

	for i := 0; i < n; i++ {
		c := a[Intn(k)]

		_ = sb.WriteByte(c) // The returned err is always nil.
	}

	return sb.String()
}

// Owner generates a random owner name.
func Owner() string {
	return String(6)
}

// WalletAddress generates a random 26 characters wallet address.
func WalletAddress() string {
	return fromAlphabet(walletAlphabet, 26)
}

// MoneyBetween generates a random amount of money between min and max whole units.
func MoneyBetween(min, max int) moneypkg.Money {
	units := IntBetween(min*100, max*100)
	return moneypkg.FromMinorUnits(units)
}
