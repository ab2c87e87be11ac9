// Package lamports converts between lamports and decimal SOL amounts.
package lamports

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// solDecimals is log10 of solana.LAMPORTS_PER_SOL.
const solDecimals = 9

var ErrInvalidAmount = errors.New("invalid SOL amount")

// Format renders lamports as a decimal SOL amount without trailing zeros.
func Format(lamports uint64) string {
	return decimal.NewFromUint64(lamports).Shift(-solDecimals).String()
}

// ParseSOL converts a decimal SOL amount into lamports. Amounts with more
// than nine fractional digits are rejected.
func ParseSOL(s string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w %q: negative", ErrInvalidAmount, s)
	}
	scaled := d.Shift(solDecimals)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w %q: more than %d decimals", ErrInvalidAmount, s, solDecimals)
	}
	n := scaled.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("%w %q: overflows", ErrInvalidAmount, s)
	}
	return n.Uint64(), nil
}

// SOL is the lamport count of whole SOL.
func SOL(whole uint64) uint64 {
	return whole * solana.LAMPORTS_PER_SOL
}
