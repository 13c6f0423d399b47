// Package units converts human-denominated currency amounts to and from the
// integer smallest-unit representation used on chain.
package units

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimals of the native currency on
// Ethereum-compatible chains (1 ETH = 10^18 wei).
const EtherDecimals int32 = 18

var (
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrPrecisionLoss  = errors.New("amount has more fractional digits than the currency supports")
)

// ToBaseUnits returns amount × 10^decimals as an exact integer. It refuses
// amounts whose fractional part cannot be represented in the base unit.
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("units: negative decimals %d", decimals)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("units: %s: %w", amount.String(), ErrNegativeAmount)
	}
	shifted := amount.Shift(decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("units: %s at %d decimals: %w", amount.String(), decimals, ErrPrecisionLoss)
	}
	return shifted.BigInt(), nil
}

// ParseAmount parses a decimal string such as "14000" or "0.05".
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("units: parse amount %q: %w", s, err)
	}
	return d, nil
}

// FromBaseUnits converts a base-unit integer back into a decimal amount.
func FromBaseUnits(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}
