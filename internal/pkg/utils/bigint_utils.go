package utils

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// ScaleBigInt converts an integer amount of subunits into whole units.
// Example: amount=1234500000000000000, decimals=18 => 1.2345
func ScaleBigInt(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// ScaleInt64 converts integer subunits (satoshi, lovelace, lamports) into whole units.
func ScaleInt64(amount int64, decimals uint8) decimal.Decimal {
	return decimal.New(amount, -int32(decimals))
}

// FormatBigInt renders a subunit amount as a trimmed decimal string, e.g. "1.2345".
func FormatBigInt(amount *big.Int, decimals uint8) string {
	return ScaleBigInt(amount, decimals).String()
}
