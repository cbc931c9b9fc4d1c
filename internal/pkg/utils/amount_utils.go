package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SumAmounts parses decimal strings returned by exchange APIs and adds them up.
// Empty strings count as zero.
func SumAmounts(values ...string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse amount %q: %w", v, err)
		}
		total = total.Add(d)
	}
	return total, nil
}
