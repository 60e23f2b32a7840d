package account

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// MaxScale is the most decimal places an amount or balance may carry.
	MaxScale = 18

	// maxCoefficientBits caps the unscaled value so comparisons stay cheap.
	maxCoefficientBits = 128
)

// MaxAmount is the exclusive upper bound for a single amount or initial
// balance.
var MaxAmount = decimal.New(1, 18)

// CheckBounds rejects values whose scale or magnitude would make arithmetic
// under an account lock expensive. The exponent and coefficient size are
// checked before any comparison that could rescale the value.
func CheckBounds(d decimal.Decimal) error {
	if d.Exponent() < -MaxScale {
		return fmt.Errorf("more than %d decimal places", MaxScale)
	}
	if d.Exponent() > MaxScale || d.Coefficient().BitLen() > maxCoefficientBits {
		return fmt.Errorf("must be less than %s", MaxAmount)
	}
	if d.Abs().GreaterThanOrEqual(MaxAmount) {
		return fmt.Errorf("must be less than %s", MaxAmount)
	}
	return nil
}
