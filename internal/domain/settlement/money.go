package settlement

import "github.com/shopspring/decimal"

// Epsilon is the rounding tolerance below which a balance counts as settled.
var Epsilon = decimal.NewFromFloat(0.01)

// IsOpenAmount reports whether an outstanding amount is above the settlement
// tolerance. A magnitude of exactly Epsilon still counts as open.
func IsOpenAmount(amount decimal.Decimal) bool {
	return !amount.Abs().LessThan(Epsilon)
}

// ExceedsEpsilon is the stricter predicate used when the open lists have to
// be derived locally from the general-purpose endpoints.
func ExceedsEpsilon(amount decimal.Decimal) bool {
	return amount.Abs().GreaterThan(Epsilon)
}

// sameSign reports whether both values are negative or both non-negative.
func sameSign(a, b decimal.Decimal) bool {
	return a.IsNegative() == b.IsNegative()
}

func nullDecimal(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
