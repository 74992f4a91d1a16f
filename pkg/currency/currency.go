// Package currency is the single conversion path between the integer
// millime amounts used for internal arithmetic and the 3-fraction-digit
// dinar decimals written to storage. Every monetary field crossing the
// persistence boundary goes through ToMajor/ToMinor; nothing else rounds.
package currency

import "github.com/shopspring/decimal"

// FractionDigits is the scale of the persisted currency column. The dinar
// subdivides into 1000 millimes, so conversions are exact at scale 3.
const FractionDigits = 3

var minorPerMajor = decimal.NewFromInt(1000)

// ToMajor converts millimes into the persisted dinar representation.
func ToMajor(millimes int64) decimal.Decimal {
	return decimal.NewFromInt(millimes).Shift(-FractionDigits)
}

// ToMinor converts a dinar amount back into millimes, rounding half away
// from zero at the third fraction digit. Amounts sourced from our own
// columns round-trip exactly; the rounding only bites on values produced by
// external systems with a different scale.
func ToMinor(major decimal.Decimal) int64 {
	return major.Mul(minorPerMajor).Round(0).IntPart()
}

// TotalFromComponents recomputes an order total from already-converted
// components. Totals are always derived this way rather than by converting a
// separately-computed millime total, so the stored identity
// total = subtotal + shipping + fee - discount holds exactly.
func TotalFromComponents(subtotal, shipping, fee, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(shipping).Add(fee).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero.Round(FractionDigits)
	}
	return total.Round(FractionDigits)
}

// LineTotal multiplies a converted unit price by a quantity. Line totals are
// computed on the major-unit side so there is exactly one rounding path.
func LineTotal(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(FractionDigits)
}
