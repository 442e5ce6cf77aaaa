// Package analytics turns ledger lines into summaries, rollups, daily series and
// customer segments. Every function is pure: same input slice, same output.
package analytics

import (
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the precision of every monetary figure leaving the engine.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// SafeRatio returns num/den, or zero when den is zero. All averages and growth
// rates go through here.
func SafeRatio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}

// SafeRatioCount is SafeRatio with an integer denominator.
func SafeRatioCount(num decimal.Decimal, count int64) decimal.Decimal {
	return SafeRatio(num, decimal.NewFromInt(count))
}

// GrowthRate is 100*(cur-prev)/prev, zero when prev is zero.
func GrowthRate(prev, cur decimal.Decimal) decimal.Decimal {
	return SafeRatio(cur.Sub(prev), prev).Mul(hundred)
}

// money rounds at the output boundary only.
func money(d decimal.Decimal) float64 {
	return d.Round(MoneyPlaces).InexactFloat64()
}
