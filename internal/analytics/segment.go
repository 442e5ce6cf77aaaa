package analytics

import (
	"errors"
	"sort"

	"retailsense/internal/model"

	"github.com/shopspring/decimal"
)

// Thresholds are the upper bounds (inclusive) of the low and medium value tiers,
// applied to each customer's mean line value.
type Thresholds struct {
	LowMax    decimal.Decimal
	MediumMax decimal.Decimal
}

// DefaultThresholds matches the dashboard's historical tiers.
func DefaultThresholds() Thresholds {
	return Thresholds{LowMax: decimal.NewFromInt(5), MediumMax: decimal.NewFromInt(20)}
}

// Validate checks 0 <= LowMax <= MediumMax.
func (t Thresholds) Validate() error {
	if t.LowMax.IsNegative() {
		return errors.New("low threshold must not be negative")
	}
	if t.LowMax.GreaterThan(t.MediumMax) {
		return errors.New("low threshold must not exceed medium threshold")
	}
	return nil
}

// Classify returns the segment of a customer mean value.
func (t Thresholds) Classify(mean decimal.Decimal) string {
	switch {
	case mean.LessThanOrEqual(t.LowMax):
		return model.SegmentLow
	case mean.LessThanOrEqual(t.MediumMax):
		return model.SegmentMedium
	default:
		return model.SegmentHigh
	}
}

type customerTotals struct {
	sum   decimal.Decimal
	lines int64
}

// SegmentCustomers assigns every known customer to exactly one tier and returns
// the populated tiers with their member count and mean of member means.
func SegmentCustomers(txs []model.Transaction, th Thresholds) map[string]model.CustomerSegment {
	customers := make(map[string]*customerTotals)
	for _, t := range txs {
		if !t.HasCustomer() {
			continue
		}
		c, ok := customers[t.Customer()]
		if !ok {
			c = &customerTotals{sum: decimal.Zero}
			customers[t.Customer()] = c
		}
		c.sum = c.sum.Add(t.TotalValue)
		c.lines++
	}

	type tier struct {
		members int64
		means   decimal.Decimal
	}
	tiers := make(map[string]*tier)
	for _, c := range customers {
		mean := SafeRatioCount(c.sum, c.lines)
		name := th.Classify(mean)
		s, ok := tiers[name]
		if !ok {
			s = &tier{means: decimal.Zero}
			tiers[name] = s
		}
		s.members++
		s.means = s.means.Add(mean)
	}

	out := make(map[string]model.CustomerSegment, len(tiers))
	for name, s := range tiers {
		out[name] = model.CustomerSegment{
			SegmentName:   name,
			CustomerCount: s.members,
			AverageValue:  money(SafeRatioCount(s.means, s.members)),
		}
	}
	return out
}

// TopCountries ranks countries by distinct customers, descending. Ties keep the
// order in which countries first appear in txs.
func TopCountries(txs []model.Transaction, limit int) []model.CountryMetric {
	groups := groupBy(txs, func(t model.Transaction) string { return t.Country })
	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].customers) > len(groups[j].customers)
	})
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}

	out := make([]model.CountryMetric, 0, len(groups))
	for _, g := range groups {
		out = append(out, model.CountryMetric{
			Country:       g.key,
			CustomerCount: int64(len(g.customers)),
			AverageSpend:  money(SafeRatioCount(g.value, g.lines)),
		})
	}
	return out
}

// Customers builds the customer metrics of txs.
func Customers(txs []model.Transaction, th Thresholds, limit int) model.CustomerMetrics {
	total := decimal.Zero
	known := make(map[string]struct{})
	for _, t := range txs {
		total = total.Add(t.TotalValue)
		if t.HasCustomer() {
			known[t.Customer()] = struct{}{}
		}
	}
	return model.CustomerMetrics{
		TotalUniqueCustomers: int64(len(known)),
		AverageCustomerValue: money(SafeRatioCount(total, int64(len(txs)))),
		TopCountries:         TopCountries(txs, limit),
		CustomerSegments:     SegmentCustomers(txs, th),
	}
}
