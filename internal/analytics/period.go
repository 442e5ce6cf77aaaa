package analytics

import (
	"fmt"
	"sort"
	"time"

	"retailsense/internal/model"

	"github.com/shopspring/decimal"
)

// Granularity selects the calendar period of RollupByPeriod.
type Granularity string

const (
	ByDay     Granularity = "day"
	ByWeek    Granularity = "week"
	ByMonth   Granularity = "month"
	ByQuarter Granularity = "quarter"
	ByYear    Granularity = "year"
	ByWeekday Granularity = "weekday"
)

// ParseGranularity validates a group_by value.
func ParseGranularity(s string) (Granularity, bool) {
	switch g := Granularity(s); g {
	case ByDay, ByWeek, ByMonth, ByQuarter, ByYear, ByWeekday:
		return g, true
	}
	return "", false
}

var weekdays = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// periodKey returns the label of t and a sort key. Labels of every granularity
// except weekday sort lexicographically in time order.
func periodKey(t time.Time, g Granularity) (string, string) {
	switch g {
	case ByDay:
		s := t.Format("2006-01-02")
		return s, s
	case ByWeek:
		y, w := t.ISOWeek()
		s := fmt.Sprintf("%04d-W%02d", y, w)
		return s, s
	case ByQuarter:
		s := fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
		return s, s
	case ByYear:
		s := fmt.Sprintf("%04d", t.Year())
		return s, s
	case ByWeekday:
		i := (int(t.Weekday()) + 6) % 7
		return weekdays[i], fmt.Sprintf("%d", i)
	default:
		s := t.Format("2006-01")
		return s, s
	}
}

// RollupByPeriod groups txs by calendar period in loc, ascending.
func RollupByPeriod(txs []model.Transaction, g Granularity, loc *time.Location) []model.PeriodRollup {
	if loc == nil {
		loc = time.UTC
	}
	type bucket struct {
		label, sort string
		sales       decimal.Decimal
		lines       int64
	}
	index := make(map[string]*bucket)
	for _, t := range txs {
		label, key := periodKey(t.InvoiceDate.In(loc), g)
		b, ok := index[key]
		if !ok {
			b = &bucket{label: label, sort: key, sales: decimal.Zero}
			index[key] = b
		}
		b.sales = b.sales.Add(t.TotalValue)
		b.lines++
	}

	buckets := make([]*bucket, 0, len(index))
	for _, b := range index {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].sort < buckets[j].sort })

	out := make([]model.PeriodRollup, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, model.PeriodRollup{
			Period:           b.label,
			TotalSales:       money(b.sales),
			TransactionCount: b.lines,
			TicketAvg:        money(SafeRatioCount(b.sales, b.lines)),
		})
	}
	return out
}
