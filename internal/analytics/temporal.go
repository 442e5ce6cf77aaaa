package analytics

import (
	"sort"
	"time"

	"retailsense/internal/model"

	"github.com/shopspring/decimal"
)

// DefaultWindow is the trailing moving-average window in buckets.
const DefaultWindow = 7

// DefaultMaxFillDays bounds gap-filled series to roughly ten years of buckets.
const DefaultMaxFillDays = 3660

// SeriesOptions configures DailySeries.
type SeriesOptions struct {
	Window   int
	FillGaps bool            // emit zero buckets for days without transactions
	Range    model.DateRange // used by FillGaps; zero means first..last active day
	Location *time.Location  // calendar day boundary, UTC when nil
}

type dayKey struct {
	y int
	m time.Month
	d int
}

func keyOf(t time.Time, loc *time.Location) dayKey {
	y, m, d := t.In(loc).Date()
	return dayKey{y, m, d}
}

func (k dayKey) time(loc *time.Location) time.Time {
	return time.Date(k.y, k.m, k.d, 0, 0, 0, 0, loc)
}

type dayTotals struct {
	key       dayKey
	sales     decimal.Decimal
	lines     int64
	customers map[string]struct{}
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return keyOf(t, loc).time(loc)
}

// DailySeries buckets txs by calendar day in ascending order and decorates each
// bucket with the trailing moving average over the last Window buckets, a trend tag
// against that average, and growth against the previous bucket. Without FillGaps
// only days with at least one transaction become buckets, so the window and the
// growth rate step over calendar gaps.
func DailySeries(txs []model.Transaction, opts SeriesOptions) []model.DailyBucket {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	window := opts.Window
	if window < 1 {
		window = DefaultWindow
	}

	days := make(map[dayKey]*dayTotals)
	for _, t := range txs {
		k := keyOf(t.InvoiceDate, loc)
		d, ok := days[k]
		if !ok {
			d = &dayTotals{key: k, sales: decimal.Zero, customers: make(map[string]struct{})}
			days[k] = d
		}
		d.sales = d.sales.Add(t.TotalValue)
		d.lines++
		if t.HasCustomer() {
			d.customers[t.Customer()] = struct{}{}
		}
	}
	if len(days) == 0 && !opts.FillGaps {
		return []model.DailyBucket{}
	}

	ordered := make([]*dayTotals, 0, len(days))
	for _, d := range days {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].key.time(loc).Before(ordered[j].key.time(loc))
	})

	if opts.FillGaps {
		ordered = fillGaps(ordered, days, opts.Range, loc)
	}

	buckets := make([]model.DailyBucket, 0, len(ordered))
	sum := decimal.Zero
	for i, d := range ordered {
		sum = sum.Add(d.sales)
		if i >= window {
			sum = sum.Sub(ordered[i-window].sales)
		}
		span := i + 1
		if span > window {
			span = window
		}
		avg := SafeRatioCount(sum, int64(span))

		growth := decimal.Zero
		if i > 0 {
			growth = GrowthRate(ordered[i-1].sales, d.sales)
		}

		buckets = append(buckets, model.DailyBucket{
			Date:             d.key.time(loc),
			TotalSales:       money(d.sales),
			TransactionCount: d.lines,
			UniqueCustomers:  int64(len(d.customers)),
			MovingAverage:    money(avg),
			Trend:            trendOf(d.sales, avg),
			GrowthRate:       money(growth),
		})
	}
	return buckets
}

func trendOf(total, avg decimal.Decimal) string {
	switch total.Cmp(avg) {
	case 1:
		return model.TrendUp
	case -1:
		return model.TrendDown
	default:
		return model.TrendStable
	}
}

// fillGaps returns one entry per calendar day from the range start (or first active
// day) to the range end (or last active day).
func fillGaps(ordered []*dayTotals, days map[dayKey]*dayTotals, r model.DateRange, loc *time.Location) []*dayTotals {
	var from, to time.Time
	switch {
	case !r.Start.IsZero() && !r.End.IsZero():
		from, to = StartOfDay(r.Start, loc), StartOfDay(r.End, loc)
	case len(ordered) > 0:
		from, to = ordered[0].key.time(loc), ordered[len(ordered)-1].key.time(loc)
	default:
		return ordered
	}

	var out []*dayTotals
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		k := keyOf(day, loc)
		if d, ok := days[k]; ok {
			out = append(out, d)
			continue
		}
		out = append(out, &dayTotals{key: k, sales: decimal.Zero, customers: map[string]struct{}{}})
	}
	return out
}
