package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"retailsense/internal/analytics"
	"retailsense/internal/apperror"
	"retailsense/internal/cache"
	"retailsense/internal/model"
	"retailsense/internal/repository"
	"retailsense/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRepo counts scans and can be made to fail.
type countingRepo struct {
	repository.TransactionRepository
	scans atomic.Int32
	err   error
}

func (r *countingRepo) Scan(ctx context.Context, f repository.ScanFilter, fn func(model.Transaction) error) error {
	r.scans.Add(1)
	if r.err != nil {
		return r.err
	}
	return r.TransactionRepository.Scan(ctx, f, fn)
}

func (r *countingRepo) Ping(ctx context.Context) error {
	if r.err != nil {
		return r.err
	}
	return r.TransactionRepository.Ping(ctx)
}

func (r *countingRepo) List(ctx context.Context, f repository.ListFilter) ([]model.Transaction, int64, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	return r.TransactionRepository.List(ctx, f)
}

func date(d int) time.Time {
	return time.Date(2011, time.June, d, 0, 0, 0, 0, time.UTC)
}

func intp(n int) *int { return &n }

func span(from, to int) model.DateRange {
	return model.DateRange{Start: date(from), End: date(to)}
}

func sale(d, hour int, value, cust, country string) model.Transaction {
	v := decimal.RequireFromString(value)
	t := model.Transaction{
		InvoiceNo:     "INV-" + value,
		ProductCode:   "P-" + country,
		Category:      "Home",
		PriceCategory: "standard",
		Quantity:      1,
		UnitPrice:     v,
		TotalValue:    v,
		Country:       country,
		InvoiceDate:   date(d).Add(time.Duration(hour) * time.Hour),
	}
	if cust != "" {
		t.CustomerID = &cust
	}
	return t
}

func newRepo(txs ...model.Transaction) *countingRepo {
	return &countingRepo{TransactionRepository: memory.NewTransactionStore(txs...)}
}

func TestSummary_InvalidRangeNeverTouchesStore(t *testing.T) {
	repo := newRepo(sale(1, 9, "10", "c1", "UK"))
	svc := NewAggregationService(repo, Options{})

	_, err := svc.Summary(context.Background(), span(10, 1))
	require.ErrorIs(t, err, apperror.InvalidRange)
	assert.Equal(t, map[string]any{"start_date": "2011-06-10", "end_date": "2011-06-01"}, apperror.DetailsOf(err))

	_, err = svc.Summary(context.Background(), model.DateRange{Start: date(1)})
	require.ErrorIs(t, err, apperror.InvalidRange)

	_, err = NewTemporalService(repo, Options{}).Series(context.Background(), TemporalQuery{Range: span(5, 4)})
	require.ErrorIs(t, err, apperror.InvalidRange)

	assert.Zero(t, repo.scans.Load())
}

func TestSummary_EmptyRangeIsZeroNotError(t *testing.T) {
	svc := NewAggregationService(newRepo(), Options{})

	s, err := svc.Summary(context.Background(), span(1, 30))
	require.NoError(t, err)
	assert.Equal(t, model.Summary{}, s)

	cats, err := svc.Categories(context.Background(), span(1, 30))
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestSummary_EndDayIsInclusive(t *testing.T) {
	svc := NewAggregationService(newRepo(
		sale(1, 0, "10", "c1", "UK"),
		sale(2, 23, "20", "c2", "UK"),
		sale(3, 0, "40", "c3", "UK"),
	), Options{})

	s, err := svc.Summary(context.Background(), span(1, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.TotalTransactions)
	assert.Equal(t, 30.0, s.TotalValue)
}

func TestCountries_BrazilExample(t *testing.T) {
	svc := NewAggregationService(newRepo(
		sale(1, 9, "10", "a", "Brazil"),
		sale(2, 9, "20", "b", "Brazil"),
		sale(3, 9, "30", "a", "Brazil"),
	), Options{})

	got, err := svc.Countries(context.Background(), span(1, 30))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Brazil", got[0].Country)
	assert.Equal(t, int64(3), got[0].TotalSales)
	assert.Equal(t, 60.0, got[0].TotalValue)
	assert.Equal(t, 20.0, got[0].TicketAvg)
	assert.Equal(t, int64(2), got[0].UniqueCustomers)
}

func TestOverview_MatchesIndividualCalls(t *testing.T) {
	repo := newRepo(
		sale(1, 9, "10", "a", "UK"),
		sale(2, 9, "20", "b", "France"),
	)
	svc := NewAggregationService(repo, Options{})
	ctx := context.Background()

	ov, err := svc.Overview(ctx, span(1, 30))
	require.NoError(t, err)

	s, _ := svc.Summary(ctx, span(1, 30))
	cats, _ := svc.Categories(ctx, span(1, 30))
	countries, _ := svc.Countries(ctx, span(1, 30))
	assert.Equal(t, s, ov.Summary)
	assert.Equal(t, cats, ov.Categories)
	assert.Equal(t, countries, ov.Countries)
	assert.Equal(t, span(1, 30), ov.Range)
}

func TestOverview_FailsAsAWhole(t *testing.T) {
	repo := newRepo()
	repo.err = &repository.StoreError{Op: "scan", Kind: repository.ErrUnavailable, Err: errors.New("dial tcp: refused")}

	_, err := NewAggregationService(repo, Options{}).Overview(context.Background(), span(1, 30))
	require.ErrorIs(t, err, apperror.StoreUnavailable)
}

func TestSales(t *testing.T) {
	svc := NewAggregationService(newRepo(
		sale(1, 9, "10", "a", "UK"),
		sale(2, 9, "30", "", "UK"),
	), Options{})

	got, err := svc.Sales(context.Background(), span(1, 30))
	require.NoError(t, err)
	assert.Equal(t, 40.0, got.TotalSales)
	assert.Equal(t, 20.0, got.AverageTicket)
	assert.Equal(t, int64(1), got.TotalCustomers)
}

func TestPeriods(t *testing.T) {
	svc := NewAggregationService(newRepo(
		sale(1, 9, "10", "a", "UK"),
		sale(2, 9, "30", "b", "UK"),
	), Options{})
	ctx := context.Background()

	months, err := svc.Periods(ctx, span(1, 30), "")
	require.NoError(t, err)
	require.Len(t, months, 1)
	assert.Equal(t, "2011-06", months[0].Period)
	assert.Equal(t, 40.0, months[0].TotalSales)

	_, err = svc.Periods(ctx, span(1, 30), "fortnight")
	require.ErrorIs(t, err, apperror.InvalidInput)
	assert.Equal(t, "fortnight", apperror.DetailsOf(err)["group_by"])
}

func TestPriceTiers(t *testing.T) {
	svc := NewAggregationService(newRepo(sale(1, 9, "10", "a", "UK")), Options{})

	got, err := svc.PriceTiers(context.Background(), span(1, 30))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "standard", got[0].PriceCategory)
}

func TestSeries_Example(t *testing.T) {
	svc := NewTemporalService(newRepo(
		sale(1, 9, "100", "a", "UK"),
		sale(1, 15, "50", "b", "UK"),
		sale(3, 9, "300", "a", "UK"),
	), Options{})

	series, err := svc.Series(context.Background(), TemporalQuery{Range: span(1, 30), Window: intp(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, series.Window)
	require.Len(t, series.Buckets, 2)

	d1, d3 := series.Buckets[0], series.Buckets[1]
	assert.Equal(t, date(1), d1.Date)
	assert.Equal(t, 150.0, d1.TotalSales)
	assert.Equal(t, 150.0, d1.MovingAverage)
	assert.Equal(t, model.TrendStable, d1.Trend)
	assert.Equal(t, 0.0, d1.GrowthRate)

	assert.Equal(t, date(3), d3.Date)
	assert.Equal(t, 300.0, d3.TotalSales)
	assert.Equal(t, 225.0, d3.MovingAverage)
	assert.Equal(t, model.TrendUp, d3.Trend)
	assert.Equal(t, 100.0, d3.GrowthRate)
}

func TestSeries_EmptyIsNoData(t *testing.T) {
	svc := NewTemporalService(newRepo(), Options{})

	_, err := svc.Series(context.Background(), TemporalQuery{Range: span(1, 30)})
	require.ErrorIs(t, err, apperror.NoData)
	assert.False(t, apperror.Retryable(err))
	assert.Equal(t, 7, apperror.DetailsOf(err)["window"])
}

func TestSeries_WindowBounds(t *testing.T) {
	repo := newRepo(sale(1, 9, "10", "a", "UK"))
	svc := NewTemporalService(repo, Options{MaxWindow: 30})
	ctx := context.Background()

	series, err := svc.Series(ctx, TemporalQuery{Range: span(1, 30)})
	require.NoError(t, err)
	assert.Equal(t, 7, series.Window)

	for _, w := range []int{-1, 0, 31} {
		_, err := svc.Series(ctx, TemporalQuery{Range: span(1, 30), Window: intp(w)})
		require.ErrorIs(t, err, apperror.InvalidInput, "window %d", w)
	}
	assert.Equal(t, int32(1), repo.scans.Load())
}

func TestSeries_FillGaps(t *testing.T) {
	svc := NewTemporalService(newRepo(
		sale(1, 9, "100", "a", "UK"),
		sale(3, 9, "300", "a", "UK"),
	), Options{})

	series, err := svc.Series(context.Background(), TemporalQuery{Range: span(1, 3), Window: intp(2), FillGaps: true})
	require.NoError(t, err)
	require.Len(t, series.Buckets, 3)
	assert.Equal(t, 0.0, series.Buckets[1].TotalSales)
	assert.Equal(t, 0.0, series.Buckets[2].GrowthRate)
}

func TestSeries_FillGapsSpanIsBounded(t *testing.T) {
	repo := newRepo(sale(1, 9, "100", "a", "UK"))
	svc := NewTemporalService(repo, Options{})
	ctx := context.Background()
	wide := model.DateRange{
		Start: time.Date(2, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC),
	}

	_, err := svc.Series(ctx, TemporalQuery{Range: wide, FillGaps: true})
	require.ErrorIs(t, err, apperror.InvalidInput)
	assert.Equal(t, DefaultMaxFillDays, apperror.DetailsOf(err)["max_fill_days"])
	assert.Zero(t, repo.scans.Load())

	series, err := svc.Series(ctx, TemporalQuery{Range: wide})
	require.NoError(t, err)
	assert.Len(t, series.Buckets, 1)

	bounded := NewTemporalService(repo, Options{MaxFillDays: 3})
	series, err = bounded.Series(ctx, TemporalQuery{Range: span(1, 3), FillGaps: true})
	require.NoError(t, err)
	assert.Len(t, series.Buckets, 3)

	_, err = bounded.Series(ctx, TemporalQuery{Range: span(1, 4), FillGaps: true})
	require.ErrorIs(t, err, apperror.InvalidInput)
}

func TestStoreFaults(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		kind      apperror.Kind
		retryable bool
		message   string
	}{
		{"unavailable", &repository.StoreError{Op: "scan", Kind: repository.ErrUnavailable, Err: errors.New("timeout")}, apperror.KindStoreUnavailable, true, "transaction store unavailable"},
		{"deadline", context.DeadlineExceeded, apperror.KindStoreUnavailable, true, "transaction store unavailable"},
		{"canceled", context.Canceled, apperror.KindCanceled, false, "request canceled"},
		{"query", &repository.StoreError{Op: "scan", Kind: repository.ErrQuery, Err: errors.New("syntax")}, apperror.KindStoreUnavailable, true, "transaction query failed"},
		{"unknown", errors.New("boom"), apperror.KindInternal, false, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newRepo()
			repo.err = tc.err

			_, err := NewAggregationService(repo, Options{}).Summary(context.Background(), span(1, 30))
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperror.KindOf(err))
			assert.Equal(t, tc.retryable, apperror.Retryable(err))
			assert.Equal(t, tc.message, apperror.MessageOf(err))

			_, err = NewTemporalService(repo, Options{}).Series(context.Background(), TemporalQuery{Range: span(1, 30)})
			assert.Equal(t, tc.kind, apperror.KindOf(err))
			assert.Equal(t, tc.retryable, apperror.Retryable(err))
		})
	}
}

func TestCache_SameQueryScansOnce(t *testing.T) {
	repo := newRepo(sale(1, 9, "10", "a", "UK"))
	opts := Options{Cache: cache.New(16, time.Minute)}
	agg := NewAggregationService(repo, opts)
	tmp := NewTemporalService(repo, opts)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := agg.Summary(ctx, span(1, 30))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), repo.scans.Load())

	_, err := agg.Summary(ctx, span(1, 29))
	require.NoError(t, err)
	assert.Equal(t, int32(2), repo.scans.Load())

	// a wider window is a different query
	_, err = tmp.Series(ctx, TemporalQuery{Range: span(1, 30), Window: intp(7)})
	require.NoError(t, err)
	_, err = tmp.Series(ctx, TemporalQuery{Range: span(1, 30), Window: intp(14)})
	require.NoError(t, err)
	assert.Equal(t, int32(4), repo.scans.Load())
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	repo := newRepo()
	svc := NewTemporalService(repo, Options{Cache: cache.New(16, time.Minute)})
	ctx := context.Background()

	_, err := svc.Series(ctx, TemporalQuery{Range: span(1, 30)})
	require.ErrorIs(t, err, apperror.NoData)
	_, err = svc.Series(ctx, TemporalQuery{Range: span(1, 30)})
	require.ErrorIs(t, err, apperror.NoData)
	assert.Equal(t, int32(2), repo.scans.Load())
}

func TestCustomers(t *testing.T) {
	repo := newRepo(
		sale(1, 9, "4", "a", "UK"),
		sale(2, 9, "30", "b", "France"),
		sale(3, 9, "12", "c", "France"),
	)
	svc := NewSegmentationService(repo, Options{})
	ctx := context.Background()

	all, err := svc.Customers(ctx, nil, DefaultTopCountries)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.TotalUniqueCustomers)
	assert.Equal(t, "France", all.TopCountries[0].Country)
	assert.Equal(t, int64(1), all.CustomerSegments[model.SegmentLow].CustomerCount)
	assert.Equal(t, int64(1), all.CustomerSegments[model.SegmentMedium].CustomerCount)
	assert.Equal(t, int64(1), all.CustomerSegments[model.SegmentHigh].CustomerCount)

	r := span(1, 1)
	first, err := svc.Customers(ctx, &r, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.TotalUniqueCustomers)

	for _, limit := range []int{-1, 0, 101} {
		_, err = svc.Customers(ctx, nil, limit)
		require.ErrorIs(t, err, apperror.InvalidInput, "limit %d", limit)
	}
}

func TestCustomers_CustomThresholds(t *testing.T) {
	repo := newRepo(sale(1, 9, "30", "b", "France"))
	svc := NewSegmentationService(repo, Options{Thresholds: thresholds(50, 100)})

	got, err := svc.Customers(context.Background(), nil, DefaultTopCountries)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.CustomerSegments[model.SegmentLow].CustomerCount)
}

func TestTopProducts(t *testing.T) {
	svc := NewProductService(newRepo(
		sale(1, 9, "10", "a", "UK"),
		sale(2, 9, "30", "b", "France"),
	), Options{})
	ctx := context.Background()

	got, err := svc.TopProducts(ctx, nil, DefaultTopProducts)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "P-France", got[0].ProductCode)

	got, err = svc.TopProducts(ctx, nil, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	for _, limit := range []int{-1, 0} {
		_, err = svc.TopProducts(ctx, nil, limit)
		require.ErrorIs(t, err, apperror.InvalidInput, "limit %d", limit)
	}

	empty := span(20, 30)
	got, err = svc.TopProducts(ctx, &empty, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLedger_List(t *testing.T) {
	svc := NewLedgerService(newRepo(
		sale(1, 9, "10", "a", "UK"),
		sale(2, 9, "30", "b", "France"),
		sale(3, 9, "20", "c", "UK"),
	), Options{}, "test")
	ctx := context.Background()

	rows, total, err := svc.List(ctx, LedgerFilter{Country: "UK"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, rows, 2)

	r := span(2, 3)
	rows, total, err = svc.List(ctx, LedgerFilter{Range: &r})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "France", rows[0].Country)

	bad := span(3, 2)
	_, _, err = svc.List(ctx, LedgerFilter{Range: &bad})
	require.ErrorIs(t, err, apperror.InvalidRange)

	_, _, err = svc.List(ctx, LedgerFilter{Limit: 500})
	require.ErrorIs(t, err, apperror.InvalidInput)
}

func TestLedger_Health(t *testing.T) {
	repo := newRepo()
	svc := NewLedgerService(repo, Options{}, "1.2.3")

	h := svc.Health(context.Background())
	assert.Equal(t, "healthy", h.Status)
	assert.True(t, h.DatabaseConnected)
	assert.Equal(t, "1.2.3", h.Version)

	repo.err = &repository.StoreError{Op: "ping", Kind: repository.ErrUnavailable, Err: errors.New("refused")}
	h = svc.Health(context.Background())
	assert.Equal(t, "degraded", h.Status)
	assert.False(t, h.DatabaseConnected)
}

func thresholds(low, medium int64) analytics.Thresholds {
	return analytics.Thresholds{LowMax: decimal.NewFromInt(low), MediumMax: decimal.NewFromInt(medium)}
}
