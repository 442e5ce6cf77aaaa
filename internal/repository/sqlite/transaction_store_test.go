package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"retailsense/internal/model"
	"retailsense/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *TransactionStore {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func line(when time.Time, value, country string, cust *string) model.Transaction {
	v := decimal.RequireFromString(value)
	return model.Transaction{
		InvoiceNo:     "536365",
		ProductCode:   "85123A",
		Description:   "WHITE HANGING HEART T-LIGHT HOLDER",
		Category:      "Home",
		PriceCategory: "standard",
		Quantity:      2,
		UnitPrice:     v.Div(decimal.NewFromInt(2)),
		TotalValue:    v,
		CustomerID:    cust,
		Country:       country,
		InvoiceDate:   when,
	}.WithDerivedDate(time.UTC)
}

func TestTransactionStore_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	cust := "17850"
	when := time.Date(2010, time.December, 1, 8, 26, 0, 0, time.UTC)

	require.NoError(t, s.CreateBatch(ctx, []model.Transaction{
		line(when, "15.30", "United Kingdom", &cust),
		line(when.Add(time.Hour), "0.10", "France", nil),
	}))

	var got []model.Transaction
	require.NoError(t, s.Scan(ctx, repository.ScanFilter{}, func(tr model.Transaction) error {
		got = append(got, tr)
		return nil
	}))
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, int64(1), first.ID)
	assert.True(t, first.TotalValue.Equal(decimal.RequireFromString("15.30")))
	assert.True(t, first.UnitPrice.Equal(decimal.RequireFromString("7.65")))
	assert.True(t, first.InvoiceDate.Equal(when))
	require.NotNil(t, first.CustomerID)
	assert.Equal(t, "17850", *first.CustomerID)
	assert.Equal(t, 2, first.Weekday) // Wednesday
	assert.Nil(t, got[1].CustomerID)
}

func TestTransactionStore_ScanRangeIsHalfOpen(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateBatch(ctx, []model.Transaction{
		line(base, "1", "UK", nil),
		line(base.Add(12*time.Hour), "2", "UK", nil),
		line(base.AddDate(0, 0, 1), "3", "UK", nil),
	}))

	total := decimal.Zero
	err := s.Scan(ctx, repository.ScanFilter{From: base, To: base.AddDate(0, 0, 1)}, func(tr model.Transaction) error {
		total = total.Add(tr.TotalValue)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(3)))
}

func TestTransactionStore_ScanCrossesBatches(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC)

	n := repository.ScanBatchSize + 5
	txs := make([]model.Transaction, 0, n)
	for i := 0; i < n; i++ {
		// pairs share a timestamp so the id tie-break is exercised
		txs = append(txs, line(base.Add(time.Duration(i/2)*time.Minute), "1", "UK", nil))
	}
	require.NoError(t, s.CreateBatch(ctx, txs))

	var prev int64
	count := 0
	require.NoError(t, s.Scan(ctx, repository.ScanFilter{}, func(tr model.Transaction) error {
		assert.Greater(t, tr.ID, prev)
		prev = tr.ID
		count++
		return nil
	}))
	assert.Equal(t, n, count)
}

func TestTransactionStore_List(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateBatch(ctx, []model.Transaction{
		line(base, "1", "UK", nil),
		line(base.Add(time.Hour), "2", "France", nil),
		line(base.Add(2*time.Hour), "3", "UK", nil),
		line(base.Add(3*time.Hour), "4", "UK", nil),
	}))

	rows, total, err := s.List(ctx, repository.ListFilter{Country: "UK", Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].TotalValue.Equal(decimal.NewFromInt(4)))
}

func TestTransactionStore_FileAndClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())

	err = s.Scan(context.Background(), repository.ScanFilter{}, func(model.Transaction) error { return nil })
	assert.ErrorIs(t, err, repository.ErrQuery)
}

func TestTransactionStore_ScanCanceled(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Scan(ctx, repository.ScanFilter{}, func(model.Transaction) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
