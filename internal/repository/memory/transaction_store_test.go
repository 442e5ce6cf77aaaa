package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"retailsense/internal/model"
	"retailsense/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(id int64, when time.Time, country, category string) model.Transaction {
	return model.Transaction{
		ID:          id,
		InvoiceNo:   "536365",
		ProductCode: "85123A",
		Category:    category,
		Quantity:    1,
		UnitPrice:   decimal.NewFromInt(10),
		TotalValue:  decimal.NewFromInt(10),
		Country:     country,
		InvoiceDate: when,
	}
}

func at(day, hour int) time.Time {
	return time.Date(2011, time.March, day, hour, 0, 0, 0, time.UTC)
}

func collect(t *testing.T, s *TransactionStore, f repository.ScanFilter) []int64 {
	t.Helper()
	var ids []int64
	err := s.Scan(context.Background(), f, func(tr model.Transaction) error {
		ids = append(ids, tr.ID)
		return nil
	})
	require.NoError(t, err)
	return ids
}

func TestTransactionStore_ScanOrderAndRange(t *testing.T) {
	s := NewTransactionStore(
		tx(3, at(2, 9), "UK", "Mugs"),
		tx(1, at(1, 9), "UK", "Mugs"),
		tx(2, at(2, 9), "France", "Lamps"),
		tx(4, at(3, 0), "UK", "Mugs"),
	)

	assert.Equal(t, []int64{1, 2, 3, 4}, collect(t, s, repository.ScanFilter{}))
	// half-open: the row exactly at To is excluded
	assert.Equal(t, []int64{2, 3}, collect(t, s, repository.ScanFilter{From: at(2, 0), To: at(3, 0)}))
	assert.Equal(t, []int64{4}, collect(t, s, repository.ScanFilter{From: at(3, 0)}))
	assert.Empty(t, collect(t, s, repository.ScanFilter{From: at(5, 0), To: at(6, 0)}))
}

func TestTransactionStore_ScanStopsOnCallbackError(t *testing.T) {
	s := NewTransactionStore(tx(1, at(1, 0), "UK", "A"), tx(2, at(2, 0), "UK", "A"))
	stop := errors.New("stop")

	calls := 0
	err := s.Scan(context.Background(), repository.ScanFilter{}, func(model.Transaction) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestTransactionStore_ScanCanceled(t *testing.T) {
	s := NewTransactionStore(tx(1, at(1, 0), "UK", "A"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Scan(ctx, repository.ScanFilter{}, func(model.Transaction) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransactionStore_AssignsIDs(t *testing.T) {
	s := NewTransactionStore(tx(10, at(1, 0), "UK", "A"))
	require.NoError(t, s.CreateBatch(context.Background(), []model.Transaction{
		tx(0, at(2, 0), "UK", "A"),
		tx(0, at(3, 0), "UK", "A"),
	}))

	assert.Equal(t, []int64{10, 11, 12}, collect(t, s, repository.ScanFilter{}))
	assert.Equal(t, 3, s.Len())
}

func TestTransactionStore_List(t *testing.T) {
	s := NewTransactionStore(
		tx(1, at(1, 0), "UK", "Mugs"),
		tx(2, at(2, 0), "France", "Mugs"),
		tx(3, at(3, 0), "UK", "Lamps"),
		tx(4, at(4, 0), "UK", "Mugs"),
		tx(5, at(5, 0), "UK", "Mugs"),
	)
	ctx := context.Background()

	rows, total, err := s.List(ctx, repository.ListFilter{Country: "UK", Category: "Mugs", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].ID)
	assert.Equal(t, int64(4), rows[1].ID)

	rows, total, err = s.List(ctx, repository.ListFilter{Country: "UK", Category: "Mugs", Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(5), rows[0].ID)

	rows, total, err = s.List(ctx, repository.ListFilter{Page: 9})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, rows)
}

func TestTransactionStore_Closed(t *testing.T) {
	s := NewTransactionStore(tx(1, at(1, 0), "UK", "A"))
	require.NoError(t, s.Close())

	err := s.Ping(context.Background())
	assert.ErrorIs(t, err, repository.ErrUnavailable)

	err = s.Scan(context.Background(), repository.ScanFilter{}, func(model.Transaction) error { return nil })
	assert.True(t, repository.IsUnavailable(err))

	_, _, err = s.List(context.Background(), repository.ListFilter{})
	assert.ErrorIs(t, err, repository.ErrUnavailable)
}
