package importer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"retailsense/internal/model"
	"retailsense/internal/repository"
	"retailsense/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const uciLedger = `InvoiceNo,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID,Country
536365,85123A,WHITE HANGING HEART T-LIGHT HOLDER,6,12/1/2010 8:26,2.55,17850.0,United Kingdom
536365,71053,WHITE METAL LANTERN,6,12/1/2010 8:26,3.39,17850.0,United Kingdom
536366,22633,HAND WARMER UNION JACK,6,12/1/2010 8:28,1.85,,United Kingdom
`

const originalLedger = `NumeroFatura;CodigoProduto;Descricao;Quantidade;DataFatura;PrecoUnitario;IDCliente;Pais;CategoriaProduto;CategoriaPreco;ValorTotalFatura
`

func TestParse_UCIFormat(t *testing.T) {
	im := New(memory.NewTransactionStore(), nil, time.UTC)

	txs, err := im.Parse(strings.NewReader(uciLedger))
	require.NoError(t, err)
	require.Len(t, txs, 3)

	first := txs[0]
	assert.Equal(t, "536365", first.InvoiceNo)
	assert.Equal(t, int64(6), first.Quantity)
	assert.True(t, first.TotalValue.Equal(decimal.RequireFromString("15.30")))
	require.NotNil(t, first.CustomerID)
	assert.Equal(t, "17850", *first.CustomerID)
	assert.Equal(t, time.Date(2010, time.December, 1, 8, 26, 0, 0, time.UTC), first.InvoiceDate)
	assert.Equal(t, 2010, first.Year)
	assert.Equal(t, 12, first.Month)
	assert.Equal(t, 1, first.Day)
	assert.Equal(t, 2, first.Weekday)
	assert.False(t, first.SingleInvoice)

	assert.Nil(t, txs[2].CustomerID)
	assert.True(t, txs[2].SingleInvoice)
}

func TestParse_OriginalColumnsKeepStoredTotal(t *testing.T) {
	data := strings.ReplaceAll(originalLedger, ";", ",") +
		"581587,22613,PACK OF 20 SPACEBOY NAPKINS,12,2011-12-09 12:50:00,0.85,12680,France,Party,cheap,10.00\n"
	im := New(memory.NewTransactionStore(), nil, time.UTC)

	txs, err := im.Parse(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "Party", txs[0].Category)
	assert.Equal(t, "cheap", txs[0].PriceCategory)
	// the stored total is kept even when it differs from quantity x price
	assert.True(t, txs[0].TotalValue.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 4, txs[0].Weekday) // Friday
}

func TestParse_Errors(t *testing.T) {
	im := New(memory.NewTransactionStore(), nil, time.UTC)

	_, err := im.Parse(strings.NewReader("InvoiceNo,StockCode,Quantity\n1,2,3\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = im.Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMissingColumn)

	bad := strings.Replace(uciLedger, ",6,12/1/2010 8:28", ",six,12/1/2010 8:28", 1)
	_, err = im.Parse(strings.NewReader(bad))
	assert.ErrorContains(t, err, "line 4")
	assert.ErrorContains(t, err, "quantity")

	bad = strings.Replace(uciLedger, "12/1/2010 8:28", "yesterday", 1)
	_, err = im.Parse(strings.NewReader(bad))
	assert.ErrorContains(t, err, "invoice_date")
}

func TestParse_RejectsNegativeAmounts(t *testing.T) {
	im := New(memory.NewTransactionStore(), nil, time.UTC)
	header := "CustomerID,StockCode,Quantity,InvoiceDate,UnitPrice,InvoiceNo,total_value\n"

	cases := map[string]struct {
		row   string
		field string
	}{
		"quantity and price": {"C1,P1,-3,2011-06-01,-2.50,581001,\n", "quantity must not be negative"},
		"unit price":         {"C1,P1,3,2011-06-01,-2.50,581001,\n", "unit_price must not be negative"},
		"stored total":       {"C1,P1,3,2011-06-01,2.50,581001,-7.50\n", "total_value must not be negative"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ok := "C1,P0,1,2011-06-01,1.00,581000,\n"
			_, err := im.Parse(strings.NewReader(header + ok + tc.row))
			require.Error(t, err)
			assert.ErrorContains(t, err, "line 3")
			assert.ErrorContains(t, err, tc.field)
		})
	}

	// zero is a valid amount
	txs, err := im.Parse(strings.NewReader(header + "C1,P1,0,2011-06-01,0,581002,\n"))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].TotalValue.IsZero())
}

func TestImport_WritesInBatches(t *testing.T) {
	store := memory.NewTransactionStore()
	im := New(store, repository.NoTx{}, time.UTC)
	im.BatchSize = 2

	res, err := im.Import(context.Background(), strings.NewReader(uciLedger))
	require.NoError(t, err)
	assert.Equal(t, Result{Rows: 3, Invoices: 2, Batches: 2}, res)
	assert.Equal(t, 3, store.Len())
}

type failingRepo struct {
	*memory.TransactionStore
}

func (failingRepo) CreateBatch(context.Context, []model.Transaction) error {
	return errors.New("disk full")
}

func TestImport_PropagatesStoreError(t *testing.T) {
	im := New(failingRepo{memory.NewTransactionStore()}, nil, time.UTC)

	_, err := im.Import(context.Background(), strings.NewReader(uciLedger))
	assert.ErrorContains(t, err, "disk full")
	assert.ErrorContains(t, err, "inserting rows 1-3")
}
