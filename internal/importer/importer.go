// Package importer loads a ledger CSV export into a transaction store.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"retailsense/internal/logger"
	"retailsense/internal/model"
	"retailsense/internal/repository"

	"github.com/shopspring/decimal"
)

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("missing required column")

// column names accepted for each field, compared case-insensitively
var aliases = map[string][]string{
	"invoice_no":     {"invoice_no", "invoiceno", "numerofatura"},
	"product_code":   {"product_code", "stockcode", "codigoproduto"},
	"description":    {"description", "descricao"},
	"quantity":       {"quantity", "quantidade"},
	"invoice_date":   {"invoice_date", "invoicedate", "datafatura"},
	"unit_price":     {"unit_price", "unitprice", "precounitario"},
	"customer_id":    {"customer_id", "customerid", "idcliente"},
	"country":        {"country", "pais"},
	"category":       {"category", "categoriaproduto"},
	"price_category": {"price_category", "categoriapreco"},
	"total_value":    {"total_value", "valortotalfatura"},
}

var required = []string{"invoice_no", "product_code", "quantity", "invoice_date", "unit_price"}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"1/2/2006 15:04",
	"2006-01-02",
}

// Result summarizes an import.
type Result struct {
	Rows     int `json:"rows"`
	Invoices int `json:"invoices"`
	Batches  int `json:"batches"`
}

// Importer parses ledger CSV files and inserts them in one store transaction.
type Importer struct {
	repo      repository.TransactionRepository
	tm        repository.TransactionManager
	loc       *time.Location
	BatchSize int
}

func New(repo repository.TransactionRepository, tm repository.TransactionManager, loc *time.Location) *Importer {
	if tm == nil {
		tm = repository.NoTx{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Importer{repo: repo, tm: tm, loc: loc, BatchSize: repository.ScanBatchSize}
}

// Import parses r and writes every line, or none when any batch fails.
func (im *Importer) Import(ctx context.Context, r io.Reader) (Result, error) {
	txs, err := im.Parse(r)
	if err != nil {
		return Result{}, err
	}

	res := Result{Rows: len(txs), Invoices: countInvoices(txs)}
	err = im.tm.RunInTx(ctx, func(txCtx context.Context) error {
		for start := 0; start < len(txs); start += im.BatchSize {
			end := start + im.BatchSize
			if end > len(txs) {
				end = len(txs)
			}
			if err := im.repo.CreateBatch(txCtx, txs[start:end]); err != nil {
				return fmt.Errorf("inserting rows %d-%d: %w", start+1, end, err)
			}
			res.Batches++
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	logger.FromContext(ctx).Info().
		Int("rows", res.Rows).
		Int("invoices", res.Invoices).
		Int("batches", res.Batches).
		Msg("ledger imported")
	return res, nil
}

// Parse reads every CSV record, derives the calendar fields in the importer's
// location and flags lines whose invoice number occurs exactly once in the file.
func (im *Importer) Parse(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file: %w", ErrMissingColumn)
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := indexHeader(header)
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	var txs []model.Transaction
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		line, _ := cr.FieldPos(0)

		t, err := im.parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		txs = append(txs, t)
	}

	counts := make(map[string]int, len(txs))
	for _, t := range txs {
		counts[t.InvoiceNo]++
	}
	for i := range txs {
		txs[i].SingleInvoice = counts[txs[i].InvoiceNo] == 1
	}
	return txs, nil
}

func (im *Importer) parseRecord(record []string, cols map[string]int) (model.Transaction, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var t model.Transaction
	t.InvoiceNo = get("invoice_no")
	t.ProductCode = get("product_code")
	if t.InvoiceNo == "" || t.ProductCode == "" {
		return t, errors.New("invoice_no and product_code must not be empty")
	}
	t.Description = get("description")
	t.Country = get("country")
	t.Category = get("category")
	t.PriceCategory = get("price_category")

	qty, err := strconv.ParseInt(get("quantity"), 10, 64)
	if err != nil {
		return t, fmt.Errorf("quantity: %w", err)
	}
	if qty < 0 {
		return t, fmt.Errorf("quantity must not be negative, got %d", qty)
	}
	t.Quantity = qty

	if t.UnitPrice, err = decimal.NewFromString(get("unit_price")); err != nil {
		return t, fmt.Errorf("unit_price: %w", err)
	}
	if t.UnitPrice.IsNegative() {
		return t, fmt.Errorf("unit_price must not be negative, got %s", t.UnitPrice)
	}
	if v := get("total_value"); v != "" {
		if t.TotalValue, err = decimal.NewFromString(v); err != nil {
			return t, fmt.Errorf("total_value: %w", err)
		}
		if t.TotalValue.IsNegative() {
			return t, fmt.Errorf("total_value must not be negative, got %s", t.TotalValue)
		}
	} else {
		t.TotalValue = t.UnitPrice.Mul(decimal.NewFromInt(qty))
	}
	t.UnitPrice = t.UnitPrice.Round(2)
	t.TotalValue = t.TotalValue.Round(2)

	if id := normalizeCustomer(get("customer_id")); id != "" {
		t.CustomerID = &id
	}

	when, err := parseDate(get("invoice_date"), im.loc)
	if err != nil {
		return t, fmt.Errorf("invoice_date: %w", err)
	}
	t.InvoiceDate = when
	return t.WithDerivedDate(im.loc), nil
}

func indexHeader(header []string) map[string]int {
	lookup := make(map[string]string)
	for field, names := range aliases {
		for _, n := range names {
			lookup[n] = field
		}
	}
	cols := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := lookup[key]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	return cols
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// normalizeCustomer drops the ".0" spreadsheets append to numeric ids.
func normalizeCustomer(id string) string {
	if strings.HasSuffix(id, ".0") {
		if _, err := strconv.ParseInt(strings.TrimSuffix(id, ".0"), 10, 64); err == nil {
			return strings.TrimSuffix(id, ".0")
		}
	}
	return id
}

func countInvoices(txs []model.Transaction) int {
	seen := make(map[string]struct{})
	for _, t := range txs {
		seen[t.InvoiceNo] = struct{}{}
	}
	return len(seen)
}
