// Package sqlite stores the ledger in a single SQLite file for local analysis
// and the CLI.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"retailsense/internal/model"
	"retailsense/internal/repository"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // register sqlite driver
)

// dateLayout is fixed width so text comparison orders like time.
const dateLayout = "2006-01-02T15:04:05.000000000Z"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS transactions_main (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	invoice_no     TEXT    NOT NULL,
	product_code   TEXT    NOT NULL,
	description    TEXT    NOT NULL DEFAULT '',
	category       TEXT    NOT NULL DEFAULT '',
	price_category TEXT    NOT NULL DEFAULT '',
	quantity       INTEGER NOT NULL,
	unit_price     TEXT    NOT NULL,
	total_value    TEXT    NOT NULL,
	customer_id    TEXT,
	country        TEXT    NOT NULL DEFAULT '',
	invoice_date   TEXT    NOT NULL,
	single_invoice INTEGER NOT NULL DEFAULT 0,
	year           INTEGER NOT NULL DEFAULT 0,
	month          INTEGER NOT NULL DEFAULT 0,
	day            INTEGER NOT NULL DEFAULT 0,
	weekday        INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_invoice_date ON transactions_main (invoice_date, id);
CREATE INDEX IF NOT EXISTS idx_transactions_country ON transactions_main (country);
CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions_main (category);
`

const columns = `id, invoice_no, product_code, description, category, price_category, quantity,
	unit_price, total_value, customer_id, country, invoice_date, single_invoice,
	year, month, day, weekday, created_at`

// TransactionStore implements repository.TransactionRepository on SQLite.
type TransactionStore struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-process database.
func Open(path string) (*TransactionStore, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// a second connection to :memory: would see a different database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &TransactionStore{db: db}, nil
}

// Close closes the database.
func (s *TransactionStore) Close() error {
	return s.db.Close()
}

// Scan visits rows in (invoice_date, id) order using keyset batches, so no
// cursor stays open while fn runs.
func (s *TransactionStore) Scan(ctx context.Context, filter repository.ScanFilter, fn func(model.Transaction) error) error {
	var (
		lastDate string
		lastID   int64
		first    = true
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		where, args := rangeClause(filter.From, filter.To)
		if !first {
			where = append(where, "(invoice_date > ? OR (invoice_date = ? AND id > ?))")
			args = append(args, lastDate, lastDate, lastID)
		}
		query := "SELECT " + columns + " FROM transactions_main" + joinWhere(where) +
			" ORDER BY invoice_date ASC, id ASC LIMIT ?"
		args = append(args, repository.ScanBatchSize)

		batch, err := s.query(ctx, query, args...)
		if err != nil {
			return wrap("scan transactions", err)
		}
		for _, t := range batch {
			if err := fn(t); err != nil {
				return err
			}
		}
		if len(batch) < repository.ScanBatchSize {
			return nil
		}

		last := batch[len(batch)-1]
		lastDate, lastID, first = formatDate(last.InvoiceDate), last.ID, false
	}
}

// List returns one page of matching rows and the total match count.
func (s *TransactionStore) List(ctx context.Context, filter repository.ListFilter) ([]model.Transaction, int64, error) {
	filter = filter.Normalize()

	where, args := rangeClause(filter.From, filter.To)
	if filter.Country != "" {
		where = append(where, "country = ?")
		args = append(args, filter.Country)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions_main"+joinWhere(where), args...).Scan(&total); err != nil {
		return nil, 0, wrap("count transactions", err)
	}

	query := "SELECT " + columns + " FROM transactions_main" + joinWhere(where) +
		" ORDER BY invoice_date ASC, id ASC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, 0, wrap("list transactions", err)
	}
	return rows, total, nil
}

// CreateBatch inserts txs in one transaction.
func (s *TransactionStore) CreateBatch(ctx context.Context, txs []model.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("insert transactions", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transactions_main (
		invoice_no, product_code, description, category, price_category, quantity,
		unit_price, total_value, customer_id, country, invoice_date, single_invoice,
		year, month, day, weekday, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return wrap("insert transactions", err)
	}
	defer func() { _ = stmt.Close() }()

	now := formatDate(time.Now())
	for _, t := range txs {
		var customerID sql.NullString
		if t.CustomerID != nil {
			customerID = sql.NullString{String: *t.CustomerID, Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			t.InvoiceNo, t.ProductCode, t.Description, t.Category, t.PriceCategory, t.Quantity,
			t.UnitPrice.String(), t.TotalValue.String(), customerID, t.Country,
			formatDate(t.InvoiceDate), t.SingleInvoice,
			t.Year, t.Month, t.Day, t.Weekday, now,
		)
		if err != nil {
			return wrap("insert transactions", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrap("insert transactions", err)
	}
	return nil
}

// Ping checks the database handle.
func (s *TransactionStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &repository.StoreError{Op: "ping", Kind: repository.ErrUnavailable, Err: err}
	}
	return nil
}

func (s *TransactionStore) query(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []model.Transaction{}
	for rows.Next() {
		var (
			t                      model.Transaction
			unitPrice, totalValue  string
			customerID             sql.NullString
			invoiceDate, createdAt string
		)
		if err := rows.Scan(
			&t.ID, &t.InvoiceNo, &t.ProductCode, &t.Description, &t.Category, &t.PriceCategory, &t.Quantity,
			&unitPrice, &totalValue, &customerID, &t.Country, &invoiceDate, &t.SingleInvoice,
			&t.Year, &t.Month, &t.Day, &t.Weekday, &createdAt,
		); err != nil {
			return nil, err
		}
		if t.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("row %d unit_price: %w", t.ID, err)
		}
		if t.TotalValue, err = decimal.NewFromString(totalValue); err != nil {
			return nil, fmt.Errorf("row %d total_value: %w", t.ID, err)
		}
		if customerID.Valid {
			id := customerID.String
			t.CustomerID = &id
		}
		if t.InvoiceDate, err = time.Parse(dateLayout, invoiceDate); err != nil {
			return nil, fmt.Errorf("row %d invoice_date: %w", t.ID, err)
		}
		t.CreatedAt, _ = time.Parse(dateLayout, createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

func rangeClause(from, to time.Time) ([]string, []any) {
	var where []string
	var args []any
	if !from.IsZero() {
		where = append(where, "invoice_date >= ?")
		args = append(args, formatDate(from))
	}
	if !to.IsZero() {
		where = append(where, "invoice_date < ?")
		args = append(args, formatDate(to))
	}
	return where, args
}

func joinWhere(where []string) string {
	if len(where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(where, " AND ")
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// wrap tags driver errors. SQLite is in-process, so everything that is not a
// context error is a query fault.
func wrap(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &repository.StoreError{Op: op, Kind: repository.ErrQuery, Err: err}
}
