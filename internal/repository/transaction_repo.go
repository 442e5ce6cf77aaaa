package repository

import (
	"context"
	"time"

	"retailsense/internal/model"

	"gorm.io/gorm"
)

// ScanBatchSize is the number of rows fetched per round trip while scanning.
const ScanBatchSize = 1000

// ScanFilter bounds a scan to InvoiceDate in [From, To). A zero bound is open.
type ScanFilter struct {
	From time.Time
	To   time.Time
}

// ListFilter selects a page of ledger lines.
type ListFilter struct {
	Country  string
	Category string
	From     time.Time
	To       time.Time
	Page     int
	Limit    int
}

// TransactionRepository is the read contract of the ledger plus the bulk insert
// used by the importer. Scan visits rows ordered by (invoice_date, id) and stops
// at the first error returned by fn or by ctx.
type TransactionRepository interface {
	Scan(ctx context.Context, filter ScanFilter, fn func(model.Transaction) error) error
	List(ctx context.Context, filter ListFilter) ([]model.Transaction, int64, error)
	CreateBatch(ctx context.Context, txs []model.Transaction) error
	Ping(ctx context.Context) error
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Scan(ctx context.Context, filter ScanFilter, fn func(model.Transaction) error) error {
	base := applyRange(GetDB(ctx, r.db).Model(&model.Transaction{}), filter.From, filter.To).
		Order("invoice_date ASC, id ASC").
		Session(&gorm.Session{})

	// keyset pagination keeps the order stable across batches
	var (
		lastDate time.Time
		lastID   int64
		first    = true
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page := base
		if !first {
			page = page.Where("((invoice_date > ?) OR (invoice_date = ? AND id > ?))", lastDate, lastDate, lastID)
		}

		var batch []model.Transaction
		if err := page.Limit(ScanBatchSize).Find(&batch).Error; err != nil {
			return classify("scan transactions", err)
		}
		for _, t := range batch {
			if err := fn(t); err != nil {
				return err
			}
		}
		if len(batch) < ScanBatchSize {
			return nil
		}

		last := batch[len(batch)-1]
		lastDate, lastID, first = last.InvoiceDate, last.ID, false
	}
}

func (r *transactionRepository) List(ctx context.Context, filter ListFilter) ([]model.Transaction, int64, error) {
	var txs []model.Transaction
	var total int64

	query := applyRange(GetDB(ctx, r.db).Model(&model.Transaction{}), filter.From, filter.To)
	if filter.Country != "" {
		query = query.Where("country = ?", filter.Country)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	query = query.Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, classify("count transactions", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := query.Order("invoice_date ASC, id ASC").Offset(offset).Limit(filter.Limit).Find(&txs).Error; err != nil {
		return nil, 0, classify("list transactions", err)
	}

	return txs, total, nil
}

func (r *transactionRepository) CreateBatch(ctx context.Context, txs []model.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	if err := GetDB(ctx, r.db).CreateInBatches(&txs, ScanBatchSize).Error; err != nil {
		return classify("insert transactions", err)
	}
	return nil
}

func (r *transactionRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return classify("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

func applyRange(query *gorm.DB, from, to time.Time) *gorm.DB {
	if !from.IsZero() {
		query = query.Where("invoice_date >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("invoice_date < ?", to)
	}
	return query
}

// Normalize fills default paging values.
func (f ListFilter) Normalize() ListFilter {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	return f
}
