package service

import (
	"context"
	"errors"
	"time"

	"retailsense/internal/analytics"
	"retailsense/internal/apperror"
	"retailsense/internal/cache"
	"retailsense/internal/logger"
	"retailsense/internal/model"
	"retailsense/internal/repository"
)

const dateFormat = "2006-01-02"

// DefaultMaxFillDays is the longest range, in days, a gap-filled series may span.
const DefaultMaxFillDays = analytics.DefaultMaxFillDays

// Options carries the engine settings shared by every analytics service.
type Options struct {
	Location      *time.Location // calendar day boundary, UTC when nil
	DefaultWindow int
	MaxWindow     int
	MaxFillDays   int // longest range a gap-filled series may span
	Thresholds    analytics.Thresholds
	Cache         *cache.Cache // nil disables memoization
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.DefaultWindow <= 0 {
		o.DefaultWindow = analytics.DefaultWindow
	}
	if o.MaxWindow <= 0 {
		o.MaxWindow = 365
	}
	if o.MaxFillDays <= 0 {
		o.MaxFillDays = DefaultMaxFillDays
	}
	if o.Thresholds.LowMax.IsZero() && o.Thresholds.MediumMax.IsZero() {
		o.Thresholds = analytics.DefaultThresholds()
	}
	return o
}

// reader loads range-filtered rows from the store and turns store faults into
// apperror values. It holds no per-request state.
type reader struct {
	repo repository.TransactionRepository
	opts Options
}

func newReader(repo repository.TransactionRepository, opts Options) reader {
	return reader{repo: repo, opts: opts.withDefaults()}
}

// checkRange rejects start > end before anything touches the store.
func (r reader) checkRange(op string, dr model.DateRange) error {
	if dr.Start.IsZero() || dr.End.IsZero() {
		return apperror.New(apperror.KindInvalidRange, op, "start_date and end_date are required", rangeDetails(dr))
	}
	if dr.Start.After(dr.End) {
		return apperror.New(apperror.KindInvalidRange, op, "start_date must not be after end_date", rangeDetails(dr))
	}
	return nil
}

// filterFor converts the closed day range into the store's half-open instant range.
func (r reader) filterFor(dr *model.DateRange) repository.ScanFilter {
	if dr == nil {
		return repository.ScanFilter{}
	}
	loc := r.opts.Location
	return repository.ScanFilter{
		From: analytics.StartOfDay(dr.Start, loc),
		To:   analytics.StartOfDay(dr.End, loc).AddDate(0, 0, 1),
	}
}

// load scans every transaction of dr, or of the whole ledger when dr is nil.
func (r reader) load(ctx context.Context, op string, dr *model.DateRange) ([]model.Transaction, error) {
	log := logger.FromContext(ctx)
	started := time.Now()

	var txs []model.Transaction
	err := r.repo.Scan(ctx, r.filterFor(dr), func(t model.Transaction) error {
		txs = append(txs, t)
		return nil
	})
	if err != nil {
		details := map[string]any{}
		if dr != nil {
			details = rangeDetails(*dr)
		}
		mapped := storeError(op, details, err)
		log.Warn().Err(err).Str("op", op).Str("kind", string(apperror.KindOf(mapped))).Msg("transaction scan failed")
		return nil, mapped
	}

	log.Debug().Str("op", op).Int("rows", len(txs)).Dur("elapsed", time.Since(started)).Msg("transactions scanned")
	return txs, nil
}

// storeError maps a scan failure onto the error taxonomy.
func storeError(op string, details map[string]any, err error) error {
	var appErr *apperror.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, context.Canceled):
		return apperror.Wrap(apperror.KindCanceled, op, "request canceled", details, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, repository.ErrUnavailable):
		return apperror.Wrap(apperror.KindStoreUnavailable, op, "transaction store unavailable", details, err)
	case errors.Is(err, repository.ErrQuery):
		// a failed query is a data fault the caller may retry, like an outage
		return apperror.Wrap(apperror.KindStoreUnavailable, op, "transaction query failed", details, err)
	default:
		return apperror.Wrap(apperror.KindInternal, op, "internal error", details, err)
	}
}

func rangeDetails(dr model.DateRange) map[string]any {
	details := map[string]any{}
	if !dr.Start.IsZero() {
		details["start_date"] = dr.Start.Format(dateFormat)
	}
	if !dr.End.IsZero() {
		details["end_date"] = dr.End.Format(dateFormat)
	}
	return details
}

// rangeKey renders an optional range for cache keys.
func rangeKey(dr *model.DateRange) string {
	if dr == nil {
		return "all"
	}
	return dr.Start.Format(dateFormat) + ".." + dr.End.Format(dateFormat)
}

func remember[T any](ctx context.Context, r reader, key string, compute func(context.Context) (T, error)) (T, error) {
	return cache.Remember(ctx, r.opts.Cache, cache.Key(key, r.opts.Location.String()), compute)
}
