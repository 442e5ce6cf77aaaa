package service

import (
	"context"

	"retailsense/internal/analytics"
	"retailsense/internal/apperror"
	"retailsense/internal/cache"
	"retailsense/internal/logger"
	"retailsense/internal/model"
	"retailsense/internal/repository"
)

// TemporalQuery selects a daily series. A nil Window means the configured default.
type TemporalQuery struct {
	Range    model.DateRange
	Window   *int
	FillGaps bool
}

// TemporalService builds daily series with moving averages, trend and growth.
type TemporalService interface {
	Series(ctx context.Context, q TemporalQuery) (model.TemporalSeries, error)
}

type temporalService struct {
	reader
}

func NewTemporalService(repo repository.TransactionRepository, opts Options) TemporalService {
	return &temporalService{reader: newReader(repo, opts)}
}

// Series returns ascending daily buckets of the range. A range without
// transactions is reported as no_data because trend and growth are meaningless
// on an empty series.
func (s *temporalService) Series(ctx context.Context, q TemporalQuery) (model.TemporalSeries, error) {
	const op = "temporal series"
	if err := s.checkRange(op, q.Range); err != nil {
		return model.TemporalSeries{}, err
	}
	window := s.opts.DefaultWindow
	if q.Window != nil {
		window = *q.Window
	}
	if window < 1 || window > s.opts.MaxWindow {
		details := rangeDetails(q.Range)
		details["window"] = window
		details["max_window"] = s.opts.MaxWindow
		return model.TemporalSeries{}, apperror.New(apperror.KindInvalidInput, op, "window must be between 1 and max_window", details)
	}
	if q.FillGaps && s.spansMoreThan(q.Range, s.opts.MaxFillDays) {
		details := rangeDetails(q.Range)
		details["fill_gaps"] = true
		details["max_fill_days"] = s.opts.MaxFillDays
		return model.TemporalSeries{}, apperror.New(apperror.KindInvalidInput, op, "range is too long for fill_gaps", details)
	}

	logger.FromContext(ctx).Debug().
		Str("range", rangeKey(&q.Range)).
		Int("window", window).
		Bool("fill_gaps", q.FillGaps).
		Msg("building temporal series")

	key := cache.Key(op, rangeKey(&q.Range), window, q.FillGaps)
	return remember(ctx, s.reader, key, func(ctx context.Context) (model.TemporalSeries, error) {
		txs, err := s.load(ctx, op, &q.Range)
		if err != nil {
			return model.TemporalSeries{}, err
		}
		if len(txs) == 0 {
			details := rangeDetails(q.Range)
			details["window"] = window
			return model.TemporalSeries{}, apperror.New(apperror.KindNoData, op, "no transactions in range", details)
		}

		buckets := analytics.DailySeries(txs, analytics.SeriesOptions{
			Window:   window,
			FillGaps: q.FillGaps,
			Range:    q.Range,
			Location: s.opts.Location,
		})
		return model.TemporalSeries{
			Range:    q.Range,
			Window:   window,
			FillGaps: q.FillGaps,
			Buckets:  buckets,
		}, nil
	})
}

// spansMoreThan reports whether the closed day range r covers more than days days.
func (s *temporalService) spansMoreThan(r model.DateRange, days int) bool {
	loc := s.opts.Location
	last := analytics.StartOfDay(r.Start, loc).AddDate(0, 0, days-1)
	return analytics.StartOfDay(r.End, loc).After(last)
}
