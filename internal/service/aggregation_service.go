package service

import (
	"context"

	"retailsense/internal/analytics"
	"retailsense/internal/apperror"
	"retailsense/internal/cache"
	"retailsense/internal/logger"
	"retailsense/internal/model"
	"retailsense/internal/repository"

	"golang.org/x/sync/errgroup"
)

// AggregationService answers range summaries and rollups. An empty range is a
// zero-valued answer, never an error.
type AggregationService interface {
	Summary(ctx context.Context, r model.DateRange) (model.Summary, error)
	Categories(ctx context.Context, r model.DateRange) ([]model.CategoryRollup, error)
	Countries(ctx context.Context, r model.DateRange) ([]model.CountryRollup, error)
	Overview(ctx context.Context, r model.DateRange) (model.Overview, error)
	Sales(ctx context.Context, r model.DateRange) (model.SalesOverview, error)
	Periods(ctx context.Context, r model.DateRange, groupBy string) ([]model.PeriodRollup, error)
	PriceTiers(ctx context.Context, r model.DateRange) ([]model.PriceTierRollup, error)
}

type aggregationService struct {
	reader
}

func NewAggregationService(repo repository.TransactionRepository, opts Options) AggregationService {
	return &aggregationService{reader: newReader(repo, opts)}
}

func (s *aggregationService) Summary(ctx context.Context, r model.DateRange) (model.Summary, error) {
	const op = "summary"
	if err := s.checkRange(op, r); err != nil {
		return model.Summary{}, err
	}
	return remember(ctx, s.reader, cache.Key(op, rangeKey(&r)), func(ctx context.Context) (model.Summary, error) {
		txs, err := s.load(ctx, op, &r)
		if err != nil {
			return model.Summary{}, err
		}
		return analytics.Summarize(txs), nil
	})
}

func (s *aggregationService) Categories(ctx context.Context, r model.DateRange) ([]model.CategoryRollup, error) {
	const op = "category rollup"
	if err := s.checkRange(op, r); err != nil {
		return nil, err
	}
	return remember(ctx, s.reader, cache.Key(op, rangeKey(&r)), func(ctx context.Context) ([]model.CategoryRollup, error) {
		txs, err := s.load(ctx, op, &r)
		if err != nil {
			return nil, err
		}
		return analytics.RollupByCategory(txs), nil
	})
}

func (s *aggregationService) Countries(ctx context.Context, r model.DateRange) ([]model.CountryRollup, error) {
	const op = "country rollup"
	if err := s.checkRange(op, r); err != nil {
		return nil, err
	}
	return remember(ctx, s.reader, cache.Key(op, rangeKey(&r)), func(ctx context.Context) ([]model.CountryRollup, error) {
		txs, err := s.load(ctx, op, &r)
		if err != nil {
			return nil, err
		}
		return analytics.RollupByCountry(txs), nil
	})
}

// Overview runs the summary and both rollups concurrently. The first failure
// cancels the others.
func (s *aggregationService) Overview(ctx context.Context, r model.DateRange) (model.Overview, error) {
	if err := s.checkRange("overview", r); err != nil {
		return model.Overview{}, err
	}

	out := model.Overview{Range: r}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Summary, err = s.Summary(gctx, r)
		return err
	})
	g.Go(func() error {
		var err error
		out.Categories, err = s.Categories(gctx, r)
		return err
	})
	g.Go(func() error {
		var err error
		out.Countries, err = s.Countries(gctx, r)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Overview{}, err
	}

	logger.FromContext(ctx).Debug().
		Int64("transactions", out.Summary.TotalTransactions).
		Int("categories", len(out.Categories)).
		Int("countries", len(out.Countries)).
		Msg("overview computed")
	return out, nil
}

func (s *aggregationService) Sales(ctx context.Context, r model.DateRange) (model.SalesOverview, error) {
	const op = "sales overview"
	if err := s.checkRange(op, r); err != nil {
		return model.SalesOverview{}, err
	}
	return remember(ctx, s.reader, cache.Key(op, rangeKey(&r)), func(ctx context.Context) (model.SalesOverview, error) {
		txs, err := s.load(ctx, op, &r)
		if err != nil {
			return model.SalesOverview{}, err
		}
		return analytics.Overview(txs, r), nil
	})
}

// Periods rolls the range up by calendar period. An empty groupBy means month.
func (s *aggregationService) Periods(ctx context.Context, r model.DateRange, groupBy string) ([]model.PeriodRollup, error) {
	const op = "period rollup"
	if err := s.checkRange(op, r); err != nil {
		return nil, err
	}
	if groupBy == "" {
		groupBy = string(analytics.ByMonth)
	}
	g, ok := analytics.ParseGranularity(groupBy)
	if !ok {
		return nil, apperror.New(apperror.KindInvalidInput, op, "group_by must be one of day, week, month, quarter, year, weekday",
			map[string]any{"group_by": groupBy})
	}

	return remember(ctx, s.reader, cache.Key(op, rangeKey(&r), g), func(ctx context.Context) ([]model.PeriodRollup, error) {
		txs, err := s.load(ctx, op, &r)
		if err != nil {
			return nil, err
		}
		return analytics.RollupByPeriod(txs, g, s.opts.Location), nil
	})
}

func (s *aggregationService) PriceTiers(ctx context.Context, r model.DateRange) ([]model.PriceTierRollup, error) {
	const op = "price tier rollup"
	if err := s.checkRange(op, r); err != nil {
		return nil, err
	}
	return remember(ctx, s.reader, cache.Key(op, rangeKey(&r)), func(ctx context.Context) ([]model.PriceTierRollup, error) {
		txs, err := s.load(ctx, op, &r)
		if err != nil {
			return nil, err
		}
		return analytics.RollupByPriceTier(txs), nil
	})
}
