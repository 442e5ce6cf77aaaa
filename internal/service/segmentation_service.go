package service

import (
	"context"

	"retailsense/internal/analytics"
	"retailsense/internal/cache"
	"retailsense/internal/model"
	"retailsense/internal/repository"
)

// DefaultTopCountries is the country ranking size when no limit is given.
const DefaultTopCountries = 5

// SegmentationService classifies customers into value tiers.
type SegmentationService interface {
	// Customers segments the customers of r, or of the whole ledger when r is nil.
	Customers(ctx context.Context, r *model.DateRange, limit int) (model.CustomerMetrics, error)
}

type segmentationService struct {
	reader
}

func NewSegmentationService(repo repository.TransactionRepository, opts Options) SegmentationService {
	return &segmentationService{reader: newReader(repo, opts)}
}

func (s *segmentationService) Customers(ctx context.Context, r *model.DateRange, limit int) (model.CustomerMetrics, error) {
	const op = "customer metrics"
	if r != nil {
		if err := s.checkRange(op, *r); err != nil {
			return model.CustomerMetrics{}, err
		}
	}
	if err := checkLimit(op, limit); err != nil {
		return model.CustomerMetrics{}, err
	}

	th := s.opts.Thresholds
	key := cache.Key(op, rangeKey(r), limit, th.LowMax, th.MediumMax)
	return remember(ctx, s.reader, key, func(ctx context.Context) (model.CustomerMetrics, error) {
		txs, err := s.load(ctx, op, r)
		if err != nil {
			return model.CustomerMetrics{}, err
		}
		return analytics.Customers(txs, th, limit), nil
	})
}
