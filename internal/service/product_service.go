package service

import (
	"context"

	"retailsense/internal/analytics"
	"retailsense/internal/apperror"
	"retailsense/internal/cache"
	"retailsense/internal/model"
	"retailsense/internal/repository"
)

const (
	DefaultTopProducts = 10
	MaxLimit           = 100
)

// ProductService ranks products by revenue.
type ProductService interface {
	TopProducts(ctx context.Context, r *model.DateRange, limit int) ([]model.ProductRanking, error)
}

type productService struct {
	reader
}

func NewProductService(repo repository.TransactionRepository, opts Options) ProductService {
	return &productService{reader: newReader(repo, opts)}
}

func (s *productService) TopProducts(ctx context.Context, r *model.DateRange, limit int) ([]model.ProductRanking, error) {
	const op = "top products"
	if r != nil {
		if err := s.checkRange(op, *r); err != nil {
			return nil, err
		}
	}
	if err := checkLimit(op, limit); err != nil {
		return nil, err
	}

	return remember(ctx, s.reader, cache.Key(op, rangeKey(r), limit), func(ctx context.Context) ([]model.ProductRanking, error) {
		txs, err := s.load(ctx, op, r)
		if err != nil {
			return nil, err
		}
		return analytics.TopProducts(txs, limit), nil
	})
}

// checkLimit rejects values outside [1, MaxLimit]. Callers pass the default
// themselves when the limit was not given.
func checkLimit(op string, limit int) error {
	if limit < 1 || limit > MaxLimit {
		return apperror.New(apperror.KindInvalidInput, op, "limit must be between 1 and 100", map[string]any{"limit": limit})
	}
	return nil
}
