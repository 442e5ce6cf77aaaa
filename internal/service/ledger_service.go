package service

import (
	"context"
	"time"

	"retailsense/internal/apperror"
	"retailsense/internal/logger"
	"retailsense/internal/model"
	"retailsense/internal/repository"
)

// LedgerFilter selects a page of ledger lines. Range is optional.
type LedgerFilter struct {
	Country  string
	Category string
	Range    *model.DateRange
	Page     int
	Limit    int
}

// LedgerService browses raw ledger lines and reports store health.
type LedgerService interface {
	List(ctx context.Context, filter LedgerFilter) ([]model.Transaction, int64, error)
	Health(ctx context.Context) model.HealthStatus
}

type ledgerService struct {
	reader
	version     string
	pingTimeout time.Duration
	now         func() time.Time
}

func NewLedgerService(repo repository.TransactionRepository, opts Options, version string) LedgerService {
	return &ledgerService{
		reader:      newReader(repo, opts),
		version:     version,
		pingTimeout: 2 * time.Second,
		now:         time.Now,
	}
}

func (s *ledgerService) List(ctx context.Context, filter LedgerFilter) ([]model.Transaction, int64, error) {
	const op = "list transactions"
	if filter.Limit < 0 || filter.Limit > MaxLimit {
		return nil, 0, apperror.New(apperror.KindInvalidInput, op, "limit must be between 1 and 100", map[string]any{"limit": filter.Limit})
	}

	lf := repository.ListFilter{
		Country:  filter.Country,
		Category: filter.Category,
		Page:     filter.Page,
		Limit:    filter.Limit,
	}.Normalize()
	details := map[string]any{"page": lf.Page, "limit": lf.Limit}
	if filter.Range != nil {
		if err := s.checkRange(op, *filter.Range); err != nil {
			return nil, 0, err
		}
		sf := s.filterFor(filter.Range)
		lf.From, lf.To = sf.From, sf.To
		for k, v := range rangeDetails(*filter.Range) {
			details[k] = v
		}
	}

	rows, total, err := s.repo.List(ctx, lf)
	if err != nil {
		mapped := storeError(op, details, err)
		logger.FromContext(ctx).Warn().Err(err).Str("op", op).Msg("ledger listing failed")
		return nil, 0, mapped
	}
	return rows, total, nil
}

// Health never fails; an unreachable store shows up as database_connected=false.
func (s *ledgerService) Health(ctx context.Context) model.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, s.pingTimeout)
	defer cancel()

	status := model.HealthStatus{
		Status:            "healthy",
		Timestamp:         s.now().UTC(),
		DatabaseConnected: true,
		Version:           s.version,
	}
	if err := s.repo.Ping(ctx); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("store ping failed")
		status.Status = "degraded"
		status.DatabaseConnected = false
	}
	return status
}
