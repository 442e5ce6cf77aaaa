// Package app wires configuration into a transaction store and the analytics
// services. Both the API server and retailctl build their dependencies here.
package app

import (
	"fmt"
	"time"

	"retailsense/internal/cache"
	"retailsense/internal/config"
	"retailsense/internal/database"
	"retailsense/internal/repository"
	"retailsense/internal/repository/memory"
	"retailsense/internal/repository/sqlite"
	"retailsense/internal/service"

	"github.com/rs/zerolog"
)

// Version is reported by the health check and the CLI.
var Version = "1.0.0"

// Store is an opened transaction store.
type Store struct {
	Repo      repository.TransactionRepository
	TxManager repository.TransactionManager
	Driver    string
	close     func() error
}

// Close releases the store.
func (s *Store) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStore opens the store selected by cfg.Database.Driver.
func OpenStore(cfg config.Config, log zerolog.Logger) (*Store, error) {
	d := cfg.Database
	switch d.Driver {
	case config.DriverPostgres:
		db, err := database.NewConnection(cfg.DSN(), database.Options{
			MaxOpenConns:    d.MaxOpenConns,
			MaxIdleConns:    d.MaxIdleConns,
			ConnMaxLifetime: d.ConnMaxLifetime.Duration,
			LogQueries:      d.LogQueries,
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("host", d.Host).Str("database", d.Name).Msg("connected to PostgreSQL")
		return &Store{
			Repo:      repository.NewTransactionRepository(db),
			TxManager: repository.NewTransactionManager(db),
			Driver:    d.Driver,
			close:     func() error { return database.Close(db) },
		}, nil

	case config.DriverSQLite:
		st, err := sqlite.Open(d.Path)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", d.Path).Msg("opened SQLite store")
		return &Store{Repo: st, TxManager: repository.NoTx{}, Driver: d.Driver, close: st.Close}, nil

	case config.DriverMemory:
		st := memory.NewTransactionStore()
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return &Store{Repo: st, TxManager: repository.NoTx{}, Driver: d.Driver, close: st.Close}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", d.Driver)
}

// Services groups the analytics services over one store.
type Services struct {
	Aggregation  service.AggregationService
	Temporal     service.TemporalService
	Segmentation service.SegmentationService
	Products     service.ProductService
	Ledger       service.LedgerService
	Location     *time.Location
	Cache        *cache.Cache
}

// NewServices builds the services with the engine settings of cfg. cfg must
// already be validated.
func NewServices(cfg config.Config, repo repository.TransactionRepository) (*Services, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	results := cache.New(cfg.Analytics.CacheSize, cfg.Analytics.CacheTTL.Duration)
	opts := service.Options{
		Location:      loc,
		DefaultWindow: cfg.Analytics.DefaultWindow,
		MaxWindow:     cfg.Analytics.MaxWindow,
		MaxFillDays:   cfg.Analytics.MaxFillDays,
		Thresholds:    cfg.Thresholds(),
		Cache:         results,
	}

	return &Services{
		Aggregation:  service.NewAggregationService(repo, opts),
		Temporal:     service.NewTemporalService(repo, opts),
		Segmentation: service.NewSegmentationService(repo, opts),
		Products:     service.NewProductService(repo, opts),
		Ledger:       service.NewLedgerService(repo, opts, Version),
		Location:     loc,
		Cache:        results,
	}, nil
}
