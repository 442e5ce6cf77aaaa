package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"retailsense/internal/config"
	"retailsense/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(driver string) config.Config {
	cfg := config.Default()
	cfg.Database.Driver = driver
	return cfg
}

func TestOpenStore_Memory(t *testing.T) {
	st, err := OpenStore(testConfig(config.DriverMemory), zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, config.DriverMemory, st.Driver)
	assert.NoError(t, st.Repo.Ping(context.Background()))
}

func TestOpenStore_SQLite(t *testing.T) {
	cfg := testConfig(config.DriverSQLite)
	cfg.Database.Path = filepath.Join(t.TempDir(), "ledger.db")

	st, err := OpenStore(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, st.Close())
	assert.FileExists(t, cfg.Database.Path)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(testConfig("oracle"), zerolog.Nop())
	assert.ErrorContains(t, err, "oracle")
}

func TestStoreClose_Nil(t *testing.T) {
	var st *Store
	assert.NoError(t, st.Close())
}

func TestNewServices(t *testing.T) {
	cfg := testConfig(config.DriverMemory)
	cfg.Analytics.Timezone = "Europe/London"

	st, err := OpenStore(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	customer := "17850"
	require.NoError(t, st.Repo.CreateBatch(ctx, []model.Transaction{{
		InvoiceNo:   "536365",
		ProductCode: "85123A",
		Quantity:    6,
		InvoiceDate: time.Date(2011, 6, 1, 8, 26, 0, 0, time.UTC),
		UnitPrice:   decimal.RequireFromString("2.55"),
		TotalValue:  decimal.RequireFromString("15.30"),
		CustomerID:  &customer,
		Country:     "United Kingdom",
		Category:    "Home",
	}}))

	svc, err := NewServices(cfg, st.Repo)
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", svc.Location.String())
	assert.NotNil(t, svc.Cache)

	day := time.Date(2011, 6, 1, 0, 0, 0, 0, svc.Location)
	sum, err := svc.Aggregation.Summary(ctx, model.DateRange{Start: day, End: day})
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.TotalTransactions)
	assert.Equal(t, 15.3, sum.TotalValue)

	health := svc.Ledger.Health(ctx)
	assert.Equal(t, Version, health.Version)
	assert.True(t, health.DatabaseConnected)
}
