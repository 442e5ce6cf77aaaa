package main

import (
	"context"
	"fmt"
	"os"

	"retailsense/internal/analytics"
	"retailsense/internal/importer"
	"retailsense/internal/model"
	"retailsense/internal/service"

	"github.com/spf13/cobra"
)

func (c *cli) summaryCmd() *cobra.Command {
	return rangeQuery(c, "summary", "Transaction count, value, customers and quantity of a range",
		func(ctx context.Context, r model.DateRange) (model.Summary, error) {
			return c.services.Aggregation.Summary(ctx, r)
		})
}

func (c *cli) categoriesCmd() *cobra.Command {
	return rangeQuery(c, "categories", "Per-category rollup of a range",
		func(ctx context.Context, r model.DateRange) ([]model.CategoryRollup, error) {
			return c.services.Aggregation.Categories(ctx, r)
		})
}

func (c *cli) countriesCmd() *cobra.Command {
	return rangeQuery(c, "countries", "Per-country rollup of a range",
		func(ctx context.Context, r model.DateRange) ([]model.CountryRollup, error) {
			return c.services.Aggregation.Countries(ctx, r)
		})
}

func (c *cli) overviewCmd() *cobra.Command {
	return rangeQuery(c, "overview", "Summary, category and country rollups in one answer",
		func(ctx context.Context, r model.DateRange) (model.Overview, error) {
			return c.services.Aggregation.Overview(ctx, r)
		})
}

func (c *cli) salesCmd() *cobra.Command {
	return rangeQuery(c, "sales", "Sales overview with first and last invoice of a range",
		func(ctx context.Context, r model.DateRange) (model.SalesOverview, error) {
			return c.services.Aggregation.Sales(ctx, r)
		})
}

func (c *cli) priceTiersCmd() *cobra.Command {
	return rangeQuery(c, "price-tiers", "Quantity and value per price tier",
		func(ctx context.Context, r model.DateRange) ([]model.PriceTierRollup, error) {
			return c.services.Aggregation.PriceTiers(ctx, r)
		})
}

func (c *cli) dailyCmd() *cobra.Command {
	var (
		window   int
		fillGaps bool
		cmd      *cobra.Command
	)
	cmd = rangeQuery(c, "daily", "Daily series with moving average, trend and growth",
		func(ctx context.Context, r model.DateRange) (model.TemporalSeries, error) {
			q := service.TemporalQuery{Range: r, FillGaps: fillGaps}
			if cmd.Flags().Changed("window") {
				q.Window = &window
			}
			return c.services.Temporal.Series(ctx, q)
		})
	cmd.Aliases = []string{"temporal"}
	cmd.Flags().IntVarP(&window, "window", "w", analytics.DefaultWindow, "moving average window in days (unset uses the configured default)")
	cmd.Flags().BoolVar(&fillGaps, "fill-gaps", false, "emit zero buckets for days without transactions")
	return cmd
}

func (c *cli) periodsCmd() *cobra.Command {
	var groupBy string
	cmd := rangeQuery(c, "periods", "Sales per calendar period",
		func(ctx context.Context, r model.DateRange) ([]model.PeriodRollup, error) {
			return c.services.Aggregation.Periods(ctx, r, groupBy)
		})
	cmd.Flags().StringVarP(&groupBy, "group-by", "g", "month", "day, week, month, quarter, year or weekday")
	return cmd
}

func (c *cli) customersCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "customers",
		Short: "Customer count, mean value, top countries and segments",
		Long:  "Customer metrics of the --start/--end range, or of the whole ledger when no range is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.open(); err != nil {
				return err
			}
			r, err := c.optionalRange()
			if err != nil {
				return err
			}
			metrics, err := c.services.Segmentation.Customers(c.context(cmd), r, limit)
			if err != nil {
				return err
			}
			return c.print(metrics)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", service.DefaultTopCountries, "number of top countries")
	return cmd
}

func (c *cli) productsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Products ranked by revenue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.open(); err != nil {
				return err
			}
			r, err := c.optionalRange()
			if err != nil {
				return err
			}
			ranking, err := c.services.Products.TopProducts(c.context(cmd), r, limit)
			if err != nil {
				return err
			}
			return c.print(ranking)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", service.DefaultTopProducts, "number of products")
	return cmd
}

type transactionPage struct {
	Data  []model.Transaction `json:"data"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
	Total int64               `json:"total"`
}

func (c *cli) transactionsCmd() *cobra.Command {
	var filter service.LedgerFilter
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List ledger lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.open(); err != nil {
				return err
			}
			r, err := c.optionalRange()
			if err != nil {
				return err
			}
			filter.Range = r
			txs, total, err := c.services.Ledger.List(c.context(cmd), filter)
			if err != nil {
				return err
			}
			return c.print(transactionPage{Data: txs, Page: filter.Page, Limit: filter.Limit, Total: total})
		},
	}
	cmd.Flags().StringVar(&filter.Country, "country", "", "only lines of this country")
	cmd.Flags().StringVar(&filter.Category, "category", "", "only lines of this category")
	cmd.Flags().IntVar(&filter.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "page size")
	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Load a ledger CSV export into the store",
		Long:  "Import parses every line first and inserts all of them in one store transaction; a failing line aborts the whole file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.open(); err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			im := importer.New(c.store.Repo, c.store.TxManager, c.services.Location)
			if batchSize > 0 {
				im.BatchSize = batchSize
			}
			res, err := im.Import(c.context(cmd), f)
			if err != nil {
				return fmt.Errorf("importing %s: %w", args[0], err)
			}
			c.services.Cache.Purge()
			return c.print(res)
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per insert batch (0 uses the default)")
	return cmd
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the store is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.open(); err != nil {
				return err
			}
			status := c.services.Ledger.Health(c.context(cmd))
			if err := c.print(status); err != nil {
				return err
			}
			if !status.DatabaseConnected {
				return fmt.Errorf("store %s is unreachable", c.store.Driver)
			}
			return nil
		},
	}
}
