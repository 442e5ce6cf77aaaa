package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"retailsense/internal/app"
	"retailsense/internal/config"
	"retailsense/internal/logger"
	"retailsense/internal/model"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const dayLayout = "2006-01-02"

// cli holds the persistent flags and the lazily opened store of one invocation.
type cli struct {
	out, errOut io.Writer

	configPath string
	driver     string
	start      string
	end        string
	compact    bool
	verbose    bool

	log      zerolog.Logger
	store    *app.Store
	services *app.Services
}

// run executes retailctl with args and always releases the store.
func run(args []string, out, errOut io.Writer) error {
	c := &cli{out: out, errOut: errOut}
	defer func() {
		if err := c.store.Close(); err != nil {
			fmt.Fprintf(errOut, "Error: closing store: %v\n", err)
		}
	}()

	root := newRootCmd(c)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return err
	}
	return nil
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "retailctl",
		Short:         "RetailSense ledger analytics CLI",
		Long:          "Import retail ledger exports and query summaries, rollups, daily series and segments.",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", config.DefaultConfigPath, "TOML config file")
	flags.StringVar(&c.driver, "driver", "", "override database.driver (postgres, sqlite or memory)")
	flags.StringVarP(&c.start, "start", "s", "", "first day of the range (YYYY-MM-DD)")
	flags.StringVarP(&c.end, "end", "e", "", "last day of the range (YYYY-MM-DD)")
	flags.BoolVar(&c.compact, "compact", false, "print JSON on one line")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		c.summaryCmd(),
		c.categoriesCmd(),
		c.countriesCmd(),
		c.overviewCmd(),
		c.salesCmd(),
		c.dailyCmd(),
		c.periodsCmd(),
		c.customersCmd(),
		c.productsCmd(),
		c.priceTiersCmd(),
		c.transactionsCmd(),
		c.importCmd(),
		c.healthCmd(),
	)
	return root
}

// open loads configuration and opens the store on first use.
func (c *cli) open() error {
	if c.services != nil {
		return nil
	}
	cfg, err := config.Load(c.configPath)
	if c.driver != "" {
		cfg.Database.Driver = c.driver
		err = cfg.Validate()
	}
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if c.verbose {
		level = "debug"
	} else if level == "info" {
		// keep stderr quiet unless something goes wrong
		level = "warn"
	}
	c.log = logger.NewWithWriter(c.errOut, logger.Config{Level: level, Format: cfg.Log.Format})

	store, err := app.OpenStore(cfg, c.log)
	if err != nil {
		return err
	}
	services, err := app.NewServices(cfg, store.Repo)
	if err != nil {
		_ = store.Close()
		return err
	}
	c.store, c.services = store, services
	return nil
}

func (c *cli) context(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logger.WithContext(ctx, c.log)
}

// dateRange parses --start and --end in the configured location.
func (c *cli) dateRange() (model.DateRange, error) {
	if c.start == "" || c.end == "" {
		return model.DateRange{}, fmt.Errorf("--start and --end are required")
	}
	start, err := time.ParseInLocation(dayLayout, c.start, c.services.Location)
	if err != nil {
		return model.DateRange{}, fmt.Errorf("--start: expected YYYY-MM-DD, got %q", c.start)
	}
	end, err := time.ParseInLocation(dayLayout, c.end, c.services.Location)
	if err != nil {
		return model.DateRange{}, fmt.Errorf("--end: expected YYYY-MM-DD, got %q", c.end)
	}
	return model.DateRange{Start: start, End: end}, nil
}

// optionalRange is nil when neither bound is given, meaning the whole ledger.
func (c *cli) optionalRange() (*model.DateRange, error) {
	if c.start == "" && c.end == "" {
		return nil, nil
	}
	r, err := c.dateRange()
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	if !c.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// rangeQuery builds a command that runs fn over the required --start/--end range.
func rangeQuery[T any](c *cli, use, short string, fn func(ctx context.Context, r model.DateRange) (T, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.open(); err != nil {
				return err
			}
			r, err := c.dateRange()
			if err != nil {
				return err
			}
			out, err := fn(c.context(cmd), r)
			if err != nil {
				return err
			}
			return c.print(out)
		},
	}
}
