// Package config loads the service configuration from an optional TOML file,
// configs/.env and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"retailsense/internal/analytics"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

const (
	DefaultConfigPath = "configs/retailsense.toml"
	DefaultEnvPath    = "configs/.env"
)

// Config holds all retailsense configuration.
type Config struct {
	Server       ServerConfig       `toml:"server"`
	Database     DatabaseConfig     `toml:"database"`
	Analytics    AnalyticsConfig    `toml:"analytics"`
	Segmentation SegmentationConfig `toml:"segmentation"`
	Auth         AuthConfig         `toml:"auth"`
	Log          LogConfig          `toml:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port           string   `toml:"port"`
	Mode           string   `toml:"mode"` // gin mode: debug, release or test
	AllowedOrigins []string `toml:"allowed_origins"`
	RequestTimeout Duration `toml:"request_timeout"`
}

// DatabaseConfig selects and configures the transaction store.
type DatabaseConfig struct {
	Driver          string   `toml:"driver"`
	Host            string   `toml:"host"`
	Port            string   `toml:"port"`
	User            string   `toml:"user"`
	Password        string   `toml:"password"`
	Name            string   `toml:"name"`
	SSLMode         string   `toml:"sslmode"`
	Path            string   `toml:"path"` // sqlite file
	MaxOpenConns    int      `toml:"max_open_conns"`
	MaxIdleConns    int      `toml:"max_idle_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
	LogQueries      bool     `toml:"log_queries"`
}

// AnalyticsConfig holds engine defaults.
type AnalyticsConfig struct {
	DefaultWindow int      `toml:"default_window"`
	MaxWindow     int      `toml:"max_window"`
	MaxFillDays   int      `toml:"max_fill_days"` // longest range a fill_gaps series may span
	Timezone      string   `toml:"timezone"`
	CacheTTL      Duration `toml:"cache_ttl"` // zero disables the result cache
	CacheSize     int      `toml:"cache_size"`
}

// SegmentationConfig holds the mean-value tier bounds.
type SegmentationConfig struct {
	LowMax    float64 `toml:"low_max"`
	MediumMax float64 `toml:"medium_max"`
}

// AuthConfig enables the JWT role guard when JWTSecret is set.
type AuthConfig struct {
	JWTSecret    string   `toml:"jwt_secret"`
	AllowedRoles []string `toml:"allowed_roles"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // console or json
}

// Duration decodes TOML strings such as "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           "8080",
			Mode:           "debug",
			AllowedOrigins: []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:8501"},
			RequestTimeout: Duration{30 * time.Second},
		},
		Database: DatabaseConfig{
			Driver:          DriverPostgres,
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Password:        "postgres",
			Name:            "postgres",
			SSLMode:         "disable",
			Path:            "data/retailsense.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: Duration{30 * time.Minute},
		},
		Analytics: AnalyticsConfig{
			DefaultWindow: analytics.DefaultWindow,
			MaxWindow:     365,
			MaxFillDays:   analytics.DefaultMaxFillDays,
			Timezone:      "UTC",
			CacheTTL:      Duration{5 * time.Minute},
			CacheSize:     256,
		},
		Segmentation: SegmentationConfig{
			LowMax:    5,
			MediumMax: 20,
		},
		Auth: AuthConfig{
			AllowedRoles: []string{"admin", "analyst"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration. A missing file at path is not an error; an
// empty path means DefaultConfigPath.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	// .env never overrides variables already set in the process
	_ = godotenv.Load(DefaultEnvPath)

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("PORT", &cfg.Server.Port)
	setString("GIN_MODE", &cfg.Server.Mode)
	setString("DB_DRIVER", &cfg.Database.Driver)
	setString("DB_HOST", &cfg.Database.Host)
	setString("DB_PORT", &cfg.Database.Port)
	setString("DB_USER", &cfg.Database.User)
	setString("DB_PASSWORD", &cfg.Database.Password)
	setString("DB_NAME", &cfg.Database.Name)
	setString("DB_SSLMODE", &cfg.Database.SSLMode)
	setString("SQLITE_PATH", &cfg.Database.Path)
	setString("ANALYTICS_TIMEZONE", &cfg.Analytics.Timezone)
	setString("JWT_SECRET", &cfg.Auth.JWTSecret)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("ANALYTICS_WINDOW"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ANALYTICS_WINDOW: %w", err)
		}
		cfg.Analytics.DefaultWindow = n
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL: %w", err)
		}
		cfg.Analytics.CacheTTL = Duration{d}
	}
	for key, dst := range map[string]*float64{
		"SEGMENT_LOW_MAX":    &cfg.Segmentation.LowMax,
		"SEGMENT_MEDIUM_MAX": &cfg.Segmentation.MediumMax,
	} {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects configurations the services cannot run with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver)
	}
	if c.Analytics.MaxWindow < 1 {
		return fmt.Errorf("analytics.max_window must be at least 1, got %d", c.Analytics.MaxWindow)
	}
	if c.Analytics.DefaultWindow < 1 || c.Analytics.DefaultWindow > c.Analytics.MaxWindow {
		return fmt.Errorf("analytics.default_window must be in [1, %d], got %d", c.Analytics.MaxWindow, c.Analytics.DefaultWindow)
	}
	if c.Analytics.MaxFillDays < 1 {
		return fmt.Errorf("analytics.max_fill_days must be at least 1, got %d", c.Analytics.MaxFillDays)
	}
	if c.Analytics.CacheSize < 0 {
		return fmt.Errorf("analytics.cache_size must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if err := c.Thresholds().Validate(); err != nil {
		return fmt.Errorf("segmentation: %w", err)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c Config) DSN() string {
	d := c.Database
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

// Location returns the time zone that defines calendar days.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Analytics.Timezone)
	if err != nil {
		return nil, fmt.Errorf("analytics.timezone: %w", err)
	}
	return loc, nil
}

// Thresholds returns the segmentation bounds as exact decimals.
func (c Config) Thresholds() analytics.Thresholds {
	return analytics.Thresholds{
		LowMax:    decimal.NewFromFloat(c.Segmentation.LowMax),
		MediumMax: decimal.NewFromFloat(c.Segmentation.MediumMax),
	}
}
