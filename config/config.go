/*
Package config loads runtime settings for the salon server.

SOURCES (later wins):
  1. Built-in defaults
  2. Optional salon.yaml in /etc/salon or the working directory
  3. .env file in the working directory (loaded into the environment)
  4. SALON_* environment variables

Nested keys map to env vars by replacing "." with "_", so rates.commission
is SALON_RATES_COMMISSION.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/warp/salon-engine/payroll"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds application configuration.
type Config struct {
	Port           int
	Store          string
	SQLitePath     string
	DatabaseURL    string
	LogLevel       string
	LogFormat      string
	Environment    string
	AllowedOrigins []string
	PayrollWorkers int
	Rates          payroll.Rates
}

// Load reads configuration from defaults, an optional config file, .env
// and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	defaults := payroll.DefaultRates()
	v.SetDefault("port", 8080)
	v.SetDefault("store", StoreSQLite)
	v.SetDefault("sqlite_path", "salon.db")
	v.SetDefault("database_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("environment", "development")
	v.SetDefault("allowed_origins", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("payroll_workers", 4)
	v.SetDefault("rates.self_employed_share", defaults.SelfEmployedShare.String())
	v.SetDefault("rates.holiday_pay", defaults.HolidayPay.String())
	v.SetDefault("rates.employer_nic", defaults.EmployerNIC.String())
	v.SetDefault("rates.commission", defaults.Commission.String())

	v.SetConfigName("salon")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/salon")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SALON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Config{
		Port:           v.GetInt("port"),
		Store:          strings.ToLower(strings.TrimSpace(v.GetString("store"))),
		SQLitePath:     v.GetString("sqlite_path"),
		DatabaseURL:    strings.TrimSpace(v.GetString("database_url")),
		LogLevel:       v.GetString("log_level"),
		LogFormat:      strings.ToLower(v.GetString("log_format")),
		Environment:    v.GetString("environment"),
		AllowedOrigins: splitList(v.GetString("allowed_origins")),
		PayrollWorkers: v.GetInt("payroll_workers"),
	}

	var err error
	if cfg.Rates, err = loadRates(v); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type rateKey struct {
	key string
	dst *decimal.Decimal
}

func loadRates(v *viper.Viper) (payroll.Rates, error) {
	var r payroll.Rates
	for _, f := range []rateKey{
		{"rates.self_employed_share", &r.SelfEmployedShare},
		{"rates.holiday_pay", &r.HolidayPay},
		{"rates.employer_nic", &r.EmployerNIC},
		{"rates.commission", &r.Commission},
	} {
		raw := v.GetString(f.key)
		val, err := decimal.NewFromString(raw)
		if err != nil {
			return payroll.Rates{}, fmt.Errorf("%s: invalid decimal %q: %w", f.key, raw, err)
		}
		*f.dst = val
	}
	return r, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Store {
	case StoreSQLite, StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("SALON_DATABASE_URL is required when store is postgres")
		}
	default:
		return fmt.Errorf("unknown store %q (want sqlite, postgres or memory)", c.Store)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if !c.Rates.Valid() {
		return errors.New("rates must all lie between 0 and 1")
	}
	return nil
}

// IsProduction reports whether the server runs with production defaults.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// SetupLogging applies level and format to the standard logrus logger.
func (c Config) SetupLogging() error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
