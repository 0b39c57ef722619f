package config

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "salon.db", cfg.SQLitePath)
	assert.Equal(t, 4, cfg.PayrollWorkers)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, "0.4", cfg.Rates.SelfEmployedShare.String())
	assert.Equal(t, "0.1", cfg.Rates.Commission.String())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SALON_PORT", "9090")
	t.Setenv("SALON_STORE", "Memory")
	t.Setenv("SALON_PAYROLL_WORKERS", "8")
	t.Setenv("SALON_RATES_COMMISSION", "0.15")
	t.Setenv("SALON_ALLOWED_ORIGINS", " https://salon.example , ")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 8, cfg.PayrollWorkers)
	assert.Equal(t, "0.15", cfg.Rates.Commission.String())
	assert.Equal(t, []string{"https://salon.example"}, cfg.AllowedOrigins)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "salon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7000\nrates:\n  holiday_pay: \"0.1207\"\n"), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	cfg, err := load(v)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "0.1207", cfg.Rates.HolidayPay.String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown store", "SALON_STORE", "redis"},
		{"postgres without url", "SALON_STORE", "postgres"},
		{"rate above one", "SALON_RATES_EMPLOYER_NIC", "1.2"},
		{"rate not a number", "SALON_RATES_COMMISSION", "ten percent"},
		{"bad port", "SALON_PORT", "70000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := load(viper.New())
			assert.Error(t, err)
		})
	}
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.GetLevel())

	cfg := Config{LogLevel: "debug", LogFormat: "json"}
	require.NoError(t, cfg.SetupLogging())
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	cfg.LogLevel = "loud"
	assert.Error(t, cfg.SetupLogging())
}
