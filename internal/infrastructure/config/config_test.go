package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnvOverrides(t *testing.T) {
	t.Setenv("STOCKLEDGER_DATABASE_URL", "postgres://localhost/stock")
	t.Setenv("STOCKLEDGER_APP_PORT", "9090")
	t.Setenv("STOCKLEDGER_OUTBOX_POLL_INTERVAL", "2s")
	t.Setenv("STOCKLEDGER_IDEMPOTENCY_ENABLED", "false")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/stock", cfg.Database.URL)
	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
	assert.False(t, cfg.Idempotency.Enabled)

	assert.Equal(t, "stockledger", cfg.App.Name)
	assert.Equal(t, int32(25), cfg.Database.MaxConns)
	assert.Equal(t, 30*time.Second, cfg.Database.StatementTimeout)
	assert.Equal(t, "stockledger.events", cfg.Redis.Channel)
	assert.True(t, cfg.App.IsDevelopment())
}

func TestLoad_YAMLFile(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
app:
  env: production
database:
  url: postgres://db/stock
  max_conns: 10
  auto_migrate: true
outbox:
  batch_size: 20
`)))

	cfg, err := load(v)
	require.NoError(t, err)
	assert.False(t, cfg.App.IsDevelopment())
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 20, cfg.Outbox.BatchSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing database url", func(c *Config) { c.Database.URL = "" }, "database.url is required"},
		{"min above max", func(c *Config) { c.Database.MinConns = 50 }, "database.min_conns"},
		{"zero batch", func(c *Config) { c.Outbox.BatchSize = 0 }, "outbox.batch_size"},
		{"idempotency without ttl", func(c *Config) { c.Idempotency.TTL = 0 }, "idempotency.ttl"},
		{"idempotency disabled ignores ttl", func(c *Config) {
			c.Idempotency.Enabled = false
			c.Idempotency.TTL = 0
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STOCKLEDGER_DATABASE_URL", "postgres://localhost/stock")
			cfg, err := load(viper.New())
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
