package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FileValuesOverrideDefaults(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("POSTGRES_PASSWORD", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Parse([]byte(`
server:
  port: 9090
wallet:
  wallet_cache_ttl: 1m
  defaults:
    coin_to_currency_ratio: "0.10"
    first_purchase_coins: 50
sweep:
  schedule: "0 3 * * *"
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Wallet.WalletTTL)
	assert.Equal(t, 30*time.Second, cfg.Wallet.SettingsTTL)
	assert.Equal(t, "0.10", cfg.Wallet.Defaults.CoinToCurrencyRatio)
	assert.Equal(t, int64(50), cfg.Wallet.Defaults.FirstPurchaseCoins)
	assert.Equal(t, "0 3 * * *", cfg.Sweep.Schedule)
	assert.Equal(t, 200, cfg.Sweep.BatchSize)
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DSN", "host=db user=wallet")
	t.Setenv("POSTGRES_PASSWORD", "s3cret")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Parse([]byte("database:\n  driver: postgres\n"))
	require.NoError(t, err)

	assert.Equal(t, "host=db user=wallet password=s3cret", cfg.Database.DSN)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("server: [unterminated"))
	assert.Error(t, err)
}
