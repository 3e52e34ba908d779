package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Wallet    WalletConfig    `yaml:"wallet"`
	Sweep     SweepConfig     `yaml:"sweep"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig selects the gorm dialector. Driver is "postgres" or "mysql".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// WalletConfig tunes the wallet core. Defaults seed the settings row the
// first time an admin updates it.
type WalletConfig struct {
	MaxRetries  int              `yaml:"max_retries"`
	WalletTTL   time.Duration    `yaml:"wallet_cache_ttl"`
	SettingsTTL time.Duration    `yaml:"settings_cache_ttl"`
	Defaults    SettingsDefaults `yaml:"defaults"`
}

type SettingsDefaults struct {
	IsEnabled           bool   `yaml:"is_enabled"`
	CoinToCurrencyRatio string `yaml:"coin_to_currency_ratio"`
	MaxRedeemableCoins  int64  `yaml:"max_redeemable_coins"`
	CoinExpiryDays      int    `yaml:"coin_expiry_days"`
	FirstPurchaseCoins  int64  `yaml:"first_purchase_coins"`
}

type SweepConfig struct {
	Schedule  string `yaml:"schedule"`
	BatchSize int    `yaml:"batch_size"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads yaml file, then applies .env and environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes yaml bytes and applies defaults and env overrides.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	_ = godotenv.Load()
	applyEnv(cfg)
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Port: 8080},
		Database:  DatabaseConfig{Driver: "postgres"},
		Redis:     RedisConfig{Addr: "localhost:6379"},
		Kafka:     KafkaConfig{Topic: "wallet-events"},
		RateLimit: RateLimitConfig{RPS: 50, Burst: 100},
		Wallet: WalletConfig{
			MaxRetries:  3,
			WalletTTL:   5 * time.Minute,
			SettingsTTL: 30 * time.Second,
			Defaults: SettingsDefaults{
				CoinToCurrencyRatio: "0.01",
				MaxRedeemableCoins:  500,
				CoinExpiryDays:      90,
			},
		},
		Sweep: SweepConfig{Schedule: "@daily", BatchSize: 200},
		Log:   LogConfig{Level: "info"},
	}
}

func applyEnv(cfg *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" && cfg.Database.Driver == "postgres" {
		cfg.Database.DSN = cfg.Database.DSN + " password=" + pw
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Log.Level = lvl
	}
}
