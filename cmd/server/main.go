package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/richardliu001/coin-wallet/internal/config"
	walletdb "github.com/richardliu001/coin-wallet/internal/db"
	"github.com/richardliu001/coin-wallet/internal/logger"
	"github.com/richardliu001/coin-wallet/internal/model"
	"github.com/richardliu001/coin-wallet/internal/repo"
	"github.com/richardliu001/coin-wallet/internal/service"
	httptransport "github.com/richardliu001/coin-wallet/internal/transport/http"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

func main() {
	// 1. load config
	cfg, err := config.Load(configPath())
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLoggerWithLevel(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. database
	gdb, err := walletdb.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open %s: %v", cfg.Database.Driver, err)
	}
	if err := walletdb.Migrate(gdb); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 5. kafka writer
	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.Hash{},
	}
	defer kw.Close()

	// 6. repo & service
	repository := repo.NewRepository(gdb, rdb, kw, log)
	repository.SetCacheTTL(cfg.Wallet.WalletTTL, cfg.Wallet.SettingsTTL)
	defaults, err := settingsDefaults(cfg.Wallet.Defaults)
	if err != nil {
		log.Fatalf("wallet defaults: %v", err)
	}
	svc := service.NewWalletService(repository, log,
		service.WithMaxRetries(cfg.Wallet.MaxRetries),
		service.WithSettingsDefaults(defaults),
		service.WithSweepBatchSize(cfg.Sweep.BatchSize),
	)

	// 7. gin router
	router := httptransport.NewRouter(svc, cfg.RateLimit, log)

	// 8. serve until signalled
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("wallet-server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
	log.Info("wallet-server stopped")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "internal/config/config.yaml"
}

func settingsDefaults(d config.SettingsDefaults) (model.WalletSettings, error) {
	ratio, err := decimal.NewFromString(d.CoinToCurrencyRatio)
	if err != nil {
		return model.WalletSettings{}, fmt.Errorf("coin_to_currency_ratio %q: %w", d.CoinToCurrencyRatio, err)
	}
	return model.WalletSettings{
		IsEnabled:           d.IsEnabled,
		CoinToCurrencyRatio: ratio,
		MaxRedeemableCoins:  d.MaxRedeemableCoins,
		CoinExpiryDays:      d.CoinExpiryDays,
		FirstPurchaseCoins:  d.FirstPurchaseCoins,
	}, nil
}
