package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/richardliu001/coin-wallet/internal/config"
	walletdb "github.com/richardliu001/coin-wallet/internal/db"
	"github.com/richardliu001/coin-wallet/internal/logger"
	"github.com/richardliu001/coin-wallet/internal/repo"
	"github.com/richardliu001/coin-wallet/internal/service"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "internal/config/config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLoggerWithLevel(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := walletdb.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open %s: %v", cfg.Database.Driver, err)
	}

	// expired balances are written through to the read cache
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warnf("redis ping: %v; running without cache write-through", err)
		rdb = nil
	}

	repository := repo.NewRepository(gdb, rdb, nil, log)
	repository.SetCacheTTL(cfg.Wallet.WalletTTL, cfg.Wallet.SettingsTTL)
	svc := service.NewWalletService(repository, log,
		service.WithMaxRetries(cfg.Wallet.MaxRetries),
		service.WithSweepBatchSize(cfg.Sweep.BatchSize),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(zap.NewStdLog(log.Desugar()))),
		cron.SkipIfStillRunning(cron.PrintfLogger(zap.NewStdLog(log.Desugar()))),
	))
	if _, err := c.AddFunc(cfg.Sweep.Schedule, func() {
		start := time.Now()
		coins, err := svc.ProcessExpiredCoins(ctx)
		if err != nil {
			log.Errorw("expiry sweep failed", "err", err)
			return
		}
		log.Infow("expiry sweep done", "coins", coins, "took", time.Since(start))
	}); err != nil {
		log.Fatalf("schedule %q: %v", cfg.Sweep.Schedule, err)
	}

	c.Start()
	log.Infof("wallet-sweeper scheduled %q", cfg.Sweep.Schedule)
	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("wallet-sweeper stopped")
}
