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

	"github.com/segmentio/kafka-go"
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

	// keyed messages hash to one partition, so per-wallet order survives
	kw := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	defer kw.Close()

	// the poller never touches the cache
	repository := repo.NewRepository(gdb, nil, kw, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	log.Info("wallet-poller started")
	for {
		select {
		case <-ctx.Done():
			log.Info("wallet-poller stopped")
			return
		case <-ticker.C:
		}
		events, err := repository.PollOutbox(ctx, 100)
		if err != nil {
			log.Errorf("poll outbox: %v", err)
			continue
		}
		for _, evt := range events {
			// stop at the first failure so later events of the same wallet wait
			if err := repository.PublishEvent(ctx, evt); err != nil {
				log.Errorf("publish id=%d: %v", evt.ID, err)
				break
			}
			if err := repository.MarkOutboxProcessed(ctx, evt.ID); err != nil {
				log.Errorf("mark processed id=%d: %v", evt.ID, err)
				break
			}
			log.Debugw("event sent", "id", evt.ID, "type", evt.EventType, "key", evt.EventKey)
		}
	}
}
