package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hendraw/partshub/internal/config"
	"github.com/hendraw/partshub/internal/events"
	kafkax "github.com/hendraw/partshub/internal/kafka"
	"github.com/hendraw/partshub/internal/logging"
	"github.com/hendraw/partshub/internal/redisx"
	"github.com/hendraw/partshub/internal/statuscache"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName + "-worker")
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &statuscache.Service{Redis: rdb, Log: log}

	group := getenv("STATUSCACHE_GROUP", "statuscache-svc")
	workers := mustAtoi(os.Getenv("STATUSCACHE_WORKERS"), 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, events.TopicOrderCompleted, workers, log)

	go func() {
		log.Info("consumer started",
			zap.String("group", group),
			zap.String("topic", events.TopicOrderCompleted),
			zap.Int("workers", workers),
		)
		if err := cons.Start(ctx, svc.HandleOrderCompleted); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down consumer")
	cancel()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 1 {
		return def
	}
	return i
}
