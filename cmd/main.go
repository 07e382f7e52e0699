package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/yourorg/connecthub/internal/api"
	"github.com/yourorg/connecthub/internal/auth"
	"github.com/yourorg/connecthub/internal/cache"
	cfgpkg "github.com/yourorg/connecthub/internal/config"
	"github.com/yourorg/connecthub/internal/events"
	"github.com/yourorg/connecthub/internal/logger"
	"github.com/yourorg/connecthub/internal/service"
	"github.com/yourorg/connecthub/internal/store"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := cfgpkg.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zl, err := logger.New(logger.Config{Development: cfg.App.Env != "production"})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zl.Sync()

	ctx := context.Background()

	mc, err := store.NewMongoClient(ctx, cfg.Mongo.URI)
	if err != nil {
		zl.Fatalw("mongo init", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()

	st, err := store.NewMongo(ctx, mc.Database(cfg.Mongo.Database))
	if err != nil {
		zl.Fatalw("mongo indexes", "err", err)
	}

	var counts *cache.PendingCounts
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			zl.Fatalw("redis ping", "err", err)
		}
		counts = cache.NewPendingCounts(rdb, cfg.PendingCountTTL)
	}

	var pub *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer pub.Close()
	}

	conns := service.NewConnectionService(st, counts, pub, zl)
	convs := service.NewConversationService(st, st, st, pub, zl)

	jv, err := auth.NewJWTValidator(cfg.JWT.Alg, cfg.JWT.PublicKeyPath, cfg.JWT.Secret)
	if err != nil {
		zl.Fatalw("jwt validator", "err", err)
	}

	app := api.NewServer(jv, conns, convs, zl)

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
			zl.Fatalw("server listen", "err", err)
		}
	}()
	zl.Infow("connecthub started", "port", cfg.App.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = app.ShutdownWithContext(shutCtx)
	zl.Info("connecthub stopped")
}
