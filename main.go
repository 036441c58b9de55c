package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/app"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/config"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/observability"
)

func main() {
	log.Init(logrus.InfoLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	tp, err := observability.ConfigureTraceProvider(ctx, cfg.OTLPEndpoint)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to configure tracing")
	}
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	db, err := sqlx.Connect("postgres", cfg.PostgresURL)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to postgres")
	}
	defer db.Close()

	var redisClient redis.UniversalClient
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		defer redisClient.Close()
	}

	objects, err := app.NewObjectStore(ctx, cfg, db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create object store")
	}

	records, err := app.NewIndexStore(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create index store")
	}

	watermillLogger := watermill.NewStdLogger(false, false)

	a, err := app.NewApp(cfg, watermillLogger, db, redisClient, objects, records)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create app")
	}

	if err := a.Run(ctx); err != nil {
		logrus.WithError(err).Error("Publisher stopped with an error")
		os.Exit(1)
	}
}
