package app

import (
	"context"
	"errors"
	"os"
	"time"

	commonHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/archive"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/config"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/index"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/infrastructure/event_publisher"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/infrastructure/lease"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/interfaces/http"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/publication"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/repository"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	logger    zerolog.Logger
	scheduler *publication.Scheduler
	srv       *http.Server
	db        *sqlx.DB
}

// NewApp wires the publication pipeline. redisClient may be nil when
// neither the lease nor notifications are enabled.
func NewApp(
	cfg config.Config,
	watermillLogger watermill.LoggerAdapter,
	db *sqlx.DB,
	redisClient redis.UniversalClient,
	objects archive.ObjectStore,
	records index.Store,
) (*App, error) {
	if (cfg.LeaseEnabled || cfg.NotificationsEnabled) && redisClient == nil {
		return nil, errors.New("redis client is required by the lease and notifications")
	}

	eventsRepo := repository.NewDomainEventsRepo(db)

	opts := []publication.Option{
		publication.WithFailureTracker(eventsRepo),
	}

	if cfg.NotificationsEnabled {
		publisher, err := event_publisher.NewRedisPublisher(watermillLogger, redisClient)
		if err != nil {
			return nil, err
		}

		eventBus, err := event_publisher.NewEventBus(publisher, watermillLogger)
		if err != nil {
			return nil, err
		}

		opts = append(opts, publication.WithNotifier(event_publisher.NewPublicationNotifier(eventBus)))
	}

	coordinator, err := publication.NewCoordinator(
		eventsRepo,
		archive.NewArchiver(objects, cfg.StoreTimeout),
		index.NewIndexer(records, cfg.StoreTimeout),
		publication.Config{
			Bucket:          cfg.ArchiveBucket,
			BatchSize:       cfg.BatchSize,
			Concurrency:     cfg.Concurrency,
			StageTimeout:    cfg.StoreTimeout,
			PoisonThreshold: cfg.PoisonThreshold,
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}

	var schedulerOpts []publication.SchedulerOption
	if cfg.LeaseEnabled {
		schedulerOpts = append(schedulerOpts, publication.WithLease(
			lease.NewRedisLease(redisClient, cfg.LeaseKey),
			cfg.LeaseTTL,
		))
	}
	scheduler := publication.NewScheduler(coordinator, cfg.Interval, schedulerOpts...)

	e := commonHTTP.NewEcho()
	srv := http.NewServer(e, cfg.HTTPAddr, scheduler, coordinator)

	return &App{
		logger:    zerolog.New(os.Stdout).With().Timestamp().Logger(),
		scheduler: scheduler,
		srv:       srv,
		db:        db,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	err := repository.InitializeDBSchema(a.db)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info().Msg("starting publication scheduler")

		return a.scheduler.Run(ctx)
	})

	g.Go(func() error {
		a.logger.Info().Msg("starting server")

		return a.srv.Start()
	})

	g.Go(func() error {
		// Shut down
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		err := a.srv.Stop(shutdownCtx)
		if err != nil {
			a.logger.Err(err).Msg("error stopping server")
		}

		return err
	})

	// Will block until all goroutines finish
	err = g.Wait()
	a.logger.Info().Msg("publisher stopped")

	return err
}
