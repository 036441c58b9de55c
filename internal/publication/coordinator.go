// Package publication promotes domain events recorded by the system of
// record: each unpublished event is archived, then indexed, and the events
// that made it through both steps are marked published in one batch.
package publication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/archive"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/entities"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/keys"
)

var (
	ErrFetch     = errors.New("fetching unpublished events failed")
	ErrBatchMark = errors.New("marking events published failed")
)

//go:generate mockgen -destination=mocks/event_source_mock.go -package=mocks . EventSource
type EventSource interface {
	FindUnpublished(ctx context.Context, limit int) ([]entities.DomainEvent, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) (int, error)
}

type Archiver interface {
	Upload(ctx context.Context, payload any, bucket, key string) entities.ArchiveLocation
}

type Indexer interface {
	Index(ctx context.Context, event entities.DomainEvent, location entities.ArchiveLocation) (entities.EventIndexRecord, error)
}

// FailureTracker keeps per event attempt counters across passes.
type FailureTracker interface {
	RecordFailures(ctx context.Context, failures []entities.PublicationFailure) (map[uuid.UUID]int, error)
	ClearAttempts(ctx context.Context, ids []uuid.UUID) error
}

//go:generate mockgen -destination=mocks/notifier_mock.go -package=mocks . Notifier
type Notifier interface {
	NotifyPublished(ctx context.Context, ids []uuid.UUID) error
}

type Config struct {
	Bucket      string
	BatchSize   int
	Concurrency int
	// StageTimeout bounds archiving and indexing of a single event, each
	// stage separately. Zero means no bound beyond the stores' own.
	StageTimeout time.Duration
	// PoisonThreshold is the number of failed attempts after which an event
	// is reported as poison. Zero disables the reporting.
	PoisonThreshold int
}

func (c Config) validate() error {
	var errs []error
	if c.Bucket == "" {
		errs = append(errs, errors.New("missing bucket"))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", c.BatchSize))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}
	return errors.Join(errs...)
}

type Stage string

const (
	StageSerialize Stage = "serialize"
	StageArchive   Stage = "archive"
	StageIndex     Stage = "index"
)

type Failure struct {
	EventID uuid.UUID
	Stage   Stage
	Err     error
}

type PassResult struct {
	Fetched  int
	Archived int
	Indexed  int
	Marked   int

	Published []uuid.UUID
	Failures  []Failure
}

type State int32

const (
	StateIdle State = iota
	StateFetching
	StateProcessing
	StateMarking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateProcessing:
		return "processing"
	case StateMarking:
		return "marking"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

type Option func(*Coordinator)

func WithFailureTracker(tracker FailureTracker) Option {
	return func(c *Coordinator) {
		c.failures = tracker
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(c *Coordinator) {
		c.notifier = notifier
	}
}

type Coordinator struct {
	source   EventSource
	archiver Archiver
	indexer  Indexer
	failures FailureTracker
	notifier Notifier

	config Config
	state  atomic.Int32
	tracer trace.Tracer
}

func NewCoordinator(
	source EventSource,
	archiver Archiver,
	indexer Indexer,
	config Config,
	opts ...Option,
) (*Coordinator, error) {
	if source == nil {
		return nil, errors.New("missing event source")
	}
	if archiver == nil {
		return nil, errors.New("missing archiver")
	}
	if indexer == nil {
		return nil, errors.New("missing indexer")
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid publication config: %w", err)
	}

	c := &Coordinator{
		source:   source,
		archiver: archiver,
		indexer:  indexer,
		config:   config,
		tracer:   otel.Tracer("publication"),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// outcome of publishing a single event, written only by the goroutine that
// owns its slot.
type outcome struct {
	archived bool
	indexed  bool
	failure  *Failure
}

// RunPass publishes one batch of unpublished events. Per event failures are
// reported in the result and never fail the pass; only fetching the batch
// (ErrFetch) and marking it (ErrBatchMark) do.
func (c *Coordinator) RunPass(ctx context.Context) (PassResult, error) {
	ctx, span := c.tracer.Start(ctx, "RunPass")
	defer span.End()

	start := time.Now()
	defer func() {
		c.state.Store(int32(StateIdle))
		passDuration.Observe(time.Since(start).Seconds())
	}()

	logger := log.FromContext(ctx)

	c.state.Store(int32(StateFetching))
	events, err := c.source.FindUnpublished(ctx, c.config.BatchSize)
	if err != nil {
		passesTotal.WithLabelValues("fetch_error").Inc()
		span.SetStatus(codes.Error, err.Error())
		return PassResult{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	result := PassResult{Fetched: len(events)}
	span.SetAttributes(attribute.Int("events.fetched", len(events)))

	if len(events) == 0 {
		passesTotal.WithLabelValues("empty").Inc()
		return result, nil
	}

	c.state.Store(int32(StateProcessing))
	outcomes := make([]outcome, len(events))

	var g errgroup.Group
	g.SetLimit(c.config.Concurrency)
	for i := range events {
		i := i
		g.Go(func() error {
			outcomes[i] = c.publishEvent(ctx, events[i])
			return nil
		})
	}
	_ = g.Wait()

	var succeeded []uuid.UUID
	for i, o := range outcomes {
		if o.archived {
			result.Archived++
		}
		if o.indexed {
			result.Indexed++
			succeeded = append(succeeded, events[i].ID)
		}
		if o.failure != nil {
			result.Failures = append(result.Failures, *o.failure)
		}
	}

	c.trackFailures(ctx, result.Failures)

	if len(succeeded) == 0 {
		passesTotal.WithLabelValues("ok").Inc()
		logger.
			WithField("fetched", result.Fetched).
			WithField("failed", len(result.Failures)).
			Warn("No event of the batch could be published")
		return result, nil
	}

	c.state.Store(int32(StateMarking))
	marked, err := c.source.MarkPublished(ctx, succeeded)
	if err != nil {
		passesTotal.WithLabelValues("mark_error").Inc()
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("%w: %d events: %w", ErrBatchMark, len(succeeded), err)
	}

	result.Marked = marked
	result.Published = succeeded
	passesTotal.WithLabelValues("ok").Inc()
	eventsPublishedTotal.Add(float64(len(succeeded)))

	if marked != len(succeeded) {
		// someone else published part of the batch in the meantime
		logger.
			WithField("expected", len(succeeded)).
			WithField("marked", marked).
			Warn("Fewer events marked published than succeeded")
	}

	c.afterPublished(ctx, succeeded)

	logger.
		WithField("fetched", result.Fetched).
		WithField("published", len(result.Published)).
		WithField("failed", len(result.Failures)).
		Info("Publication pass finished")

	return result, nil
}

func (c *Coordinator) publishEvent(ctx context.Context, event entities.DomainEvent) (o outcome) {
	ctx, span := c.tracer.Start(ctx, "PublishEvent", trace.WithAttributes(
		attribute.String("event.id", event.ID.String()),
		attribute.String("event.type", string(event.EventType)),
	))
	defer span.End()

	stage := StageArchive
	defer func() {
		if r := recover(); r != nil {
			o.indexed = false
			o.failure = c.fail(ctx, span, event, stage, fmt.Errorf("panic: %v", r))
		}
	}()

	key := keys.ArchiveKey(event.ApplicationID.String(), string(event.EventType), event.ID.String())

	archiveCtx, cancel := c.stageContext(ctx)
	location := c.archiver.Upload(archiveCtx, json.RawMessage(event.Payload), c.config.Bucket, key)
	cancel()

	if !location.Success {
		if errors.Is(location.Err, archive.ErrSerialization) {
			stage = StageSerialize
		}
		o.failure = c.fail(ctx, span, event, stage, location.Err)
		return o
	}
	o.archived = true

	stage = StageIndex
	indexCtx, cancel := c.stageContext(ctx)
	_, err := c.indexer.Index(indexCtx, event, location)
	cancel()

	if err != nil {
		o.failure = c.fail(ctx, span, event, stage, err)
		return o
	}
	o.indexed = true

	return o
}

func (c *Coordinator) fail(ctx context.Context, span trace.Span, event entities.DomainEvent, stage Stage, err error) *Failure {
	if err == nil {
		err = errors.New("unknown failure")
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, string(stage))
	eventFailuresTotal.WithLabelValues(string(stage)).Inc()

	log.FromContext(ctx).
		WithField("event_id", event.ID).
		WithField("event_type", event.EventType).
		WithField("stage", stage).
		WithError(err).
		Warn("Event publication failed, will retry in the next pass")

	return &Failure{EventID: event.ID, Stage: stage, Err: err}
}

func (c *Coordinator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.StageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.StageTimeout)
}

// trackFailures is best effort: losing a counter update only delays poison
// reporting.
func (c *Coordinator) trackFailures(ctx context.Context, failures []Failure) {
	if c.failures == nil || len(failures) == 0 {
		return
	}

	records := make([]entities.PublicationFailure, len(failures))
	for i, f := range failures {
		records[i] = entities.PublicationFailure{
			EventID: f.EventID,
			Stage:   string(f.Stage),
			Reason:  f.Err.Error(),
		}
	}

	attempts, err := c.failures.RecordFailures(ctx, records)
	if err != nil {
		log.FromContext(ctx).WithError(err).Error("Failed to record publication failures")
		return
	}

	if c.config.PoisonThreshold <= 0 {
		return
	}

	for _, f := range failures {
		n := attempts[f.EventID]
		if n < c.config.PoisonThreshold {
			continue
		}

		poisonEventsTotal.Inc()
		log.FromContext(ctx).
			WithField("event_id", f.EventID).
			WithField("stage", f.Stage).
			WithField("attempts", n).
			WithError(f.Err).
			Error("Poison event: publication keeps failing")
	}
}

func (c *Coordinator) afterPublished(ctx context.Context, ids []uuid.UUID) {
	if c.failures != nil {
		if err := c.failures.ClearAttempts(ctx, ids); err != nil {
			log.FromContext(ctx).WithError(err).Warn("Failed to clear publication attempts")
		}
	}

	if c.notifier != nil {
		if err := c.notifier.NotifyPublished(ctx, ids); err != nil {
			log.FromContext(ctx).WithError(err).Warn("Failed to send publication notification")
		}
	}
}
