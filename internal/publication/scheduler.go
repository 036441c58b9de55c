package publication

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type PassRunner interface {
	RunPass(ctx context.Context) (PassResult, error)
}

// Lease keeps passes of several instances from overlapping. ok is false when
// another holder has it; release must be called once the pass is over.
//
//go:generate mockgen -destination=mocks/lease_mock.go -package=mocks . Lease
type Lease interface {
	TryAcquire(ctx context.Context, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type SchedulerOption func(*Scheduler)

// WithLease makes every pass hold the lease for at most ttl. ttl should be
// well above the longest expected pass.
func WithLease(lease Lease, ttl time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.lease = lease
		s.leaseTTL = ttl
	}
}

// Scheduler runs a pass on start, on every tick and on demand. Passes run one
// after another, never concurrently.
type Scheduler struct {
	runner   PassRunner
	interval time.Duration

	lease    Lease
	leaseTTL time.Duration

	trigger chan struct{}
	running atomic.Bool
}

func NewScheduler(runner PassRunner, interval time.Duration, opts ...SchedulerOption) *Scheduler {
	if runner == nil {
		panic("missing pass runner")
	}
	if interval <= 0 {
		panic("scheduler interval must be positive")
	}

	s := &Scheduler{
		runner:   runner,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run blocks until ctx is cancelled. A pass in flight at that moment
// finishes with the cancelled context.
func (s *Scheduler) Run(ctx context.Context) error {
	s.running.Store(true)
	defer s.running.Store(false)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runPass(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-s.trigger:
		}

		if ctx.Err() != nil {
			return nil
		}
		s.runPass(ctx)
	}
}

// TriggerNow asks for a pass without waiting for the next tick. Triggers
// arriving while one is already pending are merged into it.
func (s *Scheduler) TriggerNow() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) runPass(ctx context.Context) {
	correlationID := "publication_" + uuid.NewString()
	ctx = log.ContextWithCorrelationID(ctx, correlationID)
	ctx = log.ToContext(ctx, logrus.WithFields(logrus.Fields{
		"correlation_id": correlationID,
	}))
	logger := log.FromContext(ctx)

	if s.lease != nil {
		release, ok, err := s.lease.TryAcquire(ctx, s.leaseTTL)
		if err != nil {
			logger.WithError(err).Error("Failed to acquire publication lease, skipping pass")
			return
		}
		if !ok {
			passesSkippedTotal.Inc()
			logger.Debug("Publication lease held elsewhere, skipping pass")
			return
		}
		defer func() {
			// released even when ctx got cancelled during the pass
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.WithError(err).Warn("Failed to release publication lease")
			}
		}()
	}

	result, err := s.runner.RunPass(ctx)
	if err != nil {
		logger.
			WithError(err).
			WithField("fetched", result.Fetched).
			Error("Publication pass failed")
		return
	}

	logger.
		WithField("fetched", result.Fetched).
		WithField("published", len(result.Published)).
		WithField("failed", len(result.Failures)).
		Debug("Publication pass done")
}
