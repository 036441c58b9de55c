package publication_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/publication"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/publication/mocks"
)

type passRunner struct {
	calls   atomic.Int32
	active  atomic.Int32
	overlap atomic.Bool
	delay   time.Duration
	err     error
}

func (r *passRunner) RunPass(ctx context.Context) (publication.PassResult, error) {
	if r.active.Add(1) > 1 {
		r.overlap.Store(true)
	}
	defer r.active.Add(-1)

	r.calls.Add(1)
	time.Sleep(r.delay)

	return publication.PassResult{}, r.err
}

func runScheduler(t *testing.T, s *publication.Scheduler) (cancel func()) {
	t.Helper()

	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	require.Eventually(t, s.IsRunning, time.Second, time.Millisecond)

	return func() {
		cancelCtx()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("scheduler did not stop")
		}
	}
}

func TestScheduler_runs_on_start_and_on_trigger(t *testing.T) {
	runner := &passRunner{}
	s := publication.NewScheduler(runner, time.Hour)

	stop := runScheduler(t, s)

	require.Eventually(t, func() bool {
		return runner.calls.Load() == 1
	}, time.Second, time.Millisecond)

	s.TriggerNow()

	require.Eventually(t, func() bool {
		return runner.calls.Load() == 2
	}, time.Second, time.Millisecond)

	stop()
	assert.False(t, s.IsRunning())
}

func TestScheduler_triggers_coalesce(t *testing.T) {
	runner := &passRunner{delay: 100 * time.Millisecond}
	s := publication.NewScheduler(runner, time.Hour)

	stop := runScheduler(t, s)
	defer stop()

	// all of these arrive while the first pass runs
	for i := 0; i < 10; i++ {
		s.TriggerNow()
	}

	require.Eventually(t, func() bool {
		return runner.calls.Load() == 2
	}, time.Second, time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	assert.EqualValues(t, 2, runner.calls.Load())
}

func TestScheduler_passes_never_overlap(t *testing.T) {
	runner := &passRunner{delay: 10 * time.Millisecond}
	s := publication.NewScheduler(runner, time.Millisecond)

	stop := runScheduler(t, s)

	go func() {
		for i := 0; i < 20; i++ {
			s.TriggerNow()
			time.Sleep(time.Millisecond)
		}
	}()

	require.Eventually(t, func() bool {
		return runner.calls.Load() >= 5
	}, 2*time.Second, time.Millisecond)

	stop()
	assert.False(t, runner.overlap.Load())
}

func TestScheduler_keeps_going_after_failed_pass(t *testing.T) {
	runner := &passRunner{err: publication.ErrFetch}
	s := publication.NewScheduler(runner, 5*time.Millisecond)

	stop := runScheduler(t, s)
	defer stop()

	require.Eventually(t, func() bool {
		return runner.calls.Load() >= 3
	}, time.Second, time.Millisecond)
}

func TestScheduler_skips_pass_without_lease(t *testing.T) {
	ctrl := gomock.NewController(t)
	lease := mocks.NewMockLease(ctrl)

	attempts := atomic.Int32{}
	lease.EXPECT().
		TryAcquire(gomock.Any(), time.Minute).
		DoAndReturn(func(context.Context, time.Duration) (func(context.Context) error, bool, error) {
			attempts.Add(1)
			return nil, false, nil
		}).
		MinTimes(2)

	runner := &passRunner{}
	s := publication.NewScheduler(runner, 5*time.Millisecond, publication.WithLease(lease, time.Minute))

	stop := runScheduler(t, s)

	require.Eventually(t, func() bool {
		return attempts.Load() >= 2
	}, time.Second, time.Millisecond)

	stop()
	assert.Zero(t, runner.calls.Load())
}

func TestScheduler_lease_error_skips_pass(t *testing.T) {
	ctrl := gomock.NewController(t)
	lease := mocks.NewMockLease(ctrl)

	acquired := make(chan struct{}, 1)
	lease.EXPECT().
		TryAcquire(gomock.Any(), time.Minute).
		DoAndReturn(func(context.Context, time.Duration) (func(context.Context) error, bool, error) {
			select {
			case acquired <- struct{}{}:
			default:
			}
			return nil, false, errors.New("redis timeout")
		}).
		AnyTimes()

	runner := &passRunner{}
	s := publication.NewScheduler(runner, time.Hour, publication.WithLease(lease, time.Minute))

	stop := runScheduler(t, s)
	<-acquired
	stop()

	assert.Zero(t, runner.calls.Load())
}

func TestScheduler_releases_lease_after_pass(t *testing.T) {
	ctrl := gomock.NewController(t)
	lease := mocks.NewMockLease(ctrl)

	released := make(chan error, 1)
	lease.EXPECT().
		TryAcquire(gomock.Any(), time.Minute).
		Return(func(ctx context.Context) error {
			released <- ctx.Err()
			return nil
		}, true, nil)

	runner := &passRunner{}
	s := publication.NewScheduler(runner, time.Hour, publication.WithLease(lease, time.Minute))

	stop := runScheduler(t, s)
	defer stop()

	select {
	case err := <-released:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("lease was not released")
	}
	assert.EqualValues(t, 1, runner.calls.Load())
}
