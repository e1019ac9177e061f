// 文件: pkg/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itrader/agent/pkg/eventbus"
)

func TestTriggerRunsImmediately(t *testing.T) {
	s := New(eventbus.NewBus())
	var calls atomic.Int64
	require.NoError(t, s.Register(Task{
		ID:       "t1",
		Fn:       func(ctx context.Context) error { calls.Add(1); return nil },
		Interval: time.Hour,
	}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.NoError(t, s.Trigger("t1"))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSingleFlightSkipsOverlappingTick(t *testing.T) {
	s := New(eventbus.NewBus())
	var running atomic.Int64
	var maxConcurrent atomic.Int64
	release := make(chan struct{})

	require.NoError(t, s.Register(Task{
		ID: "slow",
		Fn: func(ctx context.Context) error {
			n := running.Add(1)
			defer running.Add(-1)
			if n > maxConcurrent.Load() {
				maxConcurrent.Store(n)
			}
			<-release
			return nil
		},
		Interval: 10 * time.Millisecond,
	}))
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return running.Load() == 1 }, time.Second, 2*time.Millisecond)
	time.Sleep(50 * time.Millisecond) // several ticks elapse while the first run is still blocked
	close(release)
	s.Stop()

	require.EqualValues(t, 1, maxConcurrent.Load(), "overlapping ticks must be skipped, not queued")
}

func TestPauseStopsNewTicksButResumeRestartsThem(t *testing.T) {
	s := New(eventbus.NewBus())
	var calls atomic.Int64
	require.NoError(t, s.Register(Task{
		ID:       "t1",
		Fn:       func(ctx context.Context) error { calls.Add(1); return nil },
		Interval: 10 * time.Millisecond,
	}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.NoError(t, s.Pause("t1"))
	time.Sleep(60 * time.Millisecond)
	pausedCount := calls.Load()

	require.NoError(t, s.Resume("t1"))
	require.Eventually(t, func() bool { return calls.Load() > pausedCount }, time.Second, 5*time.Millisecond)
}

func TestBackoffWidensIntervalAfterRepeatedFailures(t *testing.T) {
	s := New(eventbus.NewBus())
	s.SetBackoffPolicy(3, time.Second)
	failErr := errors.New("boom")
	require.NoError(t, s.Register(Task{
		ID:       "flaky",
		Fn:       func(ctx context.Context) error { return failErr },
		Interval: 5 * time.Millisecond,
	}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool {
		st, err := s.Stats("flaky")
		require.NoError(t, err)
		return st.ConsecutiveFailures >= 3
	}, time.Second, 5*time.Millisecond)

	st, err := s.Stats("flaky")
	require.NoError(t, err)
	require.Equal(t, 10*time.Millisecond, st.CurrentInterval, "interval should have doubled once the failure threshold was hit")
	require.ErrorIs(t, st.LastErr, failErr)
}

func TestBackoffResetsOnSuccess(t *testing.T) {
	s := New(eventbus.NewBus())
	s.SetBackoffPolicy(2, time.Second)
	var fail atomic.Bool
	fail.Store(true)
	require.NoError(t, s.Register(Task{
		ID: "recovering",
		Fn: func(ctx context.Context) error {
			if fail.Load() {
				return errors.New("still broken")
			}
			return nil
		},
		Interval: 5 * time.Millisecond,
	}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool {
		st, _ := s.Stats("recovering")
		return st.CurrentInterval > 5*time.Millisecond
	}, time.Second, 5*time.Millisecond)

	fail.Store(false)
	require.Eventually(t, func() bool {
		st, _ := s.Stats("recovering")
		return st.ConsecutiveFailures == 0 && st.CurrentInterval == 5*time.Millisecond
	}, time.Second, 5*time.Millisecond)
}

func TestRunBootSequenceRunsInOrderBeforeStart(t *testing.T) {
	s := New(eventbus.NewBus())
	var order []string
	record := func(name string) Fn {
		return func(ctx context.Context) error { order = append(order, name); return nil }
	}
	require.NoError(t, s.Register(Task{ID: "init", Fn: record("init"), OneShot: true}))
	require.NoError(t, s.Register(Task{ID: "payouts_sync", Fn: record("payouts_sync"), Interval: time.Hour}))
	require.NoError(t, s.Register(Task{ID: "work_acceptor", Fn: record("work_acceptor"), Interval: time.Hour}))
	require.NoError(t, s.Register(Task{ID: "ad_creator", Fn: record("ad_creator"), Interval: time.Hour}))

	require.NoError(t, s.RunBootSequence(context.Background(), "init", "payouts_sync", "work_acceptor", "ad_creator"))
	require.Equal(t, []string{"init", "payouts_sync", "work_acceptor", "ad_creator"}, order)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
}

func TestStopWaitsForInFlightRunThenReturns(t *testing.T) {
	s := New(eventbus.NewBus())
	s.SetStopGrace(200 * time.Millisecond)
	started := make(chan struct{})
	finished := make(chan struct{})
	require.NoError(t, s.Register(Task{
		ID: "graceful",
		Fn: func(ctx context.Context) error {
			close(started)
			time.Sleep(50 * time.Millisecond)
			close(finished)
			return nil
		},
		Interval: time.Millisecond,
	}))
	require.NoError(t, s.Start(context.Background()))

	<-started
	s.Stop()
	select {
	case <-finished:
	default:
		t.Fatal("Stop returned before the in-flight run finished, within its grace period")
	}
}

func TestOneShotTaskNeverJoinsPeriodicTicker(t *testing.T) {
	s := New(eventbus.NewBus())
	var calls atomic.Int64
	require.NoError(t, s.Register(Task{
		ID:       "once",
		Fn:       func(ctx context.Context) error { calls.Add(1); return nil },
		OneShot:  true,
		Interval: time.Millisecond,
	}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	time.Sleep(30 * time.Millisecond)
	require.EqualValues(t, 0, calls.Load(), "a one-shot task must not be driven by the periodic ticker")
}

func TestTriggerUnknownTaskReturnsError(t *testing.T) {
	s := New(eventbus.NewBus())
	require.ErrorIs(t, s.Trigger("nope"), ErrUnknownTask)
}

func TestRegisterAfterStartIsRejected(t *testing.T) {
	s := New(eventbus.NewBus())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	require.ErrorIs(t, s.Register(Task{ID: "late", Fn: func(context.Context) error { return nil }, Interval: time.Second}), ErrAlreadyStarted)
}
