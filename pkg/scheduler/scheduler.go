// 文件: pkg/scheduler/scheduler.go
// Named task registry: runs periodic and one-shot tasks with per-task
// interval, start-on-boot flag, non-overlapping execution, pause/
// resume/stop and exponential backoff on repeated failure. Grounded on
// pkg/futures/funding.go's Start/Stop/settlementLoop lifecycle and
// pkg/liquidation/scanner.go's ticker-loop + stopCh/sync.WaitGroup
// shutdown shape.

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itrader/agent/pkg/eventbus"
)

var (
	ErrUnknownTask      = errors.New("scheduler: unknown task")
	ErrDuplicateTask    = errors.New("scheduler: task already registered")
	ErrAlreadyStarted   = errors.New("scheduler: already started")
	ErrSchedulerStopped = errors.New("scheduler: stopped")
)

const (
	// DefaultMaxConsecutiveFailures matches spec's "default 5 in a row".
	DefaultMaxConsecutiveFailures = 5

	// DefaultBackoffCap matches spec's "capped at 5 min".
	DefaultBackoffCap = 5 * time.Minute

	// DefaultStopGrace matches spec's "bounded grace period (default 30s)".
	DefaultStopGrace = 30 * time.Second
)

// Fn is the body of a task. ctx is the context given to Start (or
// RunBootSequence); Stop does not cancel it, so a run in flight at Stop
// ends only when Fn returns or the caller cancels that context.
type Fn func(ctx context.Context) error

// Task is one named unit of work.
type Task struct {
	ID         string
	Fn         Fn
	Interval   time.Duration
	RunOnStart bool
	OneShot    bool
}

// Stats is a point-in-time snapshot for introspection and the event
// bus's stats_update event.
type Stats struct {
	TaskID              string
	RunCount            int64
	LastRunAt           time.Time
	LastErr             error
	ConsecutiveFailures int32
	CurrentInterval     time.Duration
}

type taskState struct {
	task Task

	paused  atomic.Bool
	running atomic.Bool // single-flight guard: true while Fn is in flight

	runCount            atomic.Int64
	lastRunAtMillis     atomic.Int64
	consecutiveFailures atomic.Int32
	currentIntervalNs   atomic.Int64

	errMu   sync.RWMutex
	lastErr error

	triggerCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func newTaskState(t Task) *taskState {
	ts := &taskState{
		task:      t,
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	ts.currentIntervalNs.Store(int64(t.Interval))
	return ts
}

func (ts *taskState) stats() Stats {
	ts.errMu.RLock()
	lastErr := ts.lastErr
	ts.errMu.RUnlock()
	return Stats{
		TaskID:              ts.task.ID,
		RunCount:            ts.runCount.Load(),
		LastRunAt:           time.UnixMilli(ts.lastRunAtMillis.Load()),
		LastErr:             lastErr,
		ConsecutiveFailures: ts.consecutiveFailures.Load(),
		CurrentInterval:     time.Duration(ts.currentIntervalNs.Load()),
	}
}

// Scheduler runs the registered tasks. The zero value is not usable;
// construct with New.
type Scheduler struct {
	bus *eventbus.Bus

	maxConsecutiveFailures int32
	backoffCap             time.Duration
	stopGrace              time.Duration

	mu      sync.RWMutex
	tasks   map[string]*taskState
	started bool

	wg sync.WaitGroup
}

func New(bus *eventbus.Bus) *Scheduler {
	return &Scheduler{
		bus:                    bus,
		maxConsecutiveFailures: DefaultMaxConsecutiveFailures,
		backoffCap:             DefaultBackoffCap,
		stopGrace:              DefaultStopGrace,
		tasks:                  make(map[string]*taskState),
	}
}

// SetBackoffPolicy overrides the failure threshold and interval cap.
func (s *Scheduler) SetBackoffPolicy(maxConsecutiveFailures int32, cap time.Duration) {
	s.maxConsecutiveFailures = maxConsecutiveFailures
	s.backoffCap = cap
}

// SetStopGrace overrides the default 30s shutdown grace period.
func (s *Scheduler) SetStopGrace(d time.Duration) { s.stopGrace = d }

// Register adds a task. It must be called before Start.
func (s *Scheduler) Register(t Task) error {
	if t.ID == "" {
		return errors.New("scheduler: task id must not be empty")
	}
	if t.Fn == nil {
		return fmt.Errorf("scheduler: task %q has no Fn", t.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, t.ID)
	}
	s.tasks[t.ID] = newTaskState(t)
	return nil
}

// RunBootSequence runs the named tasks synchronously, in order, before
// Start enables the periodic ticker. Per spec this removes the
// cold-start race where the first periodic tick could fire before
// account clients are ready: the caller passes the init task first
// ("init"), then "payouts_sync", "work_acceptor", "ad_creator".
func (s *Scheduler) RunBootSequence(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		s.mu.RLock()
		ts, ok := s.tasks[id]
		s.mu.RUnlock()
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTask, id)
		}
		log.Printf("[Scheduler] boot sequence: running %q", id)
		if err := s.runOnce(ctx, ts); err != nil {
			return fmt.Errorf("boot sequence task %q: %w", id, err)
		}
	}
	return nil
}

// Start enables the periodic ticker for every non-one-shot registered
// task. Call RunBootSequence first if the deployment needs one.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	tasks := make([]*taskState, 0, len(s.tasks))
	for _, ts := range s.tasks {
		if ts.task.OneShot {
			continue
		}
		tasks = append(tasks, ts)
	}
	s.mu.Unlock()

	for _, ts := range tasks {
		s.wg.Add(1)
		go s.loop(ctx, ts)
	}
	log.Printf("[Scheduler] started with %d periodic tasks", len(tasks))
	return nil
}

func (s *Scheduler) loop(ctx context.Context, ts *taskState) {
	defer s.wg.Done()
	defer close(ts.doneCh)

	if ts.task.RunOnStart {
		s.tick(ctx, ts)
	}

	ticker := time.NewTicker(time.Duration(ts.currentIntervalNs.Load()))
	defer ticker.Stop()

	for {
		select {
		case <-ts.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ts.triggerCh:
			s.tick(ctx, ts)
			ticker.Reset(time.Duration(ts.currentIntervalNs.Load()))
		case <-ticker.C:
			if ts.paused.Load() {
				continue
			}
			s.tick(ctx, ts)
			ticker.Reset(time.Duration(ts.currentIntervalNs.Load()))
		}
	}
}

// tick runs the task's Fn unless a previous run is still in flight,
// per the "at most one execution of a given task at a time" contract.
func (s *Scheduler) tick(ctx context.Context, ts *taskState) {
	if !ts.running.CompareAndSwap(false, true) {
		return // previous run still in flight: skip, don't queue
	}
	defer ts.running.Store(false)

	err := ts.task.Fn(ctx)

	ts.runCount.Add(1)
	ts.lastRunAtMillis.Store(time.Now().UnixMilli())
	ts.errMu.Lock()
	ts.lastErr = err
	ts.errMu.Unlock()

	if err != nil {
		log.Printf("[Scheduler] task %q failed: %v", ts.task.ID, err)
		s.publishStats(ts)
		s.recordFailure(ts)
		return
	}
	s.publishStats(ts)
	s.recordSuccess(ts)
}

func (s *Scheduler) recordFailure(ts *taskState) {
	n := ts.consecutiveFailures.Add(1)
	if n < s.maxConsecutiveFailures {
		return
	}
	current := time.Duration(ts.currentIntervalNs.Load())
	widened := current * 2
	if widened > s.backoffCap {
		widened = s.backoffCap
	}
	if widened != current {
		ts.currentIntervalNs.Store(int64(widened))
		log.Printf("[Scheduler] task %q backing off to %v after %d consecutive failures", ts.task.ID, widened, n)
	}
}

func (s *Scheduler) recordSuccess(ts *taskState) {
	ts.consecutiveFailures.Store(0)
	if ts.currentIntervalNs.Load() != int64(ts.task.Interval) {
		ts.currentIntervalNs.Store(int64(ts.task.Interval))
	}
}

func (s *Scheduler) publishStats(ts *taskState) {
	if s.bus == nil {
		return
	}
	st := ts.stats()
	var errStr string
	if st.LastErr != nil {
		errStr = st.LastErr.Error()
	}
	s.bus.Publish(eventbus.New(eventbus.TypeStatsUpdate, eventbus.Room{}, map[string]any{
		"task_id":              st.TaskID,
		"run_count":            st.RunCount,
		"last_run_at":          st.LastRunAt.UnixMilli(),
		"last_err":             errStr,
		"consecutive_failures": st.ConsecutiveFailures,
		"current_interval_ms":  st.CurrentInterval.Milliseconds(),
	}, time.Now().UnixMilli()))
}

// runOnce executes a task synchronously, bypassing the ticker loop; used
// by the boot sequence.
func (s *Scheduler) runOnce(ctx context.Context, ts *taskState) error {
	if !ts.running.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler: task %q already running", ts.task.ID)
	}
	defer ts.running.Store(false)

	err := ts.task.Fn(ctx)
	ts.runCount.Add(1)
	ts.lastRunAtMillis.Store(time.Now().UnixMilli())
	ts.errMu.Lock()
	ts.lastErr = err
	ts.errMu.Unlock()

	if err != nil {
		s.recordFailure(ts)
	} else {
		s.recordSuccess(ts)
	}
	s.publishStats(ts)
	return err
}

// Trigger runs a task immediately, outside its regular tick. It
// respects the one-at-a-time rule: if the task is already running, the
// trigger is dropped rather than queued.
func (s *Scheduler) Trigger(id string) error {
	ts, err := s.lookup(id)
	if err != nil {
		return err
	}
	if ts.running.Load() {
		return nil // in flight: drop rather than queue
	}
	select {
	case ts.triggerCh <- struct{}{}:
	default:
	}
	return nil
}

// Pause prevents new ticks for a task; an in-flight run completes.
func (s *Scheduler) Pause(id string) error {
	ts, err := s.lookup(id)
	if err != nil {
		return err
	}
	ts.paused.Store(true)
	return nil
}

// Resume restores ticking for a paused task.
func (s *Scheduler) Resume(id string) error {
	ts, err := s.lookup(id)
	if err != nil {
		return err
	}
	ts.paused.Store(false)
	return nil
}

// Stats returns a snapshot for one task.
func (s *Scheduler) Stats(id string) (Stats, error) {
	ts, err := s.lookup(id)
	if err != nil {
		return Stats{}, err
	}
	return ts.stats(), nil
}

// AllStats returns a snapshot for every registered task.
func (s *Scheduler) AllStats() []Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Stats, 0, len(s.tasks))
	for _, ts := range s.tasks {
		out = append(out, ts.stats())
	}
	return out
}

// Stop cancels every task loop cooperatively and waits for in-flight
// runs to finish, up to the configured grace period (default 30s).
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	for _, ts := range s.tasks {
		if ts.task.OneShot {
			continue
		}
		close(ts.stopCh)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[Scheduler] stopped cleanly")
	case <-time.After(s.stopGrace):
		log.Printf("[Scheduler] grace period (%v) elapsed, some tasks still in flight", s.stopGrace)
	}
}

func (s *Scheduler) lookup(id string) (*taskState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return ts, nil
}
