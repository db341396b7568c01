package jobmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/aspectjobs/internal/adapters/eventbus"
	"github.com/ZanzyTHEbar/aspectjobs/internal/domain"
	"github.com/ZanzyTHEbar/aspectjobs/internal/ports"
)

// ErrBatchInFlight is returned by EnqueueJobs when the previous batch has not
// been waited for.
var ErrBatchInFlight = errors.New("jobmanager: previous batch still in flight")

// State is the lifecycle position of the manager's current batch.
type State int32

const (
	Idle State = iota
	GraphBuilt
	Scheduled
	Draining
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case GraphBuilt:
		return "graph-built"
	case Scheduled:
		return "scheduled"
	case Draining:
		return "draining"
	default:
		return "unknown"
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithEventBus sets the bus batch events are published to and drained from.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(m *Manager) {
		if bus != nil {
			m.bus = bus
		}
	}
}

// WithStats feeds sc from batch.completed events.
func WithStats(sc *domain.StatsCollector) Option {
	return func(m *Manager) { m.stats = sc }
}

// WithTracker lets job events carry the batch id.
func WithTracker(t *Tracker) Option {
	return func(m *Manager) { m.tracker = t }
}

// WithCycleDetection rejects cyclic submissions instead of letting the cyclic
// jobs wait forever.
func WithCycleDetection(enabled bool) Option {
	return func(m *Manager) { m.detectCycles = enabled }
}

type frame struct {
	id      string
	graph   *domain.Graph
	handle  *domain.CompletionHandle
	started time.Time

	finished chan struct{} // closed once PostFrame hooks ran and events were delivered
	err      error         // set before finished is closed
}

// Manager is the frame-level façade over a thread pool: build the dependency
// graph of a batch of jobs, hand it to the pool, and wait for it to drain.
// Exactly one batch may be in flight at a time.
type Manager struct {
	pool         ports.ThreadPool
	logger       zerolog.Logger
	bus          eventbus.EventBus
	stats        *domain.StatsCollector
	tracker      *Tracker
	detectCycles bool

	mu          sync.Mutex
	state       State
	current     *frame
	closing     *frame // taken by a waiter, still finishing
	lastBatchID string
}

// New creates a Manager running its batches on pool.
func New(pool ports.ThreadPool, opts ...Option) *Manager {
	m := &Manager{
		pool:   pool,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bus == nil {
		m.bus = eventbus.NewDispatcher(eventbus.WithLogger(m.logger))
	}
	if m.stats != nil {
		m.bus.Subscribe(domain.BatchCompleted, m.stats.Handle)
	}
	return m
}

// EnqueueJobs builds the dependency graph for jobs and schedules it. It does
// not wait for any job to run.
func (m *Manager) EnqueueJobs(jobs []domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Idle {
		return ErrBatchInFlight
	}

	g, err := domain.BuildGraph(jobs, domain.WithCycleDetection(m.detectCycles))
	if err != nil {
		return fmt.Errorf("enqueue jobs: %w", err)
	}
	m.state = GraphBuilt

	id := uuid.NewString()
	if m.tracker != nil {
		m.tracker.track(g, id)
	}
	started := time.Now()
	h, err := m.pool.MapDependables(g)
	if err != nil {
		if m.tracker != nil {
			m.tracker.untrack(g)
		}
		m.state = Idle
		return fmt.Errorf("enqueue jobs: %w", err)
	}

	m.current = &frame{id: id, graph: g, handle: h, started: started, finished: make(chan struct{})}
	m.lastBatchID = id
	m.state = Scheduled

	m.bus.Publish(domain.NewEvent(domain.BatchScheduled, domain.BatchEvent{
		BatchID: id,
		Jobs:    g.Len(),
		Ready:   len(g.Ready()),
	}))
	m.logger.Debug().
		Str("batch", id).
		Int("jobs", g.Len()).
		Int("ready", len(g.Ready())).
		Msg("batch scheduled")
	return nil
}

// WaitForAllJobs blocks until every job of the last batch reached a terminal
// status, then runs PostFrame hooks on the calling goroutine and delivers
// queued events. It returns the joined errors of the failed jobs. Without a
// batch in flight it returns nil immediately.
func (m *Manager) WaitForAllJobs() error {
	return m.WaitForAllJobsContext(context.Background())
}

// WaitForAllJobsContext is WaitForAllJobs bounded by ctx. When ctx ends first
// the batch keeps draining and a later call can wait for it again. Concurrent
// waiters on one batch all return after it was finished by one of them.
func (m *Manager) WaitForAllJobsContext(ctx context.Context) error {
	m.mu.Lock()
	f := m.current
	if f == nil {
		closing := m.closing
		m.mu.Unlock()
		if closing == nil {
			return nil
		}
		return closing.wait(ctx)
	}
	m.state = Draining
	m.mu.Unlock()

	if err := f.handle.Wait(ctx); err != nil {
		return fmt.Errorf("wait for batch %s: %w", f.id, err)
	}

	m.mu.Lock()
	if m.current != f {
		m.mu.Unlock()
		return f.wait(ctx)
	}
	m.current = nil
	m.closing = f
	m.mu.Unlock()

	err := m.finish(ctx, f)

	m.mu.Lock()
	m.closing = nil
	m.state = Idle
	m.mu.Unlock()

	f.err = err
	close(f.finished)
	return err
}

// wait blocks until the waiter that took f finished it.
func (f *frame) wait(ctx context.Context) error {
	select {
	case <-f.finished:
		return f.err
	case <-ctx.Done():
		return fmt.Errorf("wait for batch %s: %w", f.id, ctx.Err())
	}
}

func (m *Manager) finish(ctx context.Context, f *frame) error {
	ctx = m.logger.With().Str("batch", f.id).Logger().WithContext(ctx)
	n := f.graph.Len()
	for i := 0; i < n; i++ {
		t := f.graph.Task(i)
		if t.Status() != domain.Completed {
			continue
		}
		if pf, ok := t.Job.(domain.PostFramer); ok {
			pf.PostFrame(ctx)
		}
	}

	err := f.handle.Err()
	counts := f.graph.Counts()
	elapsed := time.Since(f.started)
	// Deliver job events first; they can fill a bounded queue.
	m.bus.Drain()
	m.bus.Publish(domain.NewEvent(domain.BatchCompleted, domain.BatchEvent{
		BatchID:  f.id,
		Jobs:     n,
		Ready:    len(f.graph.Ready()),
		Counts:   counts,
		Duration: elapsed,
		Err:      err,
	}))
	m.bus.Drain()
	if m.tracker != nil {
		m.tracker.untrack(f.graph)
	}

	ev := m.logger.Debug()
	if err != nil {
		ev = m.logger.Warn().Err(err)
	}
	ev.Str("batch", f.id).
		Dur("elapsed", elapsed).
		Int("completed", counts[domain.Completed]).
		Int("failed", counts[domain.Failed]).
		Int("skipped", counts[domain.Skipped]).
		Msg("batch drained")
	return err
}

// WaitForPerThreadFunction runs fn once on every worker of the pool and
// blocks until all of them returned.
func (m *Manager) WaitForPerThreadFunction(fn ports.PerThreadFunc, arg any) error {
	return m.pool.WaitForPerThreadFunction(context.Background(), fn, arg)
}

// MaxThreadCount returns the pool's worker count.
func (m *Manager) MaxThreadCount() int { return m.pool.MaxThreadCount() }

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastBatchID returns the id of the most recent submission.
func (m *Manager) LastBatchID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBatchID
}
