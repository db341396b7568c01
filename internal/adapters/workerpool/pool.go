package workerpool

import (
	"context"
	"errors"
	"runtime"
	"sync"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/ZanzyTHEbar/aspectjobs/internal/domain"
	"github.com/ZanzyTHEbar/aspectjobs/internal/ports"
)

// ErrPoolClosed is returned when work is submitted after Close.
var ErrPoolClosed = errors.New("workerpool: pool closed")

// Observer receives task lifecycle callbacks from the workers. Callbacks run
// on the worker goroutine and must not block.
type Observer interface {
	TaskStarted(g *domain.Graph, t *domain.Task)
	TaskFinished(g *domain.Graph, t *domain.Task)
}

type nopObserver struct{}

func (nopObserver) TaskStarted(*domain.Graph, *domain.Task)  {}
func (nopObserver) TaskFinished(*domain.Graph, *domain.Task) {}

// Option configures a ThreadPool.
type Option func(*ThreadPool)

// WithLogger sets the logger handed to job bodies through their context.
func WithLogger(l zerolog.Logger) Option {
	return func(p *ThreadPool) { p.logger = l }
}

// WithObserver registers an observer for task lifecycle callbacks.
func WithObserver(o Observer) Option {
	return func(p *ThreadPool) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithAssertHandler sets the handler that reports broken scheduling
// invariants. The default handler writes to the pool logger and never exits.
func WithAssertHandler(h *assert.AssertHandler) Option {
	return func(p *ThreadPool) { p.asserts = h }
}

// ThreadPool runs dependency graphs on a fixed set of worker goroutines.
// Workers pull from a shared priority ready queue; a task enters the queue
// only once all of its in-batch dependencies have finished.
type ThreadPool struct {
	workers  int
	queue    *readyQueue
	wg       conc.WaitGroup
	quit     chan struct{}
	once     sync.Once
	logger   zerolog.Logger
	observer Observer
	asserts  *assert.AssertHandler

	barrierMu sync.Mutex // one per-thread barrier at a time
}

var _ ports.ThreadPool = (*ThreadPool)(nil)

// New starts a pool with the given number of workers. A non-positive count
// selects runtime.NumCPU().
func New(workers int, opts ...Option) *ThreadPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &ThreadPool{
		workers:  workers,
		queue:    newReadyQueue(),
		quit:     make(chan struct{}),
		logger:   zerolog.Nop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.asserts == nil {
		p.asserts = assert.NewAssertHandler()
		p.asserts.SetExitFunc(func(int) {})
		p.asserts.ToWriter(p.logger)
	}

	p.logger.Debug().Int("workers", workers).Msg("starting thread pool")
	for i := range workers {
		p.wg.Go(func() { p.worker(i) })
	}
	return p
}

// MaxThreadCount returns the number of workers.
func (p *ThreadPool) MaxThreadCount() int { return p.workers }

// MapDependables enqueues every task of g whose dependency counter is zero
// and returns a handle that fires once all g.Len() tasks reached a terminal
// status. The remaining tasks are enqueued by the workers as their
// dependencies finish.
func (p *ThreadPool) MapDependables(g *domain.Graph) (*domain.CompletionHandle, error) {
	if p.queue.isClosed() {
		return nil, ErrPoolClosed
	}
	b := &batch{
		graph:  g,
		handle: domain.NewCompletionHandle(g.Len(), g.Err),
	}
	if ready := g.Ready(); len(ready) > 0 {
		if !p.queue.push(taskItems(b, ready)...) {
			return nil, ErrPoolClosed
		}
	}
	return b.handle, nil
}

// Close stops the workers and waits for them to exit. Tasks still queued are
// abandoned; tasks already running finish first. Close is idempotent.
func (p *ThreadPool) Close() {
	p.once.Do(func() {
		close(p.quit)
		p.queue.close()
	})
	p.wg.Wait()
}

func (p *ThreadPool) worker(id int) {
	logger := p.logger.With().Int("worker", id).Logger()
	ctx := logger.WithContext(withWorker(context.Background(), id))
	for {
		it, ok := p.queue.pop()
		if !ok {
			return
		}
		if it.barrier != nil {
			it.barrier.run(ctx, p.quit)
			continue
		}
		p.runTask(ctx, id, it)
	}
}

func (p *ThreadPool) runTask(ctx context.Context, id int, it workItem) {
	g := it.batch.graph
	t := g.Task(it.index)
	running := t.MarkRunning(id)
	p.asserts.Assert(ctx, running, "task dequeued twice", "job", string(t.ID()), "worker", id)
	if !running {
		return
	}

	status, err := p.execute(ctx, g, t)
	released := g.Finish(it.index, status, err)
	for _, d := range t.Dependents {
		dep := g.Task(d)
		p.asserts.Assert(ctx, dep.Remaining() >= 0, "dependency counter below zero",
			"job", string(dep.ID()), "remaining", dep.Remaining())
	}
	p.observer.TaskFinished(g, t)

	if len(released) > 0 {
		// A closed queue drops them; the batch is abandoned along with the pool.
		p.queue.push(taskItems(it.batch, released)...)
	}
	it.batch.handle.Complete()
}

func (p *ThreadPool) execute(ctx context.Context, g *domain.Graph, t *domain.Task) (domain.TaskStatus, error) {
	if t.Poisoned() {
		return domain.Skipped, nil
	}
	if r, ok := t.Job.(domain.Requirer); ok && !r.IsRequired() {
		return domain.Skipped, nil
	}

	p.observer.TaskStarted(g, t)
	var (
		pc  panics.Catcher
		err error
	)
	pc.Try(func() { err = t.Job.Run(ctx) })
	if rec := pc.Recovered(); rec != nil {
		err = rec.AsError()
	}
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("job", string(t.ID())).Msg("job failed")
		return domain.Failed, err
	}
	return domain.Completed, nil
}
