package workerpool

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"

	"github.com/ZanzyTHEbar/aspectjobs/internal/domain"
	"github.com/ZanzyTHEbar/aspectjobs/internal/ports"
)

// barrier runs a function once on every worker. Each slot blocks after
// running fn until all slots have run it, so no worker can take two slots.
type barrier struct {
	fn      ports.PerThreadFunc
	arg     any
	pending atomic.Int32
	release chan struct{}
	done    *domain.CompletionHandle

	mu       sync.Mutex
	panicErr error
}

func newBarrier(n int, fn ports.PerThreadFunc, arg any) *barrier {
	b := &barrier{
		fn:      fn,
		arg:     arg,
		release: make(chan struct{}),
	}
	b.pending.Store(int32(n))
	b.done = domain.NewCompletionHandle(n, b.err)
	return b
}

func (b *barrier) run(ctx context.Context, quit <-chan struct{}) {
	defer b.done.Complete()

	if rec := panics.Try(func() { b.fn(ctx, b.arg) }); rec != nil {
		b.mu.Lock()
		if b.panicErr == nil {
			b.panicErr = rec.AsError()
		}
		b.mu.Unlock()
	}

	if b.pending.Add(-1) == 0 {
		close(b.release)
	}
	select {
	case <-b.release:
	case <-quit:
	}
}

func (b *barrier) err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.panicErr
}

// WaitForPerThreadFunction runs fn exactly once on each worker and returns
// when every worker has run it. Barrier slots jump ahead of queued graph
// tasks. Calls are serialized; if ctx ends first the barrier still completes
// in the background before the next one may start.
func (p *ThreadPool) WaitForPerThreadFunction(ctx context.Context, fn ports.PerThreadFunc, arg any) error {
	if fn == nil {
		return nil
	}
	p.barrierMu.Lock()

	b := newBarrier(p.workers, fn, arg)
	items := make([]workItem, p.workers)
	for i := range items {
		items[i] = workItem{barrier: b, priority: math.MaxInt}
	}
	if !p.queue.push(items...) {
		p.barrierMu.Unlock()
		return ErrPoolClosed
	}

	select {
	case <-b.done.Done():
		p.barrierMu.Unlock()
		return b.done.Err()
	case <-p.quit:
		p.barrierMu.Unlock()
		return ErrPoolClosed
	case <-ctx.Done():
		go func() {
			select {
			case <-b.done.Done():
			case <-p.quit:
			}
			p.barrierMu.Unlock()
		}()
		return ctx.Err()
	}
}
