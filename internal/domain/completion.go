package domain

import (
	"context"
	"sync"
	"sync/atomic"
)

// CompletionHandle counts the outstanding tasks of one submission and
// signals waiters once the count reaches zero.
type CompletionHandle struct {
	outstanding atomic.Int64
	done        chan struct{}
	once        sync.Once
	errFn       func() error
}

// NewCompletionHandle creates a handle expecting total completions. errFn,
// when not nil, is consulted by Err after the handle fired. A handle created
// with total <= 0 is already done.
func NewCompletionHandle(total int, errFn func() error) *CompletionHandle {
	h := &CompletionHandle{done: make(chan struct{}), errFn: errFn}
	h.outstanding.Store(int64(total))
	if total <= 0 {
		h.once.Do(func() { close(h.done) })
	}
	return h
}

// Complete records one finished task. The call that brings the count to zero
// releases every waiter.
func (h *CompletionHandle) Complete() {
	if h.outstanding.Add(-1) == 0 {
		h.once.Do(func() { close(h.done) })
	}
}

// Outstanding returns how many tasks have not finished yet.
func (h *CompletionHandle) Outstanding() int {
	n := h.outstanding.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Done returns a channel closed when every task has finished.
func (h *CompletionHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the handle fires or ctx is done.
func (h *CompletionHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the aggregated task failures. It is nil until the handle fired.
func (h *CompletionHandle) Err() error {
	select {
	case <-h.done:
	default:
		return nil
	}
	if h.errFn == nil {
		return nil
	}
	return h.errFn()
}
