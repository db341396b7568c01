package workerpool

import (
	"container/heap"
	"sync"

	"github.com/ZanzyTHEbar/aspectjobs/internal/domain"
)

// workItem is one entry of the ready queue: either a graph task whose
// dependency counter reached zero, or one slot of a per-thread barrier.
type workItem struct {
	batch    *batch
	index    int
	barrier  *barrier
	priority int
	seq      uint64
}

// itemHeap implements heap.Interface. Higher priority pops first; equal
// priorities pop in push order.
type itemHeap []workItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(workItem)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = workItem{} // drop references
	*h = old[:n-1]
	return item
}

// readyQueue is the ready set shared by all workers. Workers park on cond
// while it is empty.
type readyQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  itemHeap
	seq    uint64
	closed bool
}

func newReadyQueue() *readyQueue {
	q := &readyQueue{}
	q.cond = sync.NewCond(&q.mu)
	heap.Init(&q.items)
	return q
}

// push adds items and wakes parked workers. It returns false once the queue
// has been closed.
func (q *readyQueue) push(items ...workItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	for _, it := range items {
		q.seq++
		it.seq = q.seq
		heap.Push(&q.items, it)
	}
	if len(items) == 1 {
		q.cond.Signal()
	} else if len(items) > 1 {
		q.cond.Broadcast()
	}
	return true
}

// pop blocks until an item is available or the queue is closed. Items still
// queued at close time are abandoned.
func (q *readyQueue) pop() (workItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return workItem{}, false
	}
	return heap.Pop(&q.items).(workItem), true
}

func (q *readyQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *readyQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued items.
func (q *readyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// taskItems builds queue entries for the given task indices.
func taskItems(b *batch, indices []int) []workItem {
	items := make([]workItem, 0, len(indices))
	for _, i := range indices {
		items = append(items, workItem{
			batch:    b,
			index:    i,
			priority: b.graph.Task(i).Priority,
		})
	}
	return items
}

// batch ties a graph to the handle tracking it.
type batch struct {
	graph  *domain.Graph
	handle *domain.CompletionHandle
}
