package domain

import (
	"errors"
	"time"
)

// Graph is the executable form of one batch of jobs: an arena of Tasks that
// reference each other by index. A Graph is built once per submission and is
// not reusable, since dependency counters are consumed while it runs.
type Graph struct {
	tasks []Task
	index map[JobID]int
	ready []int
}

// GraphOption configures BuildGraph.
type GraphOption func(*graphOptions)

type graphOptions struct {
	detectCycles bool
}

// WithCycleDetection makes BuildGraph reject batches whose in-batch
// dependencies form a cycle. Without it, tasks on a cycle are built but never
// become ready.
func WithCycleDetection(enabled bool) GraphOption {
	return func(o *graphOptions) { o.detectCycles = enabled }
}

// BuildGraph converts an unordered batch of jobs into a Task graph.
//
// Dependencies on ids outside the batch are treated as satisfied and add no
// edge. A job listing the same dependency twice gets a single edge.
func BuildGraph(jobs []Job, opts ...GraphOption) (*Graph, error) {
	var o graphOptions
	for _, opt := range opts {
		opt(&o)
	}

	g := &Graph{
		tasks: make([]Task, len(jobs)),
		index: make(map[JobID]int, len(jobs)),
	}

	for i, job := range jobs {
		if job == nil {
			return nil, invalidf("nil job at position %d", i)
		}
		id := job.ID()
		if _, exists := g.index[id]; exists {
			return nil, duplicateError(id)
		}
		g.index[id] = i
		g.tasks[i].Job = job
		g.tasks[i].Index = i
	}

	for i := range g.tasks {
		t := &g.tasks[i]
		var seen map[int]struct{}
		for _, depID := range t.Job.Dependencies() {
			dep, ok := g.index[depID]
			if !ok {
				continue // external or already completed
			}
			if seen == nil {
				seen = make(map[int]struct{})
			}
			if _, dup := seen[dep]; dup {
				continue
			}
			seen[dep] = struct{}{}
			g.tasks[dep].Dependents = append(g.tasks[dep].Dependents, i)
			t.remaining.Add(1)
		}
	}

	order := g.topoOrder()
	if o.detectCycles && len(order) != len(g.tasks) {
		return nil, cycleError(g.findCycle())
	}
	g.assignPriorities(order)

	for i := range g.tasks {
		if g.tasks[i].remaining.Load() == 0 {
			g.ready = append(g.ready, i)
		}
	}
	return g, nil
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int { return len(g.tasks) }

// Task returns the task stored at index i.
func (g *Graph) Task(i int) *Task { return &g.tasks[i] }

// Ready returns the indices of tasks that had no pending in-batch
// dependencies when the graph was built.
func (g *Graph) Ready() []int { return g.ready }

// Index looks up the arena index of a job id.
func (g *Graph) Index(id JobID) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Finish records the terminal status of task i and releases its dependents.
// It returns the dependents whose counter reached zero on this call; the
// caller is the only one allowed to enqueue them.
//
// A Failed task, or any task that was itself poisoned, poisons its
// dependents so that they are skipped instead of run.
func (g *Graph) Finish(i int, status TaskStatus, err error) []int {
	t := &g.tasks[i]
	t.err = err
	t.finished = time.Now()
	t.status.Store(int32(status))

	poison := status == Failed || t.poisoned.Load()

	var released []int
	for _, d := range t.Dependents {
		dep := &g.tasks[d]
		if poison {
			dep.poisoned.Store(true)
		}
		if dep.remaining.Add(-1) == 0 {
			released = append(released, d)
		}
	}
	return released
}

// Err joins the errors of every failed task. Call it only after the batch
// has completed.
func (g *Graph) Err() error {
	var errs []error
	for i := range g.tasks {
		t := &g.tasks[i]
		if t.Status() == Failed {
			errs = append(errs, &JobError{ID: t.ID(), Err: t.err})
		}
	}
	return errors.Join(errs...)
}

// Counts tallies tasks by status.
func (g *Graph) Counts() map[TaskStatus]int {
	out := make(map[TaskStatus]int, 5)
	for i := range g.tasks {
		out[g.tasks[i].Status()]++
	}
	return out
}
