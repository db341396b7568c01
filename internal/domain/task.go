package domain

import (
	"sync/atomic"
	"time"
)

// TaskStatus defines the current state of a task.
type TaskStatus int32

const (
	// Pending tasks are waiting for their dependencies or for a worker.
	Pending TaskStatus = iota
	// Running tasks are currently being executed by a worker.
	Running
	// Completed tasks have finished execution successfully.
	Completed
	// Failed tasks returned an error or panicked.
	Failed
	// Skipped tasks were never run because a dependency failed or the job
	// was not required this frame.
	Skipped
)

func (s TaskStatus) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is final for the current batch.
func (s TaskStatus) Terminal() bool {
	return s == Completed || s == Failed || s == Skipped
}

// Task wraps exactly one Job for the duration of one submission. Tasks live in
// the Graph arena and refer to each other by index.
type Task struct {
	Job        Job
	Index      int
	Dependents []int // indices of tasks waiting on this one
	Priority   int   // count of dependency paths leading out of the task, capped at maxPriority

	remaining atomic.Int32 // in-batch dependencies not yet finished
	status    atomic.Int32
	poisoned  atomic.Bool // set when a dependency failed or was itself poisoned

	// Written by the executing worker before the task is released; read only
	// after the batch completion handle has fired.
	err      error
	workerID int
	started  time.Time
	finished time.Time
}

// ID returns the wrapped job's identity.
func (t *Task) ID() JobID { return t.Job.ID() }

// Status returns the task's current status.
func (t *Task) Status() TaskStatus { return TaskStatus(t.status.Load()) }

// Remaining returns the number of unfinished in-batch dependencies.
func (t *Task) Remaining() int { return int(t.remaining.Load()) }

// Poisoned reports whether an upstream task failed or was skipped.
func (t *Task) Poisoned() bool { return t.poisoned.Load() }

// Err returns the error recorded for a failed task.
func (t *Task) Err() error { return t.err }

// WorkerID returns the index of the worker that finished the task.
func (t *Task) WorkerID() int { return t.workerID }

// Started returns when the task body began.
func (t *Task) Started() time.Time { return t.started }

// Finished returns when the task reached a terminal status.
func (t *Task) Finished() time.Time { return t.finished }

// MarkRunning records that workerID picked the task up. It returns false if
// the task was not pending, which would mean it was enqueued twice.
func (t *Task) MarkRunning(workerID int) bool {
	if !t.status.CompareAndSwap(int32(Pending), int32(Running)) {
		return false
	}
	t.workerID = workerID
	t.started = time.Now()
	return true
}
