package domain

import "time"

// Event kinds published by the job manager.
const (
	JobStarted     = "job.started"
	JobCompleted   = "job.completed"
	JobFailed      = "job.failed"
	JobSkipped     = "job.skipped"
	BatchScheduled = "batch.scheduled"
	BatchCompleted = "batch.completed"
)

// Event represents a message passed through the event dispatcher.
type Event struct {
	Kind      string    // one of the kinds above
	Data      any       // JobEvent or BatchEvent
	Timestamp time.Time // when the event occurred
}

// NewEvent creates a new event.
func NewEvent(kind string, data any) Event {
	return Event{
		Kind:      kind,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// JobEvent describes a lifecycle step of one job.
type JobEvent struct {
	BatchID  string
	JobID    JobID
	WorkerID int
	Status   TaskStatus
	Started  time.Time
	Finished time.Time
	Err      error
}

// BatchEvent describes a whole submission.
type BatchEvent struct {
	BatchID  string
	Jobs     int
	Ready    int
	Counts   map[TaskStatus]int
	Duration time.Duration
	Err      error
}
