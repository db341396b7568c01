package jobmanager

import (
	"sync"

	"github.com/ZanzyTHEbar/aspectjobs/internal/adapters/eventbus"
	"github.com/ZanzyTHEbar/aspectjobs/internal/domain"
)

// Tracker turns worker callbacks into job events on an event bus. Install it
// on the pool with workerpool.WithObserver and on the manager with
// WithTracker so it can tag events with the batch id.
type Tracker struct {
	bus     eventbus.EventBus
	batches sync.Map // *domain.Graph -> batch id
}

// NewTracker creates a Tracker publishing to bus.
func NewTracker(bus eventbus.EventBus) *Tracker {
	return &Tracker{bus: bus}
}

func (t *Tracker) track(g *domain.Graph, batchID string) { t.batches.Store(g, batchID) }

func (t *Tracker) untrack(g *domain.Graph) { t.batches.Delete(g) }

func (t *Tracker) batchID(g *domain.Graph) string {
	if v, ok := t.batches.Load(g); ok {
		return v.(string)
	}
	return ""
}

// TaskStarted publishes a job.started event.
func (t *Tracker) TaskStarted(g *domain.Graph, task *domain.Task) {
	t.bus.Publish(domain.NewEvent(domain.JobStarted, domain.JobEvent{
		BatchID:  t.batchID(g),
		JobID:    task.ID(),
		WorkerID: task.WorkerID(),
		Status:   domain.Running,
		Started:  task.Started(),
	}))
}

// TaskFinished publishes job.completed, job.failed or job.skipped.
func (t *Tracker) TaskFinished(g *domain.Graph, task *domain.Task) {
	status := task.Status()
	var kind string
	switch status {
	case domain.Completed:
		kind = domain.JobCompleted
	case domain.Failed:
		kind = domain.JobFailed
	case domain.Skipped:
		kind = domain.JobSkipped
	default:
		return
	}
	t.bus.Publish(domain.NewEvent(kind, domain.JobEvent{
		BatchID:  t.batchID(g),
		JobID:    task.ID(),
		WorkerID: task.WorkerID(),
		Status:   status,
		Started:  task.Started(),
		Finished: task.Finished(),
		Err:      task.Err(),
	}))
}
