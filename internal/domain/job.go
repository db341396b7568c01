package domain

import "context"

//go:generate go tool mockgen -source=job.go -destination=mocks/mock_job.go -package=mocks

// JobID identifies a job within one submission. It must be unique per batch
// and stable for the lifetime of that batch.
type JobID string

// Job is a unit of work submitted for one scheduling round.
type Job interface {
	// ID returns the job's identity.
	ID() JobID
	// Dependencies lists the jobs that must finish before this one starts.
	// Ids that are not part of the same batch are treated as already satisfied.
	Dependencies() []JobID
	// Run executes the job body. ctx carries the executing worker and logger.
	Run(ctx context.Context) error
}

// Requirer is implemented by jobs that can opt out of a frame. A job whose
// IsRequired reports false is not run but still completes successfully, so
// its dependents are released as usual.
type Requirer interface {
	IsRequired() bool
}

// PostFramer is implemented by jobs that need a finalization step on the
// frame goroutine once the whole batch has drained.
type PostFramer interface {
	PostFrame(ctx context.Context)
}

// FuncJob adapts a closure into a Job.
type FuncJob struct {
	JobID JobID
	Deps  []JobID
	Fn    func(ctx context.Context) error
}

// NewFuncJob creates a FuncJob.
func NewFuncJob(id JobID, fn func(ctx context.Context) error, deps ...JobID) *FuncJob {
	return &FuncJob{JobID: id, Deps: deps, Fn: fn}
}

func (j *FuncJob) ID() JobID { return j.JobID }

func (j *FuncJob) Dependencies() []JobID { return j.Deps }

func (j *FuncJob) Run(ctx context.Context) error {
	if j.Fn == nil {
		return nil
	}
	return j.Fn(ctx)
}
