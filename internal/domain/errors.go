package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidGraph = errors.New("invalid job graph")
	ErrDuplicateJob = errors.New("duplicate job id")
	ErrCycleFound   = errors.New("dependency cycle detected")
)

// GraphError reports a graph construction failure.
type GraphError struct {
	Kind error
	Msg  string
	// Path holds the witness cycle when Kind is ErrCycleFound, first id repeated last.
	Path []JobID
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

func duplicateError(id JobID) error {
	return &GraphError{Kind: ErrDuplicateJob, Msg: string(id)}
}

func cycleError(path []JobID) error {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = string(id)
	}
	return &GraphError{Kind: ErrCycleFound, Msg: strings.Join(parts, " -> "), Path: path}
}

// JobError ties a failure to the job that produced it.
type JobError struct {
	ID  JobID
	Err error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s: %v", e.ID, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }
