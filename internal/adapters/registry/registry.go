package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ZanzyTHEbar/aspectjobs/internal/domain"
)

var (
	// ErrUnknownKind is returned by Build for kinds nobody registered.
	ErrUnknownKind = errors.New("registry: unknown job kind")
	// ErrDuplicateKind is returned by Register when the kind is taken.
	ErrDuplicateKind = errors.New("registry: job kind already registered")
)

// Spec carries everything a factory needs to construct one job.
type Spec struct {
	ID     domain.JobID
	Deps   []domain.JobID
	Params map[string]any
}

// Factory builds a job from a spec.
type Factory func(spec Spec) (domain.Job, error)

// JobFactory defines the interface for looking up job constructors by kind.
type JobFactory interface {
	Register(kind string, f Factory) error
	Build(kind string, spec Spec) (domain.Job, error)
	Kinds() []string
}

// Registry is an in-memory JobFactory. It is populated at start-up and
// passed by reference to whatever needs to construct jobs.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

var _ JobFactory = (*Registry)(nil)

// New creates an empty Registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for kind.
func (r *Registry) Register(kind string, f Factory) error {
	if kind == "" || f == nil {
		return fmt.Errorf("registry: cannot register nil factory or empty kind")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKind, kind)
	}
	r.factories[kind] = f
	return nil
}

// Build constructs a job of the given kind.
func (r *Registry) Build(kind string, spec Spec) (domain.Job, error) {
	r.mu.RLock()
	f, exists := r.factories[kind]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	job, err := f(spec)
	if err != nil {
		return nil, fmt.Errorf("build %s job %q: %w", kind, spec.ID, err)
	}
	return job, nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
