package ports

import (
	"context"

	"github.com/ZanzyTHEbar/aspectjobs/internal/domain"
)

// PerThreadFunc is run once on every worker by WaitForPerThreadFunction.
// ctx identifies the worker it runs on.
type PerThreadFunc func(ctx context.Context, arg any)

// ThreadPool defines the port for executing job graphs on a fixed set of
// workers. This decouples the job manager from the concrete pool.
type ThreadPool interface {
	// MapDependables schedules every task of g, honoring its dependency
	// edges, and returns immediately with a handle tracking the batch.
	MapDependables(g *domain.Graph) (*domain.CompletionHandle, error)

	// WaitForPerThreadFunction runs fn exactly once on each worker and blocks
	// until all of them returned.
	WaitForPerThreadFunction(ctx context.Context, fn PerThreadFunc, arg any) error

	// MaxThreadCount returns the number of workers.
	MaxThreadCount() int

	// Close stops the workers and waits for them to exit.
	Close()
}
