package workerpool

import "context"

type workerKey struct{}

func withWorker(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, workerKey{}, id)
}

// WorkerID returns the index of the pool worker executing the current job
// or per-thread function.
func WorkerID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(workerKey{}).(int)
	return id, ok
}
