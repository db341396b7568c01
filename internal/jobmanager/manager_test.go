package jobmanager_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ZanzyTHEbar/aspectjobs/internal/adapters/eventbus"
	"github.com/ZanzyTHEbar/aspectjobs/internal/adapters/workerpool"
	"github.com/ZanzyTHEbar/aspectjobs/internal/domain"
	"github.com/ZanzyTHEbar/aspectjobs/internal/domain/mocks"
	"github.com/ZanzyTHEbar/aspectjobs/internal/jobmanager"
	"github.com/ZanzyTHEbar/aspectjobs/internal/ports"
)

func mockJob(ctrl *gomock.Controller, id domain.JobID, deps ...domain.JobID) *mocks.MockJob {
	j := mocks.NewMockJob(ctrl)
	j.EXPECT().ID().Return(id).AnyTimes()
	j.EXPECT().Dependencies().Return(deps).AnyTimes()
	return j
}

func newManager(t *testing.T, workers int, opts ...jobmanager.Option) *jobmanager.Manager {
	t.Helper()
	pool := workerpool.New(workers)
	t.Cleanup(pool.Close)
	return jobmanager.New(pool, opts...)
}

func TestManager_DependentRunsAfterBothProducers(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mockJob(ctrl, "A")
	b := mockJob(ctrl, "B")
	c := mockJob(ctrl, "C", "A", "B")

	runA := a.EXPECT().Run(gomock.Any()).Return(nil)
	runB := b.EXPECT().Run(gomock.Any()).Return(nil)
	c.EXPECT().Run(gomock.Any()).Return(nil).After(runA).After(runB)

	m := newManager(t, 4)
	require.NoError(t, m.EnqueueJobs([]domain.Job{c, a, b}))
	require.NoError(t, m.WaitForAllJobs())
	assert.Equal(t, jobmanager.Idle, m.State())
	assert.NotEmpty(t, m.LastBatchID())
}

func TestManager_RunsEveryFrame(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mockJob(ctrl, "A")
	b := mockJob(ctrl, "B", "A")
	a.EXPECT().Run(gomock.Any()).Return(nil).Times(3)
	b.EXPECT().Run(gomock.Any()).Return(nil).Times(3)

	m := newManager(t, 2)
	seen := make(map[string]bool)
	for range 3 {
		require.NoError(t, m.EnqueueJobs([]domain.Job{a, b}))
		require.NoError(t, m.WaitForAllJobs())
		seen[m.LastBatchID()] = true
	}
	assert.Len(t, seen, 3, "each submission gets its own batch id")
}

func TestManager_WaitWithoutBatch(t *testing.T) {
	m := newManager(t, 1)
	assert.NoError(t, m.WaitForAllJobs())
	assert.Equal(t, jobmanager.Idle, m.State())
	assert.Empty(t, m.LastBatchID())
}

func TestManager_EmptyBatch(t *testing.T) {
	m := newManager(t, 1)
	require.NoError(t, m.EnqueueJobs(nil))
	assert.NoError(t, m.WaitForAllJobs())
	assert.Equal(t, jobmanager.Idle, m.State())
}

func TestManager_ReturnsJobErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	boom := errors.New("boom")
	a := mockJob(ctrl, "A")
	b := mockJob(ctrl, "B", "A")
	c := mockJob(ctrl, "C")
	a.EXPECT().Run(gomock.Any()).Return(boom)
	c.EXPECT().Run(gomock.Any()).Return(nil)
	// B is skipped: no Run expectation.

	m := newManager(t, 2)
	require.NoError(t, m.EnqueueJobs([]domain.Job{a, b, c}))
	err := m.WaitForAllJobs()
	require.ErrorIs(t, err, boom)

	var jerr *domain.JobError
	require.ErrorAs(t, err, &jerr)
	assert.Equal(t, domain.JobID("A"), jerr.ID)
	assert.Equal(t, jobmanager.Idle, m.State())
}

func TestManager_RejectsCycles(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mockJob(ctrl, "A", "B")
	b := mockJob(ctrl, "B", "A")

	m := newManager(t, 2, jobmanager.WithCycleDetection(true))
	err := m.EnqueueJobs([]domain.Job{a, b})
	require.ErrorIs(t, err, domain.ErrCycleFound)
	assert.Equal(t, jobmanager.Idle, m.State())
	assert.Empty(t, m.LastBatchID())
}

func TestManager_RejectsDuplicates(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newManager(t, 1)
	err := m.EnqueueJobs([]domain.Job{mockJob(ctrl, "A"), mockJob(ctrl, "A")})
	assert.ErrorIs(t, err, domain.ErrDuplicateJob)
	assert.Equal(t, jobmanager.Idle, m.State())
}

type postFrameJob struct {
	*mocks.MockJob
	*mocks.MockPostFramer
}

func TestManager_PostFrameRunsOnWaitingGoroutine(t *testing.T) {
	ctrl := gomock.NewController(t)

	ok := postFrameJob{mockJob(ctrl, "ok"), mocks.NewMockPostFramer(ctrl)}
	bad := postFrameJob{mockJob(ctrl, "bad"), mocks.NewMockPostFramer(ctrl)}

	var ran bool
	ok.MockJob.EXPECT().Run(gomock.Any()).Return(nil)
	ok.MockPostFramer.EXPECT().PostFrame(gomock.Any()).Do(func(context.Context) { ran = true })
	bad.MockJob.EXPECT().Run(gomock.Any()).Return(errors.New("nope"))
	// No PostFrame for a job that failed.

	m := newManager(t, 2)
	require.NoError(t, m.EnqueueJobs([]domain.Job{ok, bad}))
	require.Error(t, m.WaitForAllJobs())
	assert.True(t, ran)
}

// fakePool hands out handles the test completes by hand.
type fakePool struct {
	mu      sync.Mutex
	graph   *domain.Graph
	handle  *domain.CompletionHandle
	mapErr  error
	barrier int
}

var _ ports.ThreadPool = (*fakePool)(nil)

func (p *fakePool) MapDependables(g *domain.Graph) (*domain.CompletionHandle, error) {
	if p.mapErr != nil {
		return nil, p.mapErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.graph = g
	p.handle = domain.NewCompletionHandle(g.Len(), g.Err)
	return p.handle, nil
}

func (p *fakePool) WaitForPerThreadFunction(ctx context.Context, fn ports.PerThreadFunc, arg any) error {
	for range p.MaxThreadCount() {
		fn(ctx, arg)
	}
	p.barrier++
	return nil
}

func (p *fakePool) MaxThreadCount() int { return 3 }

func (p *fakePool) Close() {}

func (p *fakePool) finishAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.graph.Len() {
		p.graph.Finish(i, domain.Completed, nil)
		p.handle.Complete()
	}
}

func TestManager_StateMachine(t *testing.T) {
	pool := &fakePool{}
	m := jobmanager.New(pool)
	assert.Equal(t, jobmanager.Idle, m.State())

	jobs := []domain.Job{domain.NewFuncJob("A", nil), domain.NewFuncJob("B", nil, "A")}
	require.NoError(t, m.EnqueueJobs(jobs))
	assert.Equal(t, jobmanager.Scheduled, m.State())
	first := m.LastBatchID()

	err := m.EnqueueJobs(jobs)
	require.ErrorIs(t, err, jobmanager.ErrBatchInFlight)
	assert.Equal(t, jobmanager.Scheduled, m.State(), "a rejected submission leaves the state alone")
	assert.Equal(t, first, m.LastBatchID())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = m.WaitForAllJobsContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, jobmanager.Draining, m.State())
	assert.ErrorIs(t, m.EnqueueJobs(jobs), jobmanager.ErrBatchInFlight)

	pool.finishAll()
	require.NoError(t, m.WaitForAllJobs())
	assert.Equal(t, jobmanager.Idle, m.State())

	require.NoError(t, m.EnqueueJobs(jobs))
	assert.NotEqual(t, first, m.LastBatchID())
}

func TestManager_PoolErrorResetsState(t *testing.T) {
	m := jobmanager.New(&fakePool{mapErr: workerpool.ErrPoolClosed})
	err := m.EnqueueJobs([]domain.Job{domain.NewFuncJob("A", nil)})
	require.ErrorIs(t, err, workerpool.ErrPoolClosed)
	assert.Equal(t, jobmanager.Idle, m.State())
}

func TestManager_PerThreadFunctionAndThreadCount(t *testing.T) {
	pool := &fakePool{}
	m := jobmanager.New(pool)
	assert.Equal(t, 3, m.MaxThreadCount())

	calls := 0
	require.NoError(t, m.WaitForPerThreadFunction(func(_ context.Context, arg any) {
		assert.Equal(t, 42, arg)
		calls++
	}, 42))
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, pool.barrier)
}

func TestManager_PublishesEventsAndStats(t *testing.T) {
	bus := eventbus.NewDispatcher()
	tracker := jobmanager.NewTracker(bus)
	pool := workerpool.New(2, workerpool.WithObserver(tracker))
	t.Cleanup(pool.Close)
	stats := domain.NewStatsCollector()
	m := jobmanager.New(pool,
		jobmanager.WithEventBus(bus),
		jobmanager.WithTracker(tracker),
		jobmanager.WithStats(stats),
	)

	counts := make(map[string]int)
	var batchIDs []string
	for _, kind := range []string{
		domain.JobStarted, domain.JobCompleted, domain.JobFailed,
		domain.JobSkipped, domain.BatchScheduled, domain.BatchCompleted,
	} {
		bus.Subscribe(kind, func(ev domain.Event) {
			counts[ev.Kind]++
			switch data := ev.Data.(type) {
			case domain.JobEvent:
				batchIDs = append(batchIDs, data.BatchID)
			case domain.BatchEvent:
				batchIDs = append(batchIDs, data.BatchID)
			}
		})
	}

	jobs := []domain.Job{
		domain.NewFuncJob("A", func(context.Context) error { return errors.New("fail") }),
		domain.NewFuncJob("B", nil, "A"),
		domain.NewFuncJob("C", nil),
	}
	require.NoError(t, m.EnqueueJobs(jobs))
	require.Error(t, m.WaitForAllJobs())

	assert.Equal(t, map[string]int{
		domain.BatchScheduled: 1,
		domain.JobStarted:     2,
		domain.JobFailed:      1,
		domain.JobSkipped:     1,
		domain.JobCompleted:   1,
		domain.BatchCompleted: 1,
	}, counts)
	for _, id := range batchIDs {
		assert.Equal(t, m.LastBatchID(), id)
	}

	s := stats.Snapshot()
	assert.Equal(t, 1, s.Batches)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Skipped)
}

func TestManager_BoundedBusStillCountsFrames(t *testing.T) {
	bus := eventbus.NewDispatcher(eventbus.WithCapacity(8))
	tracker := jobmanager.NewTracker(bus)
	pool := workerpool.New(2, workerpool.WithObserver(tracker))
	t.Cleanup(pool.Close)
	stats := domain.NewStatsCollector()
	m := jobmanager.New(pool,
		jobmanager.WithEventBus(bus),
		jobmanager.WithTracker(tracker),
		jobmanager.WithStats(stats),
	)

	var completed []domain.BatchEvent
	bus.Subscribe(domain.BatchCompleted, func(ev domain.Event) {
		completed = append(completed, ev.Data.(domain.BatchEvent))
	})

	jobs := make([]domain.Job, 10)
	for i := range jobs {
		jobs[i] = domain.NewFuncJob(domain.JobID(fmt.Sprintf("job-%d", i)), nil)
	}
	for range 2 {
		require.NoError(t, m.EnqueueJobs(jobs))
		require.NoError(t, m.WaitForAllJobs())
	}

	require.Len(t, completed, 2)
	assert.Equal(t, 10, completed[1].Counts[domain.Completed])
	assert.Positive(t, bus.Dropped(), "job events overflow the queue")

	s := stats.Snapshot()
	assert.Equal(t, 2, s.Batches)
	assert.Equal(t, 20, s.Completed)
}

// gatedPostFrame blocks its PostFrame hook until release is closed.
type gatedPostFrame struct {
	*domain.FuncJob
	entered chan struct{}
	release chan struct{}
}

func (j gatedPostFrame) PostFrame(context.Context) {
	close(j.entered)
	<-j.release
}

func TestManager_ConcurrentWaitersReturnAfterFinish(t *testing.T) {
	pool := &fakePool{}
	m := jobmanager.New(pool)

	job := gatedPostFrame{
		FuncJob: domain.NewFuncJob("A", nil),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	require.NoError(t, m.EnqueueJobs([]domain.Job{job}))

	first := make(chan error, 1)
	go func() { first <- m.WaitForAllJobs() }()
	require.Eventually(t, func() bool { return m.State() == jobmanager.Draining },
		time.Second, time.Millisecond)
	pool.finishAll()

	select {
	case <-job.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("PostFrame hook never ran")
	}

	second := make(chan jobmanager.State, 1)
	go func() {
		assert.NoError(t, m.WaitForAllJobs())
		second <- m.State()
	}()

	select {
	case <-second:
		t.Fatal("second waiter returned while PostFrame hooks were running")
	case <-time.After(50 * time.Millisecond):
	}

	close(job.release)
	require.NoError(t, <-first)
	select {
	case st := <-second:
		assert.Equal(t, jobmanager.Idle, st)
	case <-time.After(5 * time.Second):
		t.Fatal("second waiter never returned")
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "draining", jobmanager.Draining.String())
	assert.Equal(t, "unknown", jobmanager.State(9).String())
}
