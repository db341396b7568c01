package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/aspectjobs/internal/adapters/eventbus"
	"github.com/ZanzyTHEbar/aspectjobs/internal/adapters/tracews"
	"github.com/ZanzyTHEbar/aspectjobs/internal/adapters/workerpool"
	"github.com/ZanzyTHEbar/aspectjobs/internal/config"
	"github.com/ZanzyTHEbar/aspectjobs/internal/domain"
	"github.com/ZanzyTHEbar/aspectjobs/internal/jobmanager"
)

// jobSystem is the wired job system used by the commands.
type jobSystem struct {
	cfg    *config.Config
	logger zerolog.Logger
	bus    *eventbus.Dispatcher
	stats  *domain.StatsCollector
	pool   *workerpool.ThreadPool
	mgr    *jobmanager.Manager
	trace  *tracews.Server
}

func newJobSystem(cfg *config.Config, logger zerolog.Logger) *jobSystem {
	bus := eventbus.NewDispatcher(
		eventbus.WithCapacity(cfg.EventBus.Capacity),
		eventbus.WithLogger(logger),
	)
	tracker := jobmanager.NewTracker(bus)
	pool := workerpool.New(cfg.Pool.ThreadCount,
		workerpool.WithLogger(logger),
		workerpool.WithObserver(tracker),
	)
	stats := domain.NewStatsCollector()
	mgr := jobmanager.New(pool,
		jobmanager.WithLogger(logger),
		jobmanager.WithEventBus(bus),
		jobmanager.WithStats(stats),
		jobmanager.WithTracker(tracker),
		jobmanager.WithCycleDetection(cfg.Scheduler.DetectCycles),
	)

	s := &jobSystem{cfg: cfg, logger: logger, bus: bus, stats: stats, pool: pool, mgr: mgr}
	if cfg.Trace.Enabled {
		s.trace = tracews.NewServer(
			tracews.WithClientBuffer(cfg.Trace.ClientBuffer),
			tracews.WithLogger(logger),
		)
		for _, kind := range []string{domain.JobCompleted, domain.JobFailed, domain.JobSkipped} {
			bus.Subscribe(kind, s.trace.HandleEvent)
		}
	}
	return s
}

// serve runs work alongside the trace endpoint, when enabled, and shuts the
// endpoint down once work returns.
func (s *jobSystem) serve(ctx context.Context, work func(ctx context.Context) error) error {
	if s.trace == nil {
		return work(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mux := http.NewServeMux()
	mux.Handle("/trace", s.trace)
	srv := &http.Server{
		Addr:              s.cfg.Trace.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info().Str("addr", srv.Addr).Msg("trace stream listening on /trace")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.trace.Close()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		defer cancel()
		return work(gctx)
	})
	return g.Wait()
}

func (s *jobSystem) close() {
	s.pool.Close()
	s.bus.Stop()
	if s.trace != nil {
		s.trace.Close()
	}
}
