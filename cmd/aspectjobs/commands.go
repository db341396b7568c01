package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/aspectjobs/internal/adapters/registry"
	"github.com/ZanzyTHEbar/aspectjobs/internal/adapters/workerpool"
	"github.com/ZanzyTHEbar/aspectjobs/internal/config"
	"github.com/ZanzyTHEbar/aspectjobs/internal/domain"
	"github.com/ZanzyTHEbar/aspectjobs/internal/utils"
	"github.com/ZanzyTHEbar/aspectjobs/internal/workload"
)

func newRunCmd(g *globalOptions) *cobra.Command {
	var (
		frames    int
		workers   int
		watch     bool
		traceAddr string
	)
	cmd := &cobra.Command{
		Use:   "run <workload.json>",
		Short: "Run a workload file for a number of frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			cfg, logger, err := g.load(cmd, func(cfg *config.Config) {
				if flags.Changed("frames") {
					cfg.Scheduler.Frames = frames
				}
				if flags.Changed("workers") {
					cfg.Pool.ThreadCount = workers
				}
				if flags.Changed("trace-addr") {
					cfg.Trace.Enabled = true
					cfg.Trace.Addr = traceAddr
				}
			})
			if err != nil {
				return err
			}

			jobs := registry.New()
			if err := registry.RegisterBuiltins(jobs); err != nil {
				return err
			}

			sys := newJobSystem(cfg, logger)
			defer sys.close()

			path := args[0]
			out := cmd.OutOrStdout()
			return sys.serve(cmd.Context(), func(ctx context.Context) error {
				once := func() error { return sys.runWorkloadFile(ctx, out, path, jobs) }
				if watch {
					return watchFile(ctx, path, logger, once)
				}
				return once()
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&frames, "frames", 1, "number of frames to run")
	f.IntVar(&workers, "workers", 0, "worker count (0 = CPU count)")
	f.BoolVar(&watch, "watch", false, "rerun whenever the workload file changes")
	f.StringVar(&traceAddr, "trace-addr", "", "serve the websocket trace stream on this address")
	return cmd
}

func newBenchCmd(g *globalOptions) *cobra.Command {
	var (
		jobCount int
		maxDeps  int
		frames   int
		workers  int
		seed     uint64
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run frames of a random acyclic workload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			cfg, logger, err := g.load(cmd, func(cfg *config.Config) {
				if flags.Changed("frames") {
					cfg.Scheduler.Frames = frames
				}
				if flags.Changed("workers") {
					cfg.Pool.ThreadCount = workers
				}
			})
			if err != nil {
				return err
			}

			jobs := registry.New()
			if err := registry.RegisterBuiltins(jobs); err != nil {
				return err
			}
			w, err := workload.Random(jobCount, maxDeps, seed).Build(jobs)
			if err != nil {
				return err
			}

			sys := newJobSystem(cfg, logger)
			defer sys.close()

			start := time.Now()
			if err := sys.runFrames(cmd.Context(), w.Jobs, cfg.Scheduler.Frames); err != nil {
				return err
			}
			elapsed := time.Since(start)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s on %d workers: %s\n", w.Name, sys.mgr.MaxThreadCount(), utils.FormatStats(sys.stats.Snapshot()))
			if elapsed > 0 {
				rate := float64(len(w.Jobs)*cfg.Scheduler.Frames) / elapsed.Seconds()
				fmt.Fprintf(out, "throughput: %.0f jobs/s\n", rate)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&jobCount, "jobs", 1000, "jobs per frame")
	f.IntVar(&maxDeps, "max-deps", 4, "maximum dependencies per job")
	f.IntVar(&frames, "frames", 0, "number of frames to run (overrides scheduler.frames)")
	f.IntVar(&workers, "workers", 0, "worker count (0 = CPU count)")
	f.Uint64Var(&seed, "seed", 1, "random seed")
	return cmd
}

func newBarrierCmd(g *globalOptions) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "barrier",
		Short: "Run a function once on every worker and report which ran it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			cfg, logger, err := g.load(cmd, func(cfg *config.Config) {
				if flags.Changed("workers") {
					cfg.Pool.ThreadCount = workers
				}
			})
			if err != nil {
				return err
			}

			sys := newJobSystem(cfg, logger)
			defer sys.close()

			var (
				mu      sync.Mutex
				visited []int
			)
			err = sys.mgr.WaitForPerThreadFunction(func(ctx context.Context, _ any) {
				id, _ := workerpool.WorkerID(ctx)
				mu.Lock()
				visited = append(visited, id)
				mu.Unlock()
			}, nil)
			if err != nil {
				return err
			}
			slices.Sort(visited)
			fmt.Fprintf(cmd.OutOrStdout(), "visited %d workers: %v\n", len(visited), visited)
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "worker count (0 = CPU count)")
	return cmd
}

// runWorkloadFile loads path and runs it for the configured number of frames.
func (s *jobSystem) runWorkloadFile(ctx context.Context, out io.Writer, path string, jobs registry.JobFactory) error {
	w, err := workload.Load(path, jobs)
	if err != nil {
		return err
	}
	s.logger.Info().
		Str("workload", w.Name).
		Int("jobs", len(w.Jobs)).
		Int("frames", s.cfg.Scheduler.Frames).
		Int("workers", s.mgr.MaxThreadCount()).
		Msg("running workload")

	runErr := s.runFrames(ctx, w.Jobs, s.cfg.Scheduler.Frames)
	fmt.Fprintf(out, "%s: %s\n", w.Name, utils.FormatStats(s.stats.Snapshot()))
	return runErr
}

// runFrames submits jobs once per frame and waits for each frame to drain.
// Job failures do not stop later frames; they are returned joined.
func (s *jobSystem) runFrames(ctx context.Context, jobs []domain.Job, frames int) error {
	var errs []error
	for i := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.mgr.EnqueueJobs(jobs); err != nil {
			return err
		}
		if err := s.mgr.WaitForAllJobsContext(ctx); err != nil {
			if ctx.Err() != nil {
				return err
			}
			errs = append(errs, fmt.Errorf("frame %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
