package domain

import (
	"sync"
	"time"
)

// Stats is a point-in-time view of a StatsCollector.
type Stats struct {
	Batches      int
	Completed    int
	Failed       int
	Skipped      int
	TotalLatency time.Duration
	LastLatency  time.Duration
	AvgLatency   time.Duration
	Uptime       time.Duration
}

// StatsCollector collects statistics about job and batch execution.
type StatsCollector struct {
	batches      int
	completed    int
	failed       int
	skipped      int
	totalLatency time.Duration
	lastLatency  time.Duration
	mu           sync.RWMutex
	startTime    time.Time
}

// NewStatsCollector creates a new StatsCollector.
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		startTime: time.Now(),
	}
}

// RecordBatch accounts for one drained submission and the final status of
// each of its jobs.
func (sc *StatsCollector) RecordBatch(latency time.Duration, counts map[TaskStatus]int) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.batches++
	sc.totalLatency += latency
	sc.lastLatency = latency
	sc.completed += counts[Completed]
	sc.failed += counts[Failed]
	sc.skipped += counts[Skipped]
}

// Handle consumes dispatcher events. Only BatchCompleted events are counted.
func (sc *StatsCollector) Handle(event Event) {
	if event.Kind != BatchCompleted {
		return
	}
	if data, ok := event.Data.(BatchEvent); ok {
		sc.RecordBatch(data.Duration, data.Counts)
	}
}

// Snapshot returns the current statistics.
func (sc *StatsCollector) Snapshot() Stats {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	s := Stats{
		Batches:      sc.batches,
		Completed:    sc.completed,
		Failed:       sc.failed,
		Skipped:      sc.skipped,
		TotalLatency: sc.totalLatency,
		LastLatency:  sc.lastLatency,
		Uptime:       time.Since(sc.startTime),
	}
	if sc.batches > 0 {
		s.AvgLatency = sc.totalLatency / time.Duration(sc.batches)
	}
	return s
}
