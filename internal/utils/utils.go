package utils

import (
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/aspectjobs/internal/domain"
)

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%d µs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.2f ms", float64(d.Microseconds())/1000)
	case d < time.Minute:
		return fmt.Sprintf("%.2f s", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.2f min", d.Minutes())
	}
	return fmt.Sprintf("%.2f h", d.Hours())
}

// FormatStats renders a stats snapshot on one line.
func FormatStats(s domain.Stats) string {
	return fmt.Sprintf("frames=%d completed=%d failed=%d skipped=%d avg=%s last=%s",
		s.Batches, s.Completed, s.Failed, s.Skipped,
		FormatDuration(s.AvgLatency), FormatDuration(s.LastLatency))
}
