package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
)

// DefaultReportInterval is the default period of Reporter.
const DefaultReportInterval = 10 * time.Second

// Reporter periodically logs traffic rates from Counters.
type Reporter struct {
	Counters *Counters
	Interval time.Duration
	// Logf receives the report lines, glog.Infof when nil.
	Logf func(format string, args ...interface{})
}

// Run implements framework.Runnable.
func (r *Reporter) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := r.Counters.Snapshot()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cur := r.Counters.Snapshot()
			if line, ok := formatReport(prev, cur, interval); ok {
				r.logf("%s", line)
			}
			prev = cur
		}
	}
}

func (r *Reporter) logf(format string, args ...interface{}) {
	if r.Logf != nil {
		r.Logf(format, args...)
		return
	}
	glog.Infof(format, args...)
}

// formatReport returns a line when anything changed between prev and cur.
func formatReport(prev, cur Snapshot, interval time.Duration) (string, bool) {
	if prev == cur {
		return "", false
	}
	secs := interval.Seconds()
	in := float64(cur.Ingested-prev.Ingested) / secs
	out := float64(cur.Sent-prev.Sent) / secs
	state := "down"
	if cur.Connected {
		state = "up"
	}
	return fmt.Sprintf("In: %s/s | Out: %s/s | Dropped: %d | Attempts: %d (%d failed) | Link: %s",
		formatBytes(in),
		formatBytes(out),
		cur.Dropped-prev.Dropped,
		cur.Attempts-prev.Attempts,
		cur.Failures-prev.Failures,
		state,
	), true
}

var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats into exactly 8 chars, e.g. "99.0   B", " 1.5 KiB".
func formatBytes(b float64) string {
	unit := 0
	for b > 99 && unit < len(byteUnits)-1 {
		b /= 1024
		unit++
	}
	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unit])
}
