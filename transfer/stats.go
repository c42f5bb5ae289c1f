package transfer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// rateWindow is how far back transferred bytes count towards the current
// transfer rate.
const rateWindow = 10 * time.Second

// Stats tracks transferred bytes for one transfer. Add and Snapshot are
// safe for concurrent use by part workers.
type Stats struct {
	total   int64
	done    atomic.Int64
	started time.Time

	mu      sync.Mutex
	samples []sample
}

type sample struct {
	at    time.Time
	bytes int64
}

func newStats(total int64) *Stats {
	return &Stats{total: total, started: time.Now()}
}

// Add records n transferred bytes. Negative n rolls back bytes counted
// for a part that must be resent.
func (s *Stats) Add(n int64) {
	s.done.Add(n)
	if n <= 0 {
		return
	}
	now := time.Now()
	s.mu.Lock()
	s.samples = append(s.samples, sample{at: now, bytes: n})
	s.prune(now)
	s.mu.Unlock()
}

// prune drops samples older than the rate window. Callers hold mu.
func (s *Stats) prune(now time.Time) {
	cutoff := now.Add(-rateWindow)
	i := 0
	for i < len(s.samples) && s.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.samples = append(s.samples[:0], s.samples[i:]...)
	}
}

// rate returns the transfer rate over the trailing window in bytes/sec.
func (s *Stats) rate(now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(now)
	if len(s.samples) == 0 {
		return 0
	}
	var sum int64
	for _, smp := range s.samples {
		sum += smp.bytes
	}
	elapsed := now.Sub(s.samples[0].at)
	if elapsed < time.Second {
		elapsed = time.Second
	}
	return float64(sum) / elapsed.Seconds()
}

// Snapshot is a point-in-time view of transfer progress.
type Snapshot struct {
	Done           int64
	Total          int64
	BytesPerSecond float64
	Percent        float64
	Elapsed        time.Duration

	// ETA is the projected time to completion at the current rate. Zero
	// when the rate is unknown.
	ETA time.Duration
}

// Snapshot computes the current progress view.
func (s *Stats) Snapshot() Snapshot {
	now := time.Now()
	done := s.done.Load()
	snap := Snapshot{
		Done:           done,
		Total:          s.total,
		BytesPerSecond: s.rate(now),
		Elapsed:        now.Sub(s.started),
	}
	if s.total > 0 {
		snap.Percent = float64(done) / float64(s.total) * 100
	}
	if snap.BytesPerSecond > 0 && done < s.total {
		remaining := float64(s.total - done)
		snap.ETA = time.Duration(remaining / snap.BytesPerSecond * float64(time.Second))
	}
	return snap
}

// String renders the snapshot for log lines and progress bars, e.g.
// "42 MB / 200 MB (21.0%) 8.5 MB/s eta 18s".
func (s Snapshot) String() string {
	out := fmt.Sprintf("%s / %s (%.1f%%) %s/s",
		humanize.Bytes(uint64(s.Done)),
		humanize.Bytes(uint64(s.Total)),
		s.Percent,
		humanize.Bytes(uint64(s.BytesPerSecond)))
	if s.ETA > 0 {
		out += " eta " + s.ETA.Round(time.Second).String()
	}
	return out
}
