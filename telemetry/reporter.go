package telemetry

import (
	"time"

	"github.com/rs/zerolog"
)

// Reporter logs progress every interval records.
type Reporter struct {
	stats    *Stats
	log      zerolog.Logger
	interval uint64
	start    time.Time
	last     Snapshot
	lastAt   time.Time
}

// NewReporter starts the run clock. An interval of 0 disables progress.
func NewReporter(stats *Stats, log zerolog.Logger, interval int) *Reporter {
	now := time.Now()
	if interval < 0 {
		interval = 0
	}
	return &Reporter{
		stats:    stats,
		log:      log,
		interval: uint64(interval),
		start:    now,
		lastAt:   now,
	}
}

// Tick is called after every record and reports when the interval is reached.
func (r *Reporter) Tick() bool {
	if r.interval == 0 {
		return false
	}

	if n := r.stats.Records(); n == 0 || n%r.interval != 0 {
		return false
	}

	snap := r.stats.GetSnapshot()
	now := time.Now()
	window := now.Sub(r.lastAt).Seconds()
	var rate float64
	if window > 0 {
		rate = float64(snap.Records-r.last.Records) / window
	}

	r.log.Info().
		Uint64("records", snap.Records).
		Uint64("lines", snap.Lines).
		Uint64("failed", snap.Failed).
		Dur("elapsed", now.Sub(r.start)).
		Float64("records_per_sec", rate).
		Msg("Progress")

	r.last = snap
	r.lastAt = now
	return true
}

// Elapsed returns the time since the reporter was created.
func (r *Reporter) Elapsed() time.Duration {
	return time.Since(r.start)
}
