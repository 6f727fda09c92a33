package telemetry

import (
	"fmt"
	"io"
	"sort"
	"time"
)

// Stats tracks exact run counters for the final summary and mirrors them
// into Metrics. A run is sequential so no synchronisation is needed.
type Stats struct {
	metrics *Metrics

	records          uint64
	lines            uint64
	written          uint64
	modified         uint64
	failed           uint64
	validationErrors uint64
	base64Errors     uint64
	duplicates       uint64
	dropped          map[string]uint64
}

// NewStats creates a stats tracker. Nil metrics are replaced by no-ops.
func NewStats(m *Metrics) *Stats {
	if m == nil {
		m = NewMetrics(nil)
	}
	return &Stats{metrics: m, dropped: make(map[string]uint64)}
}

// RecordRead records one input chunk spanning lines physical lines.
func (s *Stats) RecordRead(lines int) {
	s.records++
	s.lines += uint64(lines)
	s.metrics.Records.Inc()
	s.metrics.LinesRead.Add(float64(lines))
}

// RecordWritten records one output record.
func (s *Stats) RecordWritten(modified bool, took time.Duration) {
	s.written++
	s.metrics.RecordsWritten.Inc()
	if modified {
		s.modified++
		s.metrics.RecordsModified.Inc()
	}
	s.metrics.RecordSeconds.Observe(took.Seconds())
}

func (s *Stats) RecordFailed() {
	s.failed++
	s.metrics.RecordsFailed.Inc()
}

func (s *Stats) Base64Error() {
	s.base64Errors++
	s.metrics.Base64Errors.Inc()
}

func (s *Stats) DuplicateKey() {
	s.duplicates++
	s.metrics.DuplicateKeys.Inc()
}

// ValidationError records one value rejected by schema validation.
func (s *Stats) ValidationError(attr string) {
	s.validationErrors++
	s.metrics.ValidationErrors.Inc()
}

// LinesDropped records n lines removed by rule.
func (s *Stats) LinesDropped(rule string, n int) {
	if n <= 0 {
		return
	}
	s.dropped[rule] += uint64(n)
	s.metrics.LinesDropped.With(rule).Add(float64(n))
}

// Records returns the number of records read so far.
func (s *Stats) Records() uint64 {
	return s.records
}

// Snapshot returns a copy of current counters.
type Snapshot struct {
	Records          uint64
	Lines            uint64
	Written          uint64
	Modified         uint64
	Failed           uint64
	ValidationErrors uint64
	Base64Errors     uint64
	Duplicates       uint64
	Dropped          map[string]uint64
}

// TotalDropped returns the lines removed by every rule.
func (s Snapshot) TotalDropped() uint64 {
	var n uint64
	for _, v := range s.Dropped {
		n += v
	}
	return n
}

// GetSnapshot returns current stats snapshot.
func (s *Stats) GetSnapshot() Snapshot {
	dropped := make(map[string]uint64, len(s.dropped))
	for k, v := range s.dropped {
		dropped[k] = v
	}

	return Snapshot{
		Records:          s.records,
		Lines:            s.lines,
		Written:          s.written,
		Modified:         s.modified,
		Failed:           s.failed,
		ValidationErrors: s.validationErrors,
		Base64Errors:     s.base64Errors,
		Duplicates:       s.duplicates,
		Dropped:          dropped,
	}
}

// PrintFinal prints final statistics.
func (s *Stats) PrintFinal(w io.Writer, elapsed time.Duration) {
	snap := s.GetSnapshot()

	var throughput float64
	if elapsed > 0 {
		throughput = float64(snap.Records) / elapsed.Seconds()
	}
	s.metrics.Throughput.Set(throughput)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total time:    %.2fs\n", elapsed.Seconds())
	fmt.Fprintf(w, "Throughput:    %.2f records/sec\n", throughput)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Records:")
	fmt.Fprintf(w, "  READ:     %d\n", snap.Records)
	fmt.Fprintf(w, "  WRITTEN:  %d\n", snap.Written)
	fmt.Fprintf(w, "  MODIFIED: %d\n", snap.Modified)
	fmt.Fprintf(w, "  FAILED:   %d\n", snap.Failed)
	fmt.Fprintf(w, "  Lines:    %d\n", snap.Lines)
	fmt.Fprintln(w)

	if len(snap.Dropped) > 0 {
		rules := make([]string, 0, len(snap.Dropped))
		for rule := range snap.Dropped {
			rules = append(rules, rule)
		}
		sort.Strings(rules)

		fmt.Fprintln(w, "Dropped lines:")
		for _, rule := range rules {
			fmt.Fprintf(w, "  %-20s %d\n", rule+":", snap.Dropped[rule])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Errors:")
	fmt.Fprintf(w, "  Validation errors: %d\n", snap.ValidationErrors)
	fmt.Fprintf(w, "  Base64 errors:     %d\n", snap.Base64Errors)
	if snap.Duplicates > 0 {
		fmt.Fprintf(w, "  Possible duplicate dns: %d\n", snap.Duplicates)
	}
}
