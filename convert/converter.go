package convert

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/maxpert/ldifconv/auditlog"
	"github.com/maxpert/ldifconv/cfg"
	"github.com/maxpert/ldifconv/ldif"
	"github.com/maxpert/ldifconv/rules"
	"github.com/maxpert/ldifconv/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Options carries the process level collaborators of a run.
type Options struct {
	RunID   string
	Stdin   io.Reader
	Stdout  io.Writer
	Summary io.Writer // final statistics, discarded when nil
}

// Converter runs one conversion of an input LDIF file into an output file.
type Converter struct {
	cfg  *cfg.Configuration
	fs   afero.Fs
	log  zerolog.Logger
	opts Options
}

func New(c *cfg.Configuration, fs afero.Fs, log zerolog.Logger, opts Options) *Converter {
	if opts.Summary == nil {
		opts.Summary = io.Discard
	}
	return &Converter{cfg: c, fs: fs, log: log, opts: opts}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// streams closes everything a run opened, in reverse order, exactly once.
type streams struct {
	names   []string
	closers []io.Closer
}

func (s *streams) add(name string, c io.Closer) {
	s.names = append(s.names, name)
	s.closers = append(s.closers, c)
}

func (s *streams) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", s.names[i], err))
		}
	}
	s.names, s.closers = nil, nil
	return errors.Join(errs...)
}

// run holds the state shared across the records of one conversion.
type run struct {
	reader     *ldif.Reader
	writer     *ldif.Writer
	rejects    *ldif.Writer
	audit      *auditlog.Logger
	classifier *ldif.Classifier
	pipeline   *rules.Pipeline
	duplicates *DuplicateFilter
	stats      *telemetry.Stats
	reporter   *telemetry.Reporter
}

// Run converts every record of the input. Records that fail to parse or
// convert are skipped, counted and copied to the reject file when one is
// configured. Errors opening or writing streams end the run.
func (c *Converter) Run() (telemetry.Snapshot, error) {
	var registry *telemetry.Registry
	if c.cfg.MetricsFile != "" {
		registry = telemetry.NewRegistry(c.opts.RunID)
	}
	stats := telemetry.NewStats(telemetry.NewMetrics(registry))

	pipeline, err := rules.Compile(c.cfg, stats)
	if err != nil {
		return telemetry.Snapshot{}, err
	}

	codec, err := ldif.NewCodec(ldif.CodecOptions{
		NoConvert:       c.cfg.B64NoConvert,
		CaseInsensitive: c.cfg.CaseInsensitive,
		IgnoreErrors:    c.cfg.IgnoreB64Errors,
		CacheSize:       c.cfg.DecodeCacheSize,
	})
	if err != nil {
		return telemetry.Snapshot{}, err
	}
	codec.OnError = func(string, error) { stats.Base64Error() }

	var s streams
	defer s.close()

	r, err := c.open(&s, stats)
	if err != nil {
		return telemetry.Snapshot{}, err
	}
	r.pipeline = pipeline
	r.classifier = ldif.NewClassifier(codec, c.cfg.CleanEmptyEnabled(), r.audit)
	r.reporter = telemetry.NewReporter(stats, c.log, c.cfg.ProgressInterval)
	if c.cfg.DetectDuplicates {
		r.duplicates = NewDuplicateFilter()
	}

	c.log.Info().
		Str("input", c.cfg.InputFile).
		Str("output", c.cfg.OutputFile).
		Strs("rules", pipeline.Names()).
		Msg("Starting conversion")

	// a failed run still reports its partial counts
	err = errors.Join(c.loop(r), s.close())
	stats.PrintFinal(c.opts.Summary, r.reporter.Elapsed())
	if err != nil {
		return stats.GetSnapshot(), err
	}

	if c.cfg.MetricsFile != "" {
		if err := c.writeMetrics(registry); err != nil {
			return stats.GetSnapshot(), err
		}
	}

	snap := stats.GetSnapshot()
	c.log.Info().
		Uint64("records", snap.Records).
		Uint64("written", snap.Written).
		Uint64("failed", snap.Failed).
		Dur("elapsed", r.reporter.Elapsed()).
		Msg("Conversion finished")

	if r.duplicates != nil {
		c.log.Debug().Uint("keys", r.duplicates.Size()).Msg("Duplicate filter size")
	}

	return snap, nil
}

// open opens every stream of the run before any record is read.
func (c *Converter) open(s *streams, stats *telemetry.Stats) (*run, error) {
	r := &run{stats: stats}

	in, err := Open(c.fs, c.cfg.InputFile, c.opts.Stdin)
	if err != nil {
		return nil, err
	}
	s.add("input", in)
	r.reader = ldif.NewReader(in)

	out, err := Create(c.fs, c.cfg.OutputFile, c.opts.Stdout)
	if err != nil {
		return nil, err
	}
	r.writer = ldif.NewWriter(out)
	s.add("output", flushThenClose(r.writer, out))

	format, err := auditlog.ParseFormat(c.cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	var logOut io.Writer = io.Discard
	if c.cfg.LogFile != "" {
		f, err := Create(c.fs, c.cfg.LogFile, c.opts.Stdout)
		if err != nil {
			return nil, err
		}
		logOut = f
	}
	r.audit = auditlog.New(logOut, format, c.log).With("run_id", c.opts.RunID)
	s.add("audit log", closerFunc(r.audit.Close))

	if c.cfg.RejectFile != "" {
		rf, err := Create(c.fs, c.cfg.RejectFile, c.opts.Stdout)
		if err != nil {
			return nil, err
		}
		r.rejects = ldif.NewWriter(rf)
		s.add("reject file", flushThenClose(r.rejects, rf))
	}

	return r, nil
}

func flushThenClose(w *ldif.Writer, c io.Closer) io.Closer {
	return closerFunc(func() error {
		if err := w.Flush(); err != nil {
			c.Close()
			return err
		}
		return c.Close()
	})
}

func (c *Converter) loop(r *run) error {
	for {
		before := r.reader.Lines()
		chunk, err := r.reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", c.cfg.InputFile, err)
		}

		r.stats.RecordRead(r.reader.Lines() - before)
		if err := c.record(r, chunk); err != nil {
			return err
		}
		r.reporter.Tick()
	}
}

// record converts one chunk. Only write errors are returned.
func (c *Converter) record(r *run, chunk string) error {
	start := time.Now()

	rec, err := ldif.Parse(chunk, r.classifier)
	if err == nil {
		c.checkDuplicate(r, rec)
		err = r.pipeline.Process(rec)
	}
	if err != nil {
		return c.reject(r, chunk, err)
	}

	if err := r.writer.Write(rec); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.cfg.OutputFile, err)
	}

	modified := rec.String() != strings.TrimRight(chunk, "\n")
	r.stats.RecordWritten(modified, time.Since(start))
	return nil
}

func (c *Converter) checkDuplicate(r *run, rec *ldif.Record) {
	if r.duplicates == nil || rec.Key == ldif.NoKey {
		return
	}
	if r.duplicates.Seen(rec.Key) {
		r.stats.DuplicateKey()
		rec.Logf(" Possible duplicate dn: '%s'", rec.Key)
		c.log.Warn().Str("record", rec.Key).Msg("Possible duplicate dn")
	}
}

func (c *Converter) reject(r *run, chunk string, cause error) error {
	key := ldif.ExtractKey(chunk)
	r.stats.RecordFailed()
	r.audit.Printf(" Record not converted: %s", cause)
	c.log.Warn().Err(cause).Str("record", key).Msg("Record not converted")

	if r.rejects == nil {
		return nil
	}
	if err := r.rejects.WriteRaw(chunk); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.cfg.RejectFile, err)
	}
	return nil
}

func (c *Converter) writeMetrics(registry *telemetry.Registry) error {
	f, err := c.fs.Create(c.cfg.MetricsFile)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", c.cfg.MetricsFile, err)
	}
	if err := registry.WriteText(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
