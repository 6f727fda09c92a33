// Package auditlog writes the per-record audit trail of a conversion run.
//
// In text form each record's messages are preceded by a single
// "Processing: <key>" header, written only when the record produces its first
// message, so records that pass through untouched leave nothing behind. In
// JSON form every message is one zerolog event carrying the record key.
package auditlog

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts "text", "json" or an empty string (text).
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("invalid audit log format %q (must be text|json)", s)
}

// Logger is the audit log. It is not safe for concurrent use; a run
// processes one record at a time.
type Logger struct {
	out    *bufio.Writer
	closer io.Closer
	format Format
	json   zerolog.Logger
	mirror zerolog.Logger

	record        string
	headerWritten bool
	messages      uint64
}

// New writes audit messages to w. Every message is also sent to mirror at
// debug level. If w is an io.Closer, Close closes it.
func New(w io.Writer, format Format, mirror zerolog.Logger) *Logger {
	l := &Logger{
		out:    bufio.NewWriterSize(w, 64*1024),
		format: format,
		json:   zerolog.Nop(),
		mirror: mirror,
	}
	if c, ok := w.(io.Closer); ok {
		l.closer = c
	}
	if format == FormatJSON {
		l.json = zerolog.New(l.out).With().Timestamp().Logger()
	}
	return l
}

// With adds a field to every JSON audit event, e.g. the run id.
func (l *Logger) With(key, value string) *Logger {
	l.json = l.json.With().Str(key, value).Logger()
	return l
}

// SetRecord starts a new record context. The header for it is written lazily.
func (l *Logger) SetRecord(key string) {
	l.record = key
	l.headerWritten = false
}

// Printf writes one audit message for the current record.
func (l *Logger) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.messages++

	l.mirror.Debug().Str("record", l.record).Msg(strings.TrimSpace(msg))

	if l.format == FormatJSON {
		l.json.Info().Str("record", l.record).Msg(strings.TrimSpace(msg))
		return
	}

	if !l.headerWritten {
		l.out.WriteString("Processing: ")
		l.out.WriteString(l.record)
		l.out.WriteByte('\n')
		l.headerWritten = true
	}
	l.out.WriteString(msg)
	l.out.WriteByte('\n')
}

// Messages returns the number of messages written so far.
func (l *Logger) Messages() uint64 {
	return l.messages
}

func (l *Logger) Flush() error {
	return l.out.Flush()
}

// Close flushes buffered messages and closes the underlying writer.
func (l *Logger) Close() error {
	if err := l.out.Flush(); err != nil {
		return fmt.Errorf("failed to flush audit log: %w", err)
	}
	if l.closer != nil {
		if err := l.closer.Close(); err != nil {
			return fmt.Errorf("failed to close audit log: %w", err)
		}
	}
	return nil
}
