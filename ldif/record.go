package ldif

import (
	"encoding/base64"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NoKey is the key of a record without a dn line.
const NoKey = "NONE"

var (
	dnPattern       = regexp.MustCompile(`(?m)^dn: (.*)$`)
	dnBase64Pattern = regexp.MustCompile(`(?m)^dn:: (.*)$`)
	keySeparator    = regexp.MustCompile(`,\s+`)
)

// NormalizeKey collapses whitespace after commas so "cn=a, dc=b" and
// "cn=a,dc=b" name the same record.
func NormalizeKey(dn string) string {
	return keySeparator.ReplaceAllString(strings.TrimRightFunc(dn, unicode.IsSpace), ",")
}

// ExtractKey returns the normalized dn of an unfolded chunk, or NoKey.
func ExtractKey(chunk string) string {
	if m := dnPattern.FindStringSubmatch(chunk); m != nil {
		return NormalizeKey(m[1])
	}

	if m := dnBase64Pattern.FindStringSubmatch(chunk); m != nil {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(m[1]))
		if err == nil && utf8.Valid(raw) {
			return NormalizeKey(string(raw))
		}
	}

	return NoKey
}

// Record is one LDIF entry: its key and its lines in input order.
type Record struct {
	Key   string
	Lines []Line

	log Log
}

// NewRecord builds a record from already classified lines.
func NewRecord(key string, lines []Line, log Log) *Record {
	if log == nil {
		log = NopLog{}
	}
	r := &Record{Lines: lines, log: log}
	r.SetKey(key)
	return r
}

// Parse classifies every line of an unfolded chunk. Lines the classifier
// drops are left out. The first codec error aborts the record.
func Parse(chunk string, c *Classifier) (*Record, error) {
	r := &Record{log: c.log}
	r.SetKey(ExtractKey(chunk))

	raw := strings.Split(strings.TrimRight(chunk, "\n"), "\n")
	r.Lines = make([]Line, 0, len(raw))

	for _, text := range raw {
		line, keep, err := c.Classify(strings.TrimSuffix(text, "\r"))
		if err != nil {
			return nil, err
		}
		if keep {
			r.Lines = append(r.Lines, line)
		}
	}

	return r, nil
}

// SetKey changes the record key and attributes further audit messages to it.
func (r *Record) SetKey(key string) {
	r.Key = key
	r.log.SetRecord(key)
}

// Logf writes an audit message for this record.
func (r *Record) Logf(format string, args ...any) {
	r.log.Printf(format, args...)
}

// MapLines replaces every line with the result of fn, in order. When fn
// returns false the line is dropped and logged with msg exactly as
// FilterLines does. It returns the number of dropped lines.
func (r *Record) MapLines(fn func(Line) (Line, bool), msg string) int {
	kept := r.Lines[:0]
	dropped := 0

	for _, line := range r.Lines {
		next, keep := fn(line)
		if !keep {
			r.log.Printf(" %s:  '%s'", msg, line)
			dropped++
			continue
		}
		kept = append(kept, next)
	}

	r.Lines = kept
	return dropped
}

// FilterLines drops every line for which drop returns true.
func (r *Record) FilterLines(drop func(Line) bool, msg string) int {
	return r.MapLines(func(l Line) (Line, bool) {
		return l, !drop(l)
	}, msg)
}

// Len returns the number of surviving lines.
func (r *Record) Len() int {
	return len(r.Lines)
}

// String serializes the record without a trailing separator.
func (r *Record) String() string {
	var sb strings.Builder
	for i, line := range r.Lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line.Dump())
	}
	return sb.String()
}
