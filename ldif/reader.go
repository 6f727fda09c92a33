package ldif

import (
	"bufio"
	"io"
	"strings"
)

// Reader splits an LDIF stream into record chunks separated by blank lines.
// Chunks are returned unfolded: every newline followed by a single space is
// removed so continuation lines join the line they continue.
type Reader struct {
	br    *bufio.Reader
	lines int
	done  bool
}

// NewReader wraps r. The reader is consumed once; it cannot be rewound.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next chunk, or io.EOF once the stream is exhausted.
// A final chunk without a trailing blank line is still returned.
func (r *Reader) Next() (string, error) {
	if r.done {
		return "", io.EOF
	}

	var chunk strings.Builder
	for {
		line, err := r.br.ReadString('\n')
		if line != "" {
			r.lines++
			if strings.HasSuffix(line, "\r\n") {
				line = line[:len(line)-2] + "\n"
			}

			if line == "\n" {
				if chunk.Len() > 0 {
					return unfold(chunk.String()), nil
				}
				continue
			}
			chunk.WriteString(line)
		}

		if err == io.EOF {
			r.done = true
			if chunk.Len() > 0 {
				return unfold(chunk.String()), nil
			}
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}
	}
}

// Lines returns the number of physical lines read so far.
func (r *Reader) Lines() int {
	return r.lines
}

func unfold(chunk string) string {
	return strings.ReplaceAll(chunk, "\n ", "")
}

// Writer writes records separated by a blank line.
type Writer struct {
	bw      *bufio.Writer
	records int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriterSize(w, 64*1024)}
}

// Write appends rec followed by the record separator.
func (w *Writer) Write(rec *Record) error {
	if _, err := w.bw.WriteString(rec.String()); err != nil {
		return err
	}
	if _, err := w.bw.WriteString("\n\n"); err != nil {
		return err
	}
	w.records++
	return nil
}

// WriteRaw appends an unparsed chunk, adding the separator.
func (w *Writer) WriteRaw(chunk string) error {
	if _, err := w.bw.WriteString(strings.TrimRight(chunk, "\n")); err != nil {
		return err
	}
	if _, err := w.bw.WriteString("\n\n"); err != nil {
		return err
	}
	w.records++
	return nil
}

// Records returns how many records were written.
func (w *Writer) Records() int {
	return w.records
}

func (w *Writer) Flush() error {
	return w.bw.Flush()
}
