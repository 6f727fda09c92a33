package convert

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

// StdStream names standard input or output in place of a path.
const StdStream = "-"

type compression int

const (
	compressNone compression = iota
	compressGzip
	compressZstd
)

func compressionFor(path string) compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return compressGzip
	case ".zst", ".zstd":
		return compressZstd
	}
	return compressNone
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r *readCloser) Close() error { return r.close() }

type writeCloser struct {
	io.Writer
	close func() error
}

func (w *writeCloser) Close() error { return w.close() }

// Open opens path for reading through fs, or returns stdin for "-".
// Files ending in .gz or .zst are decompressed transparently.
func Open(fs afero.Fs, path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == StdStream {
		return io.NopCloser(stdin), nil
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	switch compressionFor(path) {
	case compressGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		return &readCloser{Reader: gz, close: func() error {
			gz.Close()
			return f.Close()
		}}, nil

	case compressZstd:
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		return &readCloser{Reader: dec, close: func() error {
			dec.Close()
			return f.Close()
		}}, nil
	}

	return f, nil
}

// Create truncates or creates path through fs, or returns stdout for "-".
// Closing stdout is a no-op. Files ending in .gz or .zst are compressed.
func Create(fs afero.Fs, path string, stdout io.Writer) (io.WriteCloser, error) {
	if path == StdStream {
		return &writeCloser{Writer: stdout, close: func() error { return nil }}, nil
	}

	f, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	switch compressionFor(path) {
	case compressGzip:
		gz := gzip.NewWriter(f)
		return &writeCloser{Writer: gz, close: func() error {
			return closeBoth(gz, f)
		}}, nil

	case compressZstd:
		enc, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		return &writeCloser{Writer: enc, close: func() error {
			return closeBoth(enc, f)
		}}, nil
	}

	return f, nil
}

// closeBoth closes the compressor, then the file under it, returning the
// first error.
func closeBoth(inner io.Closer, f afero.File) error {
	err := inner.Close()
	if ferr := f.Close(); err == nil {
		err = ferr
	}
	return err
}
