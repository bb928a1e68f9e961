// Package persist implements the gzip-framed line format shared by the
// feature-array and feature-table persisted representations (spec.md §6).
// Both formats are plain text wrapped in a gzip stream; this package
// owns the framing so fhash and farray only deal in text lines.
package persist

import (
	"bufio"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"behavior-corpus/internal/corpuserr"
)

// Writer appends text lines to a gzip stream.
type Writer struct {
	gz  *gzip.Writer
	buf *bufio.Writer
}

// NewWriter wraps w in a gzip stream ready to accept lines.
func NewWriter(w io.Writer) *Writer {
	gz := gzip.NewWriter(w)
	return &Writer{gz: gz, buf: bufio.NewWriter(gz)}
}

// Linef writes one formatted line, newline-terminated.
func (w *Writer) Linef(format string, args ...any) error {
	if _, err := fmt.Fprintf(w.buf, format+"\n", args...); err != nil {
		return corpuserr.New(corpuserr.IO, err)
	}
	return nil
}

// Close flushes the buffered writer and the gzip stream, in that order.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		return corpuserr.New(corpuserr.IO, err)
	}
	if err := w.gz.Close(); err != nil {
		return corpuserr.New(corpuserr.IO, err)
	}
	return nil
}

// Reader yields text lines from a gzip stream.
type Reader struct {
	gz  *gzip.Reader
	sc  *bufio.Scanner
}

// NewReader opens a gzip stream for line-by-line reading. The caller
// owns closing the underlying io.Reader if it needs closing separately.
func NewReader(r io.Reader) (*Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, corpuserr.New(corpuserr.InvalidInput, err)
	}
	sc := bufio.NewScanner(gz)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader{gz: gz, sc: sc}, nil
}

// Line returns the next line with its trailing newline stripped, and
// false when the stream is exhausted. A truncated stream (scanner error)
// is reported via Err.
func (r *Reader) Line() (string, bool) {
	if !r.sc.Scan() {
		return "", false
	}
	return r.sc.Text(), true
}

// Err reports the first non-EOF error encountered while scanning.
func (r *Reader) Err() error {
	if err := r.sc.Err(); err != nil {
		return corpuserr.New(corpuserr.InvalidInput, err)
	}
	return nil
}

// Close closes the underlying gzip reader.
func (r *Reader) Close() error {
	if err := r.gz.Close(); err != nil {
		return corpuserr.New(corpuserr.IO, err)
	}
	return nil
}
