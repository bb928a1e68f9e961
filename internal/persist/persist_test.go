package persist

import (
	"bytes"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Linef("feature array: len=%d, src=%s", 3, "corpus"); err != nil {
		t.Fatalf("Linef: %v", err)
	}
	if err := w.Linef("  %.16x:%g", uint64(42), 1.5); err != nil {
		t.Fatalf("Linef: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	line1, ok := r.Line()
	if !ok {
		t.Fatalf("expected a first line")
	}
	if want := "feature array: len=3, src=corpus"; line1 != want {
		t.Errorf("line 1 = %q, want %q", line1, want)
	}

	line2, ok := r.Line()
	if !ok {
		t.Fatalf("expected a second line")
	}
	if want := "  000000000000002a:1.5"; line2 != want {
		t.Errorf("line 2 = %q, want %q", line2, want)
	}

	if _, ok := r.Line(); ok {
		t.Fatalf("expected no more lines after the stream is exhausted")
	}
	if err := r.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
}

func TestReaderOnNonGzipInputErrors(t *testing.T) {
	t.Parallel()

	if _, err := NewReader(bytes.NewReader([]byte("not gzip data"))); err == nil {
		t.Fatalf("expected NewReader to reject non-gzip input")
	}
}

func TestReaderOnEmptyStreamYieldsNoLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := NewWriter(&buf).Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if _, ok := r.Line(); ok {
		t.Fatalf("expected an empty stream to yield no lines")
	}
	if err := r.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
}

func TestWriterLinefPreservesMultipleLinesInOrder(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for i := 0; i < 5; i++ {
		if err := w.Linef("line %d", i); err != nil {
			t.Fatalf("Linef: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	for i := 0; i < 5; i++ {
		line, ok := r.Line()
		if !ok {
			t.Fatalf("expected line %d", i)
		}
		want := "line " + string(rune('0'+i))
		if line != want {
			t.Errorf("line %d = %q, want %q", i, line, want)
		}
	}
}
