// Package fhash implements the hashed feature table (FT): a process-wide
// mapping from 64-bit feature keys to the original byte sequence that
// produced them, with insertion/collision counters (spec.md §2.1, §4.1,
// §5). It is grounded on original_source/src/ftable.c's put/get/counter
// behavior; the simpler always-on original_source/src/fhash.c variant
// informed the decision to make counting optional rather than the
// default (here: a disabled Table is simply never staged into).
//
// Per SPEC_FULL.md's design notes (spec.md §9 "global state as argument"),
// this is an owned handle passed explicitly to extractors, not a package
// singleton.
package fhash

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"behavior-corpus/internal/corpuserr"
	"behavior-corpus/internal/persist"
)

// Key is a 64-bit feature key: a collision-resistant digest of a byte
// substring.
type Key = uint64

// Table is the process-wide (or, here, caller-owned) feature lookup
// table. A disabled Table accepts no writes and answers every read with
// "absent", matching spec.md §3's FT lifecycle.
type Table struct {
	mu         sync.Mutex
	enabled    bool
	entries    map[Key][]byte
	insertions uint64
	collisions uint64
}

// New creates a Table. Disabled tables cost only the struct itself.
func New(enabled bool) *Table {
	t := &Table{enabled: enabled}
	if enabled {
		t.entries = make(map[Key][]byte)
	}
	return t
}

// Enabled reports whether the table accepts writes.
func (t *Table) Enabled() bool { return t.enabled }

// Get returns the original bytes for key, if present.
func (t *Table) Get(key Key) ([]byte, bool) {
	if !t.enabled {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[key]
	return v, ok
}

// Put inserts key -> data directly, taking the table mutex. Extraction
// workers should prefer a Staging buffer (see NewStaging) to avoid
// contending on this mutex per feature; Put exists for small, single-
// threaded callers (tests, single-record lookups).
func (t *Table) Put(key Key, data []byte) {
	if !t.enabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.putLocked(key, data)
}

func (t *Table) putLocked(key Key, data []byte) {
	if existing, ok := t.entries[key]; ok {
		if !bytesEqual(existing, data) {
			t.collisions++
		}
		return
	}
	t.entries[key] = append([]byte(nil), data...)
	t.insertions++
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Len returns the number of distinct keys stored.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Counts returns the running insertion and collision counters.
func (t *Table) Counts() (insertions, collisions uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertions, t.collisions
}

// Staging is a thread-local buffer extraction workers stage inserts in,
// flushed into the owning Table under its mutex in one batch (spec.md §5
// "shared-resource policy"; spec.md §9 "thread-local caches + critical
// regions" redesign note — modeled here as an explicit per-worker buffer
// rather than a compiler thread-local).
type Staging struct {
	table   *Table
	pending map[Key][]byte
}

// NewStaging creates a staging buffer for one extraction worker.
func (t *Table) NewStaging() *Staging {
	return &Staging{table: t, pending: make(map[Key][]byte)}
}

// Put buffers an insert without touching the table's mutex.
func (s *Staging) Put(key Key, data []byte) {
	if !s.table.enabled {
		return
	}
	if _, ok := s.pending[key]; !ok {
		s.pending[key] = append([]byte(nil), data...)
	}
}

// Flush drains the staging buffer into the owning table under its
// mutex, then clears the buffer so the Staging can be reused.
func (s *Staging) Flush() {
	if !s.table.enabled || len(s.pending) == 0 {
		return
	}
	s.table.mu.Lock()
	for k, v := range s.pending {
		s.table.putLocked(k, v)
	}
	s.table.mu.Unlock()
	s.pending = make(map[Key][]byte)
}

// Save writes the persisted feature-table format (spec.md §6):
// "feature table: len=<N>" followed by N lines
// "  <hex-key>: <url-encoded-bytes>", gzip-framed.
func (t *Table) Save(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := persist.NewWriter(w)
	if err := out.Linef("feature table: len=%d", len(t.entries)); err != nil {
		return err
	}
	for key, data := range t.entries {
		if err := out.Linef("  %.16x: %s", key, percentEncode(data)); err != nil {
			return err
		}
	}
	return out.Close()
}

// Load reads the persisted feature-table format produced by Save,
// returning a freshly enabled Table.
func Load(r io.Reader) (*Table, error) {
	in, err := persist.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	header, ok := in.Line()
	if !ok {
		return nil, corpuserr.Newf(corpuserr.InvalidInput, "feature table: empty stream")
	}
	var n int
	if _, err := fmt.Sscanf(header, "feature table: len=%d", &n); err != nil {
		return nil, corpuserr.Newf(corpuserr.InvalidInput, "feature table: malformed header %q", header)
	}

	t := New(true)
	for i := 0; i < n; i++ {
		line, ok := in.Line()
		if !ok {
			return nil, corpuserr.Newf(corpuserr.InvalidInput, "feature table: truncated stream, expected %d entries, got %d", n, i)
		}
		line = strings.TrimPrefix(line, "  ")
		idx := strings.Index(line, ": ")
		if idx < 0 {
			return nil, corpuserr.Newf(corpuserr.InvalidInput, "feature table: malformed entry %q", line)
		}
		var key Key
		if _, err := fmt.Sscanf(line[:idx], "%x", &key); err != nil {
			return nil, corpuserr.Newf(corpuserr.InvalidInput, "feature table: malformed key %q", line[:idx])
		}
		data, err := percentDecode(line[idx+2:])
		if err != nil {
			return nil, corpuserr.New(corpuserr.InvalidInput, err)
		}
		t.entries[key] = data
		t.insertions++
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// percentEncode renders data the way ftable_print / ftable_save does:
// printable, non-percent, non-whitespace-control bytes pass through;
// everything else becomes %HH (uppercase hex).
func percentEncode(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		if isPrintable(b) && b != '%' {
			sb.WriteByte(b)
		} else {
			fmt.Fprintf(&sb, "%%%02X", b)
		}
	}
	return sb.String()
}

func isPrintable(b byte) bool {
	return b >= 0x20 && b < 0x7f
}

func percentDecode(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' {
			if i+2 >= len(s) {
				return nil, fmt.Errorf("truncated percent-escape in %q", s)
			}
			var b int
			if _, err := fmt.Sscanf(s[i+1:i+3], "%02X", &b); err != nil {
				return nil, fmt.Errorf("malformed percent-escape in %q: %w", s, err)
			}
			out = append(out, byte(b))
			i += 2
		} else {
			out = append(out, s[i])
		}
	}
	return out, nil
}
