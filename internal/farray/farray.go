// Package farray implements the feature array (FA): an ordered
// collection of feature vectors with integer label indices and a
// bidirectional, content-addressed label table (spec.md §3, §4.3).
// Grounded on original_source/src/farray.c: label_add's MD5-slice
// content addressing, farray_add's geometric growth (here: Go's own
// slice growth, which is geometric and O(1) amortized, fulfilling the
// same requirement without a hand-rolled block size), farray_merge's
// ownership transfer and index rehashing, and farray_save/_load's
// exact line format.
package farray

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"

	"behavior-corpus/internal/corpuserr"
	"behavior-corpus/internal/fvec"
	"behavior-corpus/internal/persist"
)

// maxLabelLen mirrors the reference's char name[64] (63 usable bytes
// plus a NUL terminator Go strings do not need).
const maxLabelLen = 63

// LabelTable is a bidirectional name<->index mapping. The index is
// derived from a 32-bit slice of MD5(name), so the same label string in
// two different arrays always yields the same index without any
// coordination between them (spec.md §3).
type LabelTable struct {
	mu          sync.RWMutex
	nameToIndex map[string]uint32
	indexToName map[uint32]string
}

// NewLabelTable creates an empty label table.
func NewLabelTable() *LabelTable {
	return &LabelTable{
		nameToIndex: make(map[string]uint32),
		indexToName: make(map[uint32]string),
	}
}

// labelIndex derives the content-addressed index for name: the first
// four bytes of MD5(name), big-endian.
func labelIndex(name string) uint32 {
	sum := md5.Sum([]byte(name))
	return binary.BigEndian.Uint32(sum[:4])
}

// Add registers name (truncated to maxLabelLen bytes if longer) and
// returns its index, reusing the existing index if name was already
// present.
func (t *LabelTable) Add(name string) (uint32, error) {
	if len(name) > maxLabelLen {
		name = name[:maxLabelLen]
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if idx, ok := t.nameToIndex[name]; ok {
		return idx, nil
	}
	idx := labelIndex(name)
	if existing, ok := t.indexToName[idx]; ok && existing != name {
		return 0, corpuserr.Newf(corpuserr.InvalidInput, "label index collision: %q and %q both hash to %d", existing, name, idx)
	}
	t.nameToIndex[name] = idx
	t.indexToName[idx] = name
	return idx, nil
}

// Name returns the label name for idx, if registered.
func (t *LabelTable) Name(idx uint32) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.indexToName[idx]
	return name, ok
}

// Index returns the index for name, if registered.
func (t *LabelTable) Index(name string) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := t.nameToIndex[name]
	return idx, ok
}

// Len returns the number of distinct labels registered.
func (t *LabelTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nameToIndex)
}

// FA is an ordered collection of feature vectors with parallel label
// indices (spec.md §3). FA owns its vectors; there is no separate
// destroy step in Go, the garbage collector reclaims them once
// unreferenced.
type FA struct {
	X      []*fvec.Vector
	Y      []uint32
	Labels *LabelTable
	Src    string
}

// New creates an empty feature array tagged with src.
func New(src string) *FA {
	return &FA{Labels: NewLabelTable(), Src: src}
}

// Len returns the number of vectors.
func (fa *FA) Len() int { return len(fa.X) }

// Append adds v under label, growing fa.X/fa.Y. Go's append already
// grows its backing array geometrically, giving the same O(1)
// amortized cost as the reference's block-wise growth without a fixed
// block-size constant.
func (fa *FA) Append(v *fvec.Vector, label string) error {
	idx, err := fa.Labels.Add(label)
	if err != nil {
		return err
	}
	fa.X = append(fa.X, v)
	fa.Y = append(fa.Y, idx)
	return nil
}

// GetLabel returns the label name of the i-th vector.
func (fa *FA) GetLabel(i int) (string, bool) {
	if i < 0 || i >= len(fa.Y) {
		return "", false
	}
	return fa.Labels.Name(fa.Y[i])
}

// Mem estimates the byte footprint of the array for the persisted
// header's mem=<M> field: a fixed per-vector overhead plus 16 bytes per
// feature (matching the reference's key+value accounting).
func (fa *FA) Mem() int {
	m := 0
	for _, v := range fa.X {
		m += vectorMem(v)
	}
	return m
}

func vectorMem(v *fvec.Vector) int {
	const overhead = 40
	return overhead + len(v.Keys)*16
}

// Merge transfers src's vectors into dst, rehashing each label through
// dst's label table so that a name present in both tables lands on the
// same index without requiring the tables to have agreed on indices in
// advance (farray_merge). src is left with no usable vectors after the
// call (its slices are cleared to signal the ownership transfer).
func Merge(dst, src *FA) error {
	for i, v := range src.X {
		name, _ := src.GetLabel(i)
		if err := dst.Append(v, name); err != nil {
			return err
		}
	}
	src.X = nil
	src.Y = nil
	return nil
}

// Save writes the persisted feature-array format (spec.md §6):
// "feature array: len=<N>, labels=<K>, mem=<M>, src=<S>" followed by N
// vector records, each "feature vector: len=<L>, total=<T>, mem=<M>,
// src=<S>" then L "  <hex-key>:<float-weight>" lines and a trailing
// "  label=<name>" line, gzip-framed.
func (fa *FA) Save(w io.Writer) error {
	out := persist.NewWriter(w)
	if err := WriteTo(out, fa); err != nil {
		return err
	}
	return out.Close()
}

// WriteTo encodes fa as a sequence of lines on an already-open
// persist.Writer, without closing it. Used directly by
// internal/runstate to embed a feature array inside a larger framed
// stream alongside other fields.
func WriteTo(out *persist.Writer, fa *FA) error {
	if err := out.Linef("feature array: len=%d, labels=%d, mem=%d, src=%s", len(fa.X), fa.Labels.Len(), fa.Mem(), fa.Src); err != nil {
		return err
	}
	for i, v := range fa.X {
		if err := out.Linef("feature vector: len=%d, total=%d, mem=%d, src=%s", len(v.Keys), v.Total, vectorMem(v), v.Src); err != nil {
			return err
		}
		for k := range v.Keys {
			if err := out.Linef("  %.16x:%g", v.Keys[k], v.Weights[k]); err != nil {
				return err
			}
		}
		name, _ := fa.GetLabel(i)
		if err := out.Linef("  label=%s", name); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the persisted feature-array format produced by Save.
func Load(r io.Reader) (*FA, error) {
	in, err := persist.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return ReadFrom(in)
}

// ReadFrom decodes one feature array from an already-open
// persist.Reader, without closing it. The counterpart to WriteTo.
func ReadFrom(in *persist.Reader) (*FA, error) {
	header, ok := in.Line()
	if !ok {
		return nil, corpuserr.Newf(corpuserr.InvalidInput, "feature array: empty stream")
	}
	var n, labels, mem int
	if _, err := fmt.Sscanf(header, "feature array: len=%d, labels=%d, mem=%d, src=", &n, &labels, &mem); err != nil {
		return nil, corpuserr.Newf(corpuserr.InvalidInput, "feature array: malformed header %q", header)
	}
	// src is the rest of the line, so an empty or space-containing tag
	// round-trips.
	src := header[strings.Index(header, ", src=")+len(", src="):]

	fa := New(src)
	for i := 0; i < n; i++ {
		vhead, ok := in.Line()
		if !ok {
			return nil, corpuserr.Newf(corpuserr.InvalidInput, "feature array: truncated stream, expected %d vectors, got %d", n, i)
		}
		var vlen, vtotal, vmem int
		if _, err := fmt.Sscanf(vhead, "feature vector: len=%d, total=%d, mem=%d, src=", &vlen, &vtotal, &vmem); err != nil {
			return nil, corpuserr.Newf(corpuserr.InvalidInput, "feature array: malformed vector header %q", vhead)
		}
		vsrc := vhead[strings.Index(vhead, ", src=")+len(", src="):]

		v := &fvec.Vector{
			Keys:    make([]fvec.Key, vlen),
			Weights: make([]float64, vlen),
			Total:   vtotal,
			Src:     vsrc,
		}
		for k := 0; k < vlen; k++ {
			line, ok := in.Line()
			if !ok {
				return nil, corpuserr.Newf(corpuserr.InvalidInput, "feature array: truncated vector %d", i)
			}
			line = strings.TrimPrefix(line, "  ")
			idx := strings.IndexByte(line, ':')
			if idx < 0 {
				return nil, corpuserr.Newf(corpuserr.InvalidInput, "feature array: malformed feature line %q", line)
			}
			var key fvec.Key
			if _, err := fmt.Sscanf(line[:idx], "%x", &key); err != nil {
				return nil, corpuserr.Newf(corpuserr.InvalidInput, "feature array: malformed key %q", line[:idx])
			}
			var weight float64
			if _, err := fmt.Sscanf(line[idx+1:], "%g", &weight); err != nil {
				return nil, corpuserr.Newf(corpuserr.InvalidInput, "feature array: malformed weight %q", line[idx+1:])
			}
			v.Keys[k] = key
			v.Weights[k] = weight
		}

		labelLine, ok := in.Line()
		if !ok {
			return nil, corpuserr.Newf(corpuserr.InvalidInput, "feature array: missing label for vector %d", i)
		}
		labelLine = strings.TrimPrefix(labelLine, "  ")
		name := strings.TrimPrefix(labelLine, "label=")

		if err := fa.Append(v, name); err != nil {
			return nil, err
		}
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return fa, nil
}
