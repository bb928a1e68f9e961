// Package fvec implements the sparse feature vector (FV) and its
// extraction from byte sequences (spec.md §3, §4.1). Grounded on
// original_source/src/fvec.c: fvec_extract's sort/condense/normalize
// pipeline, extract_ngrams' sliding window, extract_wgrams' delimiter
// collapsing, and decode_delim's literal-plus-%HH-escape grammar.
package fvec

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"behavior-corpus/internal/config"
	"behavior-corpus/internal/corpuserr"
	"behavior-corpus/internal/fhash"
)

// Key is a 64-bit feature key.
type Key = fhash.Key

// condenseEpsilon is the threshold fvec_condense's own zero-check uses
// when merging duplicate keys during extraction (original_source/src/
// fvec.c), distinct from the post-hoc sparsify threshold in internal/
// fmath (spec.md §4.1 expansion note).
const condenseEpsilon = 1e-12

// Vector is a sparse feature vector: ordered (key, weight) pairs with
// strictly ascending, unique keys (spec.md §3).
type Vector struct {
	Keys    []Key
	Weights []float64
	Total   int
	Src     string
}

// Len returns the number of distinct features.
func (v *Vector) Len() int { return len(v.Keys) }

// IsEmpty reports whether the vector has zero features.
func (v *Vector) IsEmpty() bool { return len(v.Keys) == 0 }

// Clone returns a deep copy.
func (v *Vector) Clone() *Vector {
	c := &Vector{
		Keys:    append([]Key(nil), v.Keys...),
		Weights: append([]float64(nil), v.Weights...),
		Total:   v.Total,
		Src:     v.Src,
	}
	return c
}

// HashKey digests a byte substring to a 64-bit feature key: the first
// eight bytes of its MD5 sum, matching the reference implementation's
// "MD5 truncated to 64 bits" scheme (spec.md §3).
func HashKey(substr []byte) Key {
	sum := md5.Sum(substr)
	return binary.BigEndian.Uint64(sum[:8])
}

// DecodeDelim parses a delimiter spec (literal bytes plus %HH hex
// escapes) into a 256-entry boolean mask, matching original_source/src/
// fvec.c's decode_delim.
func DecodeDelim(spec string) ([256]bool, error) {
	var mask [256]bool
	for i := 0; i < len(spec); i++ {
		if spec[i] == '%' {
			if i+2 >= len(spec) {
				return mask, corpuserr.Newf(corpuserr.InvalidConfig, "truncated %%HH escape in delimiter %q", spec)
			}
			var b int
			if _, err := fmt.Sscanf(spec[i+1:i+3], "%02x", &b); err != nil {
				return mask, corpuserr.Newf(corpuserr.InvalidConfig, "malformed %%HH escape in delimiter %q", spec)
			}
			mask[b] = true
			i += 2
		} else {
			mask[spec[i]] = true
		}
	}
	return mask, nil
}

type rawFeature struct {
	key Key
	sub []byte
}

// extractNgrams produces a sliding-window n-gram over data: width n,
// step 1, yielding max(0, L-n+1) grams.
func extractNgrams(data []byte, n int) []rawFeature {
	if len(data) < n {
		return nil
	}
	out := make([]rawFeature, 0, len(data)-n+1)
	for i := 0; i+n <= len(data); i++ {
		sub := data[i : i+n]
		out = append(out, rawFeature{key: HashKey(sub), sub: sub})
	}
	return out
}

// extractWgrams collapses runs of delimiter bytes to a single canonical
// delimiter (the lowest byte value present in mask, for determinism),
// pads a boundary delimiter at both ends, then emits one feature per span
// of n consecutive delimiter-bounded words, each span's substring running
// from the delimiter preceding the first word to the delimiter following
// the last (original_source/src/fvec.c's extract_wgrams).
func extractWgrams(data []byte, n int, mask [256]bool) []rawFeature {
	canonical := byte(0)
	found := false
	for b := 0; b < 256; b++ {
		if mask[b] {
			canonical = byte(b)
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	collapsed := make([]byte, 0, len(data)+2)
	collapsed = append(collapsed, canonical)
	prevWasDelim := true
	for _, b := range data {
		if mask[b] {
			if !prevWasDelim {
				collapsed = append(collapsed, canonical)
			}
			prevWasDelim = true
			continue
		}
		collapsed = append(collapsed, b)
		prevWasDelim = false
	}
	if !prevWasDelim {
		collapsed = append(collapsed, canonical)
	}

	var delimPos []int
	for i, b := range collapsed {
		if b == canonical {
			delimPos = append(delimPos, i)
		}
	}
	words := len(delimPos) - 1
	if words < n {
		return nil
	}

	out := make([]rawFeature, 0, words-n+1)
	for k := 0; k+n < len(delimPos); k++ {
		start := delimPos[k]
		end := delimPos[k+n]
		sub := collapsed[start : end+1]
		out = append(out, rawFeature{key: HashKey(sub), sub: sub})
	}
	return out
}

// Config controls extraction and is the subset of config.Snapshot the
// fvec package needs.
type Config struct {
	NgramLen  int
	Delim     string
	Embedding config.Embedding
}

// Extract builds a Vector from data, staging original substrings into
// table (if enabled), sorting by key, condensing duplicate keys by
// summing their counts, and normalizing per cfg.Embedding (spec.md
// §4.1). An empty byte sequence yields a valid zero-length Vector and
// reports an EmptyFeatureVector warning to sink (spec.md §7); a nil
// sink discards the warning.
func Extract(data []byte, src string, cfg Config, table *fhash.Table, sink corpuserr.Sink) (*Vector, error) {
	if cfg.NgramLen < 1 {
		return nil, corpuserr.Newf(corpuserr.InvalidConfig, "ngram length must be >= 1, got %d", cfg.NgramLen)
	}

	var raw []rawFeature
	if cfg.Delim == "" {
		raw = extractNgrams(data, cfg.NgramLen)
	} else {
		mask, err := DecodeDelim(cfg.Delim)
		if err != nil {
			return nil, err
		}
		raw = extractWgrams(data, cfg.NgramLen, mask)
	}

	if len(raw) == 0 {
		corpuserr.Warn(sink, corpuserr.EmptyFeatureVector, fmt.Sprintf("%s: extraction yielded zero features", src))
		return &Vector{Src: src}, nil
	}

	sort.Slice(raw, func(i, j int) bool { return raw[i].key < raw[j].key })

	staging := table.NewStaging()
	keys := make([]Key, 0, len(raw))
	weights := make([]float64, 0, len(raw))
	total := len(raw)

	i := 0
	for i < len(raw) {
		j := i
		var count float64
		key := raw[i].key
		for j < len(raw) && raw[j].key == key {
			count++
			staging.Put(raw[j].key, raw[j].sub)
			j++
		}
		if count >= condenseEpsilon {
			keys = append(keys, key)
			weights = append(weights, count)
		}
		i = j
	}
	staging.Flush()

	v := &Vector{Keys: keys, Weights: weights, Total: total, Src: src}
	Normalize(v, cfg.Embedding)
	Sparsify(v)
	return v, nil
}

// Normalize applies the chosen embedding in place: bin sets every
// weight to 1; l1 divides by the L1 norm; l2 divides by the L2 norm
// (spec.md §4.1, §4.2).
func Normalize(v *Vector, embedding config.Embedding) {
	switch embedding {
	case config.EmbeddingBin:
		for i := range v.Weights {
			v.Weights[i] = 1
		}
	case config.EmbeddingL1:
		s := Norm1(v)
		if s == 0 {
			return
		}
		for i := range v.Weights {
			v.Weights[i] /= s
		}
	case config.EmbeddingL2:
		s := Norm2(v)
		if s == 0 {
			return
		}
		for i := range v.Weights {
			v.Weights[i] /= s
		}
	}
}

// Norm1 computes the L1 norm: sum of |weight|.
func Norm1(v *Vector) float64 {
	var s float64
	for _, w := range v.Weights {
		s += math.Abs(w)
	}
	return s
}

// Norm2 computes the L2 norm: sqrt(sum of weight^2).
func Norm2(v *Vector) float64 {
	var s float64
	for _, w := range v.Weights {
		s += w * w
	}
	return math.Sqrt(s)
}

// sparsifyEpsilon is the threshold below which a weight's magnitude is
// treated as zero and dropped (original_source/src/fmath.c's
// fvect_sparsify; spec.md §4.2).
const sparsifyEpsilon = 1e-9

// Sparsify drops weights with magnitude below sparsifyEpsilon in place,
// preserving ascending key order.
func Sparsify(v *Vector) {
	j := 0
	for i := range v.Keys {
		if math.Abs(v.Weights[i]) < sparsifyEpsilon {
			continue
		}
		if i != j {
			v.Keys[j] = v.Keys[i]
			v.Weights[j] = v.Weights[i]
		}
		j++
	}
	v.Keys = v.Keys[:j]
	v.Weights = v.Weights[:j]
}
