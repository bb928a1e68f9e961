package fvec

import (
	"math"
	"sort"
	"testing"

	"behavior-corpus/internal/config"
	"behavior-corpus/internal/corpuserr"
	"behavior-corpus/internal/fhash"
)

func extractHelper(t *testing.T, data []byte, n int, delim string, emb config.Embedding) *Vector {
	t.Helper()
	cfg := Config{NgramLen: n, Delim: delim, Embedding: emb}
	v, err := Extract(data, "test", cfg, fhash.New(false), nil)
	if err != nil {
		t.Fatalf("Extract(%q): %v", data, err)
	}
	return v
}

func TestExtractEmptyInputYieldsZeroVector(t *testing.T) {
	t.Parallel()

	v := extractHelper(t, []byte{}, 2, "", config.EmbeddingL2)
	if !v.IsEmpty() {
		t.Fatalf("expected empty vector, got %d features", v.Len())
	}
	if Norm1(v) != 0 || Norm2(v) != 0 {
		t.Fatalf("expected zero norms for an empty vector")
	}
}

func TestExtractEmptyInputWarnsSink(t *testing.T) {
	t.Parallel()

	var got []corpuserr.Warning
	sink := func(w corpuserr.Warning) { got = append(got, w) }

	cfg := Config{NgramLen: 2, Embedding: config.EmbeddingL2}
	if _, err := Extract([]byte{}, "empty.bin", cfg, fhash.New(false), sink); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly one warning, got %d", len(got))
	}
	if got[0].Kind != corpuserr.EmptyFeatureVector {
		t.Errorf("expected EmptyFeatureVector, got %v", got[0].Kind)
	}
}

func TestExtractKeysStrictlyAscendingAndUnique(t *testing.T) {
	t.Parallel()

	v := extractHelper(t, []byte("the quick brown fox jumps over the lazy dog"), 2, "", config.EmbeddingL2)
	if v.Len() != len(v.Weights) {
		t.Fatalf("|keys|=%d != |weights|=%d", v.Len(), len(v.Weights))
	}
	if !sort.SliceIsSorted(v.Keys, func(i, j int) bool { return v.Keys[i] < v.Keys[j] }) {
		t.Fatalf("keys are not ascending: %v", v.Keys)
	}
	for i := 1; i < len(v.Keys); i++ {
		if v.Keys[i] == v.Keys[i-1] {
			t.Fatalf("duplicate key %x at position %d", v.Keys[i], i)
		}
	}
}

func TestExtractL2NormalizedUnitLength(t *testing.T) {
	t.Parallel()

	v := extractHelper(t, []byte("abcdefghij"), 3, "", config.EmbeddingL2)
	if v.IsEmpty() {
		t.Fatalf("expected a non-empty vector")
	}
	if got := Norm2(v); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("‖f‖₂ = %.12f, want 1.0 within 1e-9", got)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	v := extractHelper(t, []byte("one two three two one"), 1, " ", config.EmbeddingL2)
	before := append([]float64(nil), v.Weights...)
	Normalize(v, config.EmbeddingL2)
	for i := range before {
		if math.Abs(before[i]-v.Weights[i]) > 1e-12 {
			t.Fatalf("re-normalizing changed weight %d: %v -> %v", i, before[i], v.Weights[i])
		}
	}
}

func TestWordGramDelimiterCollapsesRuns(t *testing.T) {
	t.Parallel()

	// "a   b" (three spaces) must collapse to the same single-delimiter
	// span as "a b" (one space): extract_wgrams treats runs of delimiter
	// bytes as one boundary.
	mask, err := DecodeDelim(" ")
	if err != nil {
		t.Fatalf("DecodeDelim: %v", err)
	}
	single := extractWgrams([]byte("a b"), 1, mask)
	runs := extractWgrams([]byte("a   b"), 1, mask)
	if len(single) != len(runs) {
		t.Fatalf("word-gram count differs between single space (%d) and run of spaces (%d)", len(single), len(runs))
	}
	for i := range single {
		if single[i].key != runs[i].key {
			t.Errorf("word-gram %d differs: %x vs %x", i, single[i].key, runs[i].key)
		}
	}
}

func TestDecodeDelimHexEscape(t *testing.T) {
	t.Parallel()

	mask, err := DecodeDelim("a%20b")
	if err != nil {
		t.Fatalf("DecodeDelim: %v", err)
	}
	if !mask['a'] || !mask['b'] || !mask[' '] {
		t.Fatalf("expected 'a', 'b', and space in the mask")
	}
	if mask['c'] {
		t.Fatalf("unexpected byte in mask")
	}
}

func TestDecodeDelimTruncatedEscape(t *testing.T) {
	t.Parallel()

	if _, err := DecodeDelim("a%2"); err == nil {
		t.Fatalf("expected an error for a truncated %%HH escape")
	}
}

func TestSparsifyDropsNegligibleWeights(t *testing.T) {
	t.Parallel()

	v := &Vector{Keys: []Key{1, 2, 3}, Weights: []float64{1.0, 1e-12, 0.5}}
	Sparsify(v)
	if v.Len() != 2 {
		t.Fatalf("expected 2 surviving features, got %d", v.Len())
	}
	if v.Keys[0] != 1 || v.Keys[1] != 3 {
		t.Fatalf("unexpected surviving keys: %v", v.Keys)
	}
}
