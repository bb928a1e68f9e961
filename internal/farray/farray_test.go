package farray

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"behavior-corpus/internal/config"
	"behavior-corpus/internal/fhash"
	"behavior-corpus/internal/fvec"
)

func TestLabelTableRoundTrip(t *testing.T) {
	t.Parallel()

	lt := NewLabelTable()
	idx, err := lt.Add("benign")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	again, err := lt.Add("benign")
	if err != nil {
		t.Fatalf("Add (repeat): %v", err)
	}
	if idx != again {
		t.Fatalf("re-adding the same label should return the same index, got %d then %d", idx, again)
	}
	name, ok := lt.Name(idx)
	if !ok || name != "benign" {
		t.Fatalf("Name(%d) = %q, %v; want \"benign\", true", idx, name, ok)
	}
}

func TestLabelTableTruncatesOverlongNames(t *testing.T) {
	t.Parallel()

	lt := NewLabelTable()
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}
	idx, err := lt.Add(string(long))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	name, _ := lt.Name(idx)
	if len(name) != maxLabelLen {
		t.Fatalf("expected truncation to %d bytes, got %d", maxLabelLen, len(name))
	}
}

func TestGetLabelMatchesAppendedIndex(t *testing.T) {
	t.Parallel()

	fa := New("test")
	v := &fvec.Vector{Keys: []fvec.Key{1}, Weights: []float64{1.0}}
	if err := fa.Append(v, "trojan"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	name, ok := fa.GetLabel(0)
	if !ok || name != "trojan" {
		t.Fatalf("GetLabel(0) = %q, %v; want \"trojan\", true", name, ok)
	}
}

func TestMergeTransfersAndRehashesLabels(t *testing.T) {
	t.Parallel()

	dst := New("dst")
	src := New("src")
	mustAppend := func(fa *FA, key fvec.Key, label string) {
		t.Helper()
		v := &fvec.Vector{Keys: []fvec.Key{key}, Weights: []float64{1.0}}
		if err := fa.Append(v, label); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	mustAppend(dst, 1, "a")
	mustAppend(src, 2, "a") // same label, must land on the same index as dst's "a"
	mustAppend(src, 3, "b")

	if err := Merge(dst, src); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if dst.Len() != 3 {
		t.Fatalf("expected 3 vectors after merge, got %d", dst.Len())
	}
	if src.Len() != 0 {
		t.Fatalf("expected src to be emptied after merge, got %d", src.Len())
	}
	if dst.Y[0] != dst.Y[1] {
		t.Fatalf("label \"a\" should share one index across dst and merged src, got %d and %d", dst.Y[0], dst.Y[1])
	}
}

func TestSaveLoadRoundTripFA(t *testing.T) {
	t.Parallel()

	fa := New("corpus")
	for i := 0; i < 5; i++ {
		v := &fvec.Vector{
			Keys:    []fvec.Key{fvec.Key(i), fvec.Key(i + 100)},
			Weights: []float64{float64(i) + 0.5, -float64(i) - 0.25},
			Total:   2,
			Src:     "unit",
		}
		if err := fa.Append(v, "label"); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := fa.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != fa.Len() {
		t.Fatalf("round-tripped array has %d vectors, want %d", loaded.Len(), fa.Len())
	}
	for i := range fa.X {
		want, got := fa.X[i], loaded.X[i]
		if len(want.Keys) != len(got.Keys) {
			t.Fatalf("vector %d: key count %d != %d", i, len(got.Keys), len(want.Keys))
		}
		for k := range want.Keys {
			if want.Keys[k] != got.Keys[k] {
				t.Errorf("vector %d key %d: %v != %v", i, k, got.Keys[k], want.Keys[k])
			}
			if math.Abs(want.Weights[k]-got.Weights[k]) > 1e-9 {
				t.Errorf("vector %d weight %d: %v != %v", i, k, got.Weights[k], want.Weights[k])
			}
		}
		wantName, _ := fa.GetLabel(i)
		gotName, _ := loaded.GetLabel(i)
		if wantName != gotName {
			t.Errorf("vector %d label: %q != %q", i, gotName, wantName)
		}
	}
}

// TestRoundTripFVFromRandomExtractions saves 200 random byte-extracted
// feature vectors through an FA, reloads them, and checks each pointwise
// difference has negligible L1 residual.
func TestRoundTripFVFromRandomExtractions(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	cfg := fvec.Config{NgramLen: 3, Delim: "", Embedding: config.EmbeddingL2}
	table := fhash.New(false)

	fa := New("random")
	for i := 0; i < 200; i++ {
		data := make([]byte, 2000)
		rng.Read(data)
		v, err := fvec.Extract(data, "random", cfg, table, nil)
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if err := fa.Append(v, "x"); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := fa.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for i := range fa.X {
		a, b := fa.X[i], loaded.X[i]
		// pointwise subtraction over the union of keys (the two vectors
		// share identical key sets, so a simple merge suffices here).
		residual := 0.0
		ai, bi := 0, 0
		for ai < len(a.Keys) || bi < len(b.Keys) {
			switch {
			case bi >= len(b.Keys) || (ai < len(a.Keys) && a.Keys[ai] < b.Keys[bi]):
				residual += math.Abs(a.Weights[ai])
				ai++
			case ai >= len(a.Keys) || (bi < len(b.Keys) && b.Keys[bi] < a.Keys[ai]):
				residual += math.Abs(b.Weights[bi])
				bi++
			default:
				residual += math.Abs(a.Weights[ai] - b.Weights[bi])
				ai++
				bi++
			}
		}
		if residual >= 1e-8 {
			t.Errorf("vector %d: L1 residual %.3e exceeds 1e-8", i, residual)
		}
	}
}

func TestMemAccountsForEveryFeature(t *testing.T) {
	t.Parallel()

	fa := New("mem")
	v := &fvec.Vector{Keys: []fvec.Key{1, 2, 3}, Weights: []float64{1, 2, 3}}
	if err := fa.Append(v, "x"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got, want := fa.Mem(), 40+3*16; got != want {
		t.Errorf("Mem() = %d, want %d", got, want)
	}
}
