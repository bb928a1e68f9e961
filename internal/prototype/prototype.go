// Package prototype implements prototype extraction (PR): farthest-first
// selection over a feature array, producing a minimal set of
// representative vectors plus a nearest-prototype assignment for every
// input (spec.md §3, §4.4). The reference's own proto.c is a near-stub
// in the retrieved source (proto_extract only allocates the output
// struct), so the algorithm here follows spec.md §4.4's description
// directly; the surrounding struct/concurrency shape is grounded on
// the teacher's drone/classifier.go (mutex-free snapshot-style value
// construction, sorted candidate selection).
package prototype

import (
	"math"

	"behavior-corpus/internal/corpuserr"
	"behavior-corpus/internal/farray"
	"behavior-corpus/internal/fmath"
	"behavior-corpus/internal/fvec"
	"behavior-corpus/internal/parallel"
)

// Assignment records, for one input vector, the index of its nearest
// chosen prototype, whether the input was itself chosen as a
// prototype, and the distance to that prototype (spec.md §3 — the
// "packed flag + index" scheme from the reference is replaced here with
// an explicit struct per spec.md §9).
type Assignment struct {
	ProtoIndex  int
	IsPrototype bool
	Dist        float64
}

// Result is the output of Extract: the chosen prototypes (as their own
// feature array, cloned from the input so Protos can be persisted
// independently) and one Assignment per input vector.
type Result struct {
	Protos *farray.FA
	Assign []Assignment
}

// Extract runs farthest-first traversal over fa: the first prototype is
// fixed at index 0 (spec.md §4.4 step 2's documented choice); each
// subsequent prototype is the input currently farthest from every
// chosen prototype, stopping when that farthest distance drops below
// maxDist or the prototype count reaches maxNum (0 = unlimited). Ties
// in the argmax selection are broken by lowest index.
func Extract(fa *farray.FA, maxDist float64, maxNum int) (*Result, error) {
	n := fa.Len()
	if n == 0 {
		return &Result{Protos: farray.New(fa.Src), Assign: nil}, nil
	}

	norms := make([]float64, n)
	if err := parallel.Range(n, func(i int) error {
		norms[i] = fvec.Norm2(fa.X[i])
		return nil
	}); err != nil {
		return nil, corpuserr.New(corpuserr.OutOfMemory, err)
	}

	d := make([]float64, n)
	for i := range d {
		d[i] = math.Inf(1)
	}
	assign := make([]Assignment, n)

	var protoIdx []int
	updateAgainst := func(p, localIndex int) error {
		return parallel.Range(n, func(i int) error {
			dist := euclidean(fa.X[i], fa.X[p], norms[i], norms[p])
			if dist < d[i] {
				d[i] = dist
				assign[i] = Assignment{ProtoIndex: localIndex, Dist: dist}
			}
			return nil
		})
	}

	// Seed with the first prototype, p0 = 0.
	protoIdx = append(protoIdx, 0)
	if err := updateAgainst(0, 0); err != nil {
		return nil, err
	}

	for maxNum == 0 || len(protoIdx) < maxNum {
		pk := argmax(d)
		if d[pk] < maxDist {
			break
		}
		localIndex := len(protoIdx)
		protoIdx = append(protoIdx, pk)
		if err := updateAgainst(pk, localIndex); err != nil {
			return nil, err
		}
	}

	protoSet := make(map[int]bool, len(protoIdx))
	for _, p := range protoIdx {
		protoSet[p] = true
	}
	for i := range assign {
		if protoSet[i] {
			assign[i].IsPrototype = true
			assign[i].Dist = 0
		}
	}

	protos := farray.New(fa.Src)
	for _, p := range protoIdx {
		name, _ := fa.GetLabel(p)
		if err := protos.Append(fa.X[p].Clone(), name); err != nil {
			return nil, err
		}
	}

	// assign[i].ProtoIndex currently indexes into protoIdx by
	// insertion order, which is exactly the index into protos.X since
	// protos was built in the same order.
	return &Result{Protos: protos, Assign: assign}, nil
}

func euclidean(a, b *fvec.Vector, normA, normB float64) float64 {
	dot := fmath.Dot(a, b)
	return fmath.Euclidean(normA, normB, dot)
}

// argmax returns the lowest index achieving the maximum value in d,
// matching spec.md §4.4's "lowest index wins" tie-break.
func argmax(d []float64) int {
	best := 0
	for i := 1; i < len(d); i++ {
		if d[i] > d[best] {
			best = i
		}
	}
	return best
}
