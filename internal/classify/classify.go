// Package classify implements nearest-prototype classification with
// distance-threshold rejection (CL, spec.md §3, §4.5). Grounded on
// spec.md §4.5 directly (original_source/src/class.c/class.h retrieve
// only the output struct shape, the body being a stub) and on the
// teacher's drone/classifier.go Predict method for the surrounding
// sorted-candidate, mutex-free value-construction idiom.
package classify

import (
	"behavior-corpus/internal/corpuserr"
	"behavior-corpus/internal/farray"
	"behavior-corpus/internal/fmath"
	"behavior-corpus/internal/fvec"
	"behavior-corpus/internal/parallel"
)

// Assignment is the predicted outcome for one query vector: the
// matched prototype index, the predicted label index (0 means
// rejected), and the distance to the matched prototype.
type Assignment struct {
	ProtoIndex int
	Label      uint32
	Rejected   bool
	Dist       float64
}

// Classify assigns every vector in queries to its nearest vector in
// prototypes, rejecting (Assignment.Rejected = true, Label = 0) any
// query whose minimum distance is not below maxDist (spec.md §4.5).
// Rows are processed in parallel (spec.md §5).
func Classify(queries, prototypes *farray.FA, maxDist float64) ([]Assignment, error) {
	n := queries.Len()
	m := prototypes.Len()
	if m == 0 {
		return nil, corpuserr.Newf(corpuserr.InvalidInput, "classify: empty prototype set")
	}
	out := make([]Assignment, n)

	protoNorms := make([]float64, m)
	if err := parallel.Range(m, func(j int) error {
		protoNorms[j] = fvec.Norm2(prototypes.X[j])
		return nil
	}); err != nil {
		return nil, err
	}

	err := parallel.Range(n, func(i int) error {
		queryNorm := fvec.Norm2(queries.X[i])
		best := -1
		bestDist := 0.0
		for j := 0; j < m; j++ {
			dot := fmath.Dot(queries.X[i], prototypes.X[j])
			dist := fmath.Euclidean(queryNorm, protoNorms[j], dot)
			if best == -1 || dist < bestDist {
				best = j
				bestDist = dist
			}
		}

		a := Assignment{ProtoIndex: best, Dist: bestDist}
		if bestDist >= maxDist {
			a.Rejected = true
		} else {
			label, _ := prototypes.GetLabel(best)
			idx, err := queries.Labels.Add(label)
			if err != nil {
				return err
			}
			a.Label = idx
		}
		out[i] = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
