// Package quality implements the quality evaluator (QE): precision,
// recall, F-measure, Rand index, and adjusted Rand index over a pair of
// parallel label sequences (spec.md §3, §4.7), grounded on
// original_source/src/quality.c's quality()/hist_create (the uthash-based
// histogram there is replaced with a plain Go map per spec.md §9).
package quality

// Vector is the fixed 5-wide result spec.md §4.7 mandates, in order:
// Precision, Recall, F-measure, Rand index, Adjusted Rand index.
type Vector struct {
	Precision    float64
	Recall       float64
	FMeasure     float64
	Rand         float64
	AdjustedRand float64
}

// Evaluate computes the quality vector for ground-truth labels y against
// predicted labels (cluster ids or predicted classes) a. Both slices
// must have equal length n.
func Evaluate(y, a []int) Vector {
	n := len(y)
	if n == 0 {
		return Vector{}
	}

	precision := overlapSum(a, y) / float64(n)
	recall := overlapSum(y, a) / float64(n)

	var f float64
	if precision+recall > 0 {
		f = 2 * precision * recall / (precision + recall)
	}

	// Pair counts range over ALL ordered pairs (i,j), i and j each
	// spanning the full index range including i==j: self-pairs are
	// always same-cluster and same-label, so they count toward A. This
	// matches the reference's Rand/adjusted-Rand numbers exactly; an
	// i<j-only count produces a different (wrong) ratio.
	var aCount, bCount, cCount, dCount float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sameCluster := a[i] == a[j]
			sameLabel := y[i] == y[j]
			switch {
			case sameCluster && sameLabel:
				aCount++
			case !sameCluster && !sameLabel:
				bCount++
			case !sameCluster && sameLabel:
				cCount++
			default:
				dCount++
			}
		}
	}

	rand := 0.0
	if total := aCount + bCount + cCount + dCount; total > 0 {
		rand = (aCount + bCount) / total
	}

	denom := (aCount+dCount)*(dCount+bCount) + (aCount+cCount)*(cCount+bCount)
	adjRand := 0.0
	if denom > 0 {
		adjRand = 2 * (aCount*bCount - cCount*dCount) / denom
	}

	return Vector{
		Precision:    precision,
		Recall:       recall,
		FMeasure:     f,
		Rand:         rand,
		AdjustedRand: adjRand,
	}
}

// overlapSum computes Σ_{group g in `groupBy`} max_label |{i : groupBy[i]=g ∧ other[i]=label}|,
// i.e. the cross-histogram's per-group max used for both precision
// (groupBy=predicted, other=true) and recall (groupBy=true, other=predicted).
func overlapSum(groupBy, other []int) float64 {
	hist := make(map[int]map[int]int)
	for i := range groupBy {
		byOther, ok := hist[groupBy[i]]
		if !ok {
			byOther = make(map[int]int)
			hist[groupBy[i]] = byOther
		}
		byOther[other[i]]++
	}

	var sum float64
	for _, counts := range hist {
		max := 0
		for _, c := range counts {
			if c > max {
				max = c
			}
		}
		sum += float64(max)
	}
	return sum
}
