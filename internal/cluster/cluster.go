// Package cluster implements Murtagh-style nearest-neighbor reciprocal
// agglomerative linkage over a triangular distance matrix (CU, spec.md
// §3, §4.6), grounded on original_source/src/cluster.c's
// cluster_murtagh/_trim/_extrapolate/_get_name. The three Open Questions
// in spec.md §9 about the linkage loop are preserved here, the third as
// selectable behavior, not silently corrected; see DESIGN.md for the
// decisions.
package cluster

import (
	"fmt"
	"math"

	"behavior-corpus/internal/config"
	"behavior-corpus/internal/corpuserr"
	"behavior-corpus/internal/parallel"
	"behavior-corpus/internal/prototype"
)

// Matrix is a strictly-upper-triangular distance matrix over L points;
// D(i,j) == D(j,i) but only one copy is stored.
type Matrix struct {
	L    int
	data []float64
}

// NewMatrix allocates an L-point matrix with all distances zero.
func NewMatrix(l int) *Matrix {
	size := 0
	if l > 1 {
		size = l * (l - 1) / 2
	}
	return &Matrix{L: l, data: make([]float64, size)}
}

func (m *Matrix) index(i, j int) int {
	if i > j {
		i, j = j, i
	}
	return i*m.L - i*(i+1)/2 + (j - i - 1)
}

// Get returns D(i,j); the diagonal is always zero.
func (m *Matrix) Get(i, j int) float64 {
	if i == j {
		return 0
	}
	return m.data[m.index(i, j)]
}

// Set writes D(i,j); writes to the diagonal are ignored.
func (m *Matrix) Set(i, j int, v float64) {
	if i == j {
		return
	}
	m.data[m.index(i, j)] = v
}

// Fill populates the matrix in parallel, computing dist(i,j) for every
// i<j (spec.md §5's "array-by-array distance matrix" parallel region).
func Fill(l int, dist func(i, j int) float64) (*Matrix, error) {
	m := NewMatrix(l)
	err := parallel.Range(l, func(i int) error {
		for j := i + 1; j < l; j++ {
			m.Set(i, j, dist(i, j))
		}
		return nil
	})
	return m, err
}

// Result is the output of Linkage: a cluster id per point (0 =
// unmerged-by-threshold is not used here; ids start at 1, see Trim for
// rejection to 0), the distinct non-zero cluster count, and the run
// (issue) number used to namespace generated names.
type Result struct {
	Cluster []int
	Num     int
	Run     int
}

// linkModeRune reproduces spec.md §9's third Open Question: after
// merging jm into im, the reference recomputes im's own nearest
// neighbor with a guard against revisiting im itself, but writes
// "i == m" where m is the linkage-mode parameter (a char such as 's',
// 'a', or 'c'), not the survivor index im (original_source/src/cluster.c,
// the "Update nearest neighbors" block following the merge). linkModeRune
// stands in for that stray parameter; compared against a point index it
// matches only index 97, 99 or 115, so under bugCompat the self-skip
// does not fire for im and im can end up as its own nearest neighbor at
// distance zero (the diagonal of the matrix is always zero).
func linkModeRune(mode config.LinkMode) int {
	switch mode {
	case config.LinkSingle:
		return int('s')
	case config.LinkComplete:
		return int('c')
	default:
		return int('a')
	}
}

// Linkage runs the main agglomerative loop over d (an L-point matrix),
// stopping once the globally closest pair exceeds minDist. bugCompat
// selects which reading of the Open Question 3 self-skip guard to use,
// in the post-merge step that recomputes im's nearest neighbor: true
// reproduces the reference's apparent "i == m" typo (spec.md §9 directs
// implementations to preserve and test rather than silently fix it);
// false uses the evidently-intended "i == im".
func Linkage(d *Matrix, minDist float64, mode config.LinkMode, run int, bugCompat bool) (*Result, error) {
	l := d.L
	if l == 0 {
		return &Result{Run: run}, nil
	}

	cluster := make([]int, l)
	done := make([]bool, l)
	nn := make([]int, l)
	dnn := make([]float64, l)
	invalidated := make([]bool, l)
	for i := range cluster {
		// 1-based ids: 0 is reserved for the "rejected" sentinel
		// (spec.md §3's CU output invariant).
		cluster[i] = i + 1
		invalidated[i] = true
	}
	num := l

	refreshRow := func(i int) {
		best := -1
		bestDist := math.Inf(1)
		for j := i + 1; j < l; j++ {
			if done[j] {
				continue
			}
			if d.Get(i, j) < bestDist {
				bestDist = d.Get(i, j)
				best = j
			}
		}
		nn[i] = best
		dnn[i] = bestDist
	}

	selfSkip := linkModeRune(mode)

	for iter := 0; iter < l-1; iter++ {
		err := parallel.Range(l, func(i int) error {
			if done[i] || !invalidated[i] {
				return nil
			}
			refreshRow(i)
			invalidated[i] = false
			return nil
		})
		if err != nil {
			return nil, corpuserr.New(corpuserr.OutOfMemory, err)
		}

		im := -1
		best := math.Inf(1)
		for i := 0; i < l; i++ {
			if done[i] || nn[i] < 0 {
				continue
			}
			if dnn[i] < best {
				best = dnn[i]
				im = i
			}
		}
		if im == -1 {
			break
		}
		jm := nn[im]

		if dnn[im] > minDist {
			break
		}

		done[jm] = true
		survivor := cluster[im]
		absorbed := cluster[jm]
		if absorbed != survivor {
			num--
		}
		for i := 0; i < l; i++ {
			if cluster[i] == absorbed {
				cluster[i] = survivor
			}
		}

		for i := 0; i < l; i++ {
			if done[i] || i == im {
				continue
			}
			a := d.Get(im, i)
			b := d.Get(jm, i)
			var merged float64
			switch mode {
			case config.LinkSingle:
				merged = math.Min(a, b)
			case config.LinkComplete:
				merged = math.Max(a, b)
			default:
				merged = (a + b) / 2
			}
			d.Set(im, i, merged)
		}

		// NN fix for im: recompute im's own nearest neighbor against the
		// freshly merged row, rather than waiting for the next iteration's
		// invalidated-flag pass (original_source/src/cluster.c's "Update
		// nearest neighbors" block right after the merge).
		fixDmin := math.Inf(1)
		fixNN := -1
		for i := 0; i < l; i++ {
			skip := i == im
			if bugCompat {
				skip = i == selfSkip
			}
			if done[i] || skip {
				continue
			}
			if d.Get(im, i) < fixDmin {
				fixDmin = d.Get(im, i)
				fixNN = i
			}
		}
		dnn[im] = fixDmin
		nn[im] = fixNN

		for i := 0; i < l; i++ {
			if done[i] || i == im {
				continue
			}
			if nn[i] == im || nn[i] == jm {
				invalidated[i] = true
			}
		}
	}

	return &Result{Cluster: cluster, Num: num, Run: run}, nil
}

// Extrapolate expands a prototype-level clustering (length L) to
// full-input-level (length N) using the prototype assignments produced
// by internal/prototype: cluster'[i] = cluster[assign[i].ProtoIndex].
func Extrapolate(clusterAtProtoLevel []int, assign []prototype.Assignment) []int {
	out := make([]int, len(assign))
	for i, a := range assign {
		out[i] = clusterAtProtoLevel[a.ProtoIndex]
	}
	return out
}

// Trim rejects clusters below rejectNum in size, relabeling their
// members to cluster id 0 ("rejected") and recomputing the distinct
// non-zero cluster count.
func Trim(cluster []int, rejectNum int) (trimmed []int, num int) {
	counts := make(map[int]int)
	for _, c := range cluster {
		counts[c]++
	}

	trimmed = make([]int, len(cluster))
	seen := make(map[int]bool)
	for i, c := range cluster {
		if counts[c] < rejectNum {
			trimmed[i] = 0
			continue
		}
		trimmed[i] = c
		seen[c] = true
	}
	return trimmed, len(seen)
}

// Name renders a human-readable cluster label: "clust-<run>-<id>" for
// non-zero ids, "rejected" for id 0 (original_source/src/cluster.c's
// cluster_get_name, replacing its static char[16] buffer with an owned
// string per spec.md §9).
func Name(run, id int) string {
	if id == 0 {
		return "rejected"
	}
	return fmt.Sprintf("clust-%03d-%04d", run, id)
}
