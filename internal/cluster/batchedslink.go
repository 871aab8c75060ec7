// Package cluster implements BatchedSLINK: an overlap-batched
// approximation of single-link agglomerative clustering over unit-norm
// embedding vectors, with a size-adaptive distance threshold.
package cluster

import (
	"fmt"
	"math"

	"github.com/0xfaulty/tgcontest/internal/model"
)

// Algorithm names a clustering strategy. The set is chosen once at
// process startup from configuration, never per request, so a tagged
// enum with a single dispatch site in New is preferred here over an
// interface with multiple implementations registered at runtime.
type Algorithm int

const (
	AlgorithmSlink Algorithm = iota
)

// Params configures BatchedSLINK for one language.
type Params struct {
	Thresholds   Thresholds
	BatchSize    int
	BatchOverlap int
}

// Clusterer runs the configured clustering algorithm over a batch of
// unit-norm vectors, in the order the caller supplies them.
type Clusterer struct {
	algo   Algorithm
	params Params
}

// New builds a Clusterer for the given algorithm. Unknown algorithms are
// a configuration error caught at startup.
func New(algo Algorithm, params Params) (*Clusterer, error) {
	switch algo {
	case AlgorithmSlink:
		if params.BatchSize <= 1 {
			return nil, fmt.Errorf("batch size must be > 1")
		}
		if params.BatchOverlap <= 0 || params.BatchOverlap >= params.BatchSize {
			return nil, fmt.Errorf("batch overlap must be in (0, batch size)")
		}
		if err := params.Thresholds.Validate(); err != nil {
			return nil, err
		}
		return &Clusterer{algo: algo, params: params}, nil
	default:
		return nil, fmt.Errorf("unknown clustering algorithm %d", algo)
	}
}

// Cluster groups vectors[0..n) into single-link clusters, returning each
// cluster as a slice of indices into vectors. The input order matters:
// callers must present vectors already sorted by (fetchTime, id, title
// length), since batch boundaries fall on that order and batching is
// only an approximation of exhaustive single-link clustering when
// batches are drawn consistently from the same ordering.
func (c *Clusterer) Cluster(vectors []model.Embedding) [][]int {
	switch c.algo {
	case AlgorithmSlink:
		return batchedSlink(vectors, c.params)
	default:
		return nil
	}
}

func batchedSlink(vectors []model.Embedding, params Params) [][]int {
	n := len(vectors)
	if n == 0 {
		return nil
	}
	if n <= params.BatchSize {
		labels := clusterBatchLabels(vectors, params.Thresholds)
		return labelsToGroups(labels)
	}

	pointGlobalID := make([]int, n)
	for i := range pointGlobalID {
		pointGlobalID[i] = -1
	}
	uf := newUnionFind(n)
	nextID := 0

	start := 0
	for start < n {
		end := start + params.BatchSize
		if end > n {
			end = n
		}

		localLabels := clusterBatchLabels(vectors[start:end], params.Thresholds)
		localToGlobal := make(map[int]int)

		for localIdx, label := range localLabels {
			globalIdx := start + localIdx
			if pointGlobalID[globalIdx] == -1 {
				gid, ok := localToGlobal[label]
				if !ok {
					gid = nextID
					nextID++
					localToGlobal[label] = gid
				}
				pointGlobalID[globalIdx] = gid
				continue
			}

			// Overlap region: this point already carries a global id
			// from the previous batch. Stitch its local cluster to that
			// id via union-find rather than reassigning it, so a point
			// present in two batches bridges whatever the two batches
			// independently decided about its neighbors.
			if gid, ok := localToGlobal[label]; ok {
				uf.union(gid, pointGlobalID[globalIdx])
			} else {
				localToGlobal[label] = pointGlobalID[globalIdx]
			}
		}

		if end == n {
			break
		}
		start = end - params.BatchOverlap
	}

	roots := make(map[int][]int)
	for i, gid := range pointGlobalID {
		root := uf.find(gid)
		roots[root] = append(roots[root], i)
	}

	groups := make([][]int, 0, len(roots))
	for _, members := range roots {
		groups = append(groups, members)
	}
	return groups
}

// clusterBatchLabels runs single-link clustering over one batch: an
// incremental nearest-neighbor SLINK variant that stops merging a pair
// once its resulting cluster size would exceed the size-adaptive
// threshold, rather than stopping the whole batch at the first rejected
// pair — later, smaller-sized pairs may still be eligible even after a
// larger pair is rejected, since the threshold tightens with size.
func clusterBatchLabels(vectors []model.Embedding, thresholds Thresholds) []int {
	n := len(vectors)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}
	if n <= 1 {
		return labels
	}

	size := make([]int, n)
	alive := make([]bool, n)
	for i := range size {
		size[i] = 1
		alive[i] = true
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			if i == j {
				dist[i][j] = math.Inf(1)
			} else {
				dist[i][j] = cosineDistance(vectors[i], vectors[j])
			}
		}
	}

	nn := make([]int, n)
	nnDist := make([]float64, n)
	for i := 0; i < n; i++ {
		nn[i], nnDist[i] = argMinAlive(dist[i], alive, i)
	}

	remaining := n
	for remaining > 1 {
		bestI, bestJ := -1, -1
		bestDist := math.Inf(1)

		for i := 0; i < n; i++ {
			if !alive[i] {
				continue
			}
			j := nn[i]
			if j < 0 || !alive[j] {
				continue
			}
			d := nnDist[i]

			ii, jj := i, j
			if ii > jj {
				ii, jj = jj, ii
			}
			mergedSize := size[ii] + size[jj]
			if d > thresholds.ForSize(mergedSize) {
				continue
			}
			if bestI < 0 || d < bestDist || (d == bestDist && (ii < bestI || (ii == bestI && jj < bestJ))) {
				bestDist, bestI, bestJ = d, ii, jj
			}
		}

		if bestI < 0 {
			// No pair remains under the size-adaptive threshold.
			break
		}

		i, j := bestI, bestJ // i < j by construction above

		for k := range labels {
			if labels[k] == j {
				labels[k] = i
			}
		}

		size[i] += size[j]
		alive[j] = false
		remaining--

		for k := 0; k < n; k++ {
			if k == i || k == j || !alive[k] {
				continue
			}
			nd := math.Min(dist[i][k], dist[j][k])
			dist[i][k] = nd
			dist[k][i] = nd
		}
		dist[i][i] = math.Inf(1)

		for k := 0; k < n; k++ {
			dist[j][k] = math.Inf(1)
			dist[k][j] = math.Inf(1)
		}
		nn[j] = -1
		nnDist[j] = math.Inf(1)

		nn[i], nnDist[i] = argMinAlive(dist[i], alive, i)

		// Only refresh pointers that pointed at the cluster just
		// removed: this is the one place the incremental nn/nnDist
		// bookkeeping needs correcting after a merge.
		for k := 0; k < n; k++ {
			if !alive[k] || k == i {
				continue
			}
			if nn[k] == j {
				nn[k], nnDist[k] = argMinAlive(dist[k], alive, k)
			}
		}
	}

	return labels
}

func argMinAlive(row []float64, alive []bool, self int) (int, float64) {
	best := -1
	bestDist := math.Inf(1)
	for k, d := range row {
		if k == self || !alive[k] {
			continue
		}
		if d < bestDist {
			bestDist = d
			best = k
		}
	}
	return best, bestDist
}

// cosineDistance is (1 - x·y) / 2 for unit-norm x, y, mapping cosine
// similarity in [-1, 1] onto a distance in [0, 1].
func cosineDistance(a, b model.Embedding) float64 {
	var dot float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	return (1 - dot) / 2
}

func labelsToGroups(labels []int) [][]int {
	groups := make(map[int][]int)
	for i, label := range labels {
		groups[label] = append(groups[label], i)
	}
	out := make([][]int, 0, len(groups))
	for _, members := range groups {
		out = append(out, members)
	}
	return out
}
