// Package cluster groups embeddings into topics when the engine cannot.
package cluster

import (
	"fmt"
	"math"
)

const (
	MinItems      = 6
	MinSilhouette = 0.15
	maxIterations = 50
)

type Item struct {
	ID        string
	Embedding []float32
}

type Assignment struct {
	ID         string
	ClusterIdx int
	Label      string
	Confidence float64
}

type Result struct {
	Assignments   []Assignment
	ClustersFound int
	Silhouette    float64
}

// ChooseK returns max(3, min(12, round(sqrt(n/2)))), never above n.
func ChooseK(n int) int {
	k := int(math.Round(math.Sqrt(float64(n) / 2)))
	if k > 12 {
		k = 12
	}
	if k < 3 {
		k = 3
	}
	if k > n {
		k = n
	}
	return k
}

// Label is the name used for a cluster without an engine-provided label.
func Label(idx int) string {
	return fmt.Sprintf("Cluster %d", idx+1)
}

// Run clusters items with k-means. A poor silhouette is retried with k=2 and
// then collapsed into one cluster around the mean.
func Run(items []Item) (*Result, error) {
	n := len(items)
	if n < MinItems {
		return nil, fmt.Errorf("not enough items for clustering (%d < %d)", n, MinItems)
	}
	dim := len(items[0].Embedding)
	vecs := make([][]float64, n)
	for i, it := range items {
		if len(it.Embedding) != dim || dim == 0 {
			return nil, fmt.Errorf("item %s: embedding dimension %d, want %d", it.ID, len(it.Embedding), dim)
		}
		vecs[i] = toFloat64(it.Embedding)
	}

	k := ChooseK(n)
	labels, centers := kmeans(vecs, k)
	sil := silhouette(vecs, labels, k)

	if sil < MinSilhouette && k > 2 {
		labels2, centers2 := kmeans(vecs, 2)
		sil2 := silhouette(vecs, labels2, 2)
		if sil2 >= MinSilhouette {
			labels, centers, sil, k = labels2, centers2, sil2, 2
		} else {
			labels = make([]int, n)
			centers = [][]float64{mean(vecs)}
			k = 1
		}
	}

	maxDist := make([]float64, k)
	dists := make([]float64, n)
	for i, v := range vecs {
		d := euclidean(v, centers[labels[i]])
		dists[i] = d
		if d > maxDist[labels[i]] {
			maxDist[labels[i]] = d
		}
	}

	out := &Result{ClustersFound: k, Silhouette: sil, Assignments: make([]Assignment, n)}
	for i, it := range items {
		c := labels[i]
		out.Assignments[i] = Assignment{
			ID:         it.ID,
			ClusterIdx: c,
			Label:      Label(c),
			Confidence: Confidence(dists[i], maxDist[c]),
		}
	}
	return out, nil
}

// Confidence is 1 - d/maxD clamped to [0,1] and rounded to 4 places.
func Confidence(d, maxD float64) float64 {
	if maxD <= 0 {
		return 1
	}
	c := 1 - d/maxD
	c = math.Max(0, math.Min(1, c))
	return math.Round(c*10000) / 10000
}

// kmeans seeds deterministically with farthest-point selection starting from
// the first vector, then runs Lloyd iterations until assignments settle.
func kmeans(vecs [][]float64, k int) ([]int, [][]float64) {
	n := len(vecs)
	if k > n {
		k = n
	}
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(vecs[0]))
	for len(centers) < k {
		bestIdx, bestDist := 0, -1.0
		for i, v := range vecs {
			d := math.Inf(1)
			for _, c := range centers {
				if dd := euclidean(v, c); dd < d {
					d = dd
				}
			}
			if d > bestDist {
				bestDist, bestIdx = d, i
			}
		}
		centers = append(centers, clone(vecs[bestIdx]))
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, v := range vecs {
			best, bestDist := 0, math.Inf(1)
			for c := range centers {
				if d := euclidean(v, centers[c]); d < bestDist {
					best, bestDist = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		for c := range centers {
			var members [][]float64
			for i, l := range labels {
				if l == c {
					members = append(members, vecs[i])
				}
			}
			// An empty cluster keeps its previous center.
			if len(members) > 0 {
				centers[c] = mean(members)
			}
		}
	}
	return labels, centers
}

// silhouette is the mean silhouette coefficient over all points. Fewer than
// two non-empty clusters score 0.
func silhouette(vecs [][]float64, labels []int, k int) float64 {
	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}
	nonEmpty := 0
	for _, s := range sizes {
		if s > 0 {
			nonEmpty++
		}
	}
	if nonEmpty < 2 {
		return 0
	}

	var total float64
	for i, v := range vecs {
		sums := make([]float64, k)
		for j, w := range vecs {
			if i == j {
				continue
			}
			sums[labels[j]] += euclidean(v, w)
		}
		own := labels[i]
		if sizes[own] <= 1 {
			continue
		}
		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || sizes[c] == 0 {
				continue
			}
			if m := sums[c] / float64(sizes[c]); m < b {
				b = m
			}
		}
		if den := math.Max(a, b); den > 0 {
			total += (b - a) / den
		}
	}
	return total / float64(len(vecs))
}

func euclidean(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s)
}

func mean(vecs [][]float64) []float64 {
	out := make([]float64, len(vecs[0]))
	for _, v := range vecs {
		for i, x := range v {
			out[i] += x
		}
	}
	for i := range out {
		out[i] /= float64(len(vecs))
	}
	return out
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
