package cluster

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseK(t *testing.T) {
	cases := map[int]int{6: 3, 18: 3, 50: 5, 98: 7, 400: 12, 1000: 12}
	for n, want := range cases {
		assert.Equal(t, want, ChooseK(n), "n=%d", n)
	}
	assert.Equal(t, 2, ChooseK(2))
}

func blob(id string, cx, cy float32, jitter float32) Item {
	return Item{ID: id, Embedding: []float32{cx + jitter, cy - jitter, 0}}
}

func TestRunSeparatesWellSeparatedGroups(t *testing.T) {
	var items []Item
	centers := [][2]float32{{0, 0}, {10, 0}, {0, 10}}
	for g, c := range centers {
		for i := 0; i < 4; i++ {
			items = append(items, blob(fmt.Sprintf("g%d-%d", g, i), c[0], c[1], float32(i)*0.1))
		}
	}

	res, err := Run(items)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ClustersFound)
	require.Len(t, res.Assignments, len(items))
	assert.GreaterOrEqual(t, res.Silhouette, MinSilhouette)

	byGroup := map[int]map[int]bool{}
	for i, a := range res.Assignments {
		g := i / 4
		if byGroup[g] == nil {
			byGroup[g] = map[int]bool{}
		}
		byGroup[g][a.ClusterIdx] = true
		assert.Equal(t, Label(a.ClusterIdx), a.Label)
		assert.GreaterOrEqual(t, a.Confidence, 0.0)
		assert.LessOrEqual(t, a.Confidence, 1.0)
	}
	for g := range centers {
		assert.Len(t, byGroup[g], 1, "group %d split across clusters", g)
	}
}

func TestRunCollapsesNoise(t *testing.T) {
	// Identical vectors cannot be separated: silhouette stays at 0.
	items := make([]Item, 8)
	for i := range items {
		items[i] = Item{ID: fmt.Sprint(i), Embedding: []float32{1, 1, 1}}
	}
	res, err := Run(items)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ClustersFound)
	for _, a := range res.Assignments {
		assert.Equal(t, 0, a.ClusterIdx)
		assert.Equal(t, 1.0, a.Confidence)
		assert.Equal(t, "Cluster 1", a.Label)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	var items []Item
	for i := 0; i < 20; i++ {
		items = append(items, Item{ID: fmt.Sprint(i), Embedding: []float32{float32(i % 5), float32(i / 5), float32(i % 3)}})
	}
	a, err := Run(items)
	require.NoError(t, err)
	b, err := Run(items)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRunRejectsSmallOrRaggedInput(t *testing.T) {
	_, err := Run(make([]Item, 5))
	require.Error(t, err)

	items := make([]Item, 6)
	for i := range items {
		items[i] = Item{ID: fmt.Sprint(i), Embedding: []float32{1, 2}}
	}
	items[3].Embedding = []float32{1}
	_, err = Run(items)
	require.Error(t, err)
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 1.0, Confidence(0, 0))
	assert.Equal(t, 0.0, Confidence(2, 2))
	assert.Equal(t, 0.6667, Confidence(1, 3))
}
