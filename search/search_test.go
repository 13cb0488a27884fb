package search

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/goami/geometry3D"
)

// unit boxes of an n by n grid on z=0
func gridBoxes(n int) (boxes []r3.Box, centres []r3.Vec) {
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			lo := r3.Vec{X: float64(i), Y: float64(j)}
			hi := r3.Vec{X: float64(i + 1), Y: float64(j + 1)}
			boxes = append(boxes, r3.Box{Min: lo, Max: hi})
			centres = append(centres, r3.Scale(0.5, r3.Add(lo, hi)))
		}
	}
	return
}

func TestBVH(t *testing.T) {
	var (
		boxes, centres = gridBoxes(10)
		tree           = NewBVH(boxes, rand.New(rand.NewSource(42)))
		brute          = func(bb r3.Box) (ids []int) {
			for i := range boxes {
				if geometry3D.Overlaps(tree.Box(i), bb) {
					ids = append(ids, i)
				}
			}
			sort.Ints(ids)
			return
		}
	)
	assert.Equal(t, 100, tree.Len())
	{ // Perturbed boxes contain the originals
		for i, bb := range boxes {
			assert.True(t, geometry3D.Contains(tree.Box(i), bb.Min))
			assert.True(t, geometry3D.Contains(tree.Box(i), bb.Max))
		}
	}
	{ // Overlap queries agree with brute force
		q := r3.Box{Min: r3.Vec{X: 2.5, Y: 3.5}, Max: r3.Vec{X: 4.5, Y: 4.5}}
		assert.Equal(t, brute(q), tree.Overlapping(q))
		assert.Equal(t, []int{32, 33, 34, 42, 43, 44}, tree.Overlapping(q))
		// a face meeting the query exactly on a grid line is still reported
		edge := r3.Box{Min: r3.Vec{X: 5, Y: 0.2}, Max: r3.Vec{X: 5, Y: 0.8}}
		assert.Equal(t, []int{4, 5}, tree.Overlapping(edge))
		assert.Empty(t, tree.Overlapping(r3.Box{Min: r3.Vec{X: 20, Y: 20}, Max: r3.Vec{X: 21, Y: 21}}))
	}
	{ // Nearest with an exact distance callback
		dist := func(p r3.Vec) func(int) float64 {
			return func(i int) float64 { return geometry3D.Dist2ToBox(p, boxes[i]) }
		}
		p := r3.Vec{X: 3.2, Y: 7.6, Z: 1}
		id, d2 := tree.Nearest(p, 4, dist(p))
		assert.Equal(t, 73, id)
		assert.InDelta(t, 1., d2, 1e-14)
		id, _ = tree.Nearest(r3.Vec{X: -5, Y: -5}, 1, dist(r3.Vec{X: -5, Y: -5}))
		assert.Equal(t, -1, id)
		// ties go to the lowest id
		id, _ = tree.Nearest(r3.Vec{X: 5, Y: 5}, 1, dist(r3.Vec{X: 5, Y: 5}))
		assert.Equal(t, 44, id)
	}
	{ // Same seed, same tree
		again := NewBVH(boxes, rand.New(rand.NewSource(42)))
		for i := range boxes {
			assert.Equal(t, tree.Box(i), again.Box(i))
		}
	}
	{
		empty := NewBVH(nil, nil)
		assert.Empty(t, empty.Overlapping(boxes[0]))
		id, _ := empty.Nearest(centres[0], 1, nil)
		assert.Equal(t, -1, id)
	}
}

func TestCentreTree(t *testing.T) {
	_, centres := gridBoxes(7)
	ct := NewCentreTree(centres)
	id, d2 := ct.Nearest(r3.Vec{X: 2.4, Y: 5.9, Z: 0.1})
	assert.Equal(t, 5*7+2, id)
	assert.InDelta(t, 0.01+0.16+0.01, d2, 1e-14)
	id, _ = ct.Nearest(r3.Vec{X: -100, Y: -100})
	assert.Equal(t, 0, id)
	assert.Equal(t, []int{0, 1, 7}, ct.NearestN(r3.Vec{X: 0.4, Y: 0.4}, 3))
	assert.Len(t, ct.NearestN(r3.Vec{}, 100), 49)
	empty := NewCentreTree(nil)
	id, _ = empty.Nearest(r3.Vec{})
	assert.Equal(t, -1, id)
	assert.Empty(t, empty.NearestN(r3.Vec{}, 2))
}
