package search

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// CentreTree is a k-d tree over face centres, used as the last resort when
// no face box is near a query.
type CentreTree struct {
	tree *kdtree.Tree
	n    int
}

type centre struct {
	p  r3.Vec
	id int
}

func (c *centre) Compare(o kdtree.Comparable, d kdtree.Dim) float64 {
	q := o.(*centre)
	switch d {
	case 0:
		return c.p.X - q.p.X
	case 1:
		return c.p.Y - q.p.Y
	default:
		return c.p.Z - q.p.Z
	}
}

func (c *centre) Dims() int { return 3 }

// Distance is squared, as for gonum's kdtree.Point.
func (c *centre) Distance(o kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(c.p, o.(*centre).p))
}

type centres []*centre

func (cs centres) Index(i int) kdtree.Comparable { return cs[i] }
func (cs centres) Len() int                      { return len(cs) }

// Pivot partitions the list based on the dimension specified.
func (cs centres) Pivot(d kdtree.Dim) int {
	p := centrePlane{dim: d, centres: cs}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

func (cs centres) Slice(start, end int) kdtree.Interface { return cs[start:end] }

type centrePlane struct {
	dim kdtree.Dim
	centres
}

func (p centrePlane) Less(i, j int) bool {
	return p.centres[i].Compare(p.centres[j], p.dim) < 0
}

func (p centrePlane) Swap(i, j int) {
	p.centres[i], p.centres[j] = p.centres[j], p.centres[i]
}

func (p centrePlane) Slice(start, end int) kdtree.SortSlicer {
	p.centres = p.centres[start:end]
	return p
}

func NewCentreTree(points []r3.Vec) *CentreTree {
	cs := make(centres, len(points))
	for i, p := range points {
		cs[i] = &centre{p: p, id: i}
	}
	ct := &CentreTree{n: len(points)}
	if len(points) != 0 {
		ct.tree = kdtree.New(cs, false)
	}
	return ct
}

// Nearest returns the index of the closest centre and its squared distance,
// -1 for an empty tree.
func (ct *CentreTree) Nearest(p r3.Vec) (id int, d2 float64) {
	if ct.n == 0 {
		return -1, math.Inf(1)
	}
	got, d2 := ct.tree.Nearest(&centre{p: p})
	if got == nil {
		return -1, math.Inf(1)
	}
	return got.(*centre).id, d2
}

// NearestN returns up to k centre indices ordered by distance, ties by
// index.
func (ct *CentreTree) NearestN(p r3.Vec, k int) (ids []int) {
	if ct.n == 0 || k <= 0 {
		return
	}
	keeper := kdtree.NewNKeeper(k)
	ct.tree.NearestSet(keeper, &centre{p: p})
	type hit struct {
		id int
		d2 float64
	}
	var hits []hit
	for _, cd := range keeper.Heap {
		if cd.Comparable == nil {
			continue
		}
		hits = append(hits, hit{cd.Comparable.(*centre).id, cd.Dist})
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].d2 != hits[b].d2 {
			return hits[a].d2 < hits[b].d2
		}
		return hits[a].id < hits[b].id
	})
	for _, h := range hits {
		ids = append(ids, h.id)
	}
	return
}
