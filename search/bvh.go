// Package search holds the spatial indices used to seed face matching.
package search

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/goami/geometry3D"
)

const (
	DefaultLeafSize = 8
	// PerturbFraction is the relative inflation applied to every face box.
	PerturbFraction = 1e-4
)

// BVH is a bounding volume hierarchy over face boxes. The boxes are inflated
// by a random fraction of their span so that faces meeting exactly on an
// axis aligned plane still report each other.
type BVH struct {
	LeafSize int
	boxes    []r3.Box
	order    []int
	nodes    []bvhNode
}

type bvhNode struct {
	box         r3.Box
	left, right int // children, -1 for a leaf
	start, end  int // leaf range in order
}

// NewBVH indexes boxes by position. A nil rnd uses a fixed seed.
func NewBVH(boxes []r3.Box, rnd *rand.Rand) (t *BVH) {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(1))
	}
	t = &BVH{
		LeafSize: DefaultLeafSize,
		boxes:    make([]r3.Box, len(boxes)),
		order:    make([]int, len(boxes)),
	}
	for i, bb := range boxes {
		t.boxes[i] = geometry3D.Extend(bb, rnd, PerturbFraction)
		t.order[i] = i
	}
	if len(boxes) != 0 {
		t.build(0, len(boxes))
	}
	return
}

func (t *BVH) Len() int { return len(t.boxes) }

// Box returns the perturbed box of face i.
func (t *BVH) Box(i int) r3.Box { return t.boxes[i] }

func (t *BVH) build(start, end int) (nodeID int) {
	var (
		bb     = geometry3D.EmptyBox()
		centBB = geometry3D.EmptyBox()
	)
	for _, i := range t.order[start:end] {
		bb = geometry3D.Union(bb, t.boxes[i])
		centBB = geometry3D.AddPoint(centBB, geometry3D.Centre(t.boxes[i]))
	}
	nodeID = len(t.nodes)
	t.nodes = append(t.nodes, bvhNode{box: bb, left: -1, right: -1, start: start, end: end})
	if end-start <= t.LeafSize {
		return
	}
	var (
		axis = geometry3D.LongestAxis(centBB)
		ids  = t.order[start:end]
		key  = func(i int) float64 { return geometry3D.Component(geometry3D.Centre(t.boxes[i]), axis) }
	)
	sort.Slice(ids, func(a, b int) bool {
		ka, kb := key(ids[a]), key(ids[b])
		if ka != kb {
			return ka < kb
		}
		return ids[a] < ids[b]
	})
	mid := start + (end-start)/2
	left := t.build(start, mid)
	right := t.build(mid, end)
	t.nodes[nodeID].left, t.nodes[nodeID].right = left, right
	return
}

// Overlapping returns the faces whose box overlaps bb, ascending.
func (t *BVH) Overlapping(bb r3.Box) (ids []int) {
	if len(t.nodes) == 0 {
		return
	}
	stack := []int{0}
	for len(stack) != 0 {
		n := &t.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if !geometry3D.Overlaps(n.box, bb) {
			continue
		}
		if n.left < 0 {
			for _, i := range t.order[n.start:n.end] {
				if geometry3D.Overlaps(t.boxes[i], bb) {
					ids = append(ids, i)
				}
			}
			continue
		}
		stack = append(stack, n.right, n.left)
	}
	sort.Ints(ids)
	return
}

// Nearest returns the face closest to p according to dist2, which gives the
// exact squared distance from p to a face, considering only faces within
// maxDist2. Ties go to the lower face id. It returns -1 when nothing is in
// range.
func (t *BVH) Nearest(p r3.Vec, maxDist2 float64, dist2 func(face int) float64) (best int, bestD2 float64) {
	best, bestD2 = -1, maxDist2
	if len(t.nodes) == 0 {
		return
	}
	var visit func(nodeID int)
	visit = func(nodeID int) {
		n := &t.nodes[nodeID]
		if geometry3D.Dist2ToBox(p, n.box) > bestD2 {
			return
		}
		if n.left < 0 {
			for _, i := range t.order[n.start:n.end] {
				if geometry3D.Dist2ToBox(p, t.boxes[i]) > bestD2 {
					continue
				}
				d2 := dist2(i)
				if d2 < bestD2 || (d2 == bestD2 && (best < 0 || i < best)) {
					best, bestD2 = i, d2
				}
			}
			return
		}
		// closer child first
		l, r := n.left, n.right
		if geometry3D.Dist2ToBox(p, t.nodes[r].box) < geometry3D.Dist2ToBox(p, t.nodes[l].box) {
			l, r = r, l
		}
		visit(l)
		visit(r)
	}
	visit(0)
	if best < 0 {
		bestD2 = math.Inf(1)
	}
	return
}
