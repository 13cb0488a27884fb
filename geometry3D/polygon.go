package geometry3D

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Polygon is a face loop resolved to point coordinates.
type Polygon []r3.Vec

// FacePoints resolves a face's vertex indices against a point list.
func FacePoints(points []r3.Vec, face []int) (p Polygon) {
	p = make(Polygon, len(face))
	for i, v := range face {
		p[i] = points[v]
	}
	return
}

// Average is the arithmetic mean of the vertices.
func (p Polygon) Average() (avg r3.Vec) {
	if len(p) == 0 {
		return
	}
	for _, v := range p {
		avg = r3.Add(avg, v)
	}
	return r3.Scale(1/float64(len(p)), avg)
}

// VectorArea is the area weighted normal. For a planar loop its magnitude is
// the face area, for a warped loop it is the area of the projection that
// maximises it.
func (p Polygon) VectorArea() (sa r3.Vec) {
	switch len(p) {
	case 0, 1, 2:
		return
	case 3:
		return r3.Scale(0.5, r3.Cross(r3.Sub(p[1], p[0]), r3.Sub(p[2], p[0])))
	}
	c := p.Average()
	for i := range p {
		a, b := p[i], p[(i+1)%len(p)]
		sa = r3.Add(sa, r3.Cross(r3.Sub(a, c), r3.Sub(b, c)))
	}
	return r3.Scale(0.5, sa)
}

func (p Polygon) Area() float64 { return r3.Norm(p.VectorArea()) }

// Normal is the unit normal, zero for degenerate loops.
func (p Polygon) Normal() r3.Vec {
	sa := p.VectorArea()
	mag := r3.Norm(sa)
	if mag < ROOTVSMALL {
		return r3.Vec{}
	}
	return r3.Scale(1/mag, sa)
}

// Centre is the area weighted centroid of the fan from the vertex average.
func (p Polygon) Centre() r3.Vec {
	if len(p) == 3 {
		return p.Average()
	}
	var (
		c     = p.Average()
		n     = p.VectorArea()
		sumA  float64
		sumAc r3.Vec
	)
	for i := range p {
		a, b := p[i], p[(i+1)%len(p)]
		tc := r3.Scale(1./3., r3.Add(r3.Add(a, b), c))
		ta := r3.Dot(r3.Cross(r3.Sub(a, c), r3.Sub(b, c)), n)
		sumA += ta
		sumAc = r3.Add(sumAc, r3.Scale(ta, tc))
	}
	if math.Abs(sumA) < VSMALL {
		return c
	}
	return r3.Scale(1/sumA, sumAc)
}

func (p Polygon) Bounds() r3.Box { return BoxOf(p...) }

// polygonArea measures a planar loop with a fan from its first vertex.
func polygonArea(p Polygon) float64 {
	if len(p) < 3 {
		return 0
	}
	var sa r3.Vec
	for i := 1; i < len(p)-1; i++ {
		sa = r3.Add(sa, r3.Cross(r3.Sub(p[i], p[0]), r3.Sub(p[i+1], p[0])))
	}
	return 0.5 * r3.Norm(sa)
}
