package geometry3D

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// ClosestPointOnTriangle follows the Voronoi region walk from Ericson's
// Real-Time Collision Detection, 5.1.5.
func ClosestPointOnTriangle(p r3.Vec, t Triangle) r3.Vec {
	var (
		a, b, c = t[0], t[1], t[2]
		ab      = r3.Sub(b, a)
		ac      = r3.Sub(c, a)
		ap      = r3.Sub(p, a)
		d1      = r3.Dot(ab, ap)
		d2      = r3.Dot(ac, ap)
	)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := r3.Sub(p, b)
	d3, d4 := r3.Dot(ab, bp), r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return r3.Add(a, r3.Scale(d1/(d1-d3), ab))
	}
	cp := r3.Sub(p, c)
	d5, d6 := r3.Dot(ab, cp), r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return r3.Add(a, r3.Scale(d2/(d2-d6), ac))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		return r3.Add(b, r3.Scale((d4-d3)/((d4-d3)+(d5-d6)), r3.Sub(c, b)))
	}
	sum := va + vb + vc
	if sum == 0 {
		// degenerate triangle, fall back to the nearest vertex
		best := a
		for _, q := range []r3.Vec{b, c} {
			if r3.Norm2(r3.Sub(q, p)) < r3.Norm2(r3.Sub(best, p)) {
				best = q
			}
		}
		return best
	}
	v, w := vb/sum, vc/sum
	return r3.Add(a, r3.Add(r3.Scale(v, ab), r3.Scale(w, ac)))
}

// Dist2ToPolygon is the squared distance from p to the nearest point of a
// face, measured on its centre fan.
func Dist2ToPolygon(p r3.Vec, poly Polygon) (d2 float64) {
	d2 = -1
	for _, t := range (CentreFan{}).Triangulate(poly) {
		q := ClosestPointOnTriangle(p, t)
		if dd := r3.Norm2(r3.Sub(q, p)); d2 < 0 || dd < d2 {
			d2 = dd
		}
	}
	return
}
