package geometry3D

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// IntersectionDirection is the direction along which target triangles are
// extruded to clip source triangles. Source and target normals oppose each
// other unless the target has been flagged as reversed.
func IntersectionDirection(nSrc, nTgt r3.Vec, reverseTarget bool) (n r3.Vec, ok bool) {
	if reverseTarget {
		n = r3.Add(nSrc, nTgt)
	} else {
		n = r3.Sub(nSrc, nTgt)
	}
	mag := r3.Norm(n)
	if mag < ROOTVSMALL {
		return r3.Vec{}, false
	}
	return r3.Scale(1/mag, n), true
}

// ClipTriangle clips src against the infinite prism swept by tgt along n.
// The result lies in the plane of src; nil means no overlap.
func ClipTriangle(src, tgt Triangle, n r3.Vec) (poly Polygon) {
	if tgt.Area() < ROOTVSMALL || src.Area() < ROOTVSMALL {
		return nil
	}
	var (
		work    = make(Polygon, 0, 9)
		scratch = make(Polygon, 0, 9)
	)
	work = append(work, src[0], src[1], src[2])
	for e := 0; e < 3; e++ {
		var (
			a = tgt[e]
			b = tgt[(e+1)%3]
			c = tgt[(e+2)%3]
			m = r3.Cross(r3.Sub(b, a), n)
		)
		side := r3.Dot(r3.Sub(c, a), m)
		if side == 0 {
			// target collapses to a line when viewed along n
			return nil
		}
		if side < 0 {
			m = r3.Scale(-1, m)
		}
		scratch = clipHalfSpace(work, a, m, scratch[:0])
		if len(scratch) < 3 {
			return nil
		}
		work, scratch = scratch, work
	}
	poly = make(Polygon, len(work))
	copy(poly, work)
	return
}

// clipHalfSpace keeps the part of the loop where dot(p-a, m) >= 0.
func clipHalfSpace(in Polygon, a, m r3.Vec, out Polygon) Polygon {
	for i := range in {
		var (
			prev = in[(i+len(in)-1)%len(in)]
			curr = in[i]
			dp   = r3.Dot(r3.Sub(prev, a), m)
			dc   = r3.Dot(r3.Sub(curr, a), m)
		)
		if dc >= 0 {
			if dp < 0 {
				out = append(out, lerp(prev, curr, dp/(dp-dc)))
			}
			out = append(out, curr)
		} else if dp >= 0 {
			out = append(out, lerp(prev, curr, dp/(dp-dc)))
		}
	}
	return out
}

func lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

// TriangleIntersect is the area of src overlapped by tgt viewed along n.
func TriangleIntersect(src, tgt Triangle, n r3.Vec) float64 {
	return polygonArea(ClipTriangle(src, tgt, n))
}

// FaceIntersect computes overlap areas between two polygonal faces using a
// triangulation scheme.
type FaceIntersect struct {
	Triangulator Triangulator
}

func NewFaceIntersect(tri Triangulator) *FaceIntersect {
	if tri == nil {
		tri = Fan{}
	}
	return &FaceIntersect{Triangulator: tri}
}

// Area sums the pairwise triangle overlaps, source triangles outermost so
// the summation order only depends on the two faces.
func (fi *FaceIntersect) Area(src, tgt Polygon, n r3.Vec) (area float64) {
	var (
		trisA = fi.Triangulator.Triangulate(src)
		trisB = fi.Triangulator.Triangulate(tgt)
	)
	for _, ta := range trisA {
		if ta.Area() < ROOTVSMALL {
			continue
		}
		for _, tb := range trisB {
			area += TriangleIntersect(ta, tb, n)
		}
	}
	return
}

// Polygons is Area that also returns the clipped pieces, for diagnostics.
func (fi *FaceIntersect) Polygons(src, tgt Polygon, n r3.Vec) (area float64, pieces []Polygon) {
	var (
		trisA = fi.Triangulator.Triangulate(src)
		trisB = fi.Triangulator.Triangulate(tgt)
	)
	for _, ta := range trisA {
		if ta.Area() < ROOTVSMALL {
			continue
		}
		for _, tb := range trisB {
			piece := ClipTriangle(ta, tb, n)
			if piece == nil {
				continue
			}
			area += polygonArea(piece)
			pieces = append(pieces, piece)
		}
	}
	return
}
