package geometry3D

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// EmptyBox returns an inverted box that any point will grow.
func EmptyBox() r3.Box {
	return r3.Box{
		Min: r3.Vec{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64},
		Max: r3.Vec{X: -math.MaxFloat64, Y: -math.MaxFloat64, Z: -math.MaxFloat64},
	}
}

// BoxOf returns the tight axis aligned box around pts.
func BoxOf(pts ...r3.Vec) (bb r3.Box) {
	bb = EmptyBox()
	for _, p := range pts {
		bb = AddPoint(bb, p)
	}
	return
}

func AddPoint(bb r3.Box, p r3.Vec) r3.Box {
	bb.Min = r3.Vec{X: math.Min(bb.Min.X, p.X), Y: math.Min(bb.Min.Y, p.Y), Z: math.Min(bb.Min.Z, p.Z)}
	bb.Max = r3.Vec{X: math.Max(bb.Max.X, p.X), Y: math.Max(bb.Max.Y, p.Y), Z: math.Max(bb.Max.Z, p.Z)}
	return bb
}

func Union(a, b r3.Box) r3.Box {
	return r3.Box{
		Min: r3.Vec{X: math.Min(a.Min.X, b.Min.X), Y: math.Min(a.Min.Y, b.Min.Y), Z: math.Min(a.Min.Z, b.Min.Z)},
		Max: r3.Vec{X: math.Max(a.Max.X, b.Max.X), Y: math.Max(a.Max.Y, b.Max.Y), Z: math.Max(a.Max.Z, b.Max.Z)},
	}
}

// IsEmpty reports whether the box has been grown by at least one point.
func IsEmpty(bb r3.Box) bool {
	return bb.Min.X > bb.Max.X || bb.Min.Y > bb.Max.Y || bb.Min.Z > bb.Max.Z
}

func Overlaps(a, b r3.Box) bool {
	if IsEmpty(a) || IsEmpty(b) {
		return false
	}
	return a.Min.X <= b.Max.X && a.Max.X >= b.Min.X &&
		a.Min.Y <= b.Max.Y && a.Max.Y >= b.Min.Y &&
		a.Min.Z <= b.Max.Z && a.Max.Z >= b.Min.Z
}

func Contains(bb r3.Box, p r3.Vec) bool {
	return p.X >= bb.Min.X && p.X <= bb.Max.X &&
		p.Y >= bb.Min.Y && p.Y <= bb.Max.Y &&
		p.Z >= bb.Min.Z && p.Z <= bb.Max.Z
}

func Span(bb r3.Box) r3.Vec { return r3.Sub(bb.Max, bb.Min) }

func Centre(bb r3.Box) r3.Vec { return r3.Scale(0.5, r3.Add(bb.Min, bb.Max)) }

// LongestAxis returns 0, 1 or 2 for x, y or z.
func LongestAxis(bb r3.Box) int {
	s := Span(bb)
	switch {
	case s.X >= s.Y && s.X >= s.Z:
		return 0
	case s.Y >= s.Z:
		return 1
	default:
		return 2
	}
}

func Component(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// Inflate grows every side of the box by frac of the largest span plus abs.
func Inflate(bb r3.Box, frac, abs float64) r3.Box {
	var (
		s   = Span(bb)
		mag = math.Max(s.X, math.Max(s.Y, s.Z))
		d   = frac*mag + abs
		dv  = r3.Vec{X: d, Y: d, Z: d}
	)
	return r3.Box{Min: r3.Sub(bb.Min, dv), Max: r3.Add(bb.Max, dv)}
}

// Extend inflates the box by a random fraction (up to frac) of its largest
// span, independently per side. Used to break axis aligned coincidences in
// the search trees.
func Extend(bb r3.Box, rnd *rand.Rand, frac float64) r3.Box {
	var (
		s   = Span(bb)
		mag = math.Max(s.X, math.Max(s.Y, s.Z))
	)
	if mag < ROOTVSMALL {
		mag = 1
	}
	d := func() float64 { return frac * mag * (0.5 + rnd.Float64()) }
	bb.Min = r3.Vec{X: bb.Min.X - d(), Y: bb.Min.Y - d(), Z: bb.Min.Z - d()}
	bb.Max = r3.Vec{X: bb.Max.X + d(), Y: bb.Max.Y + d(), Z: bb.Max.Z + d()}
	return bb
}

// Dist2ToBox is the squared distance from p to the closest point of bb, zero
// when p is inside.
func Dist2ToBox(p r3.Vec, bb r3.Box) float64 {
	d := func(v, lo, hi float64) float64 {
		switch {
		case v < lo:
			return lo - v
		case v > hi:
			return v - hi
		}
		return 0
	}
	dx, dy, dz := d(p.X, bb.Min.X, bb.Max.X), d(p.Y, bb.Min.Y, bb.Max.Y), d(p.Z, bb.Min.Z, bb.Max.Z)
	return dx*dx + dy*dy + dz*dz
}
