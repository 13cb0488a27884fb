package geometry3D

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

type Triangle [3]r3.Vec

func (t Triangle) Area() float64 {
	return 0.5 * r3.Norm(r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0])))
}

// Triangulator splits a face loop into triangles.
type Triangulator interface {
	Triangulate(p Polygon) []Triangle
}

// TriangulatorFunc adapts a function to the Triangulator interface.
type TriangulatorFunc func(p Polygon) []Triangle

func (f TriangulatorFunc) Triangulate(p Polygon) []Triangle { return f(p) }

// Fan triangulates from the first vertex.
type Fan struct{}

func (Fan) Triangulate(p Polygon) (tris []Triangle) {
	if len(p) < 3 {
		return
	}
	tris = make([]Triangle, 0, len(p)-2)
	for i := 1; i < len(p)-1; i++ {
		tris = append(tris, Triangle{p[0], p[i], p[i+1]})
	}
	return
}

// CentreFan triangulates from the face centre, one triangle per edge.
// Triangles are returned as-is for three sided faces.
type CentreFan struct{}

func (CentreFan) Triangulate(p Polygon) (tris []Triangle) {
	switch {
	case len(p) < 3:
		return
	case len(p) == 3:
		return []Triangle{{p[0], p[1], p[2]}}
	}
	c := p.Centre()
	tris = make([]Triangle, len(p))
	for i := range p {
		tris[i] = Triangle{c, p[i], p[(i+1)%len(p)]}
	}
	return
}

// EarClip triangulates in the face plane by ear removal. It handles
// non-convex loops and falls back to a fan on the remainder if no ear can be
// found.
type EarClip struct{}

func (EarClip) Triangulate(p Polygon) (tris []Triangle) {
	if len(p) < 3 {
		return
	}
	if len(p) == 3 {
		return []Triangle{{p[0], p[1], p[2]}}
	}
	var (
		n    = p.Normal()
		u, v = PlaneBasis(n)
		pts  = make([][2]float64, len(p))
		idx  = make([]int, len(p))
	)
	for i, x := range p {
		pts[i] = [2]float64{r3.Dot(x, u), r3.Dot(x, v)}
		idx[i] = i
	}
	cross := func(a, b, c int) float64 {
		return (pts[b][0]-pts[a][0])*(pts[c][1]-pts[a][1]) - (pts[b][1]-pts[a][1])*(pts[c][0]-pts[a][0])
	}
	inside := func(a, b, c, q int) bool {
		return cross(a, b, q) >= 0 && cross(b, c, q) >= 0 && cross(c, a, q) >= 0
	}
	for len(idx) > 3 {
		found := false
		for i := range idx {
			a, b, c := idx[(i+len(idx)-1)%len(idx)], idx[i], idx[(i+1)%len(idx)]
			if cross(a, b, c) <= 0 {
				continue
			}
			ear := true
			for _, q := range idx {
				if q == a || q == b || q == c {
					continue
				}
				if inside(a, b, c, q) {
					ear = false
					break
				}
			}
			if !ear {
				continue
			}
			tris = append(tris, Triangle{p[a], p[b], p[c]})
			idx = append(idx[:i], idx[i+1:]...)
			found = true
			break
		}
		if !found {
			break
		}
	}
	for i := 1; i < len(idx)-1; i++ {
		tris = append(tris, Triangle{p[idx[0]], p[idx[i]], p[idx[i+1]]})
	}
	return
}

// PlaneBasis returns two unit vectors completing n to a right handed frame.
func PlaneBasis(n r3.Vec) (u, v r3.Vec) {
	if r3.Norm(n) < ROOTVSMALL {
		return r3.Vec{X: 1}, r3.Vec{Y: 1}
	}
	n = r3.Unit(n)
	ref := r3.Vec{X: 1}
	if math.Abs(n.X) > 0.9 {
		ref = r3.Vec{Y: 1}
	}
	u = r3.Unit(r3.Cross(ref, n))
	v = r3.Cross(n, u)
	return
}

var triangulators = map[string]func() Triangulator{}

// RegisterTriangulator makes a triangulation scheme selectable by name. It is
// meant to be called from init functions and panics on duplicate names.
func RegisterTriangulator(name string, factory func() Triangulator) {
	if _, exists := triangulators[name]; exists {
		panic(fmt.Sprintf("triangulator %q already registered", name))
	}
	triangulators[name] = factory
}

// NewTriangulator looks up a registered triangulation scheme.
func NewTriangulator(name string) (Triangulator, error) {
	factory, ok := triangulators[name]
	if !ok {
		return nil, fmt.Errorf("unknown triangulation mode %q, have %v", name, TriangulatorNames())
	}
	return factory(), nil
}

func TriangulatorNames() (names []string) {
	for name := range triangulators {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

func init() {
	RegisterTriangulator("fan", func() Triangulator { return Fan{} })
	RegisterTriangulator("centre", func() Triangulator { return CentreFan{} })
	RegisterTriangulator("mesh", func() Triangulator { return EarClip{} })
}
