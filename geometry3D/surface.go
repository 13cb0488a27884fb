package geometry3D

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Surface snaps points onto a true geometry before faces are intersected.
type Surface interface {
	Project(p r3.Vec) r3.Vec
}

type Plane struct {
	Origin, Normal r3.Vec
}

func (s Plane) Project(p r3.Vec) r3.Vec {
	n := r3.Unit(s.Normal)
	return r3.Sub(p, r3.Scale(r3.Dot(r3.Sub(p, s.Origin), n), n))
}

type Sphere struct {
	Centre r3.Vec
	Radius float64
}

func (s Sphere) Project(p r3.Vec) r3.Vec {
	d := r3.Sub(p, s.Centre)
	mag := r3.Norm(d)
	if mag < ROOTVSMALL {
		return p
	}
	return r3.Add(s.Centre, r3.Scale(s.Radius/mag, d))
}

type Cylinder struct {
	Origin, Axis r3.Vec
	Radius       float64
}

func (s Cylinder) Project(p r3.Vec) r3.Vec {
	var (
		a     = r3.Unit(s.Axis)
		d     = r3.Sub(p, s.Origin)
		along = r3.Scale(r3.Dot(d, a), a)
		rad   = r3.Sub(d, along)
		mag   = r3.Norm(rad)
	)
	if mag < ROOTVSMALL {
		return p
	}
	return r3.Add(r3.Add(s.Origin, along), r3.Scale(s.Radius/mag, rad))
}

// SurfaceParams is the union of the parameters of the registered surfaces.
type SurfaceParams struct {
	Origin r3.Vec
	Axis   r3.Vec // normal of a plane, axis of a cylinder
	Radius float64
}

var surfaces = map[string]func(SurfaceParams) (Surface, error){}

// RegisterSurface makes a projection surface selectable by name. Call from
// init; duplicate names panic.
func RegisterSurface(name string, factory func(SurfaceParams) (Surface, error)) {
	if _, exists := surfaces[name]; exists {
		panic(fmt.Sprintf("surface %q already registered", name))
	}
	surfaces[name] = factory
}

func NewSurface(name string, sp SurfaceParams) (Surface, error) {
	factory, ok := surfaces[name]
	if !ok {
		names := make([]string, 0, len(surfaces))
		for n := range surfaces {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown projection surface %q, have %v", name, names)
	}
	return factory(sp)
}

func init() {
	RegisterSurface("plane", func(sp SurfaceParams) (Surface, error) {
		if r3.Norm(sp.Axis) < ROOTVSMALL {
			return nil, fmt.Errorf("plane surface needs a non-zero normal")
		}
		return Plane{Origin: sp.Origin, Normal: sp.Axis}, nil
	})
	RegisterSurface("sphere", func(sp SurfaceParams) (Surface, error) {
		if sp.Radius <= 0 {
			return nil, fmt.Errorf("sphere surface needs a positive radius, got %g", sp.Radius)
		}
		return Sphere{Centre: sp.Origin, Radius: sp.Radius}, nil
	})
	RegisterSurface("cylinder", func(sp SurfaceParams) (Surface, error) {
		if sp.Radius <= 0 || r3.Norm(sp.Axis) < ROOTVSMALL {
			return nil, fmt.Errorf("cylinder surface needs a positive radius and an axis")
		}
		return Cylinder{Origin: sp.Origin, Axis: sp.Axis, Radius: sp.Radius}, nil
	})
}
