// Package patch holds the surface meshes matched by an AMI: polygonal faces
// over a shared point list, with memoised face geometry and adjacency.
package patch

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/goami/geometry3D"
)

type Patch struct {
	Name   string
	Points []r3.Vec
	Faces  [][]int // cyclic vertex loops, right handed about the face normal

	geomOnce sync.Once
	vecAreas []r3.Vec
	areas    []float64
	centres  []r3.Vec
	normals  []r3.Vec
	boxes    []r3.Box
	bounds   r3.Box

	adjOnce   sync.Once
	faceFaces [][]int
}

// New wraps the arrays without copying them. Callers must not modify them
// while the patch is in use.
func New(name string, points []r3.Vec, faces [][]int) *Patch {
	return &Patch{Name: name, Points: points, Faces: faces}
}

func (p *Patch) NFaces() int { return len(p.Faces) }

func (p *Patch) Face(i int) geometry3D.Polygon {
	return geometry3D.FacePoints(p.Points, p.Faces[i])
}

func (p *Patch) calcGeometry() {
	var (
		nf = len(p.Faces)
	)
	p.vecAreas = make([]r3.Vec, nf)
	p.areas = make([]float64, nf)
	p.centres = make([]r3.Vec, nf)
	p.normals = make([]r3.Vec, nf)
	p.boxes = make([]r3.Box, nf)
	p.bounds = geometry3D.EmptyBox()
	for i := range p.Faces {
		poly := p.Face(i)
		p.vecAreas[i] = poly.VectorArea()
		p.areas[i] = r3.Norm(p.vecAreas[i])
		p.centres[i] = poly.Centre()
		p.normals[i] = poly.Normal()
		p.boxes[i] = poly.Bounds()
		p.bounds = geometry3D.Union(p.bounds, p.boxes[i])
	}
}

func (p *Patch) FaceAreas() []float64 {
	p.geomOnce.Do(p.calcGeometry)
	return p.areas
}

func (p *Patch) FaceAreaVectors() []r3.Vec {
	p.geomOnce.Do(p.calcGeometry)
	return p.vecAreas
}

func (p *Patch) FaceCentres() []r3.Vec {
	p.geomOnce.Do(p.calcGeometry)
	return p.centres
}

func (p *Patch) FaceNormals() []r3.Vec {
	p.geomOnce.Do(p.calcGeometry)
	return p.normals
}

func (p *Patch) FaceBoxes() []r3.Box {
	p.geomOnce.Do(p.calcGeometry)
	return p.boxes
}

// Bounds is the box around all faces, empty for a patch without faces.
func (p *Patch) Bounds() r3.Box {
	p.geomOnce.Do(p.calcGeometry)
	return p.bounds
}

func (p *Patch) TotalArea() float64 {
	return floats.Sum(p.FaceAreas())
}

// FaceFaces lists, per face, the faces sharing an edge with it in ascending
// order.
func (p *Patch) FaceFaces() [][]int {
	p.adjOnce.Do(func() {
		edgeFaces := make(map[[2]int][]int)
		for i, f := range p.Faces {
			for j := range f {
				key := edgeKey(f[j], f[(j+1)%len(f)])
				edgeFaces[key] = append(edgeFaces[key], i)
			}
		}
		p.faceFaces = make([][]int, len(p.Faces))
		for i, f := range p.Faces {
			seen := make(map[int]bool)
			for j := range f {
				for _, nbr := range edgeFaces[edgeKey(f[j], f[(j+1)%len(f)])] {
					if nbr != i && !seen[nbr] {
						seen[nbr] = true
						p.faceFaces[i] = append(p.faceFaces[i], nbr)
					}
				}
			}
			sort.Ints(p.faceFaces[i])
		}
	})
	return p.faceFaces
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// Check reports every malformed face: fewer than three vertices, vertex
// indices out of range, and edges traversed twice in the same direction,
// which means neighbouring faces disagree on orientation.
func (p *Patch) Check() (err error) {
	directed := make(map[[2]int]int)
	for i, f := range p.Faces {
		if len(f) < 3 {
			err = multierr.Append(err, fmt.Errorf("patch %s: face %d has %d vertices", p.Name, i, len(f)))
			continue
		}
		valid := true
		for _, v := range f {
			if v < 0 || v >= len(p.Points) {
				err = multierr.Append(err, fmt.Errorf("patch %s: face %d vertex %d out of range [0,%d)",
					p.Name, i, v, len(p.Points)))
				valid = false
			}
		}
		if !valid {
			continue
		}
		for j := range f {
			e := [2]int{f[j], f[(j+1)%len(f)]}
			if other, exists := directed[e]; exists {
				err = multierr.Append(err, fmt.Errorf("patch %s: edge %d->%d traversed in the same direction by faces %d and %d",
					p.Name, e[0], e[1], other, i))
				continue
			}
			directed[e] = i
		}
	}
	return
}

// Subset extracts faces in the given order with their points renumbered
// compactly in order of first use.
func (p *Patch) Subset(name string, faceIDs []int) (sub *Patch) {
	var (
		pointMap = make(map[int]int)
		points   []r3.Vec
		faces    = make([][]int, len(faceIDs))
	)
	for i, fi := range faceIDs {
		f := p.Faces[fi]
		faces[i] = make([]int, len(f))
		for j, v := range f {
			nv, ok := pointMap[v]
			if !ok {
				nv = len(points)
				pointMap[v] = nv
				points = append(points, p.Points[v])
			}
			faces[i][j] = nv
		}
	}
	return New(name, points, faces)
}

// Without is the subset of all faces not listed in drop.
func (p *Patch) Without(name string, drop ...int) *Patch {
	skip := make(map[int]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	var keep []int
	for i := range p.Faces {
		if !skip[i] {
			keep = append(keep, i)
		}
	}
	return p.Subset(name, keep)
}

// Projected returns a copy whose points lie on s. Faces are shared.
func (p *Patch) Projected(s geometry3D.Surface) *Patch {
	points := make([]r3.Vec, len(p.Points))
	for i, x := range p.Points {
		points[i] = s.Project(x)
	}
	return New(p.Name, points, p.Faces)
}

// Flipped reverses every face loop.
func (p *Patch) Flipped() *Patch {
	faces := make([][]int, len(p.Faces))
	for i, f := range p.Faces {
		faces[i] = make([]int, len(f))
		if len(f) == 0 {
			continue
		}
		faces[i][0] = f[0]
		for j := 1; j < len(f); j++ {
			faces[i][j] = f[len(f)-j]
		}
	}
	return New(p.Name, p.Points, faces)
}

func (p *Patch) String() string {
	return fmt.Sprintf("patch %s: %d faces, %d points, area %g",
		p.Name, len(p.Faces), len(p.Points), p.TotalArea())
}
