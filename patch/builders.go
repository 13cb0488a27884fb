package patch

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Grid builds nx by ny quads over the parallelogram origin + s*ex + t*ey,
// s,t in [0,1]. Faces are numbered x fastest and face along ex^ey, or
// against it when reversed.
func Grid(name string, nx, ny int, origin, ex, ey r3.Vec, reversed bool) *Patch {
	var (
		points = make([]r3.Vec, 0, (nx+1)*(ny+1))
		faces  = make([][]int, 0, nx*ny)
		vid    = func(i, j int) int { return j*(nx+1) + i }
	)
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			s, t := float64(i)/float64(nx), float64(j)/float64(ny)
			points = append(points, r3.Add(origin, r3.Add(r3.Scale(s, ex), r3.Scale(t, ey))))
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			f := []int{vid(i, j), vid(i+1, j), vid(i+1, j+1), vid(i, j+1)}
			if reversed {
				f[1], f[3] = f[3], f[1]
			}
			faces = append(faces, f)
		}
	}
	return New(name, points, faces)
}

// UnitSquare is an n by n grid on [0,1]^2 at z, facing +z unless reversed.
func UnitSquare(name string, n int, z float64, reversed bool) *Patch {
	return Grid(name, n, n, r3.Vec{Z: z}, r3.Vec{X: 1}, r3.Vec{Y: 1}, reversed)
}

// Triangulated splits every quad of p along alternating diagonals, giving a
// patch that does not match p face for face.
func Triangulated(p *Patch) (*Patch, error) {
	faces := make([][]int, 0, 2*len(p.Faces))
	for i, f := range p.Faces {
		switch len(f) {
		case 3:
			faces = append(faces, f)
		case 4:
			if i%2 == 0 {
				faces = append(faces, []int{f[0], f[1], f[2]}, []int{f[0], f[2], f[3]})
			} else {
				faces = append(faces, []int{f[0], f[1], f[3]}, []int{f[1], f[2], f[3]})
			}
		default:
			return nil, fmt.Errorf("patch %s: face %d has %d vertices, only quads are split",
				p.Name, i, len(f))
		}
	}
	return New(p.Name, p.Points, faces), nil
}

// CylinderBand is a ring of quads on the cylinder of the given radius about
// the z axis, nTheta around and nz along [0,height], rotated by theta0.
// Faces point outward unless inward is set.
func CylinderBand(name string, nTheta, nz int, radius, height, theta0 float64, inward bool) *Patch {
	var (
		points = make([]r3.Vec, 0, nTheta*(nz+1))
		faces  = make([][]int, 0, nTheta*nz)
		vid    = func(i, j int) int { return j*nTheta + i%nTheta }
	)
	for j := 0; j <= nz; j++ {
		z := height * float64(j) / float64(nz)
		for i := 0; i < nTheta; i++ {
			theta := theta0 + 2*math.Pi*float64(i)/float64(nTheta)
			points = append(points, r3.Vec{X: radius * math.Cos(theta), Y: radius * math.Sin(theta), Z: z})
		}
	}
	for j := 0; j < nz; j++ {
		for i := 0; i < nTheta; i++ {
			f := []int{vid(i, j), vid(i+1, j), vid(i+1, j+1), vid(i, j+1)}
			if inward {
				f[1], f[3] = f[3], f[1]
			}
			faces = append(faces, f)
		}
	}
	return New(name, points, faces)
}
