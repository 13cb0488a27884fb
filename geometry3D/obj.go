package geometry3D

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/spatial/r3"
)

// OBJWriter streams polygons and lines in Wavefront OBJ format. The first
// write error is kept and returned by Err; later writes are dropped.
type OBJWriter struct {
	w       io.Writer
	nPoints int
	err     error
}

func NewOBJWriter(w io.Writer) *OBJWriter {
	return &OBJWriter{w: w}
}

func (ow *OBJWriter) printf(format string, args ...interface{}) {
	if ow.err != nil {
		return
	}
	_, ow.err = fmt.Fprintf(ow.w, format, args...)
}

func (ow *OBJWriter) point(p r3.Vec) {
	ow.printf("v %.12g %.12g %.12g\n", p.X, p.Y, p.Z)
	ow.nPoints++
}

func (ow *OBJWriter) Comment(format string, args ...interface{}) {
	ow.printf("# "+format+"\n", args...)
}

func (ow *OBJWriter) Polygon(poly Polygon) {
	if len(poly) == 0 {
		return
	}
	start := ow.nPoints + 1
	for _, p := range poly {
		ow.point(p)
	}
	ow.printf("f")
	for i := range poly {
		ow.printf(" %d", start+i)
	}
	ow.printf("\n")
}

func (ow *OBJWriter) Line(a, b r3.Vec) {
	ow.point(a)
	ow.point(b)
	ow.printf("l %d %d\n", ow.nPoints-1, ow.nPoints)
}

func (ow *OBJWriter) Err() error { return ow.err }
