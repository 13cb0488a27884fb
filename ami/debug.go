package ami

import (
	"fmt"
	"io"

	"go.uber.org/multierr"

	"github.com/notargets/goami/geometry3D"
	"github.com/notargets/goami/patch"
)

// writeIntersection dumps the clipped pieces of one accepted overlap.
func (m *matcher) writeIntersection(srcI, tgtI int, area float64) {
	n, ok := geometry3D.IntersectionDirection(
		m.src.FaceNormals()[srcI], m.tgt.FaceNormals()[tgtI], m.reverse)
	if !ok {
		return
	}
	_, pieces := m.fi.Polygons(m.src.Face(srcI), m.tgt.Face(tgtI), n)
	m.obj.Comment("source %d target %d area %.12g", srcI, tgtI, area)
	for _, piece := range pieces {
		m.obj.Polygon(piece)
	}
}

// WriteFaceConnectivity writes an OBJ line from each source face centre to
// the centre of every target face it is mapped to. src and tgt must be the
// local patches a was last updated with. Collective when distributed.
func WriteFaceConnectivity(w io.Writer, a *AMI, src, tgt *patch.Patch) (err error) {
	t, err := a.current()
	if err != nil {
		return err
	}
	var sizeErr error
	if src.NFaces() != len(t.src.address) {
		sizeErr = fmt.Errorf("source patch has %d faces, the interface %d", src.NFaces(), len(t.src.address))
	}
	tgtCentres, err := gather(a.comm, t, t.src, tgt.FaceCentres())
	if err = multierr.Append(sizeErr, err); err != nil {
		return
	}
	var (
		obj     = geometry3D.NewOBJWriter(w)
		centres = src.FaceCentres()
	)
	for i, addr := range t.src.address {
		for _, k := range addr {
			obj.Line(centres[i], tgtCentres[k])
		}
	}
	return obj.Err()
}
