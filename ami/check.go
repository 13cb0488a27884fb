package ami

import (
	"fmt"

	"go.uber.org/multierr"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/goami/geometry3D"
	"github.com/notargets/goami/parallel"
	"github.com/notargets/goami/patch"
)

var (
	// a patch whose vector area is at least this fraction of its area is
	// treated as planar for the orientation check
	planarFraction = 0.9
	// the target box is grown by this fraction of its span before it must
	// hold the source box
	boundsInflation = 0.05
)

type patchSummary struct {
	VecArea r3.Vec
	Area    float64
	Bounds  r3.Box
}

func summarise(p *patch.Patch) (ps patchSummary) {
	ps.Bounds = p.Bounds()
	for i, va := range p.FaceAreaVectors() {
		ps.VecArea = r3.Add(ps.VecArea, va)
		ps.Area += p.FaceAreas()[i]
	}
	return
}

func (ps patchSummary) merge(o patchSummary) patchSummary {
	return patchSummary{
		VecArea: r3.Add(ps.VecArea, o.VecArea),
		Area:    ps.Area + o.Area,
		Bounds:  geometry3D.Union(ps.Bounds, o.Bounds),
	}
}

func (ps patchSummary) planar() bool {
	return ps.Area > 0 && r3.Norm(ps.VecArea) >= planarFraction*ps.Area
}

// checkPatches rejects malformed faces and, for planar patches, normals
// that do not face the way reverseTarget says. A target box that does not
// cover the source box is only reported. Collective, the error is agreed
// on by every rank.
func checkPatches(c *parallel.Comm, src, tgt *patch.Patch, reverseTarget bool) (boundsMismatch bool, err error) {
	err = multierr.Append(src.Check(), tgt.Check())
	if parallel.AnyTrue(c, err != nil) {
		if err == nil {
			err = parallel.ErrAborted
		}
		return
	}
	var (
		s, t patchSummary
		all  = parallel.AllGather(c, [2]patchSummary{summarise(src), summarise(tgt)})
	)
	for p, pair := range all {
		if p == 0 {
			s, t = pair[0], pair[1]
			continue
		}
		s, t = s.merge(pair[0]), t.merge(pair[1])
	}
	if s.planar() && t.planar() {
		cos := r3.Dot(s.VecArea, t.VecArea) / (r3.Norm(s.VecArea) * r3.Norm(t.VecArea))
		switch {
		case !reverseTarget && cos > 0:
			err = fmt.Errorf("patches %s and %s face the same way (cos %.3g), expected opposed normals",
				src.Name, tgt.Name, cos)
		case reverseTarget && cos < 0:
			err = fmt.Errorf("patches %s and %s face opposite ways (cos %.3g) with a reversed target",
				src.Name, tgt.Name, cos)
		}
		if err != nil {
			return
		}
	}
	if !geometry3D.IsEmpty(s.Bounds) && !geometry3D.IsEmpty(t.Bounds) {
		grown := geometry3D.Inflate(t.Bounds, boundsInflation, 0)
		boundsMismatch = !geometry3D.Contains(grown, s.Bounds.Min) || !geometry3D.Contains(grown, s.Bounds.Max)
	}
	return
}
