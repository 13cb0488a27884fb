package ami

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/notargets/goami/parallel"
)

// NewAgglomerated builds the interface between coarse patches whose faces
// are unions of fine faces; srcRestrict and tgtRestrict give the coarse face
// of every local fine face. Coarse overlaps are sums of the fine ones and
// are normalised again on the coarse areas. Collective.
func NewAgglomerated(fine *AMI, srcRestrict, tgtRestrict []int) (a *AMI, err error) {
	ft, err := fine.current()
	if err != nil {
		return nil, err
	}
	c := fine.comm
	nSrcCoarse, err := checkRestrict("source", srcRestrict, len(ft.src.magSf))
	nTgtCoarse, err2 := checkRestrict("target", tgtRestrict, len(ft.tgt.magSf))
	err = multierr.Append(err, err2)
	if parallel.AnyTrue(c, err != nil) {
		if err == nil {
			err = parallel.ErrAborted
		}
		return nil, err
	}

	a = &AMI{comm: c, opts: fine.opts, tri: fine.tri, agglomerated: true}
	t := &tables{
		singlePatchProc: ft.singlePatchProc,
		src: &side{name: ft.src.name, nbrName: ft.src.nbrName, nbrSize: nTgtCoarse,
			magSf: restrictAreas(ft.src.magSf, srcRestrict, nSrcCoarse)},
		tgt: &side{name: ft.tgt.name, nbrName: ft.tgt.nbrName, nbrSize: nSrcCoarse,
			magSf: restrictAreas(ft.tgt.magSf, tgtRestrict, nTgtCoarse)},
	}
	if ft.singlePatchProc >= 0 {
		t.src.address, t.src.weights = agglomerate(ft.src, srcRestrict, tgtRestrict, nSrcCoarse)
		t.tgt.address, t.tgt.weights = agglomerate(ft.tgt, tgtRestrict, srcRestrict, nTgtCoarse)
	} else if err = agglomerateDistributed(c, ft, t, srcRestrict, tgtRestrict); err != nil {
		return nil, err
	}
	opts := &a.opts
	t.src.normalise(opts.WeightMode, opts)
	t.tgt.normalise(opts.WeightMode, opts)
	t.report = gatherReport(c, Report{Agglomerated: true}, t)
	t.report.SinglePatchProc = t.singlePatchProc
	t.report.log(opts, c.IsMaster())
	a.t = t
	return
}

func checkRestrict(name string, restrict []int, nFine int) (nCoarse int, err error) {
	if len(restrict) != nFine {
		return 0, fmt.Errorf("%s restriction has %d entries for %d faces", name, len(restrict), nFine)
	}
	for i, r := range restrict {
		if r < 0 {
			return 0, fmt.Errorf("%s restriction of face %d is negative (%d)", name, i, r)
		}
	}
	return coarseSize(restrict), nil
}

func coarseSize(restrict []int) (n int) {
	for _, r := range restrict {
		if r+1 > n {
			n = r + 1
		}
	}
	return
}

func restrictAreas(magSf []float64, restrict []int, nCoarse int) (coarse []float64) {
	coarse = make([]float64, nCoarse)
	for i, a := range magSf {
		coarse[restrict[i]] += a
	}
	return
}

// agglomerate sums the fine overlap areas of s per pair of coarse faces.
// nbrCoarse gives the coarse address of every fine address of s. Entries of
// a coarse face keep the order in which their pair first appears.
func agglomerate(s *side, restrict, nbrCoarse []int, nCoarse int) (addr [][]int, wght [][]float64) {
	addr = make([][]int, nCoarse)
	wght = make([][]float64, nCoarse)
	pos := make([]map[int]int, nCoarse)
	for i, fineAddr := range s.address {
		I := restrict[i]
		if pos[I] == nil {
			pos[I] = make(map[int]int)
		}
		for k, j := range fineAddr {
			var (
				J       = nbrCoarse[j]
				overlap = s.weights[i][k] * s.magSf[i] / s.norm[i]
			)
			at, ok := pos[I][J]
			if !ok {
				at = len(addr[I])
				pos[I][J] = at
				addr[I] = append(addr[I], J)
				wght[I] = append(wght[I], 0)
			}
			wght[I][at] += overlap
		}
	}
	return
}

// agglomerateDistributed gathers the coarse global id of every fine address
// through the fine maps, sums the overlaps per coarse pair and renumbers the
// coarse addresses into new maps. Collective.
func agglomerateDistributed(c *parallel.Comm, ft *tables, t *tables, srcRestrict, tgtRestrict []int) (err error) {
	var (
		me       = c.Rank()
		srcGI    = parallel.NewGlobalIndex(c, len(t.src.magSf))
		tgtGI    = parallel.NewGlobalIndex(c, len(t.tgt.magSf))
		toGlobal = func(gi *parallel.GlobalIndex, restrict []int) (g []int) {
			g = make([]int, len(restrict))
			for i, r := range restrict {
				g[i] = gi.ToGlobal(me, r)
			}
			return
		}
		tgtCoarse = parallel.Distribute(c, ft.src.nbrMap, toGlobal(tgtGI, tgtRestrict))
		srcCoarse = parallel.Distribute(c, ft.tgt.nbrMap, toGlobal(srcGI, srcRestrict))
	)
	t.src.address, t.src.weights = agglomerate(ft.src, srcRestrict, tgtCoarse, len(t.src.magSf))
	t.tgt.address, t.tgt.weights = agglomerate(ft.tgt, tgtRestrict, srcCoarse, len(t.tgt.magSf))
	if t.src.nbrMap, err = parallel.NewMapFromGlobal(c, tgtGI, t.src.address); err != nil {
		return fmt.Errorf("coarse source map: %w", err)
	}
	if t.tgt.nbrMap, err = parallel.NewMapFromGlobal(c, srcGI, t.tgt.address); err != nil {
		return fmt.Errorf("coarse target map: %w", err)
	}
	return
}
