package ami

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/goami/geometry3D"
	"github.com/notargets/goami/parallel"
	"github.com/notargets/goami/patch"
	"github.com/notargets/goami/search"
)

var (
	// source boxes are grown by this fraction before target faces are
	// matched against them, then perturbed like the search boxes
	procBoxInflation = 1e-2
	// received points closer than this fraction of the patch span are merged
	pointMergeTolerance = 1e-8
)

// calcDistribution returns the only rank holding faces of either patch, 0
// when no rank does, or -1 when faces are spread over several ranks.
// Collective.
func calcDistribution(c *parallel.Comm, src, tgt *patch.Patch) (proc int) {
	has := parallel.AllGather(c, src.NFaces() != 0 || tgt.NFaces() != 0)
	proc = 0
	n := 0
	for p, h := range has {
		if h {
			proc = p
			n++
		}
	}
	if n > 1 {
		return -1
	}
	return
}

// calcProcMap ships every local target face to each rank whose grown source
// box overlaps the face box. Collective.
func calcProcMap(c *parallel.Comm, src, tgt *patch.Patch, rnd *rand.Rand) *parallel.MapDistribute {
	bb := src.Bounds()
	if src.NFaces() != 0 {
		bb = geometry3D.Extend(geometry3D.Inflate(bb, procBoxInflation, 0), rnd, search.PerturbFraction)
	}
	var (
		procBoxes = parallel.AllGather(c, bb)
		sends     = make([][]int, c.Size())
		faceBoxes = tgt.FaceBoxes()
	)
	for p, pbb := range procBoxes {
		if geometry3D.IsEmpty(pbb) {
			continue
		}
		for i, fbb := range faceBoxes {
			if geometry3D.Overlaps(pbb, fbb) {
				sends[p] = append(sends[p], i)
			}
		}
	}
	return parallel.NewMapFromSends(c, sends)
}

// faceData carries one target face to another rank.
type faceData struct {
	GlobalID int
	Loop     []r3.Vec
}

// distributeAndMergePatches gathers the target faces planned by m into one
// patch, dropping faces received twice and merging coincident points so the
// merged faces are connected. For each merged face, gids holds its global id
// and slots its slot in the constructed array of m. Collective.
func distributeAndMergePatches(c *parallel.Comm, m *parallel.MapDistribute, tgt *patch.Patch,
	tgtGI *parallel.GlobalIndex) (merged *patch.Patch, gids, slots []int, err error) {
	local := make([]faceData, tgt.NFaces())
	for i := range local {
		local[i] = faceData{GlobalID: tgtGI.ToGlobal(c.Rank(), i), Loop: tgt.Face(i)}
	}
	var (
		constructed = parallel.Distribute(c, m, local)
		seen        = make(map[int]bool, len(constructed))
		bb          = geometry3D.EmptyBox()
		loops       [][]r3.Vec
	)
	for slot, fd := range constructed {
		if len(fd.Loop) < 3 || tgtGI.WhichProc(fd.GlobalID) < 0 {
			err = fmt.Errorf("received malformed target face %d with %d points", fd.GlobalID, len(fd.Loop))
			break
		}
		if seen[fd.GlobalID] {
			continue
		}
		seen[fd.GlobalID] = true
		gids = append(gids, fd.GlobalID)
		slots = append(slots, slot)
		loops = append(loops, fd.Loop)
		for _, p := range fd.Loop {
			bb = geometry3D.AddPoint(bb, p)
		}
	}
	if parallel.AnyTrue(c, err != nil) {
		if err == nil {
			err = parallel.ErrAborted
		}
		return nil, nil, nil, err
	}
	var (
		pm    = newPointMerger(bb)
		faces = make([][]int, len(loops))
	)
	for i, loop := range loops {
		faces[i] = make([]int, len(loop))
		for j, p := range loop {
			faces[i][j] = pm.index(p)
		}
	}
	merged = patch.New(tgt.Name, pm.points, faces)
	return
}

// pointMerger numbers points, giving points within tol of an earlier one
// that point's index. Points are hashed into cells of size tol so only the
// 27 surrounding cells need searching.
type pointMerger struct {
	tol, tol2 float64
	origin    r3.Vec
	cells     map[[3]int64][]int
	points    []r3.Vec
}

func newPointMerger(bb r3.Box) (pm *pointMerger) {
	pm = &pointMerger{cells: make(map[[3]int64][]int)}
	if geometry3D.IsEmpty(bb) {
		pm.tol = 1
	} else {
		pm.origin = bb.Min
		pm.tol = pointMergeTolerance * r3.Norm(geometry3D.Span(bb))
	}
	if pm.tol < geometry3D.ROOTVSMALL {
		pm.tol = geometry3D.ROOTVSMALL
	}
	pm.tol2 = pm.tol * pm.tol
	return
}

func (pm *pointMerger) cell(p r3.Vec) [3]int64 {
	d := r3.Sub(p, pm.origin)
	return [3]int64{
		int64(math.Floor(d.X / pm.tol)),
		int64(math.Floor(d.Y / pm.tol)),
		int64(math.Floor(d.Z / pm.tol)),
	}
}

func (pm *pointMerger) index(p r3.Vec) int {
	key := pm.cell(p)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				for _, i := range pm.cells[[3]int64{key[0] + dx, key[1] + dy, key[2] + dz}] {
					if r3.Norm2(r3.Sub(pm.points[i], p)) <= pm.tol2 {
						return i
					}
				}
			}
		}
	}
	i := len(pm.points)
	pm.points = append(pm.points, p)
	pm.cells[key] = append(pm.cells[key], i)
	return i
}

// tgtOverlaps carries the overlaps found for one target face back to the
// rank owning it, with source faces as global ids.
type tgtOverlaps struct {
	Src []int
	W   []float64
}

func (to tgtOverlaps) merge(o tgtOverlaps) tgtOverlaps {
	to.Src = append(to.Src, o.Src...)
	to.W = append(to.W, o.W...)
	return to
}

// updateDistributed matches the local source faces against the target faces
// gathered from every rank, then returns the target side of each overlap to
// the rank owning the target face along the same map. Addresses end up as
// slots of the constructed arrays of the two maps. Collective.
func (a *AMI) updateDistributed(t *tables, src, tgt *patch.Patch) (m *matcher, err error) {
	var (
		c     = a.comm
		me    = c.Rank()
		rnd   = rand.New(rand.NewSource(a.opts.Seed + int64(me)))
		srcGI = parallel.NewGlobalIndex(c, src.NFaces())
		tgtGI = parallel.NewGlobalIndex(c, tgt.NFaces())
	)
	procMap := calcProcMap(c, src, tgt, rnd)
	merged, gids, slots, err := distributeAndMergePatches(c, procMap, tgt, tgtGI)
	if err != nil {
		return nil, err
	}
	opts := a.opts
	if !c.IsMaster() {
		// one writer only, the sink is shared
		opts.Debug = nil
	}
	m = newMatcher(src, merged, a.tri, &opts)
	m.run()

	back := make([]tgtOverlaps, procMap.ConstructSize)
	for i, addr := range m.tgtAddr {
		if len(addr) == 0 {
			continue
		}
		to := tgtOverlaps{Src: make([]int, len(addr)), W: m.tgtWght[i]}
		for k, s := range addr {
			to.Src[k] = srcGI.ToGlobal(me, s)
		}
		back[slots[i]] = to
	}
	owned := parallel.ReverseDistribute(c, procMap, back, tgt.NFaces(), tgtOverlaps.merge)

	for _, addr := range m.srcAddr {
		for k, i := range addr {
			addr[k] = gids[i]
		}
	}
	if t.src.nbrMap, err = parallel.NewMapFromGlobal(c, tgtGI, m.srcAddr); err != nil {
		return nil, fmt.Errorf("source map: %w", err)
	}
	t.src.address, t.src.weights = m.srcAddr, m.srcWght

	var (
		addr = make([][]int, len(owned))
		wght = make([][]float64, len(owned))
	)
	for j, to := range owned {
		addr[j], wght[j] = to.Src, to.W
	}
	if t.tgt.nbrMap, err = parallel.NewMapFromGlobal(c, srcGI, addr); err != nil {
		return nil, fmt.Errorf("target map: %w", err)
	}
	t.tgt.address, t.tgt.weights = addr, wght
	return
}
