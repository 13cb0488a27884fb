package ami

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/goami/geometry3D"
	"github.com/notargets/goami/patch"
	"github.com/notargets/goami/search"
)

type marchState int

const (
	seekStart marchState = iota
	expandFront
	exhausted
)

var (
	// neighbours folding back by more than this are not walked onto
	cosMaxNbrAngle = math.Cos(89 * math.Pi / 180)
	// seed candidates taken from the centre tree when no box is close
	nSeedCandidates = 8
	// source face boxes are grown by this fraction when looking for seeds
	seedBoxInflation = 1e-2
)

// matcher builds raw address and weight lists between two patches that are
// complete for the region being matched.
type matcher struct {
	src, tgt         *patch.Patch
	fi               *geometry3D.FaceIntersect
	reverse          bool
	tol              float64
	restartThreshold float64
	disableRestart   bool
	rnd              *rand.Rand

	tgtTree    *search.BVH
	tgtCentres *search.CentreTree
	srcTree    *search.BVH // only for the uncovered target pass
	srcCentres *search.CentreTree

	srcAddr [][]int
	srcWght [][]float64
	tgtAddr [][]int
	tgtWght [][]float64

	obj           *geometry3D.OBJWriter
	nDegenerate   int
	nRestartedSrc int
	nRestartedTgt int
}

func newMatcher(src, tgt *patch.Patch, tri geometry3D.Triangulator, opts *Options) (m *matcher) {
	m = &matcher{
		src:              src,
		tgt:              tgt,
		fi:               geometry3D.NewFaceIntersect(tri),
		reverse:          opts.ReverseTarget,
		tol:              opts.Tolerance,
		restartThreshold: opts.RestartThreshold,
		disableRestart:   opts.DisableRestart,
		rnd:              rand.New(rand.NewSource(opts.Seed)),
		srcAddr:          make([][]int, src.NFaces()),
		srcWght:          make([][]float64, src.NFaces()),
		tgtAddr:          make([][]int, tgt.NFaces()),
		tgtWght:          make([][]float64, tgt.NFaces()),
	}
	if opts.Debug != nil {
		m.obj = geometry3D.NewOBJWriter(opts.Debug)
	}
	m.tgtTree = search.NewBVH(tgt.FaceBoxes(), m.rnd)
	m.tgtCentres = search.NewCentreTree(tgt.FaceCentres())
	return
}

// run matches every source face, then re-marches poorly covered source
// faces and uncovered target faces. Every pair found has a source face of
// m.src, so matchers on different ranks never record the same pair.
func (m *matcher) run() {
	if m.src.NFaces() == 0 || m.tgt.NFaces() == 0 {
		return
	}
	m.calcAddressing()
	if m.disableRestart {
		return
	}
	m.restartUncoveredSourceFaces()
	m.restartUncoveredTargetFaces()
}

// interArea is the accepted overlap of a face pair, zero below tolerance.
func (m *matcher) interArea(srcI, tgtI int) (area float64) {
	n, ok := geometry3D.IntersectionDirection(
		m.src.FaceNormals()[srcI], m.tgt.FaceNormals()[tgtI], m.reverse)
	if !ok {
		m.nDegenerate++
		return 0
	}
	area = m.fi.Area(m.src.Face(srcI), m.tgt.Face(tgtI), n)
	if area <= m.tol*m.src.FaceAreas()[srcI] {
		return 0
	}
	return
}

func (m *matcher) record(srcI, tgtI int, area float64) {
	m.srcAddr[srcI] = append(m.srcAddr[srcI], tgtI)
	m.srcWght[srcI] = append(m.srcWght[srcI], area)
	m.tgtAddr[tgtI] = append(m.tgtAddr[tgtI], srcI)
	m.tgtWght[tgtI] = append(m.tgtWght[tgtI], area)
	if m.obj != nil {
		m.writeIntersection(srcI, tgtI, area)
	}
}

// visitList remembers the faces tested against one source face in the
// order they were tested.
type visitList struct {
	order []int
	seen  map[int]bool
}

func newVisitList() *visitList { return &visitList{seen: make(map[int]bool)} }

func (v *visitList) add(i int) {
	if !v.seen[i] {
		v.seen[i] = true
		v.order = append(v.order, i)
	}
}

// processSourceFace walks the target patch breadth first from tgtStart,
// recording every overlap of srcI. Only overlapping faces are expanded.
func (m *matcher) processSourceFace(srcI, tgtStart int, visited *visitList) (processed bool) {
	if tgtStart < 0 || visited.seen[tgtStart] {
		return false
	}
	var (
		normals = m.tgt.FaceNormals()
		queue   = []int{tgtStart}
		queued  = map[int]bool{tgtStart: true}
	)
	for len(queue) != 0 {
		tgtI := queue[0]
		queue = queue[1:]
		visited.add(tgtI)
		area := m.interArea(srcI, tgtI)
		if area == 0 {
			continue
		}
		m.record(srcI, tgtI, area)
		processed = true
		for _, nbr := range m.tgt.FaceFaces()[tgtI] {
			if queued[nbr] || visited.seen[nbr] {
				continue
			}
			if r3.Dot(normals[tgtI], normals[nbr]) <= cosMaxNbrAngle {
				continue
			}
			queued[nbr] = true
			queue = append(queue, nbr)
		}
	}
	return
}

// calcAddressing runs the marching front over all source faces in native
// order, each face going through seekStart, expandFront and exhausted.
func (m *matcher) calcAddressing() {
	var (
		nSrc       = m.src.NFaces()
		mapFlag    = make([]bool, nSrc) // still to be mapped
		seeds      = make([]int, nSrc)
		searched   = make([]bool, nSrc) // a fresh seed search failed
		nRemaining = nSrc
		startSeedI int
		srcI       int
		tgtI       = -1
		visited    *visitList
	)
	for i := range mapFlag {
		mapFlag[i] = true
		seeds[i] = -1
	}
	for srcI = 0; srcI < nSrc; srcI++ {
		if tgtI = m.findTargetFace(srcI, m.src.FaceCentres()[srcI]); tgtI >= 0 {
			break
		}
		searched[srcI] = true
	}
	if tgtI < 0 {
		// nothing overlaps anywhere, every face stays empty
		return
	}
	state := expandFront
	for {
		switch state {
		case seekStart:
			srcI, tgtI = m.setNextFaces(srcI, visited, mapFlag, seeds, searched, &startSeedI)
			state = expandFront
		case expandFront:
			visited = newVisitList()
			m.processSourceFace(srcI, tgtI, visited)
			mapFlag[srcI] = false
			nRemaining--
			state = exhausted
		case exhausted:
			if nRemaining == 0 {
				return
			}
			state = seekStart
		}
	}
}

// setNextFaces picks the next source face and its seed. Unmapped neighbours
// of the face just processed are tested against the target faces it
// visited; the first hit is used and the others keep their seed for later.
// Failing that, the lowest unmapped face with a stored seed, then a fresh
// search from the lowest unmapped faces. A face without any seed is returned
// with -1 so it ends up empty.
func (m *matcher) setNextFaces(srcI int, visited *visitList, mapFlag []bool, seeds []int,
	searched []bool, startSeedI *int) (nextSrc, nextTgt int) {
	nextSrc, nextTgt = -1, -1
	for _, nbr := range m.src.FaceFaces()[srcI] {
		if !mapFlag[nbr] || seeds[nbr] >= 0 {
			continue
		}
		for _, tgtI := range visited.order {
			if m.interArea(nbr, tgtI) > 0 {
				seeds[nbr] = tgtI
				break
			}
		}
		if seeds[nbr] >= 0 && nextSrc < 0 {
			nextSrc, nextTgt = nbr, seeds[nbr]
		}
	}
	if nextSrc >= 0 {
		return
	}
	first := true
	for i := *startSeedI; i < len(mapFlag); i++ {
		if !mapFlag[i] {
			continue
		}
		if first {
			*startSeedI = i
			first = false
		}
		if seeds[i] >= 0 {
			return i, seeds[i]
		}
	}
	fallback := -1
	for i := *startSeedI; i < len(mapFlag); i++ {
		if !mapFlag[i] {
			continue
		}
		if fallback < 0 {
			fallback = i
		}
		if searched[i] {
			continue
		}
		searched[i] = true
		if tgtI := m.findTargetFace(i, m.src.FaceCentres()[i]); tgtI >= 0 {
			return i, tgtI
		}
	}
	return fallback, -1
}

// findTargetFace seeds source face srcI from point p: the nearest target
// face within a squared distance of ten face areas, then target faces whose
// boxes overlap the source face nearest first, then the nearest target
// centres. A seed must overlap the source face.
func (m *matcher) findTargetFace(srcI int, p r3.Vec) int {
	return findSeed(p, m.src.FaceAreas()[srcI], m.src.FaceBoxes()[srcI],
		m.tgt, m.tgtTree, m.tgtCentres,
		func(tgtI int) bool { return m.interArea(srcI, tgtI) > 0 })
}

func findSeed(p r3.Vec, area float64, bb r3.Box, other *patch.Patch, tree *search.BVH,
	centres *search.CentreTree, overlaps func(i int) bool) int {
	tried := make(map[int]bool)
	try := func(i int) bool {
		if i < 0 || tried[i] {
			return false
		}
		tried[i] = true
		return overlaps(i)
	}
	nearest, _ := tree.Nearest(p, 10*area, func(i int) float64 {
		return geometry3D.Dist2ToPolygon(p, other.Face(i))
	})
	if try(nearest) {
		return nearest
	}
	var (
		cands = tree.Overlapping(geometry3D.Inflate(bb, seedBoxInflation, 0))
		dist2 = make([]float64, len(cands))
		ctrs  = other.FaceCentres()
	)
	for k, i := range cands {
		dist2[k] = r3.Norm2(r3.Sub(ctrs[i], p))
	}
	sort.Sort(byDistance{cands, dist2})
	for _, i := range cands {
		if try(i) {
			return i
		}
	}
	for _, i := range centres.NearestN(p, nSeedCandidates) {
		if try(i) {
			return i
		}
	}
	return -1
}

type byDistance struct {
	ids   []int
	dist2 []float64
}

func (b byDistance) Len() int { return len(b.ids) }
func (b byDistance) Less(i, j int) bool {
	if b.dist2[i] != b.dist2[j] {
		return b.dist2[i] < b.dist2[j]
	}
	return b.ids[i] < b.ids[j]
}
func (b byDistance) Swap(i, j int) {
	b.ids[i], b.ids[j] = b.ids[j], b.ids[i]
	b.dist2[i], b.dist2[j] = b.dist2[j], b.dist2[i]
}

// restartUncoveredSourceFaces re-marches source faces covered less than
// restartThreshold of their area, seeding from the face centre and every
// vertex so that a face straddling disconnected target regions is found
// from each side.
func (m *matcher) restartUncoveredSourceFaces() {
	var (
		areas = m.src.FaceAreas()
		low   = make(map[int]bool)
		order []int
	)
	for i, w := range m.srcWght {
		if floats.Sum(w) < m.restartThreshold*areas[i] {
			low[i] = true
			order = append(order, i)
		}
	}
	if len(order) == 0 {
		return
	}
	for tgtI, addr := range m.tgtAddr {
		var (
			keepA []int
			keepW []float64
		)
		for k, srcI := range addr {
			if !low[srcI] {
				keepA = append(keepA, srcI)
				keepW = append(keepW, m.tgtWght[tgtI][k])
			}
		}
		m.tgtAddr[tgtI], m.tgtWght[tgtI] = keepA, keepW
	}
	for _, srcI := range order {
		m.srcAddr[srcI], m.srcWght[srcI] = nil, nil
		var (
			visited = newVisitList()
			seedPts = append([]r3.Vec{m.src.FaceCentres()[srcI]}, m.src.Face(srcI)...)
		)
		for _, p := range seedPts {
			if tgtI := m.findTargetFace(srcI, p); tgtI >= 0 && !visited.seen[tgtI] {
				m.processSourceFace(srcI, tgtI, visited)
			}
		}
		if len(m.srcAddr[srcI]) != 0 {
			m.nRestartedSrc++
		}
	}
}

// restartUncoveredTargetFaces seeds every target face left without
// entries from a source side index and walks the source patch from there.
// Coverage stays best effort; faces still empty are reported.
func (m *matcher) restartUncoveredTargetFaces() {
	var empty []int
	for tgtI, addr := range m.tgtAddr {
		if len(addr) == 0 {
			empty = append(empty, tgtI)
		}
	}
	if len(empty) == 0 {
		return
	}
	if m.srcTree == nil {
		m.srcTree = search.NewBVH(m.src.FaceBoxes(), m.rnd)
		m.srcCentres = search.NewCentreTree(m.src.FaceCentres())
	}
	for _, tgtI := range empty {
		srcI := findSeed(m.tgt.FaceCentres()[tgtI], m.tgt.FaceAreas()[tgtI], m.tgt.FaceBoxes()[tgtI],
			m.src, m.srcTree, m.srcCentres,
			func(srcI int) bool { return m.interArea(srcI, tgtI) > 0 })
		if srcI >= 0 && m.processTargetFace(tgtI, srcI) {
			m.nRestartedTgt++
		}
	}
}

// processTargetFace is processSourceFace with the roles swapped. The
// target face has no entries yet so no pair can be recorded twice.
func (m *matcher) processTargetFace(tgtI, srcStart int) (processed bool) {
	var (
		normals = m.src.FaceNormals()
		queue   = []int{srcStart}
		queued  = map[int]bool{srcStart: true}
	)
	for len(queue) != 0 {
		srcI := queue[0]
		queue = queue[1:]
		area := m.interArea(srcI, tgtI)
		if area == 0 {
			continue
		}
		m.record(srcI, tgtI, area)
		processed = true
		for _, nbr := range m.src.FaceFaces()[srcI] {
			if queued[nbr] || r3.Dot(normals[srcI], normals[nbr]) <= cosMaxNbrAngle {
				continue
			}
			queued[nbr] = true
			queue = append(queue, nbr)
		}
	}
	return
}
