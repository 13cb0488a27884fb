// Package ami builds a conservative mapping between two non-matching
// surface patches: per-face lists of overlapping faces on the other patch
// with overlap area weights, and transfers fields through them.
package ami

import (
	"errors"
	"fmt"
	"sync"

	"github.com/james-bowman/sparse"

	"github.com/notargets/goami/geometry3D"
	"github.com/notargets/goami/parallel"
	"github.com/notargets/goami/patch"
)

// side holds the tables of one mapping direction: for each face of the
// destination patch, addresses into the (constructed) face list of the other
// patch and the matching weights.
type side struct {
	name       string
	address    [][]int
	weights    [][]float64
	weightsSum []float64 // raw, before normalisation
	magSf      []float64
	norm       []float64
	nonOverlap []int
	stats      WeightStats

	nbrName string
	nbrSize int                     // faces of the other patch on this rank
	nbrMap  *parallel.MapDistribute // nil unless distributed

	csrOnce sync.Once
	csr     *sparse.CSR
}

func (s *side) normalise(mode WeightMode, opts *Options) {
	s.weightsSum, s.nonOverlap, s.stats = normaliseWeights(s.magSf, s.address, s.weights,
		mode, opts.NormaliseTolerance, opts.LowWeightTolerance)
	s.norm = normalisation(s.magSf, mode)
}

type tables struct {
	src, tgt        *side
	singlePatchProc int
	report          Report
}

// side returns the tables producing values on the destination of dir.
func (t *tables) side(dir Direction) *side {
	if dir == ToSource {
		return t.src
	}
	return t.tgt
}

// AMI is one rank's view of the mapping. Collective methods must be called
// by every rank of the communicator.
type AMI struct {
	comm         *parallel.Comm
	opts         Options
	tri          geometry3D.Triangulator
	agglomerated bool

	mu sync.RWMutex
	t  *tables
}

// New matches src onto tgt. A nil comm runs serially. Collective.
func New(comm *parallel.Comm, src, tgt *patch.Patch, opts Options) (a *AMI, err error) {
	if comm == nil {
		comm = parallel.Serial()
	}
	a = &AMI{comm: comm, opts: opts}
	if a.tri, err = a.opts.resolve(); err != nil {
		return nil, err
	}
	if err = a.Update(src, tgt); err != nil {
		return nil, err
	}
	return
}

// Update discards the tables and rebuilds them for the given patches. On
// failure the previous tables are kept. Collective.
func (a *AMI) Update(src, tgt *patch.Patch) (err error) {
	if a.agglomerated {
		return errors.New("ami: an agglomerated interface cannot be updated, agglomerate the updated fine interface")
	}
	if src == nil {
		src = patch.New("source", nil, nil)
	}
	if tgt == nil {
		tgt = patch.New("target", nil, nil)
	}
	t, err := a.calcTables(src, tgt)
	if err != nil {
		return fmt.Errorf("ami %s -> %s: %w", src.Name, tgt.Name, err)
	}
	a.mu.Lock()
	a.t = t
	a.mu.Unlock()
	return
}

func (a *AMI) calcTables(src, tgt *patch.Patch) (t *tables, err error) {
	var (
		c    = a.comm
		opts = &a.opts
		rep  Report
	)
	if rep.BoundsMismatch, err = checkPatches(c, src, tgt, opts.ReverseTarget); err != nil {
		return nil, err
	}
	if opts.Surface != nil {
		src, tgt = src.Projected(opts.Surface), tgt.Projected(opts.Surface)
	}
	t = &tables{
		src: &side{name: src.Name, nbrName: tgt.Name, nbrSize: tgt.NFaces(), magSf: src.FaceAreas()},
		tgt: &side{name: tgt.Name, nbrName: src.Name, nbrSize: src.NFaces(), magSf: tgt.FaceAreas()},
	}
	t.singlePatchProc = calcDistribution(c, src, tgt)
	var m *matcher
	if t.singlePatchProc >= 0 {
		m = newMatcher(src, tgt, a.tri, opts)
		m.run()
		t.src.address, t.src.weights = m.srcAddr, m.srcWght
		t.tgt.address, t.tgt.weights = m.tgtAddr, m.tgtWght
	} else if m, err = a.updateDistributed(t, src, tgt); err != nil {
		return nil, err
	}
	t.src.normalise(opts.WeightMode, opts)
	t.tgt.normalise(opts.WeightMode, opts)
	rep.SinglePatchProc = t.singlePatchProc
	rep.NDegenerate, rep.NRestartedSrc, rep.NRestartedTgt = m.nDegenerate, m.nRestartedSrc, m.nRestartedTgt
	if m.obj != nil && m.obj.Err() != nil {
		opts.Logger.Printf("AMI: writing intersections: %v", m.obj.Err())
	}
	t.report = gatherReport(c, rep, t)
	t.report.log(opts, c.IsMaster())
	return
}

func (a *AMI) current() (*tables, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.t == nil {
		return nil, errors.New("ami: no tables, the last update failed")
	}
	return a.t, nil
}

func (a *AMI) mustTables() *tables {
	t, err := a.current()
	if err != nil {
		panic(err)
	}
	return t
}

func (a *AMI) Comm() *parallel.Comm { return a.comm }

func (a *AMI) Options() Options { return a.opts }

// Distributed reports whether interpolation exchanges data between ranks.
func (a *AMI) Distributed() bool { return a.mustTables().singlePatchProc < 0 }

// SinglePatchProc is the only rank holding faces, or -1 when distributed.
func (a *AMI) SinglePatchProc() int { return a.mustTables().singlePatchProc }

func (a *AMI) SrcAddress() [][]int { return a.mustTables().src.address }

func (a *AMI) SrcMagSf() []float64 { return a.mustTables().src.magSf }

func (a *AMI) SrcMap() *parallel.MapDistribute { return a.mustTables().src.nbrMap }

func (a *AMI) SrcNonOverlap() []int { return a.mustTables().src.nonOverlap }

func (a *AMI) SrcWeights() [][]float64 { return a.mustTables().src.weights }

func (a *AMI) SrcWeightsSum() []float64 { return a.mustTables().src.weightsSum }

func (a *AMI) TgtAddress() [][]int { return a.mustTables().tgt.address }

func (a *AMI) TgtMagSf() []float64 { return a.mustTables().tgt.magSf }

func (a *AMI) TgtMap() *parallel.MapDistribute { return a.mustTables().tgt.nbrMap }

func (a *AMI) TgtNonOverlap() []int { return a.mustTables().tgt.nonOverlap }

func (a *AMI) TgtWeights() [][]float64 { return a.mustTables().tgt.weights }

func (a *AMI) TgtWeightsSum() []float64 { return a.mustTables().tgt.weightsSum }

// Report summarises the last update over all ranks.
func (a *AMI) Report() Report { return a.mustTables().report }
