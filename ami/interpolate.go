package ami

import (
	"cmp"
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/goami/parallel"
)

type Direction int

const (
	ToSource Direction = iota
	ToTarget
)

func (d Direction) String() string {
	if d == ToSource {
		return "toSource"
	}
	return "toTarget"
}

// CombineOp reduces the contributions to one face. Weights are fractions
// that sum to one over the face. The slices are only valid during the call.
type CombineOp[T any] interface {
	Reduce(values []T, weights []float64) T
}

// Fold adapts a left fold over (value, weight) pairs; first is set for the
// first contribution, whose acc is the zero value.
type Fold[T any] func(acc, value T, weight float64, first bool) T

func (f Fold[T]) Reduce(values []T, weights []float64) (acc T) {
	for i, v := range values {
		acc = f(acc, v, weights[i], i == 0)
	}
	return
}

// WeightedSum is the conservative transfer, sum of weight * value.
type WeightedSum[T any] struct {
	Add   func(a, b T) T
	Scale func(w float64, a T) T
}

func (ws WeightedSum[T]) Reduce(values []T, weights []float64) (acc T) {
	for i, v := range values {
		if i == 0 {
			acc = ws.Scale(weights[i], v)
			continue
		}
		acc = ws.Add(acc, ws.Scale(weights[i], v))
	}
	return
}

func ScalarSum() CombineOp[float64] {
	return WeightedSum[float64]{
		Add:   func(a, b float64) float64 { return a + b },
		Scale: func(w, a float64) float64 { return w * a },
	}
}

func VecSum() CombineOp[r3.Vec] {
	return WeightedSum[r3.Vec]{Add: r3.Add, Scale: r3.Scale}
}

type Min[T cmp.Ordered] struct{}

func (Min[T]) Reduce(values []T, _ []float64) (acc T) {
	for i, v := range values {
		if i == 0 || v < acc {
			acc = v
		}
	}
	return
}

type Max[T cmp.Ordered] struct{}

func (Max[T]) Reduce(values []T, _ []float64) (acc T) {
	for i, v := range values {
		if i == 0 || v > acc {
			acc = v
		}
	}
	return
}

// First takes the first contribution in address order.
type First[T any] struct{}

func (First[T]) Reduce(values []T, _ []float64) (acc T) {
	if len(values) != 0 {
		acc = values[0]
	}
	return
}

// MaxWeight takes the value of the largest overlap, the earliest on ties.
type MaxWeight[T any] struct{}

func (MaxWeight[T]) Reduce(values []T, weights []float64) (acc T) {
	best := -1.
	for i, v := range values {
		if weights[i] > best {
			acc, best = v, weights[i]
		}
	}
	return
}

// InterpolateToSource maps a field on the target faces held by this rank
// onto the local source faces. Collective in distributed mode.
func InterpolateToSource[T any](a *AMI, fld []T, cop CombineOp[T]) ([]T, error) {
	return Interpolate(a, ToSource, fld, cop)
}

// InterpolateToTarget maps a field on the local source faces onto the
// local target faces. Collective in distributed mode.
func InterpolateToTarget[T any](a *AMI, fld []T, cop CombineOp[T]) ([]T, error) {
	return Interpolate(a, ToTarget, fld, cop)
}

// Interpolate reduces, for every destination face, the values of fld at its
// addresses with their weight fractions. Faces without entries get the zero
// value.
func Interpolate[T any](a *AMI, dir Direction, fld []T, cop CombineOp[T]) (result []T, err error) {
	t, err := a.current()
	if err != nil {
		return nil, err
	}
	var (
		s           = t.side(dir)
		constructed []T
	)
	if constructed, err = gather(a.comm, t, s, fld); err != nil {
		return nil, err
	}
	result = make([]T, len(s.address))
	var (
		values  []T
		weights []float64
	)
	for i, addr := range s.address {
		if len(addr) == 0 {
			continue
		}
		values, weights = values[:0], weights[:0]
		for j, k := range addr {
			values = append(values, constructed[k])
			weights = append(weights, s.weights[i][j]/s.norm[i])
		}
		result[i] = cop.Reduce(values, weights)
	}
	return
}

// gather checks fld against the opposite side's local size and, in
// distributed mode, collects the remote values the addresses refer to.
func gather[T any](c *parallel.Comm, t *tables, s *side, fld []T) (constructed []T, err error) {
	if len(fld) != s.nbrSize {
		err = fmt.Errorf("field has %d values, expected %d for the %s patch",
			len(fld), s.nbrSize, s.nbrName)
	}
	if t.singlePatchProc >= 0 {
		return fld, err
	}
	// every rank must reach the exchange or none
	if parallel.AnyTrue(c, err != nil) {
		if err == nil {
			err = parallel.ErrAborted
		}
		return nil, err
	}
	return parallel.Distribute(c, s.nbrMap, fld), nil
}

func (a *AMI) InterpolateScalarToSource(fld []float64) ([]float64, error) {
	return a.interpolateScalar(ToSource, fld)
}

func (a *AMI) InterpolateScalarToTarget(fld []float64) ([]float64, error) {
	return a.interpolateScalar(ToTarget, fld)
}

// interpolateScalar multiplies the weight fraction matrix of one direction
// with the gathered field.
func (a *AMI) interpolateScalar(dir Direction, fld []float64) (result []float64, err error) {
	t, err := a.current()
	if err != nil {
		return nil, err
	}
	s := t.side(dir)
	constructed, err := gather(a.comm, t, s, fld)
	if err != nil {
		return nil, err
	}
	result = make([]float64, len(s.address))
	W := s.weightMatrix(len(constructed))
	if W == nil {
		return
	}
	var y mat.VecDense
	y.MulVec(W, mat.NewVecDense(len(constructed), constructed))
	for i := range result {
		result[i] = y.AtVec(i)
	}
	return
}

// weightMatrix assembles the weight fractions as a CSR matrix with one row
// per face and one column per gathered value, nil when either is empty.
func (s *side) weightMatrix(nCols int) *sparse.CSR {
	s.csrOnce.Do(func() {
		if len(s.address) == 0 || nCols == 0 {
			return
		}
		dok := sparse.NewDOK(len(s.address), nCols)
		for i, addr := range s.address {
			for j, k := range addr {
				dok.Set(i, k, dok.At(i, k)+s.weights[i][j]/s.norm[i])
			}
		}
		s.csr = dok.ToCSR()
	})
	return s.csr
}
