package ami

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/goami/patch"
)

func TestCombineOps(t *testing.T) {
	var (
		values  = []float64{3, -1, 7}
		weights = []float64{0.2, 0.5, 0.3}
	)
	assert.InDelta(t, 0.6-0.5+2.1, ScalarSum().Reduce(values, weights), 1e-14)
	assert.Equal(t, -1., Min[float64]{}.Reduce(values, weights))
	assert.Equal(t, 7., Max[float64]{}.Reduce(values, weights))
	assert.Equal(t, 3., First[float64]{}.Reduce(values, weights))
	assert.Equal(t, -1., MaxWeight[float64]{}.Reduce(values, weights))
	assert.Equal(t, 0., First[float64]{}.Reduce(nil, nil))
	{ // Ties in MaxWeight go to the first
		assert.Equal(t, "a", MaxWeight[string]{}.Reduce([]string{"a", "b"}, []float64{0.5, 0.5}))
	}
	{ // Vectors
		v := VecSum().Reduce([]r3.Vec{{X: 1}, {Y: 2}}, []float64{0.5, 0.5})
		assert.Equal(t, r3.Vec{X: 0.5, Y: 1}, v)
	}
	{ // A fold counting contributions above a weight
		count := Fold[int](func(acc, _ int, w float64, first bool) int {
			if w > 0.25 {
				acc++
			}
			return acc
		})
		assert.Equal(t, 2, count.Reduce([]int{0, 0, 0}, weights))
	}
	{ // Ordered types other than numbers
		assert.Equal(t, "apple", Min[string]{}.Reduce([]string{"pear", "apple", "fig"}, nil))
	}
}

func TestNormaliseWeights(t *testing.T) {
	var (
		magSf = []float64{1, 2, 1}
		addr  = [][]int{{0}, {0, 1}, nil}
	)
	{ // Area weights
		wght := [][]float64{{0.5}, {1, 1}, nil}
		sums, nonOverlap, st := normaliseWeights(magSf, addr, wght, AreaWeights, 1e-6, 0.6)
		assert.Equal(t, []float64{0.5, 2, 0}, sums)
		assert.Equal(t, []int{2}, nonOverlap)
		assert.Equal(t, [][]float64{{1}, {1, 1}, nil}, wght)
		assert.Equal(t, WeightStats{NFaces: 2, Min: 0.5, Max: 1, Sum: 1.5, NDeviating: 1, NLowWeight: 1}, st)
		assert.Equal(t, 0.75, st.Average())
	}
	{ // Fraction weights
		wght := [][]float64{{0.5}, {1, 3}, nil}
		_, _, st := normaliseWeights(magSf, addr, wght, FractionWeights, 1e-6, 1e-3)
		assert.Equal(t, [][]float64{{1}, {0.25, 0.75}}, wght[:2])
		assert.Equal(t, 2, st.NDeviating)
		assert.Equal(t, []float64{1, 1, 1}, normalisation(magSf, FractionWeights))
		assert.Equal(t, magSf, normalisation(magSf, AreaWeights))
	}
	{ // Merging across ranks
		a := WeightStats{NFaces: 1, Min: 0.5, Max: 0.5, Sum: 0.5}
		b := WeightStats{NFaces: 2, Min: 0.9, Max: 1.2, Sum: 2.1, NDeviating: 2}
		m := a.merge(b).merge(WeightStats{})
		assert.Equal(t, WeightStats{NFaces: 3, Min: 0.5, Max: 1.2, Sum: 2.6, NDeviating: 2}, m)
		assert.Equal(t, b, WeightStats{}.merge(b))
	}
}

func TestParseWeightMode(t *testing.T) {
	for _, wm := range []WeightMode{AreaWeights, FractionWeights} {
		got, err := ParseWeightMode(wm.String())
		require.NoError(t, err)
		assert.Equal(t, wm, got)
	}
	_, err := ParseWeightMode("volume")
	assert.Error(t, err)
	assert.Equal(t, "WeightMode(7)", WeightMode(7).String())
}

func TestAgglomeration(t *testing.T) {
	var (
		src = patch.UnitSquare("src", 2, 0, false)
		tgt = patch.UnitSquare("tgt", 4, 0, true)
		// source rows, target 2x2 blocks
		srcRestrict = []int{0, 0, 1, 1}
		tgtRestrict = make([]int, tgt.NFaces())
	)
	for j := range tgtRestrict {
		ix, iy := j%4, j/4
		tgtRestrict[j] = (iy/2)*2 + ix/2
	}
	fine, err := New(nil, src, tgt, quietOptions())
	require.NoError(t, err)
	coarse, err := NewAgglomerated(fine, srcRestrict, tgtRestrict)
	require.NoError(t, err)
	{ // Coarse areas and conservation
		assert.InDeltaSlice(t, []float64{0.5, 0.5}, coarse.SrcMagSf(), 1e-15)
		assert.InDeltaSlice(t, []float64{0.25, 0.25, 0.25, 0.25}, coarse.TgtMagSf(), 1e-15)
		for i, w := range coarse.SrcWeights() {
			assert.InDelta(t, coarse.SrcMagSf()[i], floats.Sum(w), 1e-12)
			assert.InDelta(t, coarse.SrcMagSf()[i], coarse.SrcWeightsSum()[i], 1e-12)
		}
		for j, w := range coarse.TgtWeights() {
			assert.InDelta(t, coarse.TgtMagSf()[j], floats.Sum(w), 1e-12)
		}
		assert.Equal(t, []int{0, 1}, sortedCopy(coarse.SrcAddress()[0]))
		assert.Equal(t, []int{2, 3}, sortedCopy(coarse.SrcAddress()[1]))
		assert.True(t, coarse.Report().Agglomerated)
	}
	{ // Piecewise constant fields give the fine result averaged per group
		fld := make([]float64, tgt.NFaces())
		for j, r := range tgtRestrict {
			fld[j] = float64(3*r + 1)
		}
		fineRes, err := InterpolateToSource(fine, fld, ScalarSum())
		require.NoError(t, err)
		coarseRes, err := InterpolateToSource(coarse, []float64{1, 4, 7, 10}, ScalarSum())
		require.NoError(t, err)
		for I := range coarseRes {
			var sum, area float64
			for i, r := range srcRestrict {
				if r == I {
					sum += fineRes[i] * src.FaceAreas()[i]
					area += src.FaceAreas()[i]
				}
			}
			assert.InDelta(t, sum/area, coarseRes[I], 1e-12)
		}
		onTgt, err := InterpolateToTarget(coarse, []float64{2, 6}, ScalarSum())
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{2, 2, 6, 6}, onTgt, 1e-12)
	}
	{ // Bad restrictions and updates
		_, err := NewAgglomerated(fine, []int{0, 1}, tgtRestrict)
		assert.Error(t, err)
		_, err = NewAgglomerated(fine, []int{0, -1, 0, 0}, tgtRestrict)
		assert.Error(t, err)
		assert.Error(t, coarse.Update(src, tgt))
	}
}
