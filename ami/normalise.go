package ami

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// WeightStats summarises the raw weight sums of one side, as covered
// fractions sum/area over the faces that have entries.
type WeightStats struct {
	NFaces     int // faces with entries
	Min, Max   float64
	Sum        float64 // of the covered fractions, for averaging across ranks
	NDeviating int     // beyond the normalisation tolerance
	NLowWeight int     // below the low weight tolerance
}

func (ws WeightStats) Average() float64 {
	if ws.NFaces == 0 {
		return 0
	}
	return ws.Sum / float64(ws.NFaces)
}

func (ws WeightStats) merge(o WeightStats) WeightStats {
	switch {
	case o.NFaces == 0:
		return ws
	case ws.NFaces == 0:
		return o
	}
	return WeightStats{
		NFaces:     ws.NFaces + o.NFaces,
		Min:        math.Min(ws.Min, o.Min),
		Max:        math.Max(ws.Max, o.Max),
		Sum:        ws.Sum + o.Sum,
		NDeviating: ws.NDeviating + o.NDeviating,
		NLowWeight: ws.NLowWeight + o.NLowWeight,
	}
}

// normaliseWeights rescales each face's weights in place to sum to its
// area, or to one in fraction mode, and returns the raw sums. Faces with no
// entries or a zero sum are left alone and listed as non-overlapping.
func normaliseWeights(magSf []float64, addr [][]int, wght [][]float64, mode WeightMode,
	tol, lowTol float64) (sums []float64, nonOverlap []int, st WeightStats) {
	sums = make([]float64, len(wght))
	fractions := make([]float64, 0, len(wght))
	for i, w := range wght {
		sums[i] = floats.Sum(w)
		if len(addr[i]) == 0 || sums[i] == 0 {
			nonOverlap = append(nonOverlap, i)
			continue
		}
		fraction := sums[i] / magSf[i]
		fractions = append(fractions, fraction)
		if math.Abs(fraction-1) > tol {
			st.NDeviating++
		}
		if fraction < lowTol {
			st.NLowWeight++
		}
		target := 1.
		if mode == AreaWeights {
			target = magSf[i]
		}
		floats.Scale(target/sums[i], w)
	}
	if st.NFaces = len(fractions); st.NFaces != 0 {
		st.Min, st.Max = floats.Min(fractions), floats.Max(fractions)
		st.Sum = floats.Sum(fractions)
	}
	return
}

// normalisation is the per-face value the weights sum to.
func normalisation(magSf []float64, mode WeightMode) (norm []float64) {
	norm = make([]float64, len(magSf))
	for i, a := range magSf {
		if mode == AreaWeights {
			norm[i] = a
		} else {
			norm[i] = 1
		}
	}
	return
}
