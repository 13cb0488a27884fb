package ami

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/goami/parallel"
	"github.com/notargets/goami/patch"
)

// slitTarget covers the unit square with two quads facing -z, split at x
// by a gap of 1e-4 so that no edge joins them.
func slitTarget(x float64) *patch.Patch {
	const h = 5e-5
	points := []r3.Vec{
		{X: 0}, {X: x - h}, {X: x - h, Y: 1}, {Y: 1},
		{X: x + h}, {X: 1}, {X: 1, Y: 1}, {X: x + h, Y: 1},
	}
	return patch.New("tgt", points, [][]int{{0, 3, 2, 1}, {4, 7, 6, 5}})
}

func TestRestart(t *testing.T) {
	src := patch.UnitSquare("src", 1, 0, false)
	{ // The walk from the source face never reaches the far target face
		a, err := New(nil, src, slitTarget(0.7), quietOptions())
		require.NoError(t, err)
		assert.Empty(t, a.TgtNonOverlap())
		assert.Equal(t, 0, a.Report().NRestartedSrc)
		assert.Equal(t, 1, a.Report().NRestartedTgt)
		assert.Equal(t, []int{0, 1}, sortedCopy(a.SrcAddress()[0]))
		assert.InDeltaSlice(t, []float64{0.7 - 5e-5, 0.3 - 5e-5}, a.TgtWeightsSum(), 1e-12)
		assert.InDelta(t, 1-1e-4, a.SrcWeightsSum()[0], 1e-12)
	}
	{ // Without restarts the far target face stays empty
		opts := quietOptions()
		opts.DisableRestart = true
		a, err := New(nil, src, slitTarget(0.7), opts)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, a.TgtNonOverlap())
		assert.Equal(t, 0, a.Report().NRestartedTgt)
	}
	{ // Under half of the source face is covered, the source pass re-marches it
		a, err := New(nil, src, slitTarget(0.5), quietOptions())
		require.NoError(t, err)
		assert.Empty(t, a.TgtNonOverlap())
		assert.Equal(t, 1, a.Report().NRestartedSrc)
		assert.Equal(t, 0, a.Report().NRestartedTgt)
		assert.Equal(t, []int{0, 1}, sortedCopy(a.SrcAddress()[0]))
		assert.InDelta(t, 1-1e-4, a.SrcWeightsSum()[0], 1e-12)
	}
}

func TestDistributedRestart(t *testing.T) {
	var (
		src     = patch.UnitSquare("src", 1, 0, false)
		tgt     = slitTarget(0.7)
		nonOv   = make([][]int, 2)
		addr    = make([][][]int, 2)
		wSums   = make([][]float64, 2)
		reports = make([]Report, 2)
	)
	err := parallel.NewWorld(2).Run(func(c *parallel.Comm) (err error) {
		s, tg := src, patch.New("tgt", nil, nil)
		if c.Rank() == 1 {
			s, tg = patch.New("src", nil, nil), tgt
		}
		a, err := New(c, s, tg, quietOptions())
		if err != nil {
			return
		}
		me := c.Rank()
		nonOv[me], addr[me], wSums[me], reports[me] = a.TgtNonOverlap(), a.TgtAddress(), a.TgtWeightsSum(), a.Report()
		return
	})
	require.NoError(t, err)
	assert.Empty(t, nonOv[0])
	assert.Empty(t, nonOv[1])
	require.Len(t, addr[1], 2)
	assert.Len(t, addr[1][0], 1)
	assert.Len(t, addr[1][1], 1)
	assert.InDeltaSlice(t, []float64{0.7 - 5e-5, 0.3 - 5e-5}, wSums[1], 1e-12)
	for _, r := range reports {
		assert.Equal(t, 1, r.NRestartedTgt)
		assert.Zero(t, r.Target.NNonOverlap)
		assert.Equal(t, -1, r.SinglePatchProc)
	}
}
