package patch

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/goami/geometry3D"
)

func TestPatchGeometry(t *testing.T) {
	{ // 3x2 grid on a 3 by 2 rectangle
		p := Grid("g", 3, 2, r3.Vec{}, r3.Vec{X: 3}, r3.Vec{Y: 2}, false)
		require.NoError(t, p.Check())
		assert.Equal(t, 6, p.NFaces())
		assert.Equal(t, 12, len(p.Points))
		for i, a := range p.FaceAreas() {
			assert.InDelta(t, 1., a, 1e-14)
			assert.True(t, cmp.Equal(r3.Vec{Z: 1}, p.FaceNormals()[i], cmpopts.EquateApprox(0, 1e-14)))
		}
		assert.InDelta(t, 6., p.TotalArea(), 1e-13)
		assert.True(t, cmp.Equal(r3.Vec{X: 1.5, Y: 0.5}, p.FaceCentres()[1], cmpopts.EquateApprox(0, 1e-14)))
		assert.Equal(t, r3.Vec{X: 3, Y: 2}, p.Bounds().Max)
		assert.Equal(t, [][]int{
			{1, 3}, {0, 2, 4}, {1, 5},
			{0, 4}, {1, 3, 5}, {2, 4},
		}, p.FaceFaces())
	}
	{ // Reversed grid faces the other way and still checks clean
		p := UnitSquare("r", 2, 0, true)
		require.NoError(t, p.Check())
		assert.True(t, cmp.Equal(r3.Vec{Z: -1}, p.FaceNormals()[3], cmpopts.EquateApprox(0, 1e-14)))
		assert.Equal(t, p.FaceNormals()[0], p.Flipped().Flipped().FaceNormals()[0])
		assert.True(t, cmp.Equal(r3.Vec{Z: 1}, p.Flipped().FaceNormals()[0], cmpopts.EquateApprox(0, 1e-14)))
	}
	{ // Triangulated grids keep area and orientation
		p := UnitSquare("q", 3, 0, false)
		tri, err := Triangulated(p)
		require.NoError(t, err)
		require.NoError(t, tri.Check())
		assert.Equal(t, 18, tri.NFaces())
		assert.InDelta(t, 1., tri.TotalArea(), 1e-14)
		for _, n := range tri.FaceNormals() {
			assert.InDelta(t, 1., n.Z, 1e-14)
		}
	}
	{ // Cylinder band faces outward
		c := CylinderBand("c", 16, 2, 1, 1, 0, false)
		require.NoError(t, c.Check())
		for i, n := range c.FaceNormals() {
			radial := c.FaceCentres()[i]
			radial.Z = 0
			assert.True(t, r3.Dot(n, radial) > 0)
		}
		assert.InDelta(t, 2*16*math.Sin(math.Pi/16), c.TotalArea(), 1e-12)
	}
}

func TestPatchCheck(t *testing.T) {
	pts := []r3.Vec{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}}
	{
		p := New("bad", pts, [][]int{{0, 1}, {0, 1, 7}, {0, 1, 2}, {0, 1, 3}})
		err := p.Check()
		require.Error(t, err)
		errs := multierr.Errors(err)
		assert.Len(t, errs, 3)
		assert.Contains(t, errs[0].Error(), "2 vertices")
		assert.Contains(t, errs[1].Error(), "out of range")
		assert.Contains(t, errs[2].Error(), "same direction")
	}
	{
		p := New("ok", pts, [][]int{{0, 1, 2}, {0, 2, 3}})
		assert.NoError(t, p.Check())
		assert.Equal(t, [][]int{{1}, {0}}, p.FaceFaces())
	}
}

func TestSubset(t *testing.T) {
	p := UnitSquare("s", 3, 0, false)
	sub := p.Subset("sub", []int{4, 0})
	assert.Equal(t, 2, sub.NFaces())
	assert.Equal(t, 7, len(sub.Points)) // faces 0 and 4 share a corner
	assert.Equal(t, p.FaceCentres()[4], sub.FaceCentres()[0])
	assert.Equal(t, p.FaceCentres()[0], sub.FaceCentres()[1])
	gap := p.Without("gap", 4)
	assert.Equal(t, 8, gap.NFaces())
	assert.InDelta(t, 8./9., gap.TotalArea(), 1e-14)

	proj := CylinderBand("c", 8, 1, 1.1, 1, 0, false).Projected(geometry3D.Cylinder{Axis: r3.Vec{Z: 1}, Radius: 2})
	for _, x := range proj.Points {
		assert.InDelta(t, 2., math.Hypot(x.X, x.Y), 1e-14)
	}
}

const su2Surface = `% two markers on a unit square
NDIME= 3
NPOIN= 6
0 0 0
1 0 0
2 0 0
0 1 0
1 1 0
2 1 0
NELEM= 1
10 0 1 3 4
NMARK= 2
MARKER_TAG= left
MARKER_ELEMS= 1
9 0 1 4 3
MARKER_TAG= right
MARKER_ELEMS= 2
5 1 2 5
5 1 5 4
`

func TestSU2(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/m.su2", []byte(su2Surface), 0644))
	{
		p, err := ReadSU2(fs, "/m.su2", "right")
		require.NoError(t, err)
		assert.Equal(t, "right", p.Name)
		assert.Equal(t, 2, p.NFaces())
		assert.Equal(t, 4, len(p.Points))
		assert.InDelta(t, 1., p.TotalArea(), 1e-14)
		require.NoError(t, p.Check())
	}
	{
		_, err := ReadSU2(fs, "/m.su2", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "choose a marker")
		_, err = ReadSU2(fs, "/m.su2", "top")
		assert.Error(t, err)
		names, err := MarkerNames(fs, "/m.su2")
		require.NoError(t, err)
		assert.Equal(t, []string{"left", "right"}, names)
	}
	{ // Written patches read back as markers
		src := UnitSquare("src", 2, 0, false)
		tgt, _ := Triangulated(UnitSquare("tgt", 3, 0, true))
		require.NoError(t, WriteSU2(fs, "/pair.su2", src, tgt))
		back, err := ReadSU2(fs, "/pair.su2", "tgt")
		require.NoError(t, err)
		require.Equal(t, tgt.NFaces(), back.NFaces())
		for i := range tgt.Faces {
			assert.True(t, cmp.Equal(tgt.Face(i), back.Face(i)))
		}
	}
	{
		bad := strings.Replace(su2Surface, "9 0 1 4 3", "9 0 1 4 30", 1)
		require.NoError(t, afero.WriteFile(fs, "/bad.su2", []byte(bad), 0644))
		_, err := ReadSU2(fs, "/bad.su2", "left")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of range")
	}
}

func TestPartition(t *testing.T) {
	p := UnitSquare("p", 8, 0, false)
	{
		part, err := Partition(p, &PartitionConfig{NumPartitions: 3, Method: "block"})
		require.NoError(t, err)
		subs, ids, err := Decompose(p, part, 3)
		require.NoError(t, err)
		assert.Equal(t, []int{22, 21, 21}, []int{len(ids[0]), len(ids[1]), len(ids[2])})
		var area float64
		for _, s := range subs {
			area += s.TotalArea()
		}
		assert.InDelta(t, 1., area, 1e-13)
		assert.Equal(t, ids[1][0], 22)
	}
	{
		part, err := Partition(p, DefaultPartitionConfig(2))
		require.NoError(t, err)
		counts := make([]int, 2)
		for _, pt := range part {
			require.True(t, pt == 0 || pt == 1)
			counts[pt]++
		}
		assert.True(t, counts[0] > 0 && counts[1] > 0)
	}
	{
		part, err := Partition(p, DefaultPartitionConfig(1))
		require.NoError(t, err)
		assert.Equal(t, make([]int, 64), part)
		_, err = Partition(p, &PartitionConfig{NumPartitions: 2, Method: "spiral"})
		assert.Error(t, err)
		_, _, err = Decompose(p, part[:3], 1)
		assert.Error(t, err)
	}
}
