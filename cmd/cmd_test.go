package cmd

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/goami/InputParameters"
)

func TestRunDemo(t *testing.T) {
	for _, np := range []int{1, 2} {
		var (
			fs = afero.NewMemMapFs()
			dp = &DemoParams{Shape: "square", NSource: 5, NTarget: 7, Partition: "block"}
			mp = &MapParams{NP: np, DebugFile: "debug.obj", ConnectivityFile: "conn.obj"}
		)
		result, err := RunDemo(fs, dp, mp)
		require.NoError(t, err)
		assert.Equal(t, 25, result.Report.Source.NFaces)
		assert.Equal(t, 49, result.Report.Target.NFaces)
		assert.Zero(t, result.Report.Source.NNonOverlap)
		assert.Zero(t, result.Report.Target.NNonOverlap)
		assert.InDelta(t, 0, result.RelativeError(), 1e-9)
		// 1 + x + 2y over the unit square
		assert.InDelta(t, 2.5, result.TargetIntegral, 1e-12)

		debug, err := afero.ReadFile(fs, "debug.obj")
		require.NoError(t, err)
		assert.NotEmpty(t, debug)
		for rank := 0; rank < np; rank++ {
			ok, err := afero.Exists(fs, rankFileName("conn.obj", rank, np))
			require.NoError(t, err)
			assert.True(t, ok)
		}
	}
}

func TestRunDemoCylinder(t *testing.T) {
	fs := afero.NewMemMapFs()
	result, err := RunDemo(fs,
		&DemoParams{Shape: "cylinder", NSource: 9, NTarget: 12, Partition: "block", SU2File: "band.su2"},
		&MapParams{NP: 1})
	require.NoError(t, err)
	assert.Zero(t, result.Report.Source.NNonOverlap)
	assert.Zero(t, result.Report.Target.NNonOverlap)
	var buf bytes.Buffer
	require.NoError(t, listMarkers(&buf, fs,
		&InputParameters.AMIParameters{SourceFile: "band.su2", TargetFile: "band.su2"}))
	assert.Equal(t, "band.su2: source target\n", buf.String())
	assert.Error(t, listMarkers(&buf, fs, &InputParameters.AMIParameters{SourceFile: "missing.su2"}))
}

func TestRunDemoReverseTarget(t *testing.T) {
	dp := &DemoParams{Shape: "square", NSource: 4, NTarget: 3, ReverseTarget: true}
	src, tgt, err := demoPatches(dp)
	require.NoError(t, err)
	assert.InDelta(t, 1., src.FaceNormals()[0].Z, 1e-14)
	assert.InDelta(t, 1., tgt.FaceNormals()[0].Z, 1e-14)
	result, err := RunDemo(afero.NewMemMapFs(), dp, &MapParams{NP: 1})
	require.NoError(t, err)
	assert.Zero(t, result.Report.Target.NNonOverlap)
	assert.InDelta(t, 0, result.RelativeError(), 1e-9)

	// without the flag the generated target faces the source
	_, tgt, err = demoPatches(&DemoParams{Shape: "square", NSource: 4, NTarget: 3})
	require.NoError(t, err)
	assert.InDelta(t, -1., tgt.FaceNormals()[0].Z, 1e-14)
}

func TestDemoPatches(t *testing.T) {
	src, tgt, err := demoPatches(&DemoParams{Shape: "square", NSource: 2, NTarget: 3, Triangulate: true})
	require.NoError(t, err)
	assert.Equal(t, 4, src.NFaces())
	assert.Equal(t, 18, tgt.NFaces())

	_, _, err = demoPatches(&DemoParams{Shape: "torus", NSource: 2, NTarget: 3})
	assert.ErrorContains(t, err, "unknown shape")
	_, _, err = demoPatches(&DemoParams{Shape: "square", NSource: 0, NTarget: 3})
	assert.Error(t, err)
}

func TestProcessInput(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "interface.yaml", []byte(`
Title: Test Case
SourceFile: rotor.su2
SourceMarker: interface
TargetFile: stator.su2
TargetMarker: interface
Partition:
  Method: block
`), 0644))
	ip, err := processInput(fs, &MapParams{InputFile: "interface.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "Test Case", ip.Title)
	assert.Equal(t, "stator.su2", ip.TargetFile)
	assert.Equal(t, "block", ip.Partition.Method)

	_, err = processInput(fs, &MapParams{})
	assert.Error(t, err)
	_, err = processInput(fs, &MapParams{InputFile: "missing.yaml"})
	assert.Error(t, err)
	// the SU2 files named in the parameters do not exist
	_, err = RunMap(fs, &MapParams{NP: 1}, ip)
	assert.Error(t, err)
}

func TestRankFileName(t *testing.T) {
	assert.Equal(t, "conn.obj", rankFileName("conn.obj", 0, 1))
	assert.Equal(t, "out/conn.3.obj", rankFileName("out/conn.obj", 3, 4))
	assert.Equal(t, "conn.1", rankFileName("conn", 1, 2))
}
