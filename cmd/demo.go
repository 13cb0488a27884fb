/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/goami/InputParameters"
	"github.com/notargets/goami/patch"
)

type DemoParams struct {
	Shape         string // square or cylinder
	NSource       int
	NTarget       int
	Triangulate   bool // split the target quads into triangles
	ReverseTarget bool // target faces point the same way as the source faces
	Partition     string
	SU2File       string // where the generated patches are written, in memory when empty
	Triangulation string
}

// DemoCmd represents the demo command
var DemoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Map between a generated pair of non-matching patches",
	Long: `
Generates a source and a target patch that cover the same surface with
different faces, writes them to an SU2 file and maps between them.

goami demo --shape cylinder --nSource 12 --nTarget 17 -n 2`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			fs = afero.NewMemMapFs()
			dp = &DemoParams{}
		)
		fmt.Println("demo called")
		viper.BindPFlag("np", cmd.Flags().Lookup("np"))
		mp := &MapParams{NP: viper.GetInt("np")}
		dp.Shape, _ = cmd.Flags().GetString("shape")
		dp.NSource, _ = cmd.Flags().GetInt("nSource")
		dp.NTarget, _ = cmd.Flags().GetInt("nTarget")
		dp.Triangulate, _ = cmd.Flags().GetBool("triangulate")
		dp.ReverseTarget, _ = cmd.Flags().GetBool("reverseTarget")
		dp.Partition, _ = cmd.Flags().GetString("partition")
		dp.Triangulation, _ = cmd.Flags().GetString("triangulation")
		dp.SU2File, _ = cmd.Flags().GetString("su2")
		mp.DebugFile, _ = cmd.Flags().GetString("obj")
		mp.ConnectivityFile, _ = cmd.Flags().GetString("connectivity")
		if dp.SU2File != "" || mp.DebugFile != "" || mp.ConnectivityFile != "" {
			fs = afero.NewOsFs()
		}
		result, err := RunDemo(fs, dp, mp)
		if err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		fmt.Print(result)
	},
}

func init() {
	rootCmd.AddCommand(DemoCmd)
	DemoCmd.Flags().String("shape", "square", "generated surface: square or cylinder")
	DemoCmd.Flags().Int("nSource", 8, "source faces along each side")
	DemoCmd.Flags().Int("nTarget", 11, "target faces along each side")
	DemoCmd.Flags().Bool("triangulate", false, "split the target faces into triangles")
	DemoCmd.Flags().Bool("reverseTarget", false, "generate the target facing the same way as the source")
	DemoCmd.Flags().String("partition", "metis", "how faces are split over ranks: metis or block")
	DemoCmd.Flags().String("triangulation", "", "how faces are triangulated for intersection")
	DemoCmd.Flags().String("su2", "", "keep the generated patches in this SU2 file")
	DemoCmd.Flags().IntP("np", "n", 1, "number of ranks the patches are split over")
	DemoCmd.Flags().String("obj", "", "write every face intersection to this Wavefront OBJ file")
	DemoCmd.Flags().String("connectivity", "", "write lines between matched face centres to this OBJ file")
}

// RunDemo writes the generated patches to fs and maps them as the map
// command would.
func RunDemo(fs afero.Fs, dp *DemoParams, mp *MapParams) (result MapResult, err error) {
	src, tgt, err := demoPatches(dp)
	if err != nil {
		return
	}
	filename := dp.SU2File
	if filename == "" {
		filename = "demo.su2"
	}
	if err = patch.WriteSU2(fs, filename, src, tgt); err != nil {
		return
	}
	ip := &InputParameters.AMIParameters{
		Title:         "demo " + dp.Shape,
		SourceFile:    filename,
		SourceMarker:  src.Name,
		TargetFile:    filename,
		TargetMarker:  tgt.Name,
		ReverseTarget: dp.ReverseTarget,
		Triangulation: dp.Triangulation,
		Partition:     InputParameters.PartitionParameters{Method: dp.Partition},
	}
	if dp.Shape == "cylinder" {
		ip.Surface = &InputParameters.SurfaceParameters{
			Type:   "cylinder",
			Axis:   [3]float64{0, 0, 1},
			Radius: 1,
		}
	}
	return RunMap(fs, mp, ip)
}

func demoPatches(dp *DemoParams) (src, tgt *patch.Patch, err error) {
	if dp.NSource < 1 || dp.NTarget < 1 {
		return nil, nil, fmt.Errorf("need at least one face along each side, have %d and %d",
			dp.NSource, dp.NTarget)
	}
	switch dp.Shape {
	case "square", "":
		src = patch.UnitSquare("source", dp.NSource, 0, false)
		tgt = patch.UnitSquare("target", dp.NTarget, 0, false)
	case "cylinder":
		// The faces are chords of the unit circle, offset so that no two
		// vertices coincide, and projected back onto it before intersection.
		src = patch.CylinderBand("source", 4*dp.NSource, dp.NSource, 1, 1, 0, false)
		tgt = patch.CylinderBand("target", 4*dp.NTarget, dp.NTarget, 1, 1, 0.01, false)
	default:
		return nil, nil, fmt.Errorf("unknown shape %q, have [square cylinder]", dp.Shape)
	}
	if !dp.ReverseTarget {
		// the two sides of an interface face each other
		tgt = tgt.Flipped()
	}
	if dp.Triangulate {
		tgt, err = patch.Triangulated(tgt)
	}
	return
}
