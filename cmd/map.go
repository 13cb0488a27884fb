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
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/goami/InputParameters"
	"github.com/notargets/goami/ami"
	"github.com/notargets/goami/parallel"
	"github.com/notargets/goami/patch"
)

type MapParams struct {
	InputFile        string
	NP               int
	DebugFile        string // OBJ dump of every intersection
	ConnectivityFile string // OBJ lines between matched face centres, one file per rank
}

// MapResult is the report of the run plus the integrals of a smooth field
// before and after it is transferred from the target to the source.
type MapResult struct {
	Report         ami.Report
	TargetIntegral float64
	SourceIntegral float64
}

func (mr MapResult) String() string {
	return fmt.Sprintf("%sfield integral: target %.12g, source %.12g, relative difference %.3e\n",
		mr.Report, mr.TargetIntegral, mr.SourceIntegral, mr.RelativeError())
}

func (mr MapResult) RelativeError() float64 {
	if mr.TargetIntegral == 0 {
		return mr.SourceIntegral
	}
	return (mr.SourceIntegral - mr.TargetIntegral) / mr.TargetIntegral
}

// MapCmd represents the map command
var MapCmd = &cobra.Command{
	Use:   "map",
	Short: "Build the interface between two patches read from SU2 files",
	Long: `
Reads the source and target patches named in the input parameters file, splits
them over the requested number of ranks and builds the interface between them.

goami map -I interface.yaml -n 4 --obj intersections.obj`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
			fs  = afero.NewOsFs()
		)
		fmt.Println("map called")
		viper.BindPFlag("np", cmd.Flags().Lookup("np"))
		mp := &MapParams{NP: viper.GetInt("np")}
		mp.InputFile, _ = cmd.Flags().GetString("inputConditionsFile")
		mp.DebugFile, _ = cmd.Flags().GetString("obj")
		mp.ConnectivityFile, _ = cmd.Flags().GetString("connectivity")
		ip, err := processInput(fs, mp)
		if err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		if list, _ := cmd.Flags().GetBool("markers"); list {
			if err = listMarkers(os.Stdout, fs, ip); err != nil {
				fmt.Printf("error: %s\n", err.Error())
				os.Exit(1)
			}
			return
		}
		ip.Print()
		result, err := RunMap(fs, mp, ip)
		if err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		fmt.Print(result)
	},
}

func init() {
	rootCmd.AddCommand(MapCmd)
	MapCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for the interface parameters")
	MapCmd.Flags().IntP("np", "n", 1, "number of ranks the patches are split over")
	MapCmd.Flags().String("obj", "", "write every face intersection to this Wavefront OBJ file")
	MapCmd.Flags().String("connectivity", "", "write lines between matched face centres to this OBJ file")
	MapCmd.Flags().Bool("markers", false, "list the markers of the source and target files and exit")
}

func processInput(fs afero.Fs, mp *MapParams) (ip *InputParameters.AMIParameters, err error) {
	if len(mp.InputFile) == 0 {
		fmt.Printf("Example File:%s\n", InputParameters.ExampleFile)
		return nil, fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile)")
	}
	var data []byte
	if data, err = afero.ReadFile(fs, mp.InputFile); err != nil {
		return nil, err
	}
	ip = &InputParameters.AMIParameters{}
	if err = ip.Parse(data); err != nil {
		return nil, fmt.Errorf("%s: %w", mp.InputFile, err)
	}
	return
}

// listMarkers prints the marker tags of the source and target files.
func listMarkers(w io.Writer, fs afero.Fs, ip *InputParameters.AMIParameters) error {
	for i, filename := range []string{ip.SourceFile, ip.TargetFile} {
		if i == 1 && filename == ip.SourceFile {
			break
		}
		names, err := patch.MarkerNames(fs, filename)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %s\n", filename, strings.Join(names, " "))
	}
	return nil
}

// RunMap reads both patches, splits them over mp.NP ranks and builds the
// interface, then transfers a linear field from the target to the source.
func RunMap(fs afero.Fs, mp *MapParams, ip *InputParameters.AMIParameters) (result MapResult, err error) {
	opts, err := ip.Options()
	if err != nil {
		return
	}
	src, err := patch.ReadSU2(fs, ip.SourceFile, ip.SourceMarker)
	if err != nil {
		return
	}
	tgt, err := patch.ReadSU2(fs, ip.TargetFile, ip.TargetMarker)
	if err != nil {
		return
	}
	np := mp.NP
	if np < 1 {
		np = 1
	}
	srcSubs, err := splitPatch(src, np, ip.Partition)
	if err != nil {
		return
	}
	tgtSubs, err := splitPatch(tgt, np, ip.Partition)
	if err != nil {
		return
	}
	if mp.DebugFile != "" {
		var f afero.File
		if f, err = fs.Create(mp.DebugFile); err != nil {
			return
		}
		defer f.Close()
		opts.Debug = f
	}
	err = parallel.NewWorld(np).Run(func(c *parallel.Comm) (err error) {
		var (
			me       = c.Rank()
			src, tgt = srcSubs[me], tgtSubs[me]
			a        *ami.AMI
		)
		if a, err = ami.New(c, src, tgt, opts); err != nil {
			return
		}
		fld := linearField(tgt)
		res, err := ami.InterpolateToSource(a, fld, ami.ScalarSum())
		if err != nil {
			return
		}
		var integralTgt, integralSrc float64
		for j, f := range fld {
			integralTgt += f * tgt.FaceAreas()[j]
		}
		for i, f := range res {
			integralSrc += f * src.FaceAreas()[i]
		}
		integralTgt, integralSrc = parallel.SumFloat(c, integralTgt), parallel.SumFloat(c, integralSrc)
		if mp.ConnectivityFile != "" {
			if err = writeConnectivity(fs, rankFileName(mp.ConnectivityFile, me, np), a, src, tgt); err != nil {
				return
			}
		}
		if c.IsMaster() {
			result = MapResult{Report: a.Report(), TargetIntegral: integralTgt, SourceIntegral: integralSrc}
		}
		return
	})
	return
}

func writeConnectivity(fs afero.Fs, filename string, a *ami.AMI, src, tgt *patch.Patch) (err error) {
	f, err := fs.Create(filename)
	if err != nil {
		return
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return ami.WriteFaceConnectivity(f, a, src, tgt)
}

func splitPatch(p *patch.Patch, np int, pp InputParameters.PartitionParameters) (subs []*patch.Patch, err error) {
	config := patch.DefaultPartitionConfig(int32(np))
	if pp.Method != "" {
		config.Method = pp.Method
	}
	if pp.Objective != "" {
		config.Objective = pp.Objective
	}
	if pp.ImbalanceFactor > 0 {
		config.ImbalanceFactor = float32(pp.ImbalanceFactor)
	}
	part, err := patch.Partition(p, config)
	if err != nil {
		return
	}
	subs, _, err = patch.Decompose(p, part, np)
	return
}

// rankFileName inserts the rank before the extension when there is more
// than one rank.
func rankFileName(filename string, rank, np int) string {
	if np == 1 {
		return filename
	}
	ext := filepath.Ext(filename)
	return fmt.Sprintf("%s.%d%s", strings.TrimSuffix(filename, ext), rank, ext)
}

func linearField(p *patch.Patch) (fld []float64) {
	fld = make([]float64, p.NFaces())
	for i, c := range p.FaceCentres() {
		fld[i] = 1 + r3.Dot(r3.Vec{X: 1, Y: 2, Z: 3}, c)
	}
	return
}
