package InputParameters

import (
	"fmt"
	"io"
	"os"

	"github.com/ghodss/yaml"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/goami/ami"
	"github.com/notargets/goami/geometry3D"
)

type SurfaceParameters struct {
	Type   string     `yaml:"Type"` // plane, sphere or cylinder
	Origin [3]float64 `yaml:"Origin"`
	Axis   [3]float64 `yaml:"Axis"` // plane normal or cylinder axis
	Radius float64    `yaml:"Radius"`
}

type PartitionParameters struct {
	Method          string  `yaml:"Method"`    // metis or block
	Objective       string  `yaml:"Objective"` // cut or vol
	ImbalanceFactor float64 `yaml:"ImbalanceFactor"`
}

// Parameters obtained from the YAML input file
type AMIParameters struct {
	Title              string              `yaml:"Title"`
	SourceFile         string              `yaml:"SourceFile"`
	SourceMarker       string              `yaml:"SourceMarker"`
	TargetFile         string              `yaml:"TargetFile"`
	TargetMarker       string              `yaml:"TargetMarker"`
	ReverseTarget      bool                `yaml:"ReverseTarget"`
	Triangulation      string              `yaml:"Triangulation"`
	WeightMode         string              `yaml:"WeightMode"`
	Tolerance          float64             `yaml:"Tolerance"`
	NormaliseTolerance float64             `yaml:"NormaliseTolerance"`
	LowWeightTolerance float64             `yaml:"LowWeightTolerance"`
	RestartThreshold   float64             `yaml:"RestartThreshold"`
	DisableRestart     bool                `yaml:"DisableRestart"`
	Seed               int64               `yaml:"Seed"`
	Surface            *SurfaceParameters  `yaml:"Surface"`
	Partition          PartitionParameters `yaml:"Partition"`
}

func (ip *AMIParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

func (ip *AMIParameters) Print() {
	ip.Fprint(os.Stdout)
}

func (ip *AMIParameters) Fprint(w io.Writer) {
	fmt.Fprintf(w, "\"%s\"\t\t= Title\n", ip.Title)
	fmt.Fprintf(w, "[%s:%s]\t= Source\n", ip.SourceFile, ip.SourceMarker)
	fmt.Fprintf(w, "[%s:%s]\t= Target\n", ip.TargetFile, ip.TargetMarker)
	fmt.Fprintf(w, "[%v]\t\t\t= Reverse Target\n", ip.ReverseTarget)
	fmt.Fprintf(w, "[%s]\t\t\t= Triangulation\n", ip.Triangulation)
	fmt.Fprintf(w, "[%s]\t\t\t= Weight Mode\n", ip.WeightMode)
	fmt.Fprintf(w, "%8.2e\t\t= Tolerance\n", ip.Tolerance)
	fmt.Fprintf(w, "%8.5f\t\t= Restart Threshold\n", ip.RestartThreshold)
	if ip.Surface != nil {
		fmt.Fprintf(w, "[%s] origin %v axis %v radius %g\t= Projection Surface\n",
			ip.Surface.Type, ip.Surface.Origin, ip.Surface.Axis, ip.Surface.Radius)
	}
	fmt.Fprintf(w, "[%s]\t\t\t= Partition Method\n", ip.Partition.Method)
}

// Options converts the parameters, unset fields taking the ami defaults.
func (ip *AMIParameters) Options() (opts ami.Options, err error) {
	opts = ami.DefaultOptions()
	opts.ReverseTarget = ip.ReverseTarget
	opts.DisableRestart = ip.DisableRestart
	if ip.Triangulation != "" {
		if _, err = geometry3D.NewTriangulator(ip.Triangulation); err != nil {
			return
		}
		opts.Triangulation = ip.Triangulation
	}
	if opts.WeightMode, err = ami.ParseWeightMode(ip.WeightMode); err != nil {
		return
	}
	setIf := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}
	setIf(&opts.Tolerance, ip.Tolerance)
	setIf(&opts.NormaliseTolerance, ip.NormaliseTolerance)
	setIf(&opts.LowWeightTolerance, ip.LowWeightTolerance)
	setIf(&opts.RestartThreshold, ip.RestartThreshold)
	if ip.Seed != 0 {
		opts.Seed = ip.Seed
	}
	if s := ip.Surface; s != nil {
		toVec := func(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }
		opts.Surface, err = geometry3D.NewSurface(s.Type, geometry3D.SurfaceParams{
			Origin: toVec(s.Origin),
			Axis:   toVec(s.Axis),
			Radius: s.Radius,
		})
	}
	return
}

const ExampleFile = `
########################################
Title: "Rotor stator interface"
SourceFile: rotor.su2
SourceMarker: interface
TargetFile: stator.su2
TargetMarker: interface
ReverseTarget: false
Triangulation: fan # fan, centre or mesh
WeightMode: area # or fraction
RestartThreshold: 0.5
Surface:
  Type: cylinder
  Axis: [0, 0, 1]
  Radius: 1
Partition:
  Method: metis # or block
########################################
`
