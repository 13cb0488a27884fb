package ami

import (
	"fmt"
	"io"
	"log"

	"github.com/notargets/goami/geometry3D"
)

// WeightMode selects what the weights of one face sum to after
// normalisation.
type WeightMode int

const (
	AreaWeights     WeightMode = iota // sum to the face area
	FractionWeights                   // sum to one
)

func (wm WeightMode) String() string {
	switch wm {
	case AreaWeights:
		return "area"
	case FractionWeights:
		return "fraction"
	}
	return fmt.Sprintf("WeightMode(%d)", int(wm))
}

func ParseWeightMode(s string) (WeightMode, error) {
	switch s {
	case "area", "":
		return AreaWeights, nil
	case "fraction":
		return FractionWeights, nil
	}
	return AreaWeights, fmt.Errorf("unknown weight mode %q, have [area fraction]", s)
}

type Options struct {
	ReverseTarget bool
	// Triangulation names a registered geometry3D triangulator, ignored when
	// Triangulator is set.
	Triangulation string
	Triangulator  geometry3D.Triangulator
	// Surface, when set, receives a projected copy of both patches before
	// any intersection.
	Surface    geometry3D.Surface
	WeightMode WeightMode

	Tolerance          float64 // minimum accepted overlap, relative to the source face area
	NormaliseTolerance float64 // warn when a raw weight sum deviates more from its face area
	LowWeightTolerance float64 // faces below this covered fraction are reported as low weight
	RestartThreshold   float64 // source faces below this covered fraction are re-marched
	DisableRestart     bool

	Seed int64 // seeds the box perturbation of the spatial indices

	Debug  io.Writer // Wavefront OBJ dump of every intersection, nil for none
	Logger *log.Logger
}

func DefaultOptions() Options {
	return Options{
		Triangulation:      "fan",
		WeightMode:         AreaWeights,
		Tolerance:          geometry3D.IntersectTolerance,
		NormaliseTolerance: 1e-6,
		LowWeightTolerance: 1e-3,
		RestartThreshold:   0.5,
		Seed:               1,
	}
}

// resolve fills unset fields from the defaults and looks up the
// triangulator.
func (o *Options) resolve() (tri geometry3D.Triangulator, err error) {
	def := DefaultOptions()
	if o.Triangulation == "" {
		o.Triangulation = def.Triangulation
	}
	if o.Tolerance <= 0 {
		o.Tolerance = def.Tolerance
	}
	if o.NormaliseTolerance <= 0 {
		o.NormaliseTolerance = def.NormaliseTolerance
	}
	if o.LowWeightTolerance <= 0 {
		o.LowWeightTolerance = def.LowWeightTolerance
	}
	if o.RestartThreshold <= 0 {
		o.RestartThreshold = def.RestartThreshold
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.WeightMode != AreaWeights && o.WeightMode != FractionWeights {
		return nil, fmt.Errorf("invalid weight mode %v", o.WeightMode)
	}
	if o.Triangulator != nil {
		return o.Triangulator, nil
	}
	return geometry3D.NewTriangulator(o.Triangulation)
}
