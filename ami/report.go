package ami

import (
	"fmt"
	"strings"

	"github.com/notargets/goami/parallel"
)

// SideReport totals one patch over all ranks.
type SideReport struct {
	Name        string
	NFaces      int
	NNonOverlap int
	Area        float64
	Stats       WeightStats
}

type Report struct {
	Source, Target  SideReport
	SinglePatchProc int
	BoundsMismatch  bool
	NDegenerate     int // face pairs skipped for parallel normals
	NRestartedSrc   int
	NRestartedTgt   int
	Agglomerated    bool
}

func (r Report) String() string {
	var b strings.Builder
	mode := "distributed"
	if r.SinglePatchProc >= 0 {
		mode = fmt.Sprintf("single rank %d", r.SinglePatchProc)
	}
	fmt.Fprintf(&b, "AMI %s -> %s (%s)\n", r.Source.Name, r.Target.Name, mode)
	for _, s := range []SideReport{r.Source, r.Target} {
		fmt.Fprintf(&b, "  %-12s faces %-8d area %-12.6g non-overlap %-6d", s.Name, s.NFaces, s.Area, s.NNonOverlap)
		fmt.Fprintf(&b, " weight sum/area min %.6g max %.6g avg %.6g\n",
			s.Stats.Min, s.Stats.Max, s.Stats.Average())
	}
	if r.NRestartedSrc+r.NRestartedTgt != 0 {
		fmt.Fprintf(&b, "  restarted faces: source %d, target %d\n", r.NRestartedSrc, r.NRestartedTgt)
	}
	if r.BoundsMismatch {
		b.WriteString("  bounding boxes differ\n")
	}
	return b.String()
}

func sideSummary(s *side) SideReport {
	var area float64
	for _, a := range s.magSf {
		area += a
	}
	return SideReport{
		Name:        s.name,
		NFaces:      len(s.magSf),
		NNonOverlap: len(s.nonOverlap),
		Area:        area,
		Stats:       s.stats,
	}
}

func (sr SideReport) merge(o SideReport) SideReport {
	if sr.Name == "" {
		sr.Name = o.Name
	}
	sr.NFaces += o.NFaces
	sr.NNonOverlap += o.NNonOverlap
	sr.Area += o.Area
	sr.Stats = sr.Stats.merge(o.Stats)
	return sr
}

// gatherReport sums the local counters of every rank. Collective.
func gatherReport(c *parallel.Comm, local Report, t *tables) Report {
	local.Source, local.Target = sideSummary(t.src), sideSummary(t.tgt)
	return parallel.AllReduce(c, local, func(a, b Report) Report {
		a.Source = a.Source.merge(b.Source)
		a.Target = a.Target.merge(b.Target)
		a.BoundsMismatch = a.BoundsMismatch || b.BoundsMismatch
		a.NDegenerate += b.NDegenerate
		a.NRestartedSrc += b.NRestartedSrc
		a.NRestartedTgt += b.NRestartedTgt
		return a
	})
}

// log writes one line per condition found, on the master rank only.
func (r Report) log(opts *Options, master bool) {
	if !master {
		return
	}
	for _, s := range []SideReport{r.Source, r.Target} {
		if s.NNonOverlap != 0 {
			opts.Logger.Printf("AMI: patch %s: %d of %d faces have no overlap",
				s.Name, s.NNonOverlap, s.NFaces)
		}
		if s.Stats.NDeviating != 0 {
			opts.Logger.Printf("AMI: patch %s: %d faces have weight sums deviating from their area by more than %g, sum/area min %g max %g average %g",
				s.Name, s.Stats.NDeviating, opts.NormaliseTolerance, s.Stats.Min, s.Stats.Max, s.Stats.Average())
		}
		if s.Stats.NLowWeight != 0 {
			opts.Logger.Printf("AMI: patch %s: %d faces covered below %g of their area",
				s.Name, s.Stats.NLowWeight, opts.LowWeightTolerance)
		}
	}
	if r.BoundsMismatch {
		opts.Logger.Printf("AMI: bounding boxes of %s and %s differ, check the patches match",
			r.Source.Name, r.Target.Name)
	}
}
