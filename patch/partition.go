package patch

import (
	"fmt"
	"log"

	metis "github.com/notargets/go-metis"

	"github.com/notargets/goami/utils"
)

// PartitionConfig holds configuration for splitting a patch across ranks
type PartitionConfig struct {
	NumPartitions   int32
	ImbalanceFactor float32 // e.g., 1.05 for 5% imbalance
	Objective       string  // "cut" or "vol", METIS only
	Method          string  // "metis" or "block"
}

func DefaultPartitionConfig(nparts int32) *PartitionConfig {
	return &PartitionConfig{
		NumPartitions:   nparts,
		ImbalanceFactor: 1.05,
		Objective:       "cut",
		Method:          "metis",
	}
}

// Partition assigns every face of p to a part in [0,NumPartitions).
func Partition(p *Patch, config *PartitionConfig) (part []int, err error) {
	nf := p.NFaces()
	part = make([]int, nf)
	if config.NumPartitions <= 1 || nf == 0 {
		return
	}
	switch config.Method {
	case "block":
		pm := utils.NewPartitionMap(int(config.NumPartitions), nf)
		for np := 0; np < pm.ParallelDegree; np++ {
			kMin, kMax := pm.GetBucketRange(np)
			for k := kMin; k < kMax; k++ {
				part[k] = np
			}
		}
	case "metis", "":
		if part, err = metisPartition(p, config); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown partition method %q, have [block metis]", config.Method)
	}
	analyzePartition(p, part, int(config.NumPartitions))
	return
}

func metisPartition(p *Patch, config *PartitionConfig) (part []int, err error) {
	log.Printf("Partitioning patch %s with %d faces into %d parts",
		p.Name, p.NFaces(), config.NumPartitions)
	xadj, adjncy, vwgt, adjwgt := buildMetisGraph(p)

	opts := make([]int32, metis.NoOptions)
	if err = metis.SetDefaultOptions(opts); err != nil {
		return nil, fmt.Errorf("failed to set METIS options: %w", err)
	}
	if config.Objective == "vol" {
		opts[metis.OptionObjType] = metis.ObjTypeVol
	} else {
		opts[metis.OptionObjType] = metis.ObjTypeCut
	}
	ubvec := []float32{config.ImbalanceFactor}

	mpart, objval, err := metis.PartGraphKwayWeighted(
		xadj, adjncy, vwgt, adjwgt,
		config.NumPartitions, nil, ubvec, opts,
	)
	if err != nil {
		return nil, fmt.Errorf("METIS partitioning failed: %w", err)
	}
	log.Printf("  Objective value: %d", objval)
	part = make([]int, len(mpart))
	for i, pt := range mpart {
		part[i] = int(pt)
	}
	return
}

// buildMetisGraph converts face adjacency to METIS CSR format. Faces are
// weighted by vertex count, which tracks the triangle pairs they cost in
// the intersection kernel.
func buildMetisGraph(p *Patch) (xadj, adjncy, vwgt, adjwgt []int32) {
	var (
		faceFaces = p.FaceFaces()
		nf        = len(faceFaces)
	)
	xadj = make([]int32, nf+1)
	vwgt = make([]int32, nf)
	for i, nbrs := range faceFaces {
		for _, nbr := range nbrs {
			adjncy = append(adjncy, int32(nbr))
			adjwgt = append(adjwgt, 1)
		}
		xadj[i+1] = int32(len(adjncy))
		vwgt[i] = int32(len(p.Faces[i]))
	}
	return
}

func analyzePartition(p *Patch, part []int, nparts int) {
	var (
		loads    = make([]int, nparts)
		cutEdges int
	)
	for i, nbrs := range p.FaceFaces() {
		loads[part[i]]++
		for _, nbr := range nbrs {
			if nbr > i && part[nbr] != part[i] {
				cutEdges++
			}
		}
	}
	minLoad, maxLoad := loads[0], loads[0]
	for _, l := range loads {
		minLoad, maxLoad = min(minLoad, l), max(maxLoad, l)
	}
	avgLoad := float64(p.NFaces()) / float64(nparts)
	log.Printf("Partition of %s: cut edges %d, load range [%d, %d], avg %.1f, imbalance %.2f%%",
		p.Name, cutEdges, minLoad, maxLoad, avgLoad, 100*(float64(maxLoad)/avgLoad-1))
}

// Decompose splits p by part into one sub-patch per rank and the original
// face ids of each sub-patch's faces, in ascending order.
func Decompose(p *Patch, part []int, nparts int) (subs []*Patch, faceIDs [][]int, err error) {
	if len(part) != p.NFaces() {
		return nil, nil, fmt.Errorf("partition of %s has %d entries for %d faces",
			p.Name, len(part), p.NFaces())
	}
	faceIDs = make([][]int, nparts)
	for i, pt := range part {
		if pt < 0 || pt >= nparts {
			return nil, nil, fmt.Errorf("face %d assigned to part %d outside [0,%d)", i, pt, nparts)
		}
		faceIDs[pt] = append(faceIDs[pt], i)
	}
	subs = make([]*Patch, nparts)
	for np := range subs {
		subs[np] = p.Subset(p.Name, faceIDs[np])
	}
	return
}
