package parallel

import (
	"fmt"
	"sort"
)

// GlobalIndex numbers items held across ranks contiguously in rank order.
type GlobalIndex struct {
	offsets []int // len NP+1
}

// NewGlobalIndex is collective.
func NewGlobalIndex(c *Comm, localSize int) *GlobalIndex {
	return NewGlobalIndexFromSizes(AllGather(c, localSize))
}

func NewGlobalIndexFromSizes(sizes []int) (gi *GlobalIndex) {
	gi = &GlobalIndex{offsets: make([]int, len(sizes)+1)}
	for p, n := range sizes {
		gi.offsets[p+1] = gi.offsets[p] + n
	}
	return
}

func (gi *GlobalIndex) NProcs() int         { return len(gi.offsets) - 1 }
func (gi *GlobalIndex) Total() int          { return gi.offsets[len(gi.offsets)-1] }
func (gi *GlobalIndex) Offset(proc int) int { return gi.offsets[proc] }

func (gi *GlobalIndex) LocalSize(proc int) int { return gi.offsets[proc+1] - gi.offsets[proc] }

func (gi *GlobalIndex) ToGlobal(proc, i int) int { return gi.offsets[proc] + i }

func (gi *GlobalIndex) IsLocal(proc, g int) bool {
	return g >= gi.offsets[proc] && g < gi.offsets[proc+1]
}

func (gi *GlobalIndex) ToLocal(proc, g int) (int, error) {
	if !gi.IsLocal(proc, g) {
		return -1, fmt.Errorf("global index %d not held by rank %d [%d,%d)",
			g, proc, gi.offsets[proc], gi.offsets[proc+1])
	}
	return g - gi.offsets[proc], nil
}

// WhichProc returns the rank holding g, -1 when out of range.
func (gi *GlobalIndex) WhichProc(g int) int {
	if g < 0 || g >= gi.Total() {
		return -1
	}
	// first offset strictly greater than g, minus one
	return sort.SearchInts(gi.offsets, g+1) - 1
}
