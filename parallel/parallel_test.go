package parallel

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectives(t *testing.T) {
	{ // AllGather and reductions
		var (
			w    = NewWorld(4)
			mu   sync.Mutex
			seen = make(map[int][]int)
		)
		err := w.Run(func(c *Comm) error {
			all := AllGather(c, 10*c.Rank())
			sum := SumInt(c, c.Rank())
			vote := AnyTrue(c, c.Rank() == 2)
			mu.Lock()
			seen[c.Rank()] = append(all, sum)
			mu.Unlock()
			if !vote {
				return fmt.Errorf("AnyTrue lost a vote")
			}
			return nil
		})
		require.NoError(t, err)
		for rank := 0; rank < 4; rank++ {
			assert.Equal(t, []int{0, 10, 20, 30, 6}, seen[rank])
		}
	}
	{ // Exchange only delivers what was sent
		w := NewWorld(3)
		got := make([]map[int]string, 3)
		require.NoError(t, w.Run(func(c *Comm) error {
			out := map[int]string{(c.Rank() + 1) % 3: fmt.Sprintf("from %d", c.Rank())}
			got[c.Rank()] = Exchange(c, out)
			return nil
		}))
		assert.Equal(t, map[int]string{2: "from 2"}, got[0])
		assert.Equal(t, map[int]string{0: "from 0"}, got[1])
	}
	{ // Serial communicator
		c := Serial()
		assert.False(t, c.IsParallel())
		assert.Equal(t, []float64{1.5}, AllGather(c, 1.5))
		assert.Equal(t, map[int]int{0: 7}, Exchange(c, map[int]int{0: 7}))
	}
	{ // A failing rank releases the others
		w := NewWorld(3)
		boom := errors.New("boom")
		err := w.Run(func(c *Comm) error {
			if c.Rank() == 1 {
				return boom
			}
			c.Barrier()
			c.Barrier()
			return nil
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, boom))
		assert.False(t, errors.Is(err, ErrAborted))
	}
}

func TestGlobalIndex(t *testing.T) {
	gi := NewGlobalIndexFromSizes([]int{3, 0, 2, 4})
	assert.Equal(t, 9, gi.Total())
	assert.Equal(t, 4, gi.NProcs())
	assert.Equal(t, []int{0, 0, 0, 2, 2, 3, 3, 3, 3}, func() (procs []int) {
		for g := 0; g < 9; g++ {
			procs = append(procs, gi.WhichProc(g))
		}
		return
	}())
	assert.Equal(t, -1, gi.WhichProc(9))
	assert.Equal(t, 6, gi.ToGlobal(3, 1))
	l, err := gi.ToLocal(2, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, l)
	_, err = gi.ToLocal(1, 4)
	assert.Error(t, err)
}

func TestMapDistribute(t *testing.T) {
	// Rank r holds values 100*r+i. Each rank asks for a mix of local and
	// remote global indices.
	const NP = 3
	var (
		sizes   = []int{2, 3, 1}
		w       = NewWorld(NP)
		results = make([][]int, NP)
		backs   = make([][][]int, NP)
	)
	err := w.Run(func(c *Comm) error {
		gi := NewGlobalIndex(c, sizes[c.Rank()])
		local := make([]int, sizes[c.Rank()])
		for i := range local {
			local[i] = 100*c.Rank() + i
		}
		var addresses [][]int
		switch c.Rank() {
		case 0:
			addresses = [][]int{{0, 4}, {5, 2, 4}}
		case 1:
			addresses = [][]int{{1}, {}}
		case 2:
			addresses = [][]int{{5, 0, 3}}
		}
		m, err := NewMapFromGlobal(c, gi, addresses)
		if err != nil {
			return err
		}
		constructed := Distribute(c, m, local)
		var gathered []int
		for _, addr := range addresses {
			for _, slot := range addr {
				gathered = append(gathered, constructed[slot])
			}
		}
		results[c.Rank()] = gathered
		// Send each constructed slot's own rank back to the owner
		tags := make([][]int, m.ConstructSize)
		for i := range tags {
			tags[i] = []int{c.Rank()}
		}
		backs[c.Rank()] = ReverseDistribute(c, m, tags, sizes[c.Rank()],
			func(acc, v []int) []int { return append(acc, v...) })
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 102, 200, 100, 102}, results[0])
	assert.Equal(t, []int{1}, results[1])
	assert.Equal(t, []int{200, 0, 101}, results[2])
	// Local items always see their own rank, remote readers are merged in
	// rank order
	assert.Equal(t, [][]int{{0, 2}, {0, 1}}, backs[0])
	assert.Equal(t, [][]int{{0, 1}, {1, 2}, {0, 1}}, backs[1])
	assert.Equal(t, [][]int{{0, 2}}, backs[2])
}

func TestMapDistributeBadIndex(t *testing.T) {
	w := NewWorld(2)
	err := w.Run(func(c *Comm) error {
		gi := NewGlobalIndex(c, 2)
		addr := [][]int{{0}}
		if c.Rank() == 1 {
			addr = [][]int{{17}}
		}
		_, err := NewMapFromGlobal(c, gi, addr)
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "17")
}

func TestMapFromSends(t *testing.T) {
	const NP = 3
	var (
		w   = NewWorld(NP)
		got = make([][]string, NP)
	)
	require.NoError(t, w.Run(func(c *Comm) error {
		local := []string{fmt.Sprintf("%d.a", c.Rank()), fmt.Sprintf("%d.b", c.Rank())}
		sends := make([][]int, NP)
		// every rank sends item 1 everywhere and item 0 to itself
		for p := range sends {
			sends[p] = []int{1}
		}
		sends[c.Rank()] = []int{0, 1}
		m := NewMapFromSends(c, sends)
		got[c.Rank()] = Distribute(c, m, local)
		return nil
	}))
	assert.Equal(t, []string{"0.a", "0.b", "1.b", "2.b"}, got[0])
	assert.Equal(t, []string{"0.b", "1.a", "1.b", "2.b"}, got[1])
	assert.Equal(t, []string{"0.b", "1.b", "2.a", "2.b"}, got[2])
}
