package utils

import (
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionMap(t *testing.T) {
	{ // Bucket sizes
		getHisto := func(K, Np int) (histo map[int]int) {
			pm := NewPartitionMap(Np, K)
			histo = make(map[int]int)
			for np := 0; np < pm.ParallelDegree; np++ {
				kMin, kMax := pm.GetBucketRange(np)
				histo[kMax-kMin]++
			}
			return
		}
		getTotal := func(histo map[int]int) (total int) {
			for key, count := range histo {
				total += key * count
			}
			return
		}
		assert.Equal(t, map[int]int{0: 30, 1: 2}, getHisto(2, 32))
		assert.Equal(t, map[int]int{1: 32}, getHisto(32, 32))
		assert.Equal(t, map[int]int{8: 1, 9: 31}, getHisto(287, 32))
		for n := 64; n < 2000; n++ {
			var (
				keys  []float64
				histo = getHisto(n, 32)
			)
			for key := range histo {
				keys = append(keys, float64(key))
			}
			if len(keys) == 2 {
				assert.Equal(t, 1., math.Abs(keys[0]-keys[1])) // imbalance of one
			}
			assert.Equal(t, n, getTotal(histo))
		}
	}
	{ // Buckets tile the index range in order
		for maxIndex := 10; maxIndex < 500; maxIndex++ {
			var (
				pm   = NewPartitionMap(5, maxIndex)
				next int
			)
			for bn := 0; bn < pm.ParallelDegree; bn++ {
				kMin, kMax := pm.GetBucketRange(bn)
				assert.Equal(t, next, kMin)
				next = kMax
			}
			assert.Equal(t, maxIndex, next)
		}
	}
}

func TestMailBox(t *testing.T) {
	const NP = 4
	var (
		mb      = NewMailBox[[2]int](NP)
		got     = make([][][2]int, NP)
		wg      sync.WaitGroup
		barrier = func() { wg.Done(); wg.Wait() }
	)
	// Two phases with a fresh WaitGroup each stand in for a barrier
	wg.Add(NP)
	for n := 0; n < NP; n++ {
		go func(me int) {
			mb.PostMessage(me, (me+1)%NP, [2]int{me, 1})
			mb.PostMessageToAll(me, [2]int{me, 2})
			mb.DeliverMyMessages(me)
			barrier()
		}(n)
	}
	wg.Wait()
	var wg2 sync.WaitGroup
	for n := 0; n < NP; n++ {
		wg2.Add(1)
		go func(me int) {
			defer wg2.Done()
			mb.ReceiveMyMessages(me)
			got[me] = append(got[me], mb.Received(me)...)
			mb.ClearMyMessages(me)
		}(n)
	}
	wg2.Wait()
	for me := 0; me < NP; me++ {
		sort.Slice(got[me], func(i, j int) bool {
			if got[me][i][0] != got[me][j][0] {
				return got[me][i][0] < got[me][j][0]
			}
			return got[me][i][1] < got[me][j][1]
		})
		var want [][2]int
		for from := 0; from < NP; from++ {
			if from == me {
				continue
			}
			if (from+1)%NP == me {
				want = append(want, [2]int{from, 1})
			}
			want = append(want, [2]int{from, 2})
		}
		assert.Equal(t, want, got[me])
		assert.Equal(t, 0, mb.ReceiveMsgQs[me].Len())
		for _, buf := range mb.PostMsgQs[me] {
			assert.Equal(t, 0, buf.Len())
		}
	}
}

func TestDynBuffer(t *testing.T) {
	db := NewDynBuffer[string](2)
	db.Add("a")
	db.Add("b")
	db.Add("c")
	assert.Equal(t, []string{"a", "b", "c"}, db.Cells())
	db.Reset()
	assert.Equal(t, 0, db.Len())
	db.Add("d")
	assert.Equal(t, []string{"d"}, db.Cells())
}
