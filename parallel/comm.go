// Package parallel runs a fixed number of ranks as goroutines that exchange
// data through a utils.MailBox. Every collective call must be made by all
// ranks in the same order.
package parallel

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/notargets/goami/utils"
)

type Envelope struct {
	From    int
	Payload interface{}
}

// World is a group of NP ranks sharing one mailbox.
type World struct {
	NP      int
	mb      *utils.MailBox[Envelope]
	barrier *barrier
}

func NewWorld(NP int) *World {
	if NP < 1 {
		NP = 1
	}
	return &World{
		NP:      NP,
		mb:      utils.NewMailBox[Envelope](NP),
		barrier: newBarrier(NP),
	}
}

// Run executes fn once per rank and waits for all of them. When a rank
// fails the others are released from their next barrier with ErrAborted,
// which is left out of the combined error.
func (w *World) Run(fn func(c *Comm) error) (err error) {
	var (
		wg   sync.WaitGroup
		errs = make([]error, w.NP)
	)
	for np := 0; np < w.NP; np++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					if r != errAbortSignal {
						errs[rank] = fmt.Errorf("rank %d panicked: %v", rank, r)
						w.barrier.abort()
					} else {
						errs[rank] = ErrAborted
					}
				}
			}()
			if errs[rank] = fn(&Comm{rank: rank, world: w}); errs[rank] != nil {
				errs[rank] = fmt.Errorf("rank %d: %w", rank, errs[rank])
				w.barrier.abort()
			}
		}(np)
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil && !errors.Is(e, ErrAborted) {
			err = multierr.Append(err, e)
		}
	}
	if err == nil {
		for _, e := range errs {
			if e != nil {
				return e
			}
		}
	}
	return
}

var ErrAborted = errors.New("parallel: another rank failed")

type abortSignal struct{}

var errAbortSignal = &abortSignal{}

// Comm is one rank's handle on its World.
type Comm struct {
	rank  int
	world *World
}

// Serial returns the communicator of a single-rank world.
func Serial() *Comm {
	return &Comm{world: NewWorld(1)}
}

func (c *Comm) Rank() int        { return c.rank }
func (c *Comm) Size() int        { return c.world.NP }
func (c *Comm) IsParallel() bool { return c.world.NP > 1 }
func (c *Comm) IsMaster() bool   { return c.rank == 0 }

func (c *Comm) Barrier() {
	if c.world.NP == 1 {
		return
	}
	c.world.barrier.wait()
}

// Exchange sends out[p] to rank p and returns what every other rank sent
// here, keyed by sender.
func Exchange[T any](c *Comm, out map[int]T) (in map[int]T) {
	var (
		mb = c.world.mb
		me = c.rank
	)
	procs := make([]int, 0, len(out))
	for p := range out {
		procs = append(procs, p)
	}
	sort.Ints(procs)
	for _, p := range procs {
		mb.PostMessage(me, p, Envelope{From: me, Payload: out[p]})
	}
	return deliver[T](c)
}

// AllGather returns every rank's v, indexed by rank.
func AllGather[T any](c *Comm, v T) (all []T) {
	var (
		mb  = c.world.mb
		me  = c.rank
		env = Envelope{From: me, Payload: v}
	)
	mb.PostMessage(me, me, env)
	mb.PostMessageToAll(me, env)
	all = make([]T, c.Size())
	for p, val := range deliver[T](c) {
		all[p] = val
	}
	return
}

// deliver completes a round of posted messages and returns them keyed by
// sender.
func deliver[T any](c *Comm) (in map[int]T) {
	var (
		mb = c.world.mb
		me = c.rank
	)
	mb.DeliverMyMessages(me)
	c.Barrier()
	mb.ReceiveMyMessages(me)
	in = make(map[int]T)
	for _, env := range mb.Received(me) {
		v, _ := env.Payload.(T)
		in[env.From] = v
	}
	mb.ClearMyMessages(me)
	c.Barrier()
	return
}

// AllReduce folds every rank's v in rank order.
func AllReduce[T any](c *Comm, v T, op func(a, b T) T) (r T) {
	all := AllGather(c, v)
	r = all[0]
	for _, x := range all[1:] {
		r = op(r, x)
	}
	return
}

func SumInt(c *Comm, v int) int {
	return AllReduce(c, v, func(a, b int) int { return a + b })
}

func SumFloat(c *Comm, v float64) float64 {
	return AllReduce(c, v, func(a, b float64) float64 { return a + b })
}

func AnyTrue(c *Comm, v bool) bool {
	return AllReduce(c, v, func(a, b bool) bool { return a || b })
}

// barrier is a reusable generation barrier that can be aborted.
type barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	n, waiting int
	generation int
	aborted    bool
}

func newBarrier(n int) *barrier {
	b := &barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *barrier) wait() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.aborted {
		panic(errAbortSignal)
	}
	gen := b.generation
	b.waiting++
	if b.waiting == b.n {
		b.waiting = 0
		b.generation++
		b.cond.Broadcast()
		return
	}
	for gen == b.generation && !b.aborted {
		b.cond.Wait()
	}
	if gen == b.generation {
		panic(errAbortSignal)
	}
}

func (b *barrier) abort() {
	b.mu.Lock()
	b.aborted = true
	b.cond.Broadcast()
	b.mu.Unlock()
}
