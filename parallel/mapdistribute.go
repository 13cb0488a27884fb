package parallel

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"
)

// MapDistribute describes how a local array is gathered into a constructed
// array that also holds copies of remote items. Item SubMap[p][i] of the
// local array on this rank lands in slot ConstructMap[q][i] of rank p's
// constructed array, where q is this rank.
type MapDistribute struct {
	ConstructSize int
	SubMap        [][]int // per destination rank, local indices to send
	ConstructMap  [][]int // per source rank, slots filled from that rank
}

// NewMapFromSends builds the map that ships local items sends[p] to rank p.
// Received items are constructed in sender rank order, each sender's items
// in the order given. Collective.
func NewMapFromSends(c *Comm, sends [][]int) (m *MapDistribute) {
	var (
		me     = c.Rank()
		np     = c.Size()
		counts = make(map[int]int)
	)
	for p := 0; p < np && p < len(sends); p++ {
		if p != me && len(sends[p]) != 0 {
			counts[p] = len(sends[p])
		}
	}
	in := Exchange(c, counts)
	m = &MapDistribute{
		SubMap:       make([][]int, np),
		ConstructMap: make([][]int, np),
	}
	for p := 0; p < np; p++ {
		if p < len(sends) && len(sends[p]) != 0 {
			m.SubMap[p] = append([]int(nil), sends[p]...)
		}
		n := in[p]
		if p == me {
			n = len(m.SubMap[me])
		}
		if n == 0 {
			continue
		}
		slots := make([]int, n)
		for i := range slots {
			slots[i] = m.ConstructSize
			m.ConstructSize++
		}
		m.ConstructMap[p] = slots
	}
	return
}

// NewMapFromGlobal rewrites addresses, given as global indices of gi, into
// slots of a constructed array and returns the map that fills it. Local items
// keep their local index, remote items follow ordered by rank and global
// index. Collective.
func NewMapFromGlobal(c *Comm, gi *GlobalIndex, addresses [][]int) (m *MapDistribute, err error) {
	var (
		me        = c.Rank()
		np        = c.Size()
		localSize = gi.LocalSize(me)
		remote    = make([]map[int]int, np)
	)
	for _, addr := range addresses {
		for _, g := range addr {
			p := gi.WhichProc(g)
			if p < 0 {
				err = fmt.Errorf("global index %d outside [0,%d)", g, gi.Total())
				break
			}
			if p != me {
				if remote[p] == nil {
					remote[p] = make(map[int]int)
				}
				remote[p][g] = -1
			}
		}
	}
	// every rank must reach the exchange below
	if AnyTrue(c, err != nil) {
		if err == nil {
			err = ErrAborted
		}
		return nil, err
	}
	m = &MapDistribute{
		ConstructSize: localSize,
		SubMap:        make([][]int, np),
		ConstructMap:  make([][]int, np),
	}
	request := make(map[int][]int)
	for p := 0; p < np; p++ {
		if p == me {
			ids := make([]int, localSize)
			for i := range ids {
				ids[i] = i
			}
			m.ConstructMap[p] = ids
			continue
		}
		if len(remote[p]) == 0 {
			continue
		}
		gids := make([]int, 0, len(remote[p]))
		for g := range remote[p] {
			gids = append(gids, g)
		}
		sort.Ints(gids)
		slots := make([]int, len(gids))
		for i, g := range gids {
			slots[i] = m.ConstructSize
			remote[p][g] = m.ConstructSize
			m.ConstructSize++
		}
		m.ConstructMap[p] = slots
		request[p] = gids
	}
	for _, addr := range addresses {
		for i, g := range addr {
			if gi.IsLocal(me, g) {
				addr[i] = g - gi.Offset(me)
			} else {
				addr[i] = remote[gi.WhichProc(g)][g]
			}
		}
	}
	m.SubMap[me] = m.ConstructMap[me]
	for p, gids := range Exchange(c, request) {
		local := make([]int, len(gids))
		for i, g := range gids {
			var lerr error
			if local[i], lerr = gi.ToLocal(me, g); lerr != nil {
				err = multierr.Append(err, fmt.Errorf("request from rank %d: %w", p, lerr))
			}
		}
		m.SubMap[p] = local
	}
	if AnyTrue(c, err != nil) {
		if err == nil {
			err = ErrAborted
		}
		return nil, err
	}
	return
}

// Distribute builds the constructed array from local. Collective.
func Distribute[T any](c *Comm, m *MapDistribute, local []T) (constructed []T) {
	me := c.Rank()
	out := make(map[int][]T)
	for p, sub := range m.SubMap {
		if p == me || len(sub) == 0 {
			continue
		}
		send := make([]T, len(sub))
		for i, k := range sub {
			send[i] = local[k]
		}
		out[p] = send
	}
	in := Exchange(c, out)
	constructed = make([]T, m.ConstructSize)
	for i, k := range m.SubMap[me] {
		constructed[m.ConstructMap[me][i]] = local[k]
	}
	for p, data := range in {
		for i, slot := range m.ConstructMap[p] {
			constructed[slot] = data[i]
		}
	}
	return
}

// ReverseDistribute sends constructed values back to the ranks owning them
// and folds them into an array of localSize with combine, taking senders in
// rank order. Slots nobody writes keep the zero value. Collective.
func ReverseDistribute[T any](c *Comm, m *MapDistribute, constructed []T, localSize int,
	combine func(acc, v T) T) (local []T) {
	me := c.Rank()
	out := make(map[int][]T)
	for p, slots := range m.ConstructMap {
		if p == me || len(slots) == 0 {
			continue
		}
		send := make([]T, len(slots))
		for i, slot := range slots {
			send[i] = constructed[slot]
		}
		out[p] = send
	}
	in := Exchange(c, out)
	local = make([]T, localSize)
	for p := 0; p < c.Size(); p++ {
		var data []T
		if p == me {
			data = make([]T, len(m.ConstructMap[me]))
			for i, slot := range m.ConstructMap[me] {
				data[i] = constructed[slot]
			}
		} else {
			data = in[p]
		}
		for i, k := range m.SubMap[p] {
			if i < len(data) {
				local[k] = combine(local[k], data[i])
			}
		}
	}
	return
}
