package utils

import "fmt"

// MailBox moves messages between NP cooperating goroutines. One round is
//
//	for each message { PostMessage }; DeliverMyMessages; barrier
//	ReceiveMyMessages; read Received; ClearMyMessages; barrier
//
// Each goroutine only touches its own row of the queues, so a round needs no
// locking beyond the two barriers.
type MailBox[T any] struct {
	NP           int
	MessageChans []chan *DynBuffer[T]    // One per receiver
	PostMsgQs    []map[int]*DynBuffer[T] // One per sender, keyed by receiver
	ReceiveMsgQs []*DynBuffer[T]         // One per receiver
	MailFlag     []bool                  // Sender has undelivered messages
}

func NewMailBox[T any](NP int) *MailBox[T] {
	mb := &MailBox[T]{
		NP:           NP,
		MessageChans: make([]chan *DynBuffer[T], NP),
		PostMsgQs:    make([]map[int]*DynBuffer[T], NP),
		ReceiveMsgQs: make([]*DynBuffer[T], NP),
		MailFlag:     make([]bool, NP),
	}
	for n := 0; n < NP; n++ {
		mb.MessageChans[n] = make(chan *DynBuffer[T], NP) // all-to-all worst case
		mb.PostMsgQs[n] = make(map[int]*DynBuffer[T])
		mb.ReceiveMsgQs[n] = NewDynBuffer[T](0)
	}
	return mb
}

func (mb *MailBox[T]) PostMessage(myThread, targetThread int, msg T) {
	if targetThread < 0 || targetThread >= mb.NP {
		panic(fmt.Sprintf("target thread %d out of bounds [0,%d)", targetThread, mb.NP))
	}
	tgt, exists := mb.PostMsgQs[myThread][targetThread]
	if !exists {
		tgt = NewDynBuffer[T](0)
		mb.PostMsgQs[myThread][targetThread] = tgt
	}
	tgt.Add(msg)
	mb.MailFlag[myThread] = true
}

// PostMessageToAll posts msg to every thread but myThread.
func (mb *MailBox[T]) PostMessageToAll(myThread int, msg T) {
	for k := 0; k < mb.NP; k++ {
		if k != myThread {
			mb.PostMessage(myThread, k, msg)
		}
	}
}

// DeliverMyMessages hands every non-empty outgoing queue to its receiver.
func (mb *MailBox[T]) DeliverMyMessages(myThread int) {
	if !mb.MailFlag[myThread] {
		return
	}
	for targetThread, msgBuffer := range mb.PostMsgQs[myThread] {
		if msgBuffer.Len() == 0 {
			continue
		}
		mb.MessageChans[targetThread] <- msgBuffer
	}
	mb.MailFlag[myThread] = false
}

// ReceiveMyMessages drains the delivered queues into the receive queue and
// resets the originating buffers.
func (mb *MailBox[T]) ReceiveMyMessages(myThread int) {
	for {
		select {
		case msgBuffer := <-mb.MessageChans[myThread]:
			for _, msg := range msgBuffer.Cells() {
				mb.ReceiveMsgQs[myThread].Add(msg)
			}
			msgBuffer.Reset()
		default:
			return
		}
	}
}

func (mb *MailBox[T]) Received(myThread int) []T {
	return mb.ReceiveMsgQs[myThread].Cells()
}

func (mb *MailBox[T]) ClearMyMessages(myThread int) {
	mb.ReceiveMsgQs[myThread].Reset()
}

// PartitionMap splits [0,MaxIndex) into ParallelDegree contiguous buckets
// whose sizes differ by at most one.
type PartitionMap struct {
	MaxIndex       int
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of each bucket
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

// Split1D computes bucket threadNum, spreading the remainder over the first
// buckets.
func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	var (
		Npart            = pm.MaxIndex / pm.ParallelDegree
		remainder        = pm.MaxIndex % pm.ParallelDegree
		startAdd, endAdd int
	)
	if remainder != 0 {
		if threadNum+1 > remainder {
			startAdd = remainder
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}
