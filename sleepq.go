package lthread

import (
	"container/heap"
	"container/list"
)

// sleepNode holds every lthread sharing one absolute wake deadline, FIFO in
// insertion order. Nodes are created lazily on first sleeper at a key and
// freed when their list empties.
type sleepNode struct {
	usecs int64
	lts   *list.List
	index int // heap index, maintained by nodeHeap
}

// nodeHeap is a min-heap of sleep nodes ordered by deadline.
type nodeHeap []*sleepNode

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].usecs < h[j].usecs }

func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *nodeHeap) Push(x any) {
	n := x.(*sleepNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

// sleepQueue is the timing structure of a scheduler: deadlines in a min-heap
// with a key map for find-or-create, one node per distinct microsecond.
type sleepQueue struct {
	heap  nodeHeap
	byKey map[int64]*sleepNode
}

func newSleepQueue() sleepQueue {
	return sleepQueue{byKey: make(map[int64]*sleepNode)}
}

// add inserts lt at the given absolute deadline and tags it Sleeping. The
// node and list element are recorded on the lthread for O(1) removal.
func (q *sleepQueue) add(lt *Lthread, deadline int64) {
	n := q.byKey[deadline]
	if n == nil {
		n = &sleepNode{usecs: deadline, lts: list.New()}
		q.byKey[deadline] = n
		heap.Push(&q.heap, n)
	}
	lt.sleepElem = n.lts.PushBack(lt)
	lt.node = n
	lt.deadline = deadline
	lt.state = StateSleeping
}

// remove takes lt out of its node, freeing the node if it empties. No-op if
// lt is not sleeping.
func (q *sleepQueue) remove(lt *Lthread) {
	n := lt.node
	if n == nil {
		return
	}
	n.lts.Remove(lt.sleepElem)
	lt.sleepElem = nil
	lt.node = nil
	lt.deadline = 0
	if n.lts.Len() == 0 {
		heap.Remove(&q.heap, n.index)
		delete(q.byKey, n.usecs)
	}
}

// nextDeadline returns the earliest deadline, if any.
func (q *sleepQueue) nextDeadline() (int64, bool) {
	if len(q.heap) == 0 {
		return 0, false
	}
	return q.heap[0].usecs, true
}

// expireUpTo removes every node with deadline <= now, tags each member
// Expired, and returns the members in (deadline, insertion) order.
func (q *sleepQueue) expireUpTo(now int64) []*Lthread {
	var expired []*Lthread
	for len(q.heap) > 0 && q.heap[0].usecs <= now {
		n := heap.Pop(&q.heap).(*sleepNode)
		delete(q.byKey, n.usecs)
		for e := n.lts.Front(); e != nil; e = e.Next() {
			lt := e.Value.(*Lthread)
			lt.sleepElem = nil
			lt.node = nil
			lt.state = StateExpired
			expired = append(expired, lt)
		}
		n.lts.Init()
	}
	return expired
}

// len reports the number of sleeping lthreads, for counters and tests.
func (q *sleepQueue) len() int {
	total := 0
	for _, n := range q.byKey {
		total += n.lts.Len()
	}
	return total
}
