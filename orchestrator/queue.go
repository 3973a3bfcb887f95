package orchestrator

import (
	"container/heap"
	"sync"

	"github.com/hupe1980/graphmind/core"
)

// queueItem pairs a pending output with the submitting agent's fitness at
// enqueue time. seq preserves submission order for equal-confidence items.
type queueItem struct {
	out     *core.AgentOutput
	fitness float64
	seq     uint64
	index   int
}

// itemHeap orders items by confidence descending; ties go to the earlier
// submission so equal-confidence outputs are validated in arrival order.
type itemHeap []*queueItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].out.Confidence != h[j].out.Confidence {
		return h[i].out.Confidence > h[j].out.Confidence
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// intakeQueue is the bounded priority queue between agent dispatch and the
// validation worker. When full, it sheds load from the lowest-fitness
// producer: a submission from a weaker agent than everything queued is
// rejected outright, otherwise the weakest queued item is evicted to make
// room. Shedding never blocks a producer.
type intakeQueue struct {
	mu       sync.Mutex
	items    itemHeap
	capacity int
	seq      uint64
	shed     uint64
}

func newIntakeQueue(capacity int) *intakeQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &intakeQueue{capacity: capacity}
}

// Push enqueues an output, shedding by fitness when the queue is full. The
// return value reports whether the submitted output was kept.
func (q *intakeQueue) Push(out *core.AgentOutput, fitness float64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		victim := q.weakestLocked()
		if victim == nil || fitness <= victim.fitness {
			// The newcomer is from the weakest producer; on equal
			// fitness the already-queued work wins.
			q.shed++
			return false
		}
		heap.Remove(&q.items, victim.index)
		q.shed++
	}

	q.seq++
	heap.Push(&q.items, &queueItem{out: out, fitness: fitness, seq: q.seq})
	return true
}

// Pop removes and returns the highest-priority output, or nil when empty.
func (q *intakeQueue) Pop() *core.AgentOutput {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	item := heap.Pop(&q.items).(*queueItem)
	return item.out
}

// Len reports the number of queued outputs.
func (q *intakeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Shed reports how many outputs have been dropped under load.
func (q *intakeQueue) Shed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shed
}

// weakestLocked scans for the queued item with the lowest producer fitness.
func (q *intakeQueue) weakestLocked() *queueItem {
	var weakest *queueItem
	for _, item := range q.items {
		if weakest == nil || item.fitness < weakest.fitness {
			weakest = item
		}
	}
	return weakest
}
