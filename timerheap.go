package dispatcher

import "container/heap"

// timerHeap is a min-heap of timer listeners ordered by next fire time.
// Equal fire times break ties by ascending key, so timers registered
// earlier fire earlier. Each element tracks its own heap index, which is
// what makes remove-by-key an O(log n) interior extraction rather than a
// root pop.
type timerHeap []*timerListener

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if c := h[i].nextFire.Compare(h[j].nextFire); c != 0 {
		return c < 0
	}
	return h[i].key < h[j].key
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timerListener)
	t.heapIndex = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.heapIndex = -1
	*h = old[:n-1]
	return t
}

// timerQueue pairs the heap with a key index so arbitrary interior
// elements can be located and extracted.
type timerQueue struct {
	heap  timerHeap
	byKey map[ListenerKey]*timerListener
}

func newTimerQueue() *timerQueue {
	return &timerQueue{byKey: make(map[ListenerKey]*timerListener)}
}

func (q *timerQueue) len() int {
	return len(q.heap)
}

// peek returns the earliest pending timer without removing it, or nil.
func (q *timerQueue) peek() *timerListener {
	if len(q.heap) == 0 {
		return nil
	}
	return q.heap[0]
}

// push inserts or re-inserts a timer listener.
func (q *timerQueue) push(t *timerListener) {
	q.byKey[t.key] = t
	heap.Push(&q.heap, t)
}

// popDue removes and returns the root if its fire time is at or before
// now, or nil.
func (q *timerQueue) popDue(now Time) *timerListener {
	if len(q.heap) == 0 || q.heap[0].nextFire.After(now) {
		return nil
	}
	t := heap.Pop(&q.heap).(*timerListener)
	delete(q.byKey, t.key)
	return t
}

// remove extracts the timer with the given key from anywhere in the heap,
// rebalancing afterwards. Reports whether the key was present.
func (q *timerQueue) remove(key ListenerKey) bool {
	t, ok := q.byKey[key]
	if !ok {
		return false
	}
	delete(q.byKey, key)
	heap.Remove(&q.heap, t.heapIndex)
	return true
}
