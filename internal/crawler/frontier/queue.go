package frontier

import "container/heap"

// Entry is one pending URL.
type Entry struct {
	Priority float64 `json:"priority"`
	URL      string  `json:"url"`
	Depth    int     `json:"depth"`
	seq      uint64
}

// entryHeap is a max-heap on Priority; equal priorities pop in insertion
// order.
type entryHeap []*Entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) {
	*h = append(*h, x.(*Entry))
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

type domainQueue struct {
	h entryHeap
}

func (q *domainQueue) push(e *Entry) {
	heap.Push(&q.h, e)
}

func (q *domainQueue) pop() (*Entry, bool) {
	if len(q.h) == 0 {
		return nil, false
	}
	return heap.Pop(&q.h).(*Entry), true
}

func (q *domainQueue) peek() (*Entry, bool) {
	if len(q.h) == 0 {
		return nil, false
	}
	return q.h[0], true
}

func (q *domainQueue) len() int { return len(q.h) }

// entries returns the queued entries in pop order without modifying q.
func (q *domainQueue) entries() []Entry {
	cp := make(entryHeap, len(q.h))
	copy(cp, q.h)
	out := make([]Entry, 0, len(cp))
	for len(cp) > 0 {
		out = append(out, *heap.Pop(&cp).(*Entry))
	}
	return out
}
