// Package merger selects the best scored documents while preserving the
// relative order of equal scores.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/ranker"
)

// TopK returns at most limit documents ordered by descending score. Equal
// scores keep their order of appearance in docs.
func TopK(docs []ranker.ScoredDoc, limit int) []ranker.ScoredDoc {
	return Merge([][]ranker.ScoredDoc{docs}, limit)
}

// Merge combines several result lists. Ties are broken by list order, then
// by position within the list.
func Merge(lists [][]ranker.ScoredDoc, limit int) []ranker.ScoredDoc {
	if limit <= 0 {
		limit = 10
	}
	h := &scoredDocHeap{}
	heap.Init(h)
	seq := 0
	for _, results := range lists {
		for _, doc := range results {
			heap.Push(h, entry{doc: doc, seq: seq})
			seq++
			if h.Len() > limit {
				heap.Pop(h)
			}
		}
	}
	result := make([]ranker.ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(entry).doc
	}
	return result
}

type entry struct {
	doc ranker.ScoredDoc
	seq int
}

// scoredDocHeap is a min-heap whose root is the entry to evict first.
type scoredDocHeap []entry

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	if h[i].doc.Score != h[j].doc.Score {
		return h[i].doc.Score < h[j].doc.Score
	}
	return h[i].seq > h[j].seq
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x any) {
	*h = append(*h, x.(entry))
}

func (h *scoredDocHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
