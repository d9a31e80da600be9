package index

import (
	"container/heap"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// IntersectSkip merges two postings lists, advancing the lagging side and
// following its skip pointer whenever the target doc_id does not pass the
// other side's current doc_id.
func IntersectSkip(a, b SkipList) []int {
	out := make([]int, 0)
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		x, y := a[i].DocID, b[j].DocID
		switch {
		case x == y:
			out = append(out, x)
			i++
			j++
		case x < y:
			i = advance(a, i, y)
		default:
			j = advance(b, j, x)
		}
	}
	return out
}

func advance(l SkipList, i, target int) int {
	e := l[i]
	if e.HasSkip() && e.SkipIndex > i && e.SkipDocID <= target {
		return e.SkipIndex
	}
	return i + 1
}

// IntersectAll intersects every list, shortest first. Any empty input
// yields an empty result.
func IntersectAll(lists ...SkipList) []int {
	if len(lists) == 0 {
		return []int{}
	}
	ordered := make([]SkipList, len(lists))
	copy(ordered, lists)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i]) < len(ordered[j])
	})

	acc := ordered[0]
	result := acc.DocIDs()
	for _, next := range ordered[1:] {
		if len(result) == 0 {
			break
		}
		result = IntersectSkip(acc, next)
		acc = BuildSkipList(result)
	}
	return result
}

// Union returns the ascending set of doc ids present in any list.
func Union(lists ...SkipList) []int {
	bm := roaring.New()
	for _, l := range lists {
		for _, e := range l {
			bm.Add(uint32(e.DocID))
		}
	}
	ids := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		ids = append(ids, int(it.Next()))
	}
	return ids
}

func within(d, window int, strict bool) bool {
	if strict {
		return d < window
	}
	return d <= window
}

// InRange reports whether some position of a lies within window of some
// position of b. Both slices must be ascending.
func InRange(a, b []int, window int, strict bool) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		d := a[i] - b[j]
		if d < 0 {
			d = -d
		}
		if within(d, window, strict) {
			return true
		}
		if a[i] < b[j] {
			i++
		} else {
			j++
		}
	}
	return false
}

// IntersectRange returns the documents holding both terms within window of
// each other.
func IntersectRange(a, b PositionalList, window int, strict bool) []int {
	out := make([]int, 0)
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].DocID == b[j].DocID:
			if InRange(a[i].Positions, b[j].Positions, window, strict) {
				out = append(out, a[i].DocID)
			}
			i++
			j++
		case a[i].DocID < b[j].DocID:
			i++
		default:
			j++
		}
	}
	return out
}

// HasRun reports whether the position lists contain p, p+1, ..., p+k-1 for
// some p, i.e. the terms occur consecutively in order.
func HasRun(positions [][]int) bool {
	if len(positions) == 0 {
		return false
	}
	for _, start := range positions[0] {
		ok := true
		for k := 1; k < len(positions) && ok; k++ {
			ok = contains(positions[k], start+k)
		}
		if ok {
			return true
		}
	}
	return false
}

func contains(sorted []int, v int) bool {
	i := sort.SearchInts(sorted, v)
	return i < len(sorted) && sorted[i] == v
}

type cursor struct {
	list int
	idx  int
	pos  int
}

type cursorHeap []cursor

func (h cursorHeap) Len() int           { return len(h) }
func (h cursorHeap) Less(i, j int) bool { return h[i].pos < h[j].pos }
func (h cursorHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)        { *h = append(*h, x.(cursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MinSpan returns the smallest max-min spread over one position taken from
// each list, or -1 if any list is empty.
func MinSpan(positions [][]int) int {
	if len(positions) == 0 {
		return -1
	}
	h := make(cursorHeap, 0, len(positions))
	hi := math.MinInt
	for l, ps := range positions {
		if len(ps) == 0 {
			return -1
		}
		h = append(h, cursor{list: l, pos: ps[0]})
		hi = max(hi, ps[0])
	}
	heap.Init(&h)

	best := math.MaxInt
	for {
		lo := h[0]
		best = min(best, hi-lo.pos)
		next := lo.idx + 1
		if next >= len(positions[lo.list]) {
			return best
		}
		h[0] = cursor{list: lo.list, idx: next, pos: positions[lo.list][next]}
		hi = max(hi, h[0].pos)
		heap.Fix(&h, 0)
	}
}
