package index

import (
	"math"
	"sort"
	"time"
)

// Builder accumulates documents for a full rebuild. It is not safe for
// concurrent use.
type Builder struct {
	positions map[string]map[int][]int
	tf        map[int]map[string]int
	docLen    map[int]int
	docs      map[int]DocMeta
	df        map[string]int
	docCount  int
	tokens    int64
}

func NewBuilder() *Builder {
	return &Builder{
		positions: make(map[string]map[int][]int),
		tf:        make(map[int]map[string]int),
		docLen:    make(map[int]int),
		docs:      make(map[int]DocMeta),
		df:        make(map[string]int),
	}
}

// Add records one document. Documents without tokens still count toward
// the corpus size used for IDF.
func (b *Builder) Add(docID int, meta DocMeta, tokens []string) {
	b.docCount++
	b.docs[docID] = meta

	counts := make(map[string]int)
	for pos, term := range tokens {
		docs, ok := b.positions[term]
		if !ok {
			docs = make(map[int][]int)
			b.positions[term] = docs
		}
		docs[docID] = append(docs[docID], pos)
		counts[term]++
	}
	for term := range counts {
		b.df[term]++
	}
	b.tf[docID] = counts
	b.docLen[docID] = len(tokens)
	b.tokens += int64(len(tokens))
}

func (b *Builder) DocCount() int {
	return b.docCount
}

// Build freezes the accumulated state. idf = log10(D/df) with D the number of
// documents added.
func (b *Builder) Build() *Index {
	x := &Index{
		Skip:       make(map[string]SkipList, len(b.positions)),
		Positional: make(map[string]PositionalList, len(b.positions)),
		TF:         b.tf,
		IDF:        make(map[string]float64, len(b.df)),
		DocLen:     b.docLen,
		DocCount:   b.docCount,
		Docs:       b.docs,
		BuiltAt:    time.Now().UTC(),
	}
	if b.docCount > 0 {
		x.AvgDocLen = float64(b.tokens) / float64(b.docCount)
	}

	for term, docs := range b.positions {
		ids := make([]int, 0, len(docs))
		for id := range docs {
			ids = append(ids, id)
		}
		sort.Ints(ids)

		positional := make(PositionalList, len(ids))
		for i, id := range ids {
			positional[i] = PositionalEntry{DocID: id, Positions: docs[id]}
		}
		x.Skip[term] = BuildSkipList(ids)
		x.Positional[term] = positional
		x.IDF[term] = math.Log10(float64(b.docCount) / float64(b.df[term]))
	}
	return x
}
