package index

import (
	"sort"
	"time"
)

// DocMeta is the display metadata kept for every indexed document.
type DocMeta struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Index is an immutable, fully built view of the corpus. It is replaced as
// a whole on every rebuild and is safe for concurrent reads.
type Index struct {
	Skip       map[string]SkipList
	Positional map[string]PositionalList
	TF         map[int]map[string]int
	IDF        map[string]float64
	DocLen     map[int]int
	AvgDocLen  float64
	DocCount   int
	Docs       map[int]DocMeta
	BuiltAt    time.Time
}

// Postings returns the skip list for term, or nil when unknown.
func (x *Index) Postings(term string) SkipList {
	return x.Skip[term]
}

// Positions returns the ascending offsets of term within docID.
func (x *Index) Positions(term string, docID int) []int {
	ps, _ := x.Positional[term].Find(docID)
	return ps
}

func (x *Index) TermFreq(docID int, term string) int {
	return x.TF[docID][term]
}

// IDFOf returns 0 for terms the corpus does not contain.
func (x *Index) IDFOf(term string) float64 {
	return x.IDF[term]
}

func (x *Index) Meta(docID int) (DocMeta, bool) {
	m, ok := x.Docs[docID]
	return m, ok
}

// Terms returns the vocabulary in sorted order.
func (x *Index) Terms() []string {
	terms := make([]string, 0, len(x.Skip))
	for t := range x.Skip {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// Entries returns both postings forms per term, sorted by term.
func (x *Index) Entries() []TermEntry {
	terms := x.Terms()
	entries := make([]TermEntry, 0, len(terms))
	for _, t := range terms {
		entries = append(entries, TermEntry{
			Term:       t,
			Skip:       x.Skip[t],
			Positional: x.Positional[t],
		})
	}
	return entries
}
