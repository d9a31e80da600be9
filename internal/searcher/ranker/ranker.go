// Package ranker scores candidate documents with BM25 plus a positional
// proximity bonus.
package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/config"
)

// WeightedTerm is a normalized query term and its contribution weight.
// Original query terms weigh 1.0; expansions weigh less.
type WeightedTerm struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// ScoredDoc is a ranked document. Score = BM25 + Proximity.
type ScoredDoc struct {
	DocID     int     `json:"doc_id"`
	Score     float64 `json:"score"`
	BM25      float64 `json:"bm25"`
	Proximity float64 `json:"proximity"`
}

// Params tunes BM25 and the proximity bonus.
type Params struct {
	K1          float64
	B           float64
	Window      int
	Strict      bool
	PhraseBonus float64
	WindowBonus float64
}

func DefaultParams() Params {
	return Params{K1: 1.5, B: 0.75, Window: 3, PhraseBonus: 1.0, WindowBonus: 0.5}
}

// ParamsFromConfig reads ranking parameters from the search section.
func ParamsFromConfig(cfg config.SearchConfig) Params {
	return Params{
		K1:          cfg.K1,
		B:           cfg.B,
		Window:      cfg.ProximityWindow,
		Strict:      cfg.StrictProximity,
		PhraseBonus: cfg.PhraseBonus,
		WindowBonus: cfg.WindowBonus,
	}
}

type Ranker struct {
	params Params
}

func New(p Params) *Ranker {
	return &Ranker{params: p}
}

func (r *Ranker) Params() Params {
	return r.params
}

// Rank scores every candidate and sorts by descending score. Candidates with
// equal scores keep their input order.
func (r *Ranker) Rank(x *index.Index, terms []WeightedTerm, candidates []int) []ScoredDoc {
	phrase := Distinct(terms)
	out := make([]ScoredDoc, 0, len(candidates))
	for _, docID := range candidates {
		bm := r.BM25(x, terms, docID)
		prox := r.Proximity(x, phrase, docID)
		out = append(out, ScoredDoc{DocID: docID, Score: bm + prox, BM25: bm, Proximity: prox})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// BM25 sums the weighted per-term contributions for docID.
func (r *Ranker) BM25(x *index.Index, terms []WeightedTerm, docID int) float64 {
	docLen := float64(x.DocLen[docID])
	var score float64
	for _, t := range terms {
		tf := float64(x.TermFreq(docID, t.Term))
		score += t.Weight * TermScore(x.IDFOf(t.Term), tf, docLen, x.AvgDocLen, r.params.K1, r.params.B)
	}
	return score
}

// TermScore is one BM25 summand. A zero idf or a non-positive denominator
// contributes nothing.
func TermScore(idf, tf, docLen, avgDocLen, k1, b float64) float64 {
	if idf == 0 || tf == 0 {
		return 0
	}
	ratio := 0.0
	if avgDocLen > 0 {
		ratio = docLen / avgDocLen
	}
	denom := tf + k1*(1-b+b*ratio)
	if denom <= 0 {
		return 0
	}
	return idf * (tf * (k1 + 1)) / denom
}

// Proximity returns the phrase bonus when terms occur consecutively in order,
// the window bonus when one occurrence of each lies within the window, and 0
// otherwise or when any term is missing from docID.
func (r *Ranker) Proximity(x *index.Index, terms []string, docID int) float64 {
	if len(terms) == 0 {
		return 0
	}
	positions := make([][]int, len(terms))
	for i, t := range terms {
		ps := x.Positions(t, docID)
		if len(ps) == 0 {
			return 0
		}
		positions[i] = ps
	}
	if index.HasRun(positions) {
		return r.params.PhraseBonus
	}
	span := index.MinSpan(positions)
	if span < 0 {
		return 0
	}
	if r.params.Strict {
		if span < r.params.Window {
			return r.params.WindowBonus
		}
		return 0
	}
	if span <= r.params.Window {
		return r.params.WindowBonus
	}
	return 0
}

// Distinct returns the term strings in first-seen order without duplicates.
func Distinct(terms []WeightedTerm) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if seen[t.Term] {
			continue
		}
		seen[t.Term] = true
		out = append(out, t.Term)
	}
	return out
}

// Uniform weights every term 1.0.
func Uniform(terms []string) []WeightedTerm {
	out := make([]WeightedTerm, len(terms))
	for i, t := range terms {
		out[i] = WeightedTerm{Term: t, Weight: 1.0}
	}
	return out
}
