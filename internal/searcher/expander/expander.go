// Package expander widens a query with related terms before ranking.
package expander

import (
	"context"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/ranker"
)

// Expander returns the input terms followed by any additions. Implementations
// must keep the input terms and their weights unchanged.
type Expander interface {
	Expand(ctx context.Context, terms []ranker.WeightedTerm) ([]ranker.WeightedTerm, error)
}

// Identity performs no expansion.
type Identity struct{}

func (Identity) Expand(_ context.Context, terms []ranker.WeightedTerm) ([]ranker.WeightedTerm, error) {
	return terms, nil
}

// DefaultMaxPerTerm caps how many synonyms one query term contributes.
const DefaultMaxPerTerm = 2

// Synonyms expands terms from a static table. Keys and values are run through
// the query normalizer so they match index terms.
type Synonyms struct {
	table      map[string][]string
	weight     float64
	maxPerTerm int
}

// NewSynonyms builds the lookup table. A multi-word synonym contributes each
// of its normalized terms.
func NewSynonyms(raw map[string][]string, norm parser.TermNormalizer, weight float64, maxPerTerm int) *Synonyms {
	if maxPerTerm <= 0 {
		maxPerTerm = DefaultMaxPerTerm
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := make(map[string][]string)
	for _, k := range keys {
		for _, key := range norm.Terms(k) {
			for _, syn := range raw[k] {
				for _, term := range norm.Terms(syn) {
					if term != key && !contains(table[key], term) {
						table[key] = append(table[key], term)
					}
				}
			}
		}
	}
	return &Synonyms{table: table, weight: weight, maxPerTerm: maxPerTerm}
}

func (s *Synonyms) Expand(_ context.Context, terms []ranker.WeightedTerm) ([]ranker.WeightedTerm, error) {
	out := make([]ranker.WeightedTerm, len(terms), len(terms)*(1+s.maxPerTerm))
	copy(out, terms)
	present := make(map[string]bool, len(terms))
	for _, t := range terms {
		present[t.Term] = true
	}
	for _, t := range terms {
		added := 0
		for _, syn := range s.table[t.Term] {
			if added == s.maxPerTerm {
				break
			}
			if present[syn] {
				continue
			}
			present[syn] = true
			out = append(out, ranker.WeightedTerm{Term: syn, Weight: s.weight * t.Weight})
			added++
		}
	}
	return out, nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
