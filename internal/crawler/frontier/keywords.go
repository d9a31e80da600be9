package frontier

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/config"
)

// Tier is a keyword relevance tier.
type Tier int

const (
	VeryRelevant Tier = iota
	Relevant
	Moderate
)

var tierWeights = map[Tier]float64{
	VeryRelevant: 20,
	Relevant:     10,
	Moderate:     5,
}

// Weight returns the score contributed by one match of a keyword in t.
func (t Tier) Weight() float64 {
	return tierWeights[t]
}

func (t Tier) String() string {
	switch t {
	case VeryRelevant:
		return "very_relevant"
	case Relevant:
		return "relevant"
	case Moderate:
		return "moderate"
	default:
		return "unknown"
	}
}

const depthPenalty = 5.0

type keyword struct {
	tokens []string
	weight float64
}

// Scorer assigns frontier priorities from topical keyword matches.
type Scorer struct {
	keywords   []keyword
	allowList  []string
	allowBonus float64
}

// NewScorer builds a Scorer from the configured keyword tiers and
// allow-list.
func NewScorer(tiers config.KeywordTiers, allowList []string, allowBonus float64) *Scorer {
	s := &Scorer{allowList: allowList, allowBonus: allowBonus}
	add := func(words []string, t Tier) {
		for _, w := range words {
			toks := ScoringTokens(w)
			if len(toks) == 0 {
				continue
			}
			s.keywords = append(s.keywords, keyword{tokens: toks, weight: t.Weight()})
		}
	}
	add(tiers.VeryRelevant, VeryRelevant)
	add(tiers.Relevant, Relevant)
	add(tiers.Moderate, Moderate)
	return s
}

// ScoringTokens lower-cases and NFC-folds text and splits it on every rune
// that is not a letter or digit.
func ScoringTokens(text string) []string {
	text = norm.NFC.String(strings.ToLower(text))
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// matchScore sums the weight of every keyword present in tokens, each
// keyword counted once.
func (s *Scorer) matchScore(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	var score float64
	for _, kw := range s.keywords {
		if containsRun(tokens, set, kw.tokens) {
			score += kw.weight
		}
	}
	return score
}

func containsRun(tokens []string, set map[string]struct{}, run []string) bool {
	if len(run) == 1 {
		_, ok := set[run[0]]
		return ok
	}
	for _, r := range run {
		if _, ok := set[r]; !ok {
			return false
		}
	}
outer:
	for i := 0; i+len(run) <= len(tokens); i++ {
		for j, r := range run {
			if tokens[i+j] != r {
				continue outer
			}
		}
		return true
	}
	return false
}

// PageContext carries the keyword score of a source page so it is computed
// once for all of the page's outbound links.
type PageContext struct {
	score float64
}

// Page scores the tokens of a source page at half weight.
func (s *Scorer) Page(tokens []string) *PageContext {
	return &PageContext{score: s.matchScore(tokens) / 2}
}

// Score computes the priority of u discovered via a link with anchor text
// from a page at the given context and depth.
func (s *Scorer) Score(u *url.URL, anchor string, page *PageContext, depth int) float64 {
	score := s.matchScore(ScoringTokens(anchor))
	score += s.matchScore(ScoringTokens(u.Host + " " + u.Path + " " + u.RawQuery))
	if page != nil {
		score += page.score
	}
	score -= depthPenalty * float64(depth)
	if score < 0 {
		score = 0
	}
	for _, d := range s.allowList {
		if hostMatches(u.Hostname(), d) {
			score += s.allowBonus
			break
		}
	}
	return score
}
