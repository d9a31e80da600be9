// Package parser turns a raw query string into normalized terms using the
// same normalizer the crawler applies to documents.
package parser

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/errors"
)

type Mode int

const (
	ModeAnd Mode = iota
	ModeOr
)

func (m Mode) String() string {
	if m == ModeOr {
		return "or"
	}
	return "and"
}

// ParseMode accepts "and", "or" or the empty string (and).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "and":
		return ModeAnd, nil
	case "or":
		return ModeOr, nil
	}
	return ModeAnd, fmt.Errorf("mode %q: %w", s, apperrors.ErrInvalidInput)
}

// TermNormalizer maps free text to index terms.
type TermNormalizer interface {
	Terms(text string) []string
}

type QueryPlan struct {
	Terms        []string
	ExcludeTerms []string
	Mode         Mode
	RawQuery     string
}

type Parser struct {
	norm TermNormalizer
}

func New(norm TermNormalizer) *Parser {
	return &Parser{norm: norm}
}

// Parse recognises the AND, OR and NOT keywords; everything else goes
// through the normalizer. Terms are deduplicated and keep query order.
func (p *Parser) Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Terms:        make([]string, 0),
		ExcludeTerms: make([]string, 0),
		Mode:         ModeAnd,
		RawQuery:     query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	seen := make(map[string]bool)
	excludeNext := false
	for _, word := range strings.Fields(query) {
		switch word {
		case "AND":
			plan.Mode = ModeAnd
			continue
		case "OR":
			plan.Mode = ModeOr
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		exclude := excludeNext || strings.HasPrefix(word, "-")
		excludeNext = false
		for _, term := range p.norm.Terms(strings.TrimPrefix(word, "-")) {
			if exclude {
				plan.ExcludeTerms = append(plan.ExcludeTerms, term)
				continue
			}
			if !seen[term] {
				seen[term] = true
				plan.Terms = append(plan.Terms, term)
			}
		}
	}
	return plan
}
