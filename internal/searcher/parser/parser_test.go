package parser

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/normalizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/errors"
)

func TestParse(t *testing.T) {
	p := New(normalizer.New(normalizer.Options{Language: "english", MinTokenLength: 3}))

	tests := []struct {
		query   string
		terms   []string
		exclude []string
		mode    Mode
	}{
		{"", []string{}, []string{}, ModeAnd},
		{"Running Experiments", []string{"run", "experi"}, []string{}, ModeAnd},
		{"castle OR museum", []string{"castl", "museum"}, []string{}, ModeOr},
		{"labs NOT research", []string{"lab"}, []string{"research"}, ModeAnd},
		{"labs -research", []string{"lab"}, []string{"research"}, ModeAnd},
		{"the labs and labs", []string{"lab"}, []string{}, ModeAnd},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			plan := p.Parse(tt.query)
			if !reflect.DeepEqual(plan.Terms, tt.terms) {
				t.Errorf("Terms = %v, want %v", plan.Terms, tt.terms)
			}
			if !reflect.DeepEqual(plan.ExcludeTerms, tt.exclude) {
				t.Errorf("ExcludeTerms = %v, want %v", plan.ExcludeTerms, tt.exclude)
			}
			if plan.Mode != tt.mode {
				t.Errorf("Mode = %v, want %v", plan.Mode, tt.mode)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAnd, "AND": ModeAnd, "or": ModeOr} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMode("xor"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("ParseMode(xor) err = %v", err)
	}
}
