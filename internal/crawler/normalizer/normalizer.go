// Package normalizer turns free text into the ordered index terms shared by
// the crawler, the indexer and the query parser.
package normalizer

import (
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"github.com/kljensen/snowball"
	"golang.org/x/text/unicode/norm"
)

// Normalizer converts text into index terms. ok is false when the text must
// not be indexed at all (for example because it is in the wrong language).
type Normalizer interface {
	Normalize(text string) (tokens []string, ok bool)
}

const (
	// minWordsForLanguageCheck is the shortest text the language check is
	// applied to.
	minWordsForLanguageCheck = 30
	minStopwordRatio         = 0.05
)

// Options configures a Default normalizer.
type Options struct {
	// Language selects the snowball stemmer. For "english" stop words are
	// removed and texts that do not look English are rejected.
	Language       string
	MinTokenLength int
}

// Default segments text into words (Unicode UAX #29), folds case and
// composition, drops stop words and short tokens, and stems with snowball.
type Default struct {
	language string
	minLen   int
	stop     map[string]struct{}
}

// New creates a Default normalizer.
func New(opts Options) *Default {
	if opts.MinTokenLength <= 0 {
		opts.MinTokenLength = 3
	}
	d := &Default{language: opts.Language, minLen: opts.MinTokenLength}
	if opts.Language == "english" {
		d.stop = englishStopwords
	}
	return d
}

// Normalize implements Normalizer.
func (d *Default) Normalize(text string) ([]string, bool) {
	raw := Words(text)
	if len(raw) == 0 {
		return nil, false
	}
	if d.stop != nil && !d.looksEnglish(raw) {
		return nil, false
	}
	return d.terms(raw), true
}

// Terms normalizes text without the language check, for short inputs such
// as queries.
func (d *Default) Terms(text string) []string {
	return d.terms(Words(text))
}

func (d *Default) terms(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, w := range raw {
		if len([]rune(w)) < d.minLen {
			continue
		}
		if _, stop := d.stop[w]; stop {
			continue
		}
		out = append(out, d.stem(w))
	}
	return out
}

func (d *Default) stem(w string) string {
	if d.language == "" {
		return w
	}
	s, err := snowball.Stem(w, d.language, true)
	if err != nil || s == "" {
		return w
	}
	return s
}

func (d *Default) looksEnglish(raw []string) bool {
	if len(raw) < minWordsForLanguageCheck {
		return true
	}
	var hits int
	for _, w := range raw {
		if _, ok := d.stop[w]; ok {
			hits++
		}
	}
	return float64(hits)/float64(len(raw)) >= minStopwordRatio
}

// Words returns the lower-cased, NFC-normalized alphabetic words of text.
// A possessive or contraction suffix after an apostrophe is dropped; words
// containing digits or other symbols are skipped.
func Words(text string) []string {
	text = norm.NFC.String(strings.ToLower(text))
	var out []string
	iter := words.FromString(text)
	for iter.Next() {
		w := iter.Value()
		if i := strings.IndexAny(w, "'’"); i > 0 {
			w = w[:i]
		}
		if w == "" || !allLetters(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func allLetters(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
