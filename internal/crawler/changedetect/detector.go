package changedetect

import (
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/errors"
)

// Outcome is the result of comparing a fetched page with its stored version.
type Outcome int

const (
	New Outcome = iota
	Unchanged
	Updated
)

func (o Outcome) String() string {
	switch o {
	case New:
		return "new"
	case Unchanged:
		return "unchanged"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// Prior is what the detector needs to know about the stored version of a
// page.
type Prior struct {
	Fingerprint uint64
	Freshness   string
}

// Classification describes a fetched page.
type Classification struct {
	Outcome     Outcome
	Fingerprint uint64
	// Distance is the Hamming distance to the prior fingerprint, or -1 when
	// no comparison took place.
	Distance int
	// RefreshFreshness is set when the page is unchanged but its freshness
	// marker differs from the stored one and should be overwritten.
	RefreshFreshness bool
}

// Detector classifies pages against a Hamming-distance threshold.
type Detector struct {
	threshold int
}

// NewDetector creates a Detector. Pages whose fingerprints differ in at most
// threshold bits are considered unchanged.
func NewDetector(threshold int) *Detector {
	if threshold < 0 {
		threshold = 0
	}
	return &Detector{threshold: threshold}
}

// Threshold returns the configured Hamming threshold.
func (d *Detector) Threshold() int {
	return d.threshold
}

// Classify compares the fetched text and freshness marker with prior, which
// is nil for a URL that has never been stored. It returns
// ErrNoExtractableText when a comparison needs a fingerprint and text is
// empty.
func (d *Detector) Classify(prior *Prior, text, freshness string) (Classification, error) {
	if prior != nil && freshness != "" && freshness == prior.Freshness {
		return Classification{
			Outcome:     Unchanged,
			Fingerprint: prior.Fingerprint,
			Distance:    -1,
		}, nil
	}

	if strings.TrimSpace(text) == "" {
		return Classification{Distance: -1}, apperrors.ErrNoExtractableText
	}
	fp := SimHash(text)

	if prior == nil {
		return Classification{Outcome: New, Fingerprint: fp, Distance: -1}, nil
	}

	dist := Hamming(prior.Fingerprint, fp)
	if dist <= d.threshold {
		return Classification{
			Outcome:          Unchanged,
			Fingerprint:      prior.Fingerprint,
			Distance:         dist,
			RefreshFreshness: freshness != prior.Freshness,
		}, nil
	}
	return Classification{Outcome: Updated, Fingerprint: fp, Distance: dist}, nil
}
