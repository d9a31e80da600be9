package changedetect

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/errors"
)

const sampleText = "the university of tuebingen is a public research university located in the city of tuebingen " +
	"founded in 1477 it is one of the oldest universities in germany and has a strong focus on machine learning " +
	"neuroscience and medicine with many institutes spread across the old town and the morgenstelle campus"

func TestSimHashDeterministic(t *testing.T) {
	a := SimHash(sampleText)
	b := SimHash(sampleText)
	if a != b {
		t.Fatalf("SimHash not deterministic: %x != %x", a, b)
	}
	if Hamming(a, b) != 0 {
		t.Errorf("self distance = %d, want 0", Hamming(a, b))
	}
}

func TestSimHashCaseInsensitive(t *testing.T) {
	if SimHash(strings.ToUpper(sampleText)) != SimHash(sampleText) {
		t.Error("SimHash should ignore case")
	}
}

func TestSimHashEmpty(t *testing.T) {
	if got := SimHash("   \n\t "); got != 0 {
		t.Errorf("SimHash(blank) = %x, want 0", got)
	}
}

func TestSimHashSmallEditIsClose(t *testing.T) {
	text := strings.Repeat(sampleText+" ", 3)
	edited := strings.Replace(text, "founded", "established", 1)
	d := Hamming(SimHash(text), SimHash(edited))
	if d > 12 {
		t.Errorf("one-word edit distance = %d, want small", d)
	}
}

func TestSimHashUnrelatedTextsAreFar(t *testing.T) {
	var total int
	const pairs = 20
	for i := 0; i < pairs; i++ {
		a := fmt.Sprintf("alpha%d beta%d gamma%d delta%d epsilon%d zeta%d", i, i, i, i, i, i)
		b := fmt.Sprintf("omega%d sigma%d kappa%d lambda%d theta%d iota%d", i, i, i, i, i, i)
		total += Hamming(SimHash(a), SimHash(b))
	}
	avg := float64(total) / pairs
	if avg < 20 || avg > 44 {
		t.Errorf("average distance of unrelated texts = %.1f, want about 32", avg)
	}
}

func TestHamming(t *testing.T) {
	tests := []struct {
		a, b uint64
		want int
	}{
		{0, 0, 0},
		{0, 1, 1},
		{0xFF, 0x0F, 4},
		{^uint64(0), 0, 64},
	}
	for _, tt := range tests {
		if got := Hamming(tt.a, tt.b); got != tt.want {
			t.Errorf("Hamming(%x, %x) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	d := NewDetector(3)
	fp := SimHash(sampleText)

	t.Run("no prior is new", func(t *testing.T) {
		c, err := d.Classify(nil, sampleText, "")
		if err != nil {
			t.Fatal(err)
		}
		if c.Outcome != New || c.Fingerprint != fp {
			t.Errorf("got %+v, want New with fingerprint %x", c, fp)
		}
	})

	t.Run("same freshness is unchanged", func(t *testing.T) {
		prior := &Prior{Fingerprint: fp, Freshness: "Tue, 01 Jul 2025 10:00:00 GMT"}
		c, err := d.Classify(prior, "completely different text now", prior.Freshness)
		if err != nil {
			t.Fatal(err)
		}
		if c.Outcome != Unchanged || c.RefreshFreshness {
			t.Errorf("got %+v, want Unchanged without refresh", c)
		}
	})

	t.Run("different freshness but identical text refreshes marker", func(t *testing.T) {
		prior := &Prior{Fingerprint: fp, Freshness: "Tue, 01 Jul 2025 10:00:00 GMT"}
		c, err := d.Classify(prior, sampleText, "Wed, 02 Jul 2025 10:00:00 GMT")
		if err != nil {
			t.Fatal(err)
		}
		if c.Outcome != Unchanged || !c.RefreshFreshness || c.Distance != 0 {
			t.Errorf("got %+v, want Unchanged with refresh at distance 0", c)
		}
	})

	t.Run("different freshness and far text is updated", func(t *testing.T) {
		prior := &Prior{Fingerprint: fp, Freshness: "Tue, 01 Jul 2025 10:00:00 GMT"}
		other := "cooking recipes for pasta tomato basil garlic olive oil parmesan and fresh bread"
		c, err := d.Classify(prior, other, "Wed, 02 Jul 2025 10:00:00 GMT")
		if err != nil {
			t.Fatal(err)
		}
		if c.Outcome != Updated || c.Distance <= 3 || c.Fingerprint != SimHash(other) {
			t.Errorf("got %+v, want Updated with new fingerprint", c)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		_, err := d.Classify(nil, "  ", "")
		if !errors.Is(err, apperrors.ErrNoExtractableText) {
			t.Errorf("err = %v, want ErrNoExtractableText", err)
		}
	})
}

func TestFingerprintSetNearDuplicate(t *testing.T) {
	fs := NewFingerprintSet()
	fs.Add(0b1111)

	if _, ok := fs.NearDuplicate(0b0111, 1); !ok {
		t.Error("expected near duplicate at distance 1")
	}
	if _, ok := fs.NearDuplicate(0b0000, 3); ok {
		t.Error("distance 4 should not match threshold 3")
	}

	fs.Add(0b1111)
	fs.Replace(0b1111, 0xF0)
	if !fs.Contains(0b1111) {
		t.Error("shared fingerprint dropped after a single replace")
	}
	fs.Replace(0b1111, 0xF00)
	if fs.Contains(0b1111) {
		t.Error("fingerprint should be gone after both references replaced")
	}
	if fs.Len() != 2 {
		t.Errorf("Len = %d, want 2", fs.Len())
	}
}

func TestFingerprintSetPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprints.json")
	fs := NewFingerprintSet()
	fs.Add(^uint64(0))
	fs.Add(42)
	if err := fs.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded := LoadFingerprintSet(path)
	if !loaded.Contains(^uint64(0)) || !loaded.Contains(42) {
		t.Errorf("loaded set missing fingerprints: %v", loaded.Slice())
	}

	missing := LoadFingerprintSet(filepath.Join(t.TempDir(), "absent.json"))
	if missing.Len() != 0 {
		t.Error("missing file should yield an empty set")
	}
}
