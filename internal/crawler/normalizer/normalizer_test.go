package normalizer

import (
	"reflect"
	"strings"
	"testing"
)

func TestWords(t *testing.T) {
	got := Words("The University's 2024 Cyber-Valley report: Tübingen, e-mail!")
	want := []string{"the", "university", "cyber", "valley", "report", "tübingen", "e", "mail"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Words = %q, want %q", got, want)
	}
}

func TestWordsComposesUnicode(t *testing.T) {
	decomposed := "Tu\u0308bingen"
	if got := Words(decomposed); len(got) != 1 || got[0] != "tübingen" {
		t.Errorf("Words(%q) = %q", decomposed, got)
	}
}

func TestNormalizeEnglish(t *testing.T) {
	n := New(Options{Language: "english", MinTokenLength: 3})
	got, ok := n.Normalize("The researchers are running experiments in the labs")
	if !ok {
		t.Fatal("short english text rejected")
	}
	want := []string{"research", "run", "experi", "lab"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalizeRejectsNonEnglish(t *testing.T) {
	n := New(Options{Language: "english"})
	german := strings.Repeat("Die Universität Tübingen liegt direkt beim Neckar und bietet viele Studiengänge ", 5)
	if _, ok := n.Normalize(german); ok {
		t.Error("german text should be rejected")
	}
	english := strings.Repeat("The university of Tübingen is located on the river Neckar and offers many programs ", 5)
	if _, ok := n.Normalize(english); !ok {
		t.Error("english text should be accepted")
	}
}

func TestNormalizeEmpty(t *testing.T) {
	n := New(Options{Language: "english"})
	if _, ok := n.Normalize("  1234 ++ "); ok {
		t.Error("text without words should be rejected")
	}
}

func TestTermsQueryAndDocumentAgree(t *testing.T) {
	n := New(Options{Language: "english"})
	doc, _ := n.Normalize("Studying machine learning")
	q := n.Terms("studies Machine LEARNING")
	if !reflect.DeepEqual(doc, q) {
		t.Errorf("document terms %q != query terms %q", doc, q)
	}
}
