package docstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/errors"
)

func TestCreateAssignsIncreasingIDs(t *testing.T) {
	s := New("")
	if s.NextID() != 0 {
		t.Fatalf("NextID on empty store = %d, want 0", s.NextID())
	}
	a, err := s.Create(Document{URL: "https://example.org/a"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Create(Document{URL: "https://example.org/b"})
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != 0 || b.ID != 1 {
		t.Errorf("ids = %d, %d; want 0, 1", a.ID, b.ID)
	}
	if _, err := s.Create(Document{URL: "https://example.org/a"}); err == nil {
		t.Error("expected error creating a duplicate url")
	}
	if id, ok := s.GetByURL("https://example.org/b"); !ok || id != 1 {
		t.Errorf("GetByURL = %d, %v", id, ok)
	}
}

func TestPutKeepsBijection(t *testing.T) {
	s := New("")
	if err := s.Put(Document{ID: 5, URL: "https://example.org/x"}); err != nil {
		t.Fatal(err)
	}
	if s.NextID() != 6 {
		t.Errorf("NextID = %d, want 6", s.NextID())
	}

	err := s.Put(Document{ID: 6, URL: "https://example.org/x"})
	if !errors.Is(err, apperrors.ErrCorruptState) {
		t.Errorf("rebinding url: err = %v", err)
	}
	err = s.Put(Document{ID: 5, URL: "https://example.org/y"})
	if !errors.Is(err, apperrors.ErrCorruptState) {
		t.Errorf("rebinding doc_id: err = %v", err)
	}

	if err := s.Put(Document{ID: 5, URL: "https://example.org/x", Tokens: []string{"new"}}); err != nil {
		t.Fatalf("in-place update: %v", err)
	}
	d, _ := s.Get(5)
	if len(d.Tokens) != 1 || d.Tokens[0] != "new" {
		t.Errorf("tokens not replaced: %v", d.Tokens)
	}
}

func TestSaveAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.json")
	s := New(path)
	s.Create(Document{URL: "https://example.org/a", Tokens: []string{"alpha"}, Fingerprint: ^uint64(0)})
	s.Create(Document{URL: "https://example.org/b", Freshness: "yesterday"})
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	loaded := Open(path)
	if loaded.Len() != 2 || loaded.NextID() != 2 {
		t.Fatalf("loaded Len=%d NextID=%d", loaded.Len(), loaded.NextID())
	}
	d, ok := loaded.Get(0)
	if !ok || d.Fingerprint != ^uint64(0) || d.Tokens[0] != "alpha" {
		t.Errorf("loaded doc = %+v", d)
	}
	all := loaded.All()
	if all[0].ID != 0 || all[1].ID != 1 {
		t.Errorf("All not ordered: %+v", all)
	}
}

func TestOpenMissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()
	if s := Open(filepath.Join(dir, "absent.json")); s.Len() != 0 {
		t.Error("missing file should give empty store")
	}

	corrupt := filepath.Join(dir, "documents.json")
	if err := os.WriteFile(corrupt, []byte(`[{"doc_id":0,"url":"https://exa`), 0644); err != nil {
		t.Fatal(err)
	}
	if s := Open(corrupt); s.Len() != 0 || s.NextID() != 0 {
		t.Error("truncated file should give empty store")
	}

	dup := filepath.Join(dir, "dup.json")
	os.WriteFile(dup, []byte(`[{"doc_id":0,"url":"https://a"},{"doc_id":1,"url":"https://a"}]`), 0644)
	if s := Open(dup); s.Len() != 0 {
		t.Error("inconsistent file should give empty store")
	}
}
