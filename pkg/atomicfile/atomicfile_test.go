package atomicfile

import (
	"os"
	"path/filepath"
	"testing"
)

type state struct {
	NextID int      `json:"next_id"`
	URLs   []string `json:"urls"`
}

func TestWriteJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	in := state{NextID: 7, URLs: []string{"https://a/", "https://b/"}}
	if err := WriteJSON(path, in); err != nil {
		t.Fatal(err)
	}

	var out state
	found, err := ReadJSON(path, &out)
	if err != nil || !found {
		t.Fatalf("found = %v, err = %v", found, err)
	}
	if out.NextID != 7 || len(out.URLs) != 2 {
		t.Errorf("out = %+v", out)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestReadJSONMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	var out state
	found, err := ReadJSON(filepath.Join(dir, "missing.json"), &out)
	if found || err != nil {
		t.Errorf("missing: found = %v, err = %v", found, err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := Write(bad, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	found, err = ReadJSON(bad, &out)
	if !found || err == nil {
		t.Errorf("corrupt: found = %v, err = %v", found, err)
	}
}
