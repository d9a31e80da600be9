package indexer

import (
	"context"
	"errors"
	"math"
	"os"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/docstore"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/metrics"
)

var corpus = []docstore.Document{
	{ID: 0, URL: "https://a/", Title: "Old town", Tokens: []string{"old", "town", "tubingen", "old"}},
	{ID: 1, URL: "https://b/", Tokens: []string{"tubingen", "univers"}},
	{ID: 2, URL: "https://c/", Tokens: nil},
	{ID: 5, URL: "https://d/", Tokens: []string{"punt", "race", "neckar"}},
}

func TestBuild(t *testing.T) {
	x := Build(corpus)

	if x.DocCount != 4 {
		t.Errorf("DocCount = %d, want 4", x.DocCount)
	}
	if got := x.Postings("tubingen").DocIDs(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("tubingen postings = %v", got)
	}
	if got := x.Positions("old", 0); !reflect.DeepEqual(got, []int{0, 3}) {
		t.Errorf("old positions = %v", got)
	}
	if x.TermFreq(0, "old") != 2 || x.DocLen[0] != 4 || x.DocLen[2] != 0 {
		t.Errorf("tf/doclen wrong: %v %v", x.TF[0], x.DocLen)
	}
	if want := math.Log10(4.0 / 2.0); math.Abs(x.IDFOf("tubingen")-want) > 1e-12 {
		t.Errorf("idf(tubingen) = %v, want %v", x.IDFOf("tubingen"), want)
	}
	if m, ok := x.Meta(0); !ok || m.Title != "Old town" || m.URL != "https://a/" {
		t.Errorf("Meta(0) = %+v", m)
	}
	if want := 9.0 / 4.0; x.AvgDocLen != want {
		t.Errorf("AvgDocLen = %v, want %v", x.AvgDocLen, want)
	}
}

type recordingNotifier struct {
	events []CompleteEvent
}

func (r *recordingNotifier) IndexComplete(_ context.Context, ev CompleteEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingNotifier) Close() error { return nil }

func newTestEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	e, err := NewEngine(config.IndexerConfig{DataDir: dir, PublishEvents: true},
		metrics.NewWithRegistry(prometheus.NewRegistry()))
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestEngineRebuildAndReload(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(t, dir)
	if e.Ready() {
		t.Fatal("engine without snapshot should not be ready")
	}
	if _, err := e.Index(); !errors.Is(err, apperrors.ErrIndexNotReady) {
		t.Errorf("Index() err = %v", err)
	}

	n := &recordingNotifier{}
	e.SetNotifier(n)
	stats, err := e.Rebuild(context.Background(), corpus)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if stats.Documents != 4 || stats.Terms != 7 {
		t.Errorf("stats = %+v", stats)
	}
	if len(n.events) != 1 || n.events[0].Snapshot != e.Path() {
		t.Errorf("notifier events = %+v", n.events)
	}
	if _, err := os.Stat(e.Path()); err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}

	other := newTestEngine(t, dir)
	x, err := other.Index()
	if err != nil {
		t.Fatalf("second engine did not load snapshot: %v", err)
	}
	if got := x.Postings("neckar").DocIDs(); !reflect.DeepEqual(got, []int{5}) {
		t.Errorf("neckar postings = %v", got)
	}

	if _, err := e.Rebuild(context.Background(), corpus[:2]); err != nil {
		t.Fatal(err)
	}
	if err := other.Reload(); err != nil {
		t.Fatal(err)
	}
	if got := other.Stats().Documents; got != 2 {
		t.Errorf("reloaded documents = %d, want 2", got)
	}
}

func TestEngineIgnoresCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(t, dir)
	if err := os.WriteFile(e.Path(), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	again := newTestEngine(t, dir)
	if again.Ready() {
		t.Error("corrupt snapshot should leave the engine empty")
	}
	if err := again.Reload(); !errors.Is(err, apperrors.ErrCorruptState) {
		t.Errorf("Reload err = %v", err)
	}
}
