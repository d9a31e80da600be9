package frontier

import (
	"log/slog"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/atomicfile"
)

// Snapshot is the persisted form of the per-domain queues, in pop order.
type Snapshot struct {
	Queues map[string][]Entry `json:"queues"`
}

// Snapshot captures every queued entry.
func (f *Frontier) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := Snapshot{Queues: make(map[string][]Entry, len(f.queues))}
	for d, q := range f.queues {
		snap.Queues[d] = q.entries()
	}
	return snap
}

// PendingURLs returns the pending set, sorted.
func (f *Frontier) PendingURLs() []string {
	f.mu.Lock()
	out := make([]string, 0, len(f.pending))
	for u := range f.pending {
		out = append(out, u)
	}
	f.mu.Unlock()
	sort.Strings(out)
	return out
}

// Restore queues the entries of snap and then any URL of pending that snap
// did not cover, at depth 0. Entries that are already pending, resolved, or
// no longer admissible are skipped. It returns the number of entries queued.
func (f *Frontier) Restore(snap Snapshot, pending []string) int {
	var restored int
	domains := make([]string, 0, len(snap.Queues))
	for d := range snap.Queues {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	for _, d := range domains {
		for _, e := range snap.Queues[d] {
			if f.restoreOne(e.URL, e.Priority, e.Depth) {
				restored++
			}
		}
	}
	for _, raw := range pending {
		if f.Pending(raw) {
			continue
		}
		if _, reason := f.Enqueue(Link{URL: raw}); reason == Accepted {
			restored++
		}
	}
	return restored
}

func (f *Frontier) restoreOne(raw string, priority float64, depth int) bool {
	u, reason := f.admit(raw, nil, depth)
	if reason != Accepted {
		return false
	}
	canonical := u.String()
	if f.resolver != nil {
		if _, ok := f.resolver.GetByURL(canonical); ok {
			return false
		}
	}
	_, reason = f.push(Domain(u), canonical, priority, depth)
	return reason == Accepted
}

// Save writes the queue snapshot to snapshotPath and the pending set to
// pendingPath, each atomically.
func (f *Frontier) Save(snapshotPath, pendingPath string) error {
	if err := atomicfile.WriteJSON(snapshotPath, f.Snapshot()); err != nil {
		return err
	}
	return atomicfile.WriteJSON(pendingPath, f.PendingURLs())
}

// LoadState reads a snapshot and pending set written by Save. Missing files
// yield empty values; unreadable ones yield empty values and a warning.
func LoadState(snapshotPath, pendingPath string) (Snapshot, []string) {
	var snap Snapshot
	if _, err := atomicfile.ReadJSON(snapshotPath, &snap); err != nil {
		slog.Warn("frontier snapshot unreadable, starting empty", "path", snapshotPath, "error", err)
		snap = Snapshot{}
	}
	var pending []string
	if _, err := atomicfile.ReadJSON(pendingPath, &pending); err != nil {
		slog.Warn("pending set unreadable, starting empty", "path", pendingPath, "error", err)
		pending = nil
	}
	return snap, pending
}
