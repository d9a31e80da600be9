package changedetect

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/atomicfile"
)

// FingerprintSet holds the fingerprints of every stored document and answers
// near-duplicate queries against them.
type FingerprintSet struct {
	mu  sync.RWMutex
	set map[uint64]int
}

// NewFingerprintSet creates an empty set.
func NewFingerprintSet() *FingerprintSet {
	return &FingerprintSet{set: make(map[uint64]int)}
}

// LoadFingerprintSet reads a set persisted by Save. A missing file yields an
// empty set; a corrupt one yields an empty set and a warning.
func LoadFingerprintSet(path string) *FingerprintSet {
	fs := NewFingerprintSet()
	var fps []uint64
	found, err := atomicfile.ReadJSON(path, &fps)
	if err != nil {
		slog.Warn("fingerprint set unreadable, starting empty", "path", path, "error", err)
		return fs
	}
	if found {
		for _, fp := range fps {
			fs.set[fp]++
		}
	}
	return fs
}

// Add records fp. The set counts references so two documents sharing a
// fingerprint survive one of them being replaced.
func (fs *FingerprintSet) Add(fp uint64) {
	fs.mu.Lock()
	fs.set[fp]++
	fs.mu.Unlock()
}

// Replace swaps old for new after a document update.
func (fs *FingerprintSet) Replace(old, new uint64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if n := fs.set[old]; n > 1 {
		fs.set[old] = n - 1
	} else {
		delete(fs.set, old)
	}
	fs.set[new]++
}

// Contains reports whether fp is in the set.
func (fs *FingerprintSet) Contains(fp uint64) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, ok := fs.set[fp]
	return ok
}

// NearDuplicate returns a stored fingerprint within threshold bits of fp.
func (fs *FingerprintSet) NearDuplicate(fp uint64, threshold int) (uint64, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if _, ok := fs.set[fp]; ok {
		return fp, true
	}
	for other := range fs.set {
		if Hamming(fp, other) <= threshold {
			return other, true
		}
	}
	return 0, false
}

// Len returns the number of distinct fingerprints.
func (fs *FingerprintSet) Len() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.set)
}

// Slice returns every fingerprint, with multiplicity, in ascending order.
func (fs *FingerprintSet) Slice() []uint64 {
	fs.mu.RLock()
	out := make([]uint64, 0, len(fs.set))
	for fp, n := range fs.set {
		for i := 0; i < n; i++ {
			out = append(out, fp)
		}
	}
	fs.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Save atomically writes the set to path.
func (fs *FingerprintSet) Save(path string) error {
	return atomicfile.WriteJSON(path, fs.Slice())
}
