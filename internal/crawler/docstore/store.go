// Package docstore holds the crawled documents keyed by doc_id and by
// canonical URL, and persists them as a JSON snapshot.
package docstore

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/atomicfile"
	apperrors "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/errors"
)

// Document is one crawled page.
type Document struct {
	ID          int       `json:"doc_id"`
	URL         string    `json:"url"`
	Tokens      []string  `json:"tokens"`
	Fingerprint uint64    `json:"fingerprint"`
	Freshness   string    `json:"freshness,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Published   string    `json:"published,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Store is a thread-safe document store. The URL to doc_id mapping is a
// bijection and doc_ids are never reassigned.
type Store struct {
	mu     sync.RWMutex
	path   string
	docs   map[int]*Document
	byURL  map[string]int
	nextID int
	logger *slog.Logger
}

// New creates an empty in-memory store that persists to path. An empty path
// disables Save.
func New(path string) *Store {
	return &Store{
		path:   path,
		docs:   make(map[int]*Document),
		byURL:  make(map[string]int),
		logger: slog.Default().With("component", "docstore"),
	}
}

// Open loads the store persisted at path. A missing file yields an empty
// store; an unreadable or inconsistent one yields an empty store and a
// warning.
func Open(path string) *Store {
	s := New(path)
	var docs []Document
	found, err := atomicfile.ReadJSON(path, &docs)
	if err != nil {
		s.logger.Warn("document store unreadable, starting empty", "path", path, "error", err)
		return s
	}
	if !found {
		s.logger.Info("no document store found, starting empty", "path", path)
		return s
	}
	for _, d := range docs {
		if err := s.Put(d); err != nil {
			s.logger.Warn("document store inconsistent, starting empty", "path", path, "error", err)
			return New(path)
		}
	}
	s.logger.Info("document store loaded", "documents", len(s.docs), "next_id", s.nextID)
	return s
}

// Put inserts or replaces doc. It fails if doc.ID is negative or if the
// URL is already bound to a different doc_id (or the doc_id to a different
// URL).
func (s *Store) Put(doc Document) error {
	if doc.ID < 0 {
		return fmt.Errorf("%w: negative doc_id %d", apperrors.ErrInvalidInput, doc.ID)
	}
	if doc.URL == "" {
		return fmt.Errorf("%w: empty url for doc_id %d", apperrors.ErrInvalidInput, doc.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(doc)
}

func (s *Store) putLocked(doc Document) error {
	if id, ok := s.byURL[doc.URL]; ok && id != doc.ID {
		return fmt.Errorf("%w: url %s already has doc_id %d", apperrors.ErrCorruptState, doc.URL, id)
	}
	if existing, ok := s.docs[doc.ID]; ok && existing.URL != doc.URL {
		return fmt.Errorf("%w: doc_id %d already bound to %s", apperrors.ErrCorruptState, doc.ID, existing.URL)
	}
	d := doc
	s.docs[d.ID] = &d
	s.byURL[d.URL] = d.ID
	if d.ID >= s.nextID {
		s.nextID = d.ID + 1
	}
	return nil
}

// Create assigns the next doc_id to doc and stores it. It fails if the URL
// already has a doc_id.
func (s *Store) Create(doc Document) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byURL[doc.URL]; ok {
		return Document{}, fmt.Errorf("%w: url %s already has doc_id %d", apperrors.ErrInvalidInput, doc.URL, id)
	}
	doc.ID = s.nextID
	if err := s.putLocked(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Get returns a copy of the document with the given id.
func (s *Store) Get(id int) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return Document{}, false
	}
	return *d, true
}

// GetByURL returns the doc_id bound to url.
func (s *Store) GetByURL(url string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byURL[url]
	return id, ok
}

// NextID returns max(doc_id)+1, or 0 for an empty store.
func (s *Store) NextID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// All returns copies of every document in ascending doc_id order.
func (s *Store) All() []Document {
	s.mu.RLock()
	out := make([]Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, *d)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// URLs returns every stored URL in ascending doc_id order.
func (s *Store) URLs() []string {
	docs := s.All()
	urls := make([]string, len(docs))
	for i, d := range docs {
		urls[i] = d.URL
	}
	return urls
}

// Save atomically writes the store to its path.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}
	return atomicfile.WriteJSON(s.path, s.All())
}
