// Package frontier canonicalizes discovered URLs, scores them for topical
// relevance and keeps one max-priority queue per domain. A URL is pending in
// at most one queue and is never queued once it resolves to a stored
// document.
package frontier

import (
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// RejectReason explains why Enqueue refused a URL. The zero value means the
// URL was accepted.
type RejectReason string

const (
	Accepted       RejectReason = ""
	RejectInvalid  RejectReason = "invalid_url"
	RejectScheme   RejectReason = "scheme"
	RejectDomain   RejectReason = "blocked_domain"
	RejectSuffix   RejectReason = "blocked_suffix"
	RejectResolved RejectReason = "already_indexed"
	RejectPending  RejectReason = "already_pending"
	RejectDepth    RejectReason = "max_depth"
)

// Resolver reports whether a canonical URL already has a doc_id.
type Resolver interface {
	GetByURL(url string) (int, bool)
}

// DefaultBlockedSuffixes lists path suffixes of resources that are not HTML.
var DefaultBlockedSuffixes = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico", ".bmp", ".tif", ".tiff",
	".zip", ".gz", ".tgz", ".tar", ".rar", ".7z", ".bz2",
	".mp3", ".mp4", ".avi", ".mov", ".wmv", ".mkv", ".webm", ".wav", ".ogg",
	".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".odt", ".ods",
	".css", ".js", ".json", ".xml", ".rss", ".exe", ".dmg", ".iso", ".apk",
}

// Options configures a Frontier.
type Options struct {
	MaxDepth        int
	BlockedDomains  []string
	BlockedSuffixes []string
	Scorer          *Scorer
	// ExpectedURLs sizes the bloom filter.
	ExpectedURLs uint
}

// Link is a discovered URL and where it was found.
type Link struct {
	URL    string
	Base   *url.URL
	Anchor string
	Source *PageContext
	Depth  int
}

// Frontier holds the per-domain queues, the pending set and the set of URLs
// already dequeued in this run.
type Frontier struct {
	opts     Options
	resolver Resolver
	logger   *slog.Logger

	mu        sync.Mutex
	queues    map[string]*domainQueue
	pending   map[string]struct{}
	processed map[string]struct{}
	seen      *bloom.BloomFilter
	seq       uint64
	size      int
}

// New creates an empty Frontier. resolver may be nil.
func New(opts Options, resolver Resolver) *Frontier {
	if opts.Scorer == nil {
		opts.Scorer = &Scorer{}
	}
	if opts.BlockedSuffixes == nil {
		opts.BlockedSuffixes = DefaultBlockedSuffixes
	}
	if opts.ExpectedURLs == 0 {
		opts.ExpectedURLs = 1 << 20
	}
	return &Frontier{
		opts:      opts,
		resolver:  resolver,
		logger:    slog.Default().With("component", "frontier"),
		queues:    make(map[string]*domainQueue),
		pending:   make(map[string]struct{}),
		processed: make(map[string]struct{}),
		seen:      bloom.NewWithEstimates(opts.ExpectedURLs, 0.001),
	}
}

// Enqueue canonicalizes and scores link.URL and queues it on its domain.
func (f *Frontier) Enqueue(link Link) (Entry, RejectReason) {
	u, reason := f.admit(link.URL, link.Base, link.Depth)
	if reason != Accepted {
		return Entry{}, reason
	}
	canonical := u.String()
	if f.resolver != nil {
		if _, ok := f.resolver.GetByURL(canonical); ok {
			return Entry{}, RejectResolved
		}
	}
	priority := f.opts.Scorer.Score(u, link.Anchor, link.Source, link.Depth)
	return f.push(Domain(u), canonical, priority, link.Depth)
}

// Requeue queues a URL that already resolves to a stored document so it is
// re-crawled for freshness.
func (f *Frontier) Requeue(rawURL string, depth int) (Entry, RejectReason) {
	u, reason := f.admit(rawURL, nil, depth)
	if reason != Accepted {
		return Entry{}, reason
	}
	priority := f.opts.Scorer.Score(u, "", nil, depth)
	return f.push(Domain(u), u.String(), priority, depth)
}

func (f *Frontier) admit(raw string, base *url.URL, depth int) (*url.URL, RejectReason) {
	u, err := Canonicalize(raw, base)
	if err != nil {
		return nil, RejectInvalid
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, RejectScheme
	}
	host := u.Hostname()
	for _, d := range f.opts.BlockedDomains {
		if hostMatches(host, d) {
			return nil, RejectDomain
		}
	}
	path := strings.ToLower(u.Path)
	for _, s := range f.opts.BlockedSuffixes {
		if strings.HasSuffix(path, s) {
			return nil, RejectSuffix
		}
	}
	if depth > f.opts.MaxDepth {
		return nil, RejectDepth
	}
	return u, Accepted
}

func (f *Frontier) push(domain, canonical string, priority float64, depth int) (Entry, RejectReason) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := []byte(canonical)
	if f.seen.Test(key) {
		if _, ok := f.pending[canonical]; ok {
			return Entry{}, RejectPending
		}
		if _, ok := f.processed[canonical]; ok {
			return Entry{}, RejectPending
		}
	}
	f.seen.Add(key)

	f.seq++
	e := &Entry{Priority: priority, URL: canonical, Depth: depth, seq: f.seq}
	q, ok := f.queues[domain]
	if !ok {
		q = &domainQueue{}
		f.queues[domain] = q
	}
	q.push(e)
	f.pending[canonical] = struct{}{}
	f.size++
	return *e, Accepted
}

// PageContext scores the tokens of a fetched page for the links found on it.
func (f *Frontier) PageContext(tokens []string) *PageContext {
	return f.opts.Scorer.Page(tokens)
}

// Pop removes and returns the highest-priority entry of domain. The URL
// stays marked as seen for the rest of the run.
func (f *Frontier) Pop(domain string) (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[domain]
	if !ok {
		return Entry{}, false
	}
	e, ok := q.pop()
	if !ok {
		return Entry{}, false
	}
	if q.len() == 0 {
		delete(f.queues, domain)
	}
	delete(f.pending, e.URL)
	f.processed[e.URL] = struct{}{}
	f.size--
	return *e, true
}

// Return puts an entry obtained from Pop back on its queue, for work that
// was interrupted before the fetch started.
func (f *Frontier) Return(e Entry) {
	u, err := url.Parse(e.URL)
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.processed, e.URL)
	if _, ok := f.pending[e.URL]; ok {
		return
	}
	f.seq++
	e.seq = f.seq
	q, ok := f.queues[Domain(u)]
	if !ok {
		q = &domainQueue{}
		f.queues[Domain(u)] = q
	}
	q.push(&e)
	f.pending[e.URL] = struct{}{}
	f.size++
}

// Domains returns every domain with pending work, best head priority first.
func (f *Frontier) Domains() []string {
	f.mu.Lock()
	type head struct {
		domain   string
		priority float64
	}
	heads := make([]head, 0, len(f.queues))
	for d, q := range f.queues {
		if e, ok := q.peek(); ok {
			heads = append(heads, head{d, e.Priority})
		}
	}
	f.mu.Unlock()
	sort.Slice(heads, func(i, j int) bool {
		if heads[i].priority != heads[j].priority {
			return heads[i].priority > heads[j].priority
		}
		return heads[i].domain < heads[j].domain
	})
	out := make([]string, len(heads))
	for i, h := range heads {
		out[i] = h.domain
	}
	return out
}

// Pending reports whether canonical is queued.
func (f *Frontier) Pending(canonical string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pending[canonical]
	return ok
}

// Len returns the number of queued entries across all domains.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// DomainLen returns the number of queued entries for domain.
func (f *Frontier) DomainLen(domain string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if q, ok := f.queues[domain]; ok {
		return q.len()
	}
	return 0
}
