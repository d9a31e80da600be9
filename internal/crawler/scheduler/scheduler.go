// Package scheduler runs the crawl: a manager promotes domains with pending
// work to per-domain workers, each worker fetches its domain's URLs in
// priority order under the domain's politeness delay, and all state is
// flushed when the crawl stops.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/changedetect"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/docstore"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/events"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/extract"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/fetcher"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/frontier"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/normalizer"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/robots"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/resilience"
)

var (
	errMaxNewPages = errors.New("max new pages reached")
	errTimeLimit   = errors.New("crawl time limit elapsed")
)

// PageFetcher is the HTTP side of the crawl.
type PageFetcher interface {
	Head(ctx context.Context, url string) (string, error)
	Get(ctx context.Context, url string) (*fetcher.Response, error)
}

// Mirror receives every stored document, e.g. the Postgres catalog.
type Mirror interface {
	Upsert(ctx context.Context, doc docstore.Document) error
}

// Deps are the collaborators of a Scheduler. Events, Mirror and Metrics are
// optional.
type Deps struct {
	Store        *docstore.Store
	Fingerprints *changedetect.FingerprintSet
	Frontier     *frontier.Frontier
	Robots       *robots.Cache
	Fetcher      PageFetcher
	Extractor    extract.Extractor
	Normalizer   normalizer.Normalizer
	Detector     *changedetect.Detector
	Events       events.Sink
	Mirror       Mirror
	Metrics      *metrics.Metrics
}

type domainState struct {
	limiter   *rate.Limiter
	delay     time.Duration
	lastFetch time.Time
}

// Scheduler owns the shared crawl state for one run.
type Scheduler struct {
	cfg   config.CrawlerConfig
	paths Paths

	store        *docstore.Store
	fingerprints *changedetect.FingerprintSet
	frontier     *frontier.Frontier
	robots       *robots.Cache
	fetcher      PageFetcher
	extractor    extract.Extractor
	normalizer   normalizer.Normalizer
	detector     *changedetect.Detector
	events       events.Sink
	mirror       Mirror
	metrics      *metrics.Metrics
	logger       *slog.Logger

	sem      *semaphore.Weighted
	breakers *resilience.BreakerGroup

	mu      sync.Mutex
	active  map[string]struct{}
	domains map[string]*domainState

	wg       sync.WaitGroup
	saveMu   sync.Mutex
	stop     context.CancelCauseFunc
	stats    *counters
	changes  atomic.Int64
	newPages atomic.Int64
	runID    string
}

// New validates deps and creates a Scheduler.
func New(cfg config.CrawlerConfig, deps Deps) (*Scheduler, error) {
	switch {
	case deps.Store == nil, deps.Fingerprints == nil, deps.Frontier == nil, deps.Robots == nil:
		return nil, fmt.Errorf("%w: scheduler needs store, fingerprints, frontier and robots", apperrors.ErrInvalidInput)
	case deps.Fetcher == nil, deps.Extractor == nil, deps.Normalizer == nil, deps.Detector == nil:
		return nil, fmt.Errorf("%w: scheduler needs fetcher, extractor, normalizer and detector", apperrors.ErrInvalidInput)
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if cfg.ManagerInterval <= 0 {
		cfg.ManagerInterval = 500 * time.Millisecond
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = 50
	}
	if deps.Events == nil {
		deps.Events = events.NopSink{}
	}

	s := &Scheduler{
		cfg:          cfg,
		paths:        StatePaths(cfg.StateDir),
		store:        deps.Store,
		fingerprints: deps.Fingerprints,
		frontier:     deps.Frontier,
		robots:       deps.Robots,
		fetcher:      deps.Fetcher,
		extractor:    deps.Extractor,
		normalizer:   deps.Normalizer,
		detector:     deps.Detector,
		events:       deps.Events,
		mirror:       deps.Mirror,
		metrics:      deps.Metrics,
		logger:       slog.Default().With("component", "scheduler"),
		sem:          semaphore.NewWeighted(int64(cfg.MaxWorkers)),
		active:       make(map[string]struct{}),
		domains:      make(map[string]*domainState),
		stats:        newCounters(),
	}
	s.breakers = resilience.NewBreakerGroup(resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.BreakerFailures,
		ResetTimeout:     cfg.BreakerReset,
		OnStateChange: func(name string, to resilience.State) {
			if s.metrics != nil {
				s.metrics.CircuitBreakerState.WithLabelValues("domain:" + name).Set(float64(to))
			}
		},
	})
	return s, nil
}

// Crawl restores the frontier, queues seeds and every stored document, and
// crawls until the frontier is exhausted, ctx is cancelled, the time limit
// elapses or the new-page budget is spent. State is flushed before Crawl
// returns; the returned error reports a failed flush only.
func (s *Scheduler) Crawl(ctx context.Context, seeds []string) (Stats, error) {
	started := time.Now()
	s.runID = uuid.NewString()
	ctx = logger.WithRunID(ctx, s.runID)
	s.logger = logger.FromContext(ctx).With("component", "scheduler")

	s.prime(seeds)

	stopCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	s.stop = cancel
	if s.cfg.TimeLimit > 0 {
		var cancelTimeout context.CancelFunc
		stopCtx, cancelTimeout = context.WithTimeoutCause(stopCtx, s.cfg.TimeLimit, errTimeLimit)
		defer cancelTimeout()
	}

	s.logger.Info("crawl started",
		"pending", s.frontier.Len(),
		"documents", s.store.Len(),
		"max_workers", s.cfg.MaxWorkers,
		"max_depth", s.cfg.MaxDepth,
	)

	reason := s.manage(stopCtx)
	s.wg.Wait()
	flushErr := s.checkpoint()

	stats := s.stats.snapshot()
	stats.RunID = s.runID
	stats.StopReason = reason
	stats.Duration = time.Since(started)
	stats.Documents = s.store.Len()
	stats.Pending = s.frontier.Len()

	pubCtx, cancelPub := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancelPub()
	if err := s.events.Complete(pubCtx, events.CompleteEvent{
		RunID:      s.runID,
		Visited:    stats.Visited,
		New:        stats.New,
		Updated:    stats.Updated,
		Documents:  stats.Documents,
		StartedAt:  started,
		FinishedAt: time.Now(),
		StopReason: reason,
	}); err != nil {
		s.logger.Warn("crawl completion event not published", "error", err)
	}

	s.logger.Info("crawl finished",
		"reason", reason,
		"visited", stats.Visited,
		"new", stats.New,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)
	return stats, flushErr
}

// prime fills the frontier from the persisted snapshot, the seeds and the
// stored documents.
func (s *Scheduler) prime(seeds []string) {
	snap, pending := frontier.LoadState(s.paths.Frontier, s.paths.Pending)
	restored := s.frontier.Restore(snap, pending)

	var seeded int
	for _, seed := range seeds {
		_, reason := s.frontier.Enqueue(frontier.Link{URL: seed})
		if reason == frontier.RejectResolved {
			_, reason = s.frontier.Requeue(seed, 0)
		}
		if reason == frontier.Accepted {
			seeded++
		} else if reason != frontier.RejectPending {
			s.logger.Warn("seed rejected", "url", seed, "reason", reason)
		}
	}

	var requeued int
	for _, u := range s.store.URLs() {
		if _, reason := s.frontier.Requeue(u, 0); reason == frontier.Accepted {
			requeued++
		}
	}
	s.logger.Info("frontier primed", "restored", restored, "seeds", seeded, "recrawl", requeued)
}

func (s *Scheduler) manage(ctx context.Context) string {
	ticker := time.NewTicker(s.cfg.ManagerInterval)
	defer ticker.Stop()
	for {
		s.dispatch(ctx)
		if s.metrics != nil {
			s.metrics.FrontierSize.Set(float64(s.frontier.Len()))
		}
		if s.frontier.Len() == 0 && s.activeWorkers() == 0 {
			return StopExhausted
		}
		select {
		case <-ctx.Done():
			return stopReason(ctx)
		case <-ticker.C:
		}
	}
}

func stopReason(ctx context.Context) string {
	switch context.Cause(ctx) {
	case errMaxNewPages:
		return StopMaxNewPages
	case errTimeLimit:
		return StopTimeLimit
	default:
		return StopInterrupted
	}
}

// dispatch starts a worker for every domain with pending work, no active
// worker and a breaker that is not cooling down, while the global cap
// allows.
func (s *Scheduler) dispatch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	for _, domain := range s.frontier.Domains() {
		s.mu.Lock()
		_, busy := s.active[domain]
		s.mu.Unlock()
		if busy || s.breakers.Get(domain).Blocked() {
			continue
		}
		if !s.sem.TryAcquire(1) {
			return
		}
		s.mu.Lock()
		s.active[domain] = struct{}{}
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.ActiveWorkers.Inc()
		}
		s.wg.Add(1)
		go s.worker(ctx, domain)
	}
}

func (s *Scheduler) activeWorkers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Scheduler) worker(ctx context.Context, domain string) {
	defer func() {
		s.mu.Lock()
		delete(s.active, domain)
		s.mu.Unlock()
		s.sem.Release(1)
		if s.metrics != nil {
			s.metrics.ActiveWorkers.Dec()
		}
		s.wg.Done()
	}()

	log := s.logger.With("domain", domain)
	log.Debug("worker started")
	poll := 100 * time.Millisecond
	if s.cfg.IdleTimeout < poll {
		poll = s.cfg.IdleTimeout
	}

	lastWork := time.Now()
	for {
		if ctx.Err() != nil {
			return
		}
		if s.breakers.Get(domain).Blocked() {
			log.Info("domain breaker open, worker parked", "pending", s.frontier.DomainLen(domain))
			return
		}
		entry, ok := s.frontier.Pop(domain)
		if !ok {
			if time.Since(lastWork) >= s.cfg.IdleTimeout {
				log.Debug("worker idle, exiting")
				return
			}
			t := time.NewTimer(poll)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			continue
		}
		s.process(ctx, log, domain, entry)
		lastWork = time.Now()
	}
}

func (s *Scheduler) domainState(domain string, delay time.Duration) *domainState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.domains[domain]
	if !ok {
		limit := rate.Inf
		if delay > 0 {
			limit = rate.Every(delay)
		}
		ds = &domainState{limiter: rate.NewLimiter(limit, 1), delay: delay}
		s.domains[domain] = ds
	}
	return ds
}

// wait blocks until the domain may be fetched again. It fails only when the
// crawl is stopping.
func (s *Scheduler) wait(ctx context.Context, ds *domainState) error {
	if err := ds.limiter.Wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	ds.lastFetch = time.Now()
	s.mu.Unlock()
	return nil
}

// process takes one dequeued entry through robots, politeness, fetch,
// classification and persistence.
func (s *Scheduler) process(ctx context.Context, log *slog.Logger, domain string, e frontier.Entry) {
	log = log.With("url", e.URL, "depth", e.Depth)
	s.stats.update(func(st *Stats) { st.Visited++ })

	policy := s.robots.Get(ctx, domain)
	if !policy.Allow(e.URL) {
		s.skipped(log, SkipRobots, apperrors.NewFetchError(e.URL, apperrors.KindRobots, 0, apperrors.ErrRobotsDisallowed))
		return
	}

	ds := s.domainState(domain, policy.Delay)
	if err := s.wait(ctx, ds); err != nil {
		s.requeue(e)
		return
	}

	// The fetch itself outlives a stop signal so in-flight work completes.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
	defer cancel()

	var prior *changedetect.Prior
	priorID, known := s.store.GetByURL(e.URL)
	if known {
		if doc, ok := s.store.Get(priorID); ok {
			prior = &changedetect.Prior{Fingerprint: doc.Fingerprint, Freshness: doc.Freshness}
		}
	}

	if s.cfg.UseHead && prior != nil && prior.Freshness != "" {
		lm, err := s.fetcher.Head(fetchCtx, e.URL)
		if err == nil && lm == prior.Freshness {
			s.unchanged(log, priorID, lm, false)
			return
		}
		if err := s.wait(ctx, ds); err != nil {
			s.requeue(e)
			return
		}
	}

	breaker := s.breakers.Get(domain)
	if err := breaker.Allow(); err != nil {
		log.Debug("domain breaker open, entry deferred", "error", err)
		s.requeue(e)
		s.stats.update(func(st *Stats) { st.Deferred++ })
		return
	}
	resp, err := s.fetcher.Get(fetchCtx, e.URL)
	breaker.Record(breakerOutcome(err))
	if err != nil {
		s.failed(log, err)
		return
	}

	base, err := url.Parse(resp.FinalURL)
	if err != nil || resp.FinalURL == "" {
		base, _ = url.Parse(e.URL)
	}
	page, err := s.extractor.Extract(base, resp.Body)
	if err != nil {
		s.failed(log, apperrors.NewFetchError(e.URL, apperrors.KindDecode, resp.StatusCode, err))
		return
	}

	cls, err := s.detector.Classify(prior, page.Text, resp.LastModified)
	if err != nil {
		s.skipped(log, SkipNoText, apperrors.NewFetchError(e.URL, apperrors.KindNoText, resp.StatusCode, err))
		return
	}

	switch cls.Outcome {
	case changedetect.Unchanged:
		s.unchanged(log, priorID, resp.LastModified, cls.RefreshFreshness)
		return
	case changedetect.New:
		if s.cfg.DedupNearCopies {
			if dup, ok := s.fingerprints.NearDuplicate(cls.Fingerprint, s.detector.Threshold()); ok {
				log.Debug("near duplicate skipped", "fingerprint", cls.Fingerprint, "matches", dup)
				s.stats.update(func(st *Stats) { st.Duplicates++ })
				s.countPage("duplicate")
				return
			}
		}
	}

	tokens, ok := s.normalizer.Normalize(page.Text)
	if !ok {
		s.skipped(log, SkipNormalizer, apperrors.NewFetchError(e.URL, apperrors.KindNormalizer, resp.StatusCode, apperrors.ErrNormalizerRejected))
		return
	}

	doc := docstore.Document{
		URL:         e.URL,
		Tokens:      tokens,
		Fingerprint: cls.Fingerprint,
		Freshness:   resp.LastModified,
		Title:       page.Title,
		Description: page.Description,
		Published:   page.Published,
		FetchedAt:   time.Now().UTC(),
	}

	if cls.Outcome == changedetect.New {
		doc, err = s.store.Create(doc)
		if err != nil {
			s.failed(log, err)
			return
		}
		s.fingerprints.Add(doc.Fingerprint)
		s.stats.update(func(st *Stats) { st.New++ })
	} else {
		doc.ID = priorID
		if err := s.store.Put(doc); err != nil {
			s.failed(log, err)
			return
		}
		s.fingerprints.Replace(prior.Fingerprint, doc.Fingerprint)
		s.stats.update(func(st *Stats) { st.Updated++ })
	}
	log.Info("page stored", "outcome", cls.Outcome.String(), "doc_id", doc.ID, "tokens", len(tokens), "distance", cls.Distance)
	s.countPage(cls.Outcome.String())
	s.stored(ctx, doc, cls.Outcome)

	if e.Depth < s.cfg.MaxDepth {
		source := s.frontier.PageContext(frontier.ScoringTokens(page.Text))
		var queued int
		for _, l := range page.Links {
			if _, reason := s.frontier.Enqueue(frontier.Link{
				URL:    l.URL,
				Base:   page.Base,
				Anchor: l.Anchor,
				Source: source,
				Depth:  e.Depth + 1,
			}); reason == frontier.Accepted {
				queued++
			}
		}
		log.Debug("links queued", "found", len(page.Links), "queued", queued)
	}
}

// stored runs the side effects of a new or updated document: batched
// checkpoints, the new-page budget, events and the catalog mirror.
func (s *Scheduler) stored(ctx context.Context, doc docstore.Document, outcome changedetect.Outcome) {
	if n := s.changes.Add(1); n%int64(s.cfg.SaveInterval) == 0 {
		s.checkpoint()
	}
	if outcome == changedetect.New {
		if n := s.newPages.Add(1); s.cfg.MaxNewPages > 0 && n >= int64(s.cfg.MaxNewPages) {
			s.logger.Info("new page budget reached", "new_pages", n)
			s.stop(errMaxNewPages)
		}
	}

	bg := context.WithoutCancel(ctx)
	s.events.Page(bg, events.PageEvent{
		RunID:       s.runID,
		DocID:       doc.ID,
		URL:         doc.URL,
		Outcome:     outcome.String(),
		Fingerprint: doc.Fingerprint,
		Timestamp:   doc.FetchedAt,
	})
	if s.mirror != nil {
		mctx, cancel := context.WithTimeout(bg, 5*time.Second)
		defer cancel()
		if err := s.mirror.Upsert(mctx, doc); err != nil {
			s.logger.Warn("catalog mirror failed", "doc_id", doc.ID, "error", err)
		}
	}
}

func (s *Scheduler) unchanged(log *slog.Logger, docID int, freshness string, refresh bool) {
	if doc, ok := s.store.Get(docID); ok {
		doc.FetchedAt = time.Now().UTC()
		if refresh {
			doc.Freshness = freshness
		}
		if err := s.store.Put(doc); err != nil {
			log.Warn("refreshing unchanged document failed", "error", err)
		}
	}
	log.Debug("page unchanged", "doc_id", docID, "refreshed", refresh)
	s.stats.update(func(st *Stats) { st.Unchanged++ })
	s.countPage("unchanged")
}

func (s *Scheduler) skipped(log *slog.Logger, reason string, err error) {
	log.Info("url skipped", "reason", reason, "error", err)
	s.stats.skip(reason)
	s.countPage("skipped")
}

func (s *Scheduler) failed(log *slog.Logger, err error) {
	kind := apperrors.KindOf(err)
	if kind == "" {
		kind = "internal"
	}
	log.Info("url dropped", "kind", kind, "error", err)
	s.stats.update(func(st *Stats) { st.Errors++ })
	s.countPage("error")
	if s.metrics != nil {
		s.metrics.FetchErrorsTotal.WithLabelValues(string(kind)).Inc()
	}
}

func (s *Scheduler) requeue(e frontier.Entry) {
	s.frontier.Return(e)
	s.stats.update(func(st *Stats) { st.Visited-- })
}

func (s *Scheduler) countPage(outcome string) {
	if s.metrics != nil {
		s.metrics.PagesTotal.WithLabelValues(outcome).Inc()
	}
}

// breakerOutcome maps a fetch result onto the domain breaker: only network
// failures and server errors count against the domain.
func breakerOutcome(err error) error {
	var fe *apperrors.FetchError
	if !errors.As(err, &fe) {
		return err
	}
	switch {
	case fe.Kind == apperrors.KindNetwork:
		return err
	case fe.Kind == apperrors.KindStatus && fe.StatusCode >= 500:
		return err
	default:
		return nil
	}
}
