// Package robots fetches, parses and caches robots.txt policies per domain
// and derives the effective crawl delay for each one.
package robots

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/metrics"
)

const maxRobotsBytes = 512 * 1024

// Fallback is the policy applied when robots.txt cannot be obtained or
// parsed.
type Fallback int

const (
	FallbackAllow Fallback = iota
	FallbackDeny
)

// ParseFallback maps the configuration value ("allow" or "deny").
func ParseFallback(s string) (Fallback, error) {
	switch s {
	case "", "allow":
		return FallbackAllow, nil
	case "deny":
		return FallbackDeny, nil
	default:
		return FallbackAllow, fmt.Errorf("unknown robots fallback %q", s)
	}
}

// Source records how a Policy was obtained.
type Source string

const (
	SourceParsed   Source = "parsed"
	SourceDenied   Source = "deny"
	SourceFallback Source = "fallback"
)

// Policy is the robots decision for one domain.
type Policy struct {
	Domain string
	Delay  time.Duration
	Source Source

	group    *robotstxt.Group
	allowAll bool
}

// Allow reports whether rawURL may be fetched.
func (p *Policy) Allow(rawURL string) bool {
	if p.group == nil {
		return p.allowAll
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return p.group.Test(path)
}

// Options configures a Cache.
type Options struct {
	UserAgent    string
	DefaultDelay time.Duration
	Timeout      time.Duration
	Fallback     Fallback
	// Client defaults to an http.Client with Timeout.
	Client *http.Client
}

// Cache holds one Policy per domain for the process lifetime. Concurrent
// first requests for a domain share a single robots.txt fetch.
type Cache struct {
	opts     Options
	client   *http.Client
	mu       sync.RWMutex
	policies map[string]*Policy
	group    singleflight.Group
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewCache creates a Cache. m may be nil.
func NewCache(opts Options, m *metrics.Metrics) *Cache {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Cache{
		opts:     opts,
		client:   client,
		policies: make(map[string]*Policy),
		metrics:  m,
		logger:   slog.Default().With("component", "robots"),
	}
}

// Get returns the policy for domain, fetching robots.txt on first use.
func (c *Cache) Get(ctx context.Context, domain string) *Policy {
	c.mu.RLock()
	p, ok := c.policies[domain]
	c.mu.RUnlock()
	if ok {
		return p
	}

	v, _, _ := c.group.Do(domain, func() (any, error) {
		c.mu.RLock()
		p, ok := c.policies[domain]
		c.mu.RUnlock()
		if ok {
			return p, nil
		}
		// Cached for the run; detached from the first caller's cancellation.
		p = c.fetch(context.WithoutCancel(ctx), domain)
		c.mu.Lock()
		c.policies[domain] = p
		c.mu.Unlock()
		c.sleep(ctx)
		return p, nil
	})
	return v.(*Policy)
}

// Len returns the number of cached policies.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.policies)
}

func (c *Cache) fetch(ctx context.Context, domain string) *Policy {
	robotsURL := "https://" + domain + "/robots.txt"
	logger := c.logger.With("domain", domain)

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		logger.Warn("building robots request failed", "error", err)
		return c.fallback(domain)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		logger.Info("robots.txt unreachable, using fallback", "error", err)
		return c.fallback(domain)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		logger.Info("robots.txt forbidden, denying domain", "status", resp.StatusCode)
		c.record(SourceDenied)
		return &Policy{Domain: domain, Delay: c.opts.DefaultDelay, Source: SourceDenied}
	case resp.StatusCode != http.StatusOK:
		logger.Info("robots.txt unavailable, using fallback", "status", resp.StatusCode)
		return c.fallback(domain)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		logger.Info("reading robots.txt failed, using fallback", "error", err)
		return c.fallback(domain)
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		logger.Info("robots.txt unparseable, using fallback", "error", err)
		return c.fallback(domain)
	}

	group := data.FindGroup(c.opts.UserAgent)
	delay := c.opts.DefaultDelay
	if group.CrawlDelay > 0 {
		delay = group.CrawlDelay
	}
	logger.Debug("robots.txt parsed", "delay", delay)
	c.record(SourceParsed)
	return &Policy{Domain: domain, Delay: delay, Source: SourceParsed, group: group}
}

func (c *Cache) fallback(domain string) *Policy {
	c.record(SourceFallback)
	return &Policy{
		Domain:   domain,
		Delay:    c.opts.DefaultDelay,
		Source:   SourceFallback,
		allowAll: c.opts.Fallback == FallbackAllow,
	}
}

func (c *Cache) record(src Source) {
	if c.metrics != nil {
		c.metrics.RobotsFetchesTotal.WithLabelValues(string(src)).Inc()
	}
}

func (c *Cache) sleep(ctx context.Context) {
	if c.opts.DefaultDelay <= 0 {
		return
	}
	t := time.NewTimer(c.opts.DefaultDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
