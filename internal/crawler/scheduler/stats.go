package scheduler

import (
	"sync"
	"time"
)

// Stop reasons reported in Stats.
const (
	StopExhausted   = "frontier_exhausted"
	StopInterrupted = "interrupted"
	StopTimeLimit   = "time_limit"
	StopMaxNewPages = "max_new_pages"
)

// Skip reasons.
const (
	SkipRobots     = "robots"
	SkipNoText     = "no_text"
	SkipNormalizer = "normalizer"
)

// Stats summarizes a crawl run.
type Stats struct {
	RunID      string           `json:"run_id"`
	Visited    int64            `json:"visited"`
	New        int64            `json:"new"`
	Updated    int64            `json:"updated"`
	Unchanged  int64            `json:"unchanged"`
	Duplicates int64            `json:"duplicates"`
	Errors     int64            `json:"errors"`
	Deferred   int64            `json:"deferred"`
	Skipped    map[string]int64 `json:"skipped"`
	Documents  int              `json:"documents"`
	Pending    int              `json:"pending"`
	StopReason string           `json:"stop_reason"`
	Duration   time.Duration    `json:"duration"`
}

type counters struct {
	mu sync.Mutex
	s  Stats
}

func newCounters() *counters {
	return &counters{s: Stats{Skipped: make(map[string]int64)}}
}

func (c *counters) update(fn func(s *Stats)) {
	c.mu.Lock()
	fn(&c.s)
	c.mu.Unlock()
}

func (c *counters) skip(reason string) {
	c.update(func(s *Stats) { s.Skipped[reason]++ })
}

func (c *counters) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.s
	out.Skipped = make(map[string]int64, len(c.s.Skipped))
	for k, v := range c.s.Skipped {
		out.Skipped[k] = v
	}
	return out
}
