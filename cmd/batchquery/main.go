package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Query is one line of a query file: "<number>\t<query text>".
type Query struct {
	Num  int
	Text string
}

type hit struct {
	DocID int     `json:"doc_id"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

type searchResponse struct {
	TotalHits int   `json:"total_hits"`
	Results   []hit `json:"results"`
}

type client struct {
	base  string
	mode  string
	limit int
	http  *http.Client
}

func (c *client) search(ctx context.Context, q string) (*searchResponse, int, error) {
	v := url.Values{}
	v.Set("q", q)
	v.Set("limit", strconv.Itoa(c.limit))
	if c.mode != "" {
		v.Set("mode", c.mode)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/search?"+v.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, fmt.Errorf("search %q: status %d", q, resp.StatusCode)
	}
	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decoding response for %q: %w", q, err)
	}
	return &out, resp.StatusCode, nil
}

// readQueries parses a query file. Lines without a tab or with an empty
// query are skipped.
func readQueries(r io.Reader) ([]Query, error) {
	var out []Query
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		num, text, ok := strings.Cut(strings.TrimSpace(sc.Text()), "\t")
		text = strings.TrimSpace(text)
		if !ok || text == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(num))
		if err != nil {
			n = len(out) + 1
		}
		out = append(out, Query{Num: n, Text: text})
	}
	return out, sc.Err()
}

// runBatch issues every query once and writes "num\trank\turl\tscore" lines
// in query order.
func runBatch(ctx context.Context, c *client, queries []Query, w io.Writer) error {
	results := make([]*searchResponse, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, q := range queries {
		g.Go(func() error {
			res, _, err := c.search(gctx, q.Text)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	for i, q := range queries {
		for rank, h := range results[i].Results {
			fmt.Fprintf(bw, "%d\t%d\t%s\t%.3f\n", q.Num, rank+1, h.URL, h.Score)
		}
	}
	return bw.Flush()
}

type benchStats struct {
	total       atomic.Int64
	failed      atomic.Int64
	zeroResults atomic.Int64
	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
}

func (s *benchStats) record(d time.Duration, status int, res *searchResponse, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
	} else if len(res.Results) == 0 {
		s.zeroResults.Add(1)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if status != 0 {
		s.statusCodes[status]++
	}
	if err == nil {
		s.latencies = append(s.latencies, d)
	}
}

// runBench replays queries round robin from concurrency workers until ctx
// ends, optionally capped at qps requests per second overall.
func runBench(ctx context.Context, c *client, queries []Query, concurrency int, qps float64) *benchStats {
	stats := &benchStats{statusCodes: make(map[int]int64)}
	limit := rate.Inf
	if qps > 0 {
		limit = rate.Limit(qps)
	}
	limiter := rate.NewLimiter(limit, max(1, concurrency))

	var wg sync.WaitGroup
	for w := range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; ; i++ {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				start := time.Now()
				res, status, err := c.search(ctx, queries[i%len(queries)].Text)
				if ctx.Err() != nil {
					return
				}
				stats.record(time.Since(start), status, res, err)
			}
		}()
	}
	wg.Wait()
	return stats
}

func printReport(w io.Writer, s *benchStats, elapsed time.Duration) {
	total := s.total.Load()
	failed := s.failed.Load()
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Failed:          %d\n", failed)
	fmt.Fprintf(w, "Zero Results:    %d\n", s.zeroResults.Load())
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(failed)/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/elapsed.Seconds())
	}

	s.mu.Lock()
	latencies := append([]time.Duration(nil), s.latencies...)
	codes := make([]int, 0, len(s.statusCodes))
	for code := range s.statusCodes {
		codes = append(codes, code)
	}
	s.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", sum/time.Duration(len(latencies)))
		for _, p := range []float64{50, 90, 99} {
			fmt.Fprintf(w, "P%-2.0f:    %s\n", p, percentile(latencies, p))
		}
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
	}

	sort.Ints(codes)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, s.statusCodes[code])
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	queryFile := flag.String("queries", "", "tab-separated query file (number<TAB>query)")
	mode := flag.String("mode", "", "query mode: and or or (default: as written in the query)")
	limit := flag.Int("limit", 100, "results per query")
	bench := flag.Duration("bench", 0, "replay the queries for this long and report latency instead of printing results")
	concurrency := flag.Int("concurrency", 10, "concurrent workers in bench mode")
	qps := flag.Float64("qps", 0, "overall request rate cap in bench mode (0 = unlimited)")
	flag.Parse()

	if *queryFile == "" {
		fmt.Fprintln(os.Stderr, "-queries is required")
		os.Exit(2)
	}
	f, err := os.Open(*queryFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening query file: %v\n", err)
		os.Exit(1)
	}
	queries, err := readQueries(f)
	f.Close()
	if err != nil || len(queries) == 0 {
		fmt.Fprintf(os.Stderr, "no queries loaded from %s (err: %v)\n", *queryFile, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &client{
		base:  strings.TrimRight(*baseURL, "/"),
		mode:  *mode,
		limit: *limit,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        *concurrency * 2,
				MaxIdleConnsPerHost: *concurrency * 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}

	if *bench <= 0 {
		if err := runBatch(ctx, c, queries, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "batch failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "benchmarking %s with %d queries, %d workers, for %s\n", c.base, len(queries), *concurrency, *bench)
	benchCtx, cancel := context.WithTimeout(ctx, *bench)
	defer cancel()
	start := time.Now()
	stats := runBench(benchCtx, c, queries, *concurrency, *qps)
	printReport(os.Stdout, stats, time.Since(start))
	if stats.total.Load() == 0 {
		fmt.Fprintln(os.Stderr, "no requests completed, is the service running?")
		os.Exit(1)
	}
}
