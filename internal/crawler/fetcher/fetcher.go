// Package fetcher performs the crawler's HTTP requests and turns responses
// into UTF-8 HTML bodies or explicit FetchErrors.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"

	apperrors "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/metrics"
)

// Options configures a Fetcher.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	// Client defaults to an http.Client with Timeout.
	Client *http.Client
}

// Response is a successfully fetched HTML page.
type Response struct {
	URL          string
	FinalURL     string
	StatusCode   int
	ContentType  string
	LastModified string
	Body         []byte
}

// Fetcher issues GET and HEAD requests with the crawler's User-Agent.
type Fetcher struct {
	opts    Options
	client  *http.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Fetcher. m may be nil.
func New(opts Options, m *metrics.Metrics) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{
		opts:    opts,
		client:  client,
		metrics: m,
		logger:  slog.Default().With("component", "fetcher"),
	}
}

// Head returns the Last-Modified header of url, or "" if the server sends
// none.
func (f *Fetcher) Head(ctx context.Context, url string) (string, error) {
	resp, err := f.do(ctx, http.MethodHead, url)
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewFetchError(url, apperrors.KindStatus, resp.StatusCode, apperrors.ErrHTTPStatus)
	}
	return resp.Header.Get("Last-Modified"), nil
}

// Get fetches url and returns its body decoded to UTF-8. Any failure is a
// *errors.FetchError.
func (f *Fetcher) Get(ctx context.Context, url string) (*Response, error) {
	start := time.Now()
	resp, err := f.do(ctx, http.MethodGet, url)
	if f.metrics != nil {
		f.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, apperrors.NewFetchError(url, apperrors.KindStatus, resp.StatusCode, apperrors.ErrHTTPStatus)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, apperrors.NewFetchError(url, apperrors.KindNetwork, resp.StatusCode, fmt.Errorf("%w: reading body: %v", apperrors.ErrFetchFailed, err))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(raw)
	}
	if !isHTML(contentType) {
		return nil, apperrors.NewFetchError(url, apperrors.KindNotHTML, resp.StatusCode, fmt.Errorf("%w: %s", apperrors.ErrNotHTML, contentType))
	}

	body, err := Decode(raw, contentType)
	if err != nil {
		return nil, apperrors.NewFetchError(url, apperrors.KindDecode, resp.StatusCode, err)
	}

	return &Response{
		URL:          url,
		FinalURL:     resp.Request.URL.String(),
		StatusCode:   resp.StatusCode,
		ContentType:  contentType,
		LastModified: resp.Header.Get("Last-Modified"),
		Body:         body,
	}, nil
}

func (f *Fetcher) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, apperrors.NewFetchError(url, apperrors.KindNetwork, 0, fmt.Errorf("%w: %v", apperrors.ErrFetchFailed, err))
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.NewFetchError(url, apperrors.KindNetwork, 0, fmt.Errorf("%w: %v", apperrors.ErrFetchFailed, err))
	}
	return resp, nil
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

// Decode converts raw to UTF-8 using the charset declared in contentType or
// the document, falling back to Windows-1252 when that does not yield valid
// UTF-8.
func Decode(raw []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err == nil {
		out, err := io.ReadAll(r)
		if err == nil && utf8.Valid(out) {
			return out, nil
		}
	}

	out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDecodeFailed, err)
	}
	if !utf8.Valid(out) {
		return nil, fmt.Errorf("%w: decoded body is not valid utf-8", apperrors.ErrDecodeFailed)
	}
	return out, nil
}
