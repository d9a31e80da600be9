package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/errors"
)

func newTestFetcher() *Fetcher {
	return New(Options{UserAgent: "TuebingenSearchBot/1.0", Timeout: 2 * time.Second}, nil)
}

func TestGetHTML(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.UserAgent() != "TuebingenSearchBot/1.0" {
			t.Errorf("User-Agent = %q", r.UserAgent())
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Last-Modified", "Tue, 01 Jul 2025 10:00:00 GMT")
		w.Write([]byte("<html><body>Grüße aus Tübingen</body></html>"))
	}))
	defer ts.Close()

	resp, err := newTestFetcher().Get(context.Background(), ts.URL+"/page")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(resp.Body), "Tübingen") {
		t.Errorf("body = %q", resp.Body)
	}
	if resp.LastModified != "Tue, 01 Jul 2025 10:00:00 GMT" {
		t.Errorf("LastModified = %q", resp.LastModified)
	}
}

func TestGetDecodesLatin1(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte("<html><body>T\xfcbingen</body></html>"))
	}))
	defer ts.Close()

	resp, err := newTestFetcher().Get(context.Background(), ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(resp.Body), "Tübingen") {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestGetFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    apperrors.FetchKind
		status  int
		is      error
	}{
		{
			name:    "not found",
			handler: func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
			kind:    apperrors.KindStatus,
			status:  http.StatusNotFound,
			is:      apperrors.ErrHTTPStatus,
		},
		{
			name: "not html",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/pdf")
				w.Write([]byte("%PDF-1.4"))
			},
			kind:   apperrors.KindNotHTML,
			status: http.StatusOK,
			is:     apperrors.ErrNotHTML,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()
			_, err := newTestFetcher().Get(context.Background(), ts.URL)
			var fe *apperrors.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("err = %v, want *FetchError", err)
			}
			if fe.Kind != tt.kind || fe.StatusCode != tt.status || !errors.Is(err, tt.is) {
				t.Errorf("got %+v", fe)
			}
		})
	}
}

func TestGetNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := newTestFetcher().Get(context.Background(), url)
	if apperrors.KindOf(err) != apperrors.KindNetwork || !errors.Is(err, apperrors.ErrFetchFailed) {
		t.Errorf("err = %v", err)
	}
}

func TestHead(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s", r.Method)
		}
		w.Header().Set("Last-Modified", "Wed, 02 Jul 2025 10:00:00 GMT")
	}))
	defer ts.Close()

	lm, err := newTestFetcher().Head(context.Background(), ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	if lm != "Wed, 02 Jul 2025 10:00:00 GMT" {
		t.Errorf("Last-Modified = %q", lm)
	}
}

func TestIsHTML(t *testing.T) {
	for ct, want := range map[string]bool{
		"text/html":                 true,
		"TEXT/HTML; charset=UTF-8":  true,
		"application/xhtml+xml":     true,
		"text/plain; charset=utf-8": false,
		"application/json":          false,
	} {
		if got := isHTML(ct); got != want {
			t.Errorf("isHTML(%q) = %v, want %v", ct, got, want)
		}
	}
}
