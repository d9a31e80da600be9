package extract

import (
	"net/url"
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html><head>
<title> Cyber Valley
 News </title>
<meta name="description" content="Research news from Tübingen">
<meta property="article:published_time" content="2025-06-30T09:00:00Z">
<style>body { color: red }</style>
</head>
<body>
<nav><a href="/home">Home</a><a href="#top">Top</a></nav>
<main>
<h1>AI research</h1><p>The institute opened<br>a new lab.</p>
<a href="https://example.org/lab">New <b>lab</b> details</a>
<a href="javascript:void(0)">noop</a>
<a href="/img" title="Gallery"></a>
</main>
<script>var tracking = "yes";</script>
<footer>Imprint and privacy</footer>
</body></html>`

func TestExtract(t *testing.T) {
	base, _ := url.Parse("https://example.org/news/index.html")
	page, err := NewHTMLExtractor().Extract(base, []byte(samplePage))
	if err != nil {
		t.Fatal(err)
	}

	if page.Title != "Cyber Valley News" {
		t.Errorf("Title = %q", page.Title)
	}
	if page.Description != "Research news from Tübingen" {
		t.Errorf("Description = %q", page.Description)
	}
	if page.Published != "2025-06-30T09:00:00Z" {
		t.Errorf("Published = %q", page.Published)
	}

	if !strings.Contains(page.Text, "opened a new lab") {
		t.Errorf("Text missing separated content: %q", page.Text)
	}
	for _, bad := range []string{"tracking", "Imprint", "Home", "color"} {
		if strings.Contains(page.Text, bad) {
			t.Errorf("Text contains boilerplate %q: %q", bad, page.Text)
		}
	}
	if !strings.Contains(page.FullText, "Imprint") || strings.Contains(page.FullText, "tracking") {
		t.Errorf("FullText = %q", page.FullText)
	}

	want := []Link{
		{URL: "/home", Anchor: "Home"},
		{URL: "https://example.org/lab", Anchor: "New lab details"},
		{URL: "/img", Anchor: "Gallery"},
	}
	if len(page.Links) != len(want) {
		t.Fatalf("Links = %+v", page.Links)
	}
	for i, l := range want {
		if page.Links[i] != l {
			t.Errorf("Links[%d] = %+v, want %+v", i, page.Links[i], l)
		}
	}
}

func TestExtractBaseHref(t *testing.T) {
	base, _ := url.Parse("https://example.org/a/b.html")
	page, err := NewHTMLExtractor().Extract(base, []byte(`<html><head><base href="/root/"></head><body>x</body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	if page.Base.String() != "https://example.org/root/" {
		t.Errorf("Base = %s", page.Base)
	}
}

func TestExtractEmptyBody(t *testing.T) {
	page, err := NewHTMLExtractor().Extract(nil, []byte(`<html><body><nav>menu</nav></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	if page.Text != "" {
		t.Errorf("Text = %q, want empty", page.Text)
	}
}
