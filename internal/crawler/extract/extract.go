// Package extract turns an HTML page into the text, links and metadata the
// crawler needs.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	apperrors "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/errors"
)

// Link is an outbound hyperlink with its anchor text. URL is the raw href.
type Link struct {
	URL    string
	Anchor string
}

// Page is the extracted content of an HTML document.
type Page struct {
	// Base is the URL relative links resolve against; it honors <base href>.
	Base        *url.URL
	Title       string
	Description string
	Published   string
	// Text is the visible text with navigation and other boilerplate
	// removed, whitespace-collapsed. It feeds fingerprinting and
	// normalization.
	Text string
	// FullText is the visible text of the whole body.
	FullText string
	Links    []Link
}

// Extractor converts an HTML body fetched from base into a Page.
type Extractor interface {
	Extract(base *url.URL, body []byte) (*Page, error)
}

var boilerplate = "script, style, noscript, template, iframe, svg, nav, header, footer, aside, form, " +
	"[role=navigation], [role=banner], [role=contentinfo], [aria-hidden=true]"

// HTMLExtractor is the goquery-backed Extractor.
type HTMLExtractor struct{}

// NewHTMLExtractor creates an HTMLExtractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Extract parses body. It returns ErrDecodeFailed if the document cannot be
// parsed.
func (e *HTMLExtractor) Extract(base *url.URL, body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing html: %v", apperrors.ErrDecodeFailed, err)
	}

	page := &Page{Base: base}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok && base != nil {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			page.Base = b
		}
	}

	page.Title = firstNonEmpty(
		collapse(doc.Find("title").First().Text()),
		metaContent(doc, "meta[property='og:title']"),
	)
	page.Description = firstNonEmpty(
		metaContent(doc, "meta[name='description']"),
		metaContent(doc, "meta[property='og:description']"),
		metaContent(doc, "meta[name='twitter:description']"),
	)
	page.Published = firstNonEmpty(
		metaContent(doc, "meta[property='article:published_time']"),
		metaContent(doc, "meta[itemprop='datePublished']"),
		metaContent(doc, "meta[name='date']"),
		metaContent(doc, "meta[name='pubdate']"),
		attr(doc.Find("time[datetime]").First(), "datetime"),
	)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		anchor := collapse(s.Text())
		if anchor == "" {
			anchor = firstNonEmpty(attr(s, "title"), attr(s, "aria-label"))
		}
		page.Links = append(page.Links, Link{URL: href, Anchor: anchor})
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	doc.Find("script, style, noscript, template").Remove()
	page.FullText = visibleText(root)
	root.Find(boilerplate).Remove()
	page.Text = visibleText(root)
	return page, nil
}

func visibleText(sel *goquery.Selection) string {
	var sb strings.Builder
	for _, n := range sel.Nodes {
		walkText(n, &sb)
	}
	return collapse(sb.String())
}

func walkText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	case html.CommentNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, sb)
	}
}

func metaContent(doc *goquery.Document, selector string) string {
	return attr(doc.Find(selector).First(), "content")
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return collapse(v)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
