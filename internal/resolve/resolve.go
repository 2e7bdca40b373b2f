// Package resolve discovers candidate tariff document URLs on a utility
// source page.
package resolve

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/tariff-monitor/internal/fetch"
)

// maxContextLength bounds the discovery-context snippet stored per candidate.
const maxContextLength = 160

// Candidate is a document link discovered on a source page.
type Candidate struct {
	URL      string `json:"url"`
	LinkText string `json:"link_text"`
	Context  string `json:"context,omitempty"`
}

// Resolver discovers candidate document URLs for a source page.
type Resolver interface {
	Resolve(ctx context.Context, pageURL string) ([]Candidate, error)
}

// Error represents a failure while resolving candidates from a source page.
type Error struct {
	PageURL string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("resolve error for %s: %s: %v", e.PageURL, e.Message, e.Cause)
	}
	return fmt.Sprintf("resolve error for %s: %s", e.PageURL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPResolver fetches a source page and extracts PDF links from its HTML.
// When UseBrowser is set and the static fetch returns what looks like an
// unrendered SPA shell, the page is re-fetched through a headless browser.
type HTTPResolver struct {
	Fetcher    *fetch.Fetcher
	UseBrowser bool
	Verbose    bool
}

// NewHTTPResolver creates a resolver backed by the given fetcher (nil uses a
// default fetcher).
func NewHTTPResolver(fetcher *fetch.Fetcher) *HTTPResolver {
	if fetcher == nil {
		fetcher = fetch.NewFetcher(nil)
	}
	return &HTTPResolver{Fetcher: fetcher}
}

// Resolve fetches pageURL and returns the PDF candidates found on it, in
// document order, deduplicated by cleaned URL.
func (r *HTTPResolver) Resolve(ctx context.Context, pageURL string) ([]Candidate, error) {
	resp, err := r.Fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, &Error{PageURL: pageURL, Message: "failed to fetch source page", Cause: err}
	}

	html := string(resp.Body)
	if r.UseBrowser && fetch.ShouldUseBrowser(html) {
		rendered, err := fetch.RenderPage(ctx, pageURL, 0, r.Verbose)
		if err != nil {
			return nil, &Error{PageURL: pageURL, Message: "browser rendering failed", Cause: err}
		}
		html = rendered
	}

	return ExtractPDFLinks(html, pageURL)
}

// ExtractPDFLinks parses HTML and returns every distinct PDF link, resolved
// against baseURL. Query strings and fragments are stripped so that the same
// document reached through different tracking parameters maps to one URL.
func ExtractPDFLinks(html string, baseURL string) ([]Candidate, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &Error{PageURL: baseURL, Message: "invalid base URL", Cause: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &Error{PageURL: baseURL, Message: "failed to parse HTML", Cause: err}
	}

	seen := make(map[string]bool)
	candidates := make([]Candidate, 0)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" {
			return
		}
		if !strings.Contains(strings.ToLower(href), ".pdf") {
			return
		}

		linkURL, err := url.Parse(href)
		if err != nil {
			// Skip malformed URLs
			return
		}

		absolute := base.ResolveReference(linkURL)
		absolute.RawQuery = ""
		absolute.Fragment = ""
		cleaned := absolute.String()

		if seen[cleaned] {
			return
		}
		seen[cleaned] = true

		candidates = append(candidates, Candidate{
			URL:      cleaned,
			LinkText: strings.TrimSpace(s.Text()),
			Context:  linkContext(s),
		})
	})

	return candidates, nil
}

// linkContext captures a short snippet of the surrounding markup so the
// selector can see under which heading or list a link appeared.
func linkContext(s *goquery.Selection) string {
	parent := s.Parent()
	if parent.Length() == 0 {
		return ""
	}
	text := strings.Join(strings.Fields(parent.Text()), " ")
	if runes := []rune(text); len(runes) > maxContextLength {
		text = string(runes[:maxContextLength-3]) + "..."
	}
	return text
}
