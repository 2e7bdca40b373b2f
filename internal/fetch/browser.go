// Package fetch - browser.go provides headless browser rendering for utility
// source pages that only populate their document lists via JavaScript.
package fetch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// MinPageContentLength is the minimum HTML length below which a statically
// fetched source page is assumed to be a JavaScript shell and worth
// re-rendering in a browser.
const MinPageContentLength = 500

// DefaultBrowserTimeout bounds a single page render.
const DefaultBrowserTimeout = 30 * time.Second

// ShouldUseBrowser reports whether the statically fetched HTML looks like an
// unrendered SPA shell.
func ShouldUseBrowser(html string) bool {
	return len(strings.TrimSpace(html)) < MinPageContentLength
}

// RenderPage loads a source page in a headless browser and returns the
// rendered HTML. Requires Chrome/Chromium on the system.
func RenderPage(ctx context.Context, url string, timeout time.Duration, verbose bool) (string, error) {
	if timeout == 0 {
		timeout = DefaultBrowserTimeout
	}
	if verbose {
		log.Printf("[BROWSER] Rendering source page: %s", url)
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		// Give client-side document lists time to populate.
		chromedp.Sleep(3*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed for %s: %w", url, err)
	}

	if verbose {
		log.Printf("[BROWSER] Rendered HTML: %d bytes", len(html))
	}
	return html, nil
}
