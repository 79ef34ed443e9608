// Package fetch retrieves the rendered form of a published page so
// re-audits score what the page actually serves, not just the stored body.
package fetch

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"
)

// Snapshot is the readable extraction of a rendered page.
type Snapshot struct {
	URL      string
	Title    string
	Text     string
	RenderMS int
}

// Fetcher renders a page and extracts its readable text.
type Fetcher interface {
	Snapshot(ctx context.Context, pageURL string) (Snapshot, error)
}

// ChromeFetcher drives headless chrome and runs readability extraction on
// the resulting DOM.
type ChromeFetcher struct {
	Timeout  time.Duration
	MaxChars int
}

const (
	defaultTimeout  = 15 * time.Second
	defaultMaxChars = 40000
)

func (f *ChromeFetcher) Snapshot(ctx context.Context, pageURL string) (Snapshot, error) {
	if strings.TrimSpace(pageURL) == "" {
		return Snapshot{}, errors.New("invalid url")
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxChars := f.MaxChars
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	t0 := time.Now()

	html, err := renderHTML(ctx, pageURL)
	if err != nil {
		return Snapshot{}, err
	}

	article, err := readability.FromReader(strings.NewReader(html), parsedURL(pageURL))
	if err != nil {
		return Snapshot{}, err
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > maxChars {
		text = text[:maxChars]
	}

	return Snapshot{
		URL:      pageURL,
		Title:    strings.TrimSpace(article.Title),
		Text:     text,
		RenderMS: int(time.Since(t0) / time.Millisecond),
	}, nil
}

func renderHTML(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("optipress-audit/1.0"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func parsedURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
