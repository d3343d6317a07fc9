package pageparse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

const UserAgent = "VisibleeBot/1.0 (+https://visiblee.com/bot)"

var ErrNotHTML = errors.New("non-HTML content")

// StatusError is a non-success HTTP answer from the fetched site.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string { return fmt.Sprintf("HTTP %d", e.StatusCode) }

type Fetcher struct {
	client     *http.Client
	maxRetries int
	backoff    time.Duration
}

type FetcherOptions struct {
	Timeout    time.Duration
	MaxRetries int
	// Backoff is multiplied by the attempt number between retries.
	Backoff    time.Duration
	HTTPClient *http.Client
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 1500 * time.Millisecond
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{client: hc, maxRetries: opts.MaxRetries, backoff: opts.Backoff}
}

func DefaultFetcher() *Fetcher {
	return NewFetcher(FetcherOptions{MaxRetries: 2})
}

// Result pairs a requested URL with its page or failure.
type Result struct {
	URL  string
	Page *Page
	Err  error
}

func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		page, err := f.fetchOnce(ctx, pageURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !retryable(err) || attempt == f.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.backoff * time.Duration(attempt+1)):
		}
	}
	return nil, lastErr
}

// FetchMany fetches urls with bounded concurrency. Results keep input order;
// one failure never affects the others.
func (f *Fetcher) FetchMany(ctx context.Context, urls []string, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = 5
	}
	out := make([]Result, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			page, err := f.Fetch(gctx, u)
			out[i] = Result{URL: u, Page: page, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (f *Fetcher) fetchOnce(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "it,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/html") {
		return nil, fmt.Errorf("%w: %.60s", ErrNotHTML, ct)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	page := Extract(doc, resp.Request.URL.String())
	return &page, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return !errors.Is(err, ErrNotHTML)
}
