package pageparse

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!doctype html>
<html><head>
<title>Fallback title</title>
<meta property="og:title" content=" Brand launches product ">
<meta name="description" content="A short description">
<meta property="article:published_time" content="2024-05-17T08:00:00Z">
</head>
<body>
<nav><a href="/">Home</a></nav>
<div class="cookie-banner">We use cookies</div>
<article>
<h1>Launch</h1>
<p>The brand launched a <a href="/p">new product</a> today.</p>
<div class="share-buttons">Share on X</div>
<p>It is available in Italy.</p>
</article>
<footer>copyright</footer>
</body></html>`

func TestExtractArticle(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(articleHTML))
	require.NoError(t, err)

	p := Extract(doc, "https://example.com/launch")
	assert.Equal(t, "Brand launches product", p.Title)
	assert.Equal(t, "A short description", p.Description)
	require.NotNil(t, p.PublishedAt)
	assert.Equal(t, time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC), *p.PublishedAt)

	assert.Contains(t, p.Content, "new product")
	assert.NotContains(t, p.Content, "cookies")
	assert.NotContains(t, p.Content, "Share on X")
	assert.NotContains(t, p.Content, "copyright")
	assert.Equal(t, "Launch The brand launched a new product today. It is available in Italy.", p.Excerpt)
	assert.Equal(t, 13, p.WordCount)

	// Link discovery still sees the nav on the original document.
	assert.Equal(t, 2, doc.Find("a").Length())
}

func TestExtractFallsBackToBodyAndTimeTag(t *testing.T) {
	html := "<html><body><h1>Only heading</h1>\n<time datetime=\"2023-01-02\">Jan 2</time>\n<p>word word</p></body></html>"
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	p := Extract(doc, "https://example.com/x")
	assert.Equal(t, "Only heading", p.Title)
	require.NotNil(t, p.PublishedAt)
	assert.Equal(t, 2023, p.PublishedAt.Year())
	assert.Equal(t, 6, p.WordCount)
}

func TestExcerptBreaksOnWord(t *testing.T) {
	s := strings.Repeat("parola ", 100)
	got := excerpt(strings.TrimSpace(s), ExcerptChars)
	assert.LessOrEqual(t, len([]rune(got)), ExcerptChars)
	assert.False(t, strings.HasSuffix(got, "paro"))
	assert.True(t, strings.HasSuffix(got, "parola"))
}

func TestContentIsCapped(t *testing.T) {
	html := "<html><body><main><p>" + strings.Repeat("a ", MaxContentChars) + "</p></main></body></html>"
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	p := Extract(doc, "u")
	assert.Equal(t, MaxContentChars, len([]rune(p.Content)))
}

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func htmlResponse(req *http.Request, status int, contentType, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{contentType}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func TestFetcherRetriesServerErrors(t *testing.T) {
	var calls int32
	f := NewFetcher(FetcherOptions{
		MaxRetries: 2,
		Backoff:    time.Millisecond,
		HTTPClient: &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, UserAgent, req.Header.Get("User-Agent"))
			if atomic.AddInt32(&calls, 1) == 1 {
				return htmlResponse(req, 502, "text/html", ""), nil
			}
			return htmlResponse(req, 200, "text/html; charset=utf-8", articleHTML), nil
		})},
	})

	page, err := f.Fetch(context.Background(), "https://example.com/launch")
	require.NoError(t, err)
	assert.Equal(t, "Brand launches product", page.Title)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetchManyKeepsOrderAndIsolatesFailures(t *testing.T) {
	f := NewFetcher(FetcherOptions{
		Backoff: time.Millisecond,
		HTTPClient: &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			switch req.URL.Path {
			case "/pdf":
				return htmlResponse(req, 200, "application/pdf", "%PDF"), nil
			case "/missing":
				return htmlResponse(req, 404, "text/html", ""), nil
			}
			return htmlResponse(req, 200, "text/html", articleHTML), nil
		})},
	})

	res := f.FetchMany(context.Background(), []string{"https://a/ok", "https://a/pdf", "https://a/missing"}, 2)
	require.Len(t, res, 3)
	assert.NoError(t, res[0].Err)
	assert.NotNil(t, res[0].Page)
	assert.ErrorIs(t, res[1].Err, ErrNotHTML)
	var se *StatusError
	require.ErrorAs(t, res[2].Err, &se)
	assert.Equal(t, 404, se.StatusCode)
}
