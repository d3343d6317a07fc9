package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/visiblee-backend/internal/config"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
)

const (
	APIKeyHeader = "x-engine-api-key"

	PathEmbedBatch      = "/api/embed/batch"
	PathEmbedQuery      = "/api/embed/query"
	PathExtractEntities = "/api/extract/entities"
	PathAnalyzeTopics   = "/api/analyze/topics"
	PathSuggestions     = "/api/analyze/suggestions"
	PathCrawlSite       = "/api/crawl/site"
	PathCrawlExtract    = "/api/crawl/extract"
	PathSearchPlatform  = "/api/search/platform"
	PathChatMessage     = "/api/chat/message"
	PathHealth          = "/health"

	defaultBodyLimit = 8 << 20
	crawlBodyLimit   = 64 << 20
)

var errStreamDone = errors.New("stream done")

// ObserveFunc receives one call per finished request. outcome is "ok" or the
// error code.
type ObserveFunc func(path, outcome string, elapsed time.Duration)

type Options struct {
	BaseURL string
	APIKey  string

	Timeout       time.Duration
	QueryTimeout  time.Duration
	CrawlTimeout  time.Duration
	StreamTimeout time.Duration
	MaxRetries    int

	HTTPClient *http.Client
	Observe    ObserveFunc
}

type Client struct {
	baseURL string
	apiKey  string

	timeout       time.Duration
	queryTimeout  time.Duration
	crawlTimeout  time.Duration
	streamTimeout time.Duration
	maxRetries    int

	httpClient *http.Client
	observe    ObserveFunc
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("engine baseURL required")
	}

	orDefault := func(d, def time.Duration) time.Duration {
		if d <= 0 {
			return def
		}
		return d
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	return &Client{
		baseURL:       baseURL,
		apiKey:        strings.TrimSpace(opts.APIKey),
		timeout:       orDefault(opts.Timeout, 60*time.Second),
		queryTimeout:  orDefault(opts.QueryTimeout, 10*time.Second),
		crawlTimeout:  orDefault(opts.CrawlTimeout, 5*time.Minute),
		streamTimeout: orDefault(opts.StreamTimeout, 10*time.Minute),
		maxRetries:    maxRetries,
		httpClient:    hc,
		observe:       opts.Observe,
	}, nil
}

func NewFromConfig(cfg config.EngineConfig, observe ObserveFunc) (*Client, error) {
	return New(Options{
		BaseURL:       cfg.BaseURL,
		APIKey:        cfg.APIKey,
		Timeout:       cfg.Timeout.Duration,
		QueryTimeout:  cfg.QueryTimeout.Duration,
		CrawlTimeout:  cfg.CrawlTimeout.Duration,
		StreamTimeout: cfg.StreamTimeout.Duration,
		MaxRetries:    cfg.MaxRetries,
		Observe:       observe,
	})
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) EmbedBatch(ctx context.Context, items []EmbedItem) (*EmbedBatchResponse, error) {
	var resp EmbedBatchResponse
	if err := c.doJSON(ctx, c.timeout, http.MethodPost, PathEmbedBatch, embedBatchRequest{Items: items}, &resp, defaultBodyLimit); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var resp embedQueryResponse
	if err := c.doJSON(ctx, c.queryTimeout, http.MethodPost, PathEmbedQuery, embedQueryRequest{Text: text}, &resp, defaultBodyLimit); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, &Error{Code: apierr.CodeEngineError, Path: PathEmbedQuery, Message: "empty embedding"}
	}
	return resp.Embedding, nil
}

func (c *Client) ExtractEntities(ctx context.Context, items []ExtractItem) (*ExtractEntitiesResponse, error) {
	var resp ExtractEntitiesResponse
	if err := c.doJSON(ctx, c.timeout, http.MethodPost, PathExtractEntities, extractEntitiesRequest{Items: items}, &resp, defaultBodyLimit); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) AnalyzeTopics(ctx context.Context, items []TopicItem) (*AnalyzeTopicsResponse, error) {
	var resp AnalyzeTopicsResponse
	if err := c.doJSON(ctx, c.timeout, http.MethodPost, PathAnalyzeTopics, analyzeTopicsRequest{Items: items}, &resp, defaultBodyLimit); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Suggestions(ctx context.Context, req SuggestionsRequest) ([]string, error) {
	var resp suggestionsResponse
	if err := c.doJSON(ctx, c.timeout, http.MethodPost, PathSuggestions, req, &resp, defaultBodyLimit); err != nil {
		return nil, err
	}
	return resp.Suggestions, nil
}

func (c *Client) CrawlSite(ctx context.Context, req CrawlSiteRequest) (*CrawlSiteResponse, error) {
	var resp CrawlSiteResponse
	if err := c.doJSON(ctx, c.crawlTimeout, http.MethodPost, PathCrawlSite, req, &resp, crawlBodyLimit); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CrawlExtract(ctx context.Context, urls []string, concurrency int) (*CrawlExtractResponse, error) {
	var resp CrawlExtractResponse
	body := crawlExtractRequest{URLs: urls, Concurrency: concurrency}
	if err := c.doJSON(ctx, c.crawlTimeout, http.MethodPost, PathCrawlExtract, body, &resp, crawlBodyLimit); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SearchPlatform(ctx context.Context, req SearchPlatformRequest) (*SearchPlatformResponse, error) {
	var resp SearchPlatformResponse
	if err := c.doJSON(ctx, c.crawlTimeout, http.MethodPost, PathSearchPlatform, req, &resp, defaultBodyLimit); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var resp Health
	if err := c.doJSON(ctx, c.queryTimeout, http.MethodGet, PathHealth, nil, &resp, defaultBodyLimit); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChatStream relays tokens as they arrive. It returns nil after [DONE] or a
// clean EOF, and an ENGINE_ERROR when the engine emits an error frame.
// Tokens already delivered are not retracted.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest, onToken func(token string) error) error {
	start := time.Now()
	err := c.chatStream(ctx, req, onToken)
	c.record(PathChatMessage, err, start)
	return err
}

func (c *Client) chatStream(ctx context.Context, reqBody ChatRequest, onToken func(token string) error) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return err
	}

	ctx2, cancel := context.WithTimeout(ctx, c.streamTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, http.MethodPost, c.baseURL+PathChatMessage, &buf)
	if err != nil {
		return err
	}
	c.setHeaders(req, "application/json", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return unavailable(PathChatMessage, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return parseHTTPError(PathChatMessage, resp.StatusCode, raw)
	}

	err = streamSSE(resp.Body, func(data string) error {
		data = strings.TrimSpace(data)
		if data == "" {
			return nil
		}
		if data == "[DONE]" {
			return errStreamDone
		}
		var frame struct {
			Token *string `json:"token"`
			Error *string `json:"error"`
		}
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			return nil
		}
		if frame.Error != nil {
			return &Error{Code: apierr.CodeEngineError, Path: PathChatMessage, StatusCode: resp.StatusCode, Message: strings.TrimSpace(*frame.Error)}
		}
		if frame.Token == nil || *frame.Token == "" || onToken == nil {
			return nil
		}
		return onToken(*frame.Token)
	})
	if errors.Is(err, errStreamDone) {
		return nil
	}
	if err != nil {
		var ee *Error
		if errors.As(err, &ee) {
			return err
		}
		if ctx2.Err() != nil && ctx.Err() == nil {
			return unavailable(PathChatMessage, ctx2.Err())
		}
		return err
	}
	return nil
}

// ---------------- HTTP helpers ----------------

func (c *Client) setHeaders(req *http.Request, contentType string, accept string) {
	if strings.TrimSpace(contentType) != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if strings.TrimSpace(accept) != "" {
		req.Header.Set("Accept", accept)
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}
}

func (c *Client) record(path string, err error, start time.Time) {
	if c.observe == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = apierr.Code(err)
	}
	c.observe(path, outcome, time.Since(start))
}

func (c *Client) doJSON(ctx context.Context, timeout time.Duration, method, path string, body, out any, limit int64) (err error) {
	start := time.Now()
	defer func() { c.record(path, err, start) }()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	ctx2, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	backoff := 250 * time.Millisecond
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx2.Err() != nil {
			break
		}

		req, err := http.NewRequestWithContext(ctx2, method, c.baseURL+path, bytes.NewReader(buf.Bytes()))
		if err != nil {
			return err
		}
		if body != nil {
			c.setHeaders(req, "application/json", "application/json")
		} else {
			c.setHeaders(req, "", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = unavailable(path, err)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, limit))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = unavailable(path, readErr)
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				lastErr = parseHTTPError(path, resp.StatusCode, raw)
			default:
				if out == nil {
					return nil
				}
				if err := json.Unmarshal(raw, out); err != nil {
					return &Error{Code: apierr.CodeEngineError, Path: path, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
				}
				return nil
			}
		}

		if !retryable(lastErr) || attempt == c.maxRetries {
			break
		}
		select {
		case <-ctx2.Done():
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if lastErr == nil && ctx2.Err() != nil {
		lastErr = unavailable(path, fmt.Errorf("timeout after %s: %w", timeout, ctx2.Err()))
	}
	return lastErr
}
