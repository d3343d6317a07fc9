package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, v any) *http.Response {
	var b []byte
	switch x := v.(type) {
	case string:
		b = []byte(x)
	default:
		b, _ = json.Marshal(v)
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(b)),
	}
}

func newTestClient(t *testing.T, retries int, rt roundTripperFunc) *Client {
	t.Helper()
	c, err := New(Options{
		BaseURL:    "http://engine/",
		APIKey:     "secret",
		Timeout:    2 * time.Second,
		MaxRetries: retries,
		HTTPClient: &http.Client{Transport: rt},
	})
	require.NoError(t, err)
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "  "})
	require.Error(t, err)
}

func TestEmbedBatch(t *testing.T) {
	c := newTestClient(t, 0, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, PathEmbedBatch, req.URL.Path)
		assert.Equal(t, "secret", req.Header.Get(APIKeyHeader))
		assert.Empty(t, req.Header.Get("Authorization"))

		var in embedBatchRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&in))
		require.Len(t, in.Items, 2)
		assert.Equal(t, "a", in.Items[0].ID)

		msg := "empty text"
		return jsonResponse(http.StatusOK, EmbedBatchResponse{
			Dimensions: 3,
			Results: []EmbedResult{
				{ID: "a", Embedding: []float32{0.1, 0.2, 0.3}},
				{ID: "b", Error: &msg},
			},
		}), nil
	})

	resp, err := c.EmbedBatch(context.Background(), []EmbedItem{{ID: "a", Text: "x"}, {ID: "b", Text: ""}})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Dimensions)
	require.Len(t, resp.Results, 2)
	assert.Len(t, resp.Results[0].Embedding, 3)
	require.NotNil(t, resp.Results[1].Error)
}

func TestNon2xxIsEngineErrorWithDetail(t *testing.T) {
	c := newTestClient(t, 2, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `{"detail":"items must not be empty"}`), nil
	})

	_, err := c.ExtractEntities(context.Background(), nil)
	require.Error(t, err)

	var ee *Error
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, apierr.CodeEngineError, ee.ErrorCode())
	assert.Equal(t, http.StatusBadGateway, ee.HTTPStatus())
	assert.Equal(t, "items must not be empty", ee.Message)

	ae := apierr.From(err)
	assert.Equal(t, apierr.CodeEngineError, ae.Code)
	assert.Equal(t, http.StatusBadGateway, ae.Status)
}

func TestValidationDetailList(t *testing.T) {
	e := parseHTTPError(PathEmbedBatch, 422, []byte(`{"detail":[{"msg":"field required"},{"msg":"too long"}]}`))
	assert.Equal(t, "field required; too long", e.Message)
	assert.Equal(t, 422, e.StatusCode)
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, 3, func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(http.StatusUnauthorized, `{"detail":"Invalid API key"}`), nil
	})
	_, err := c.Suggestions(context.Background(), SuggestionsRequest{ProjectName: "p"})
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, 2, func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) < 2 {
			return jsonResponse(http.StatusServiceUnavailable, `{"detail":"warming up"}`), nil
		}
		return jsonResponse(http.StatusOK, suggestionsResponse{Suggestions: []string{"write more"}}), nil
	})
	out, err := c.Suggestions(context.Background(), SuggestionsRequest{ProjectName: "p"})
	require.NoError(t, err)
	assert.Equal(t, []string{"write more"}, out)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	c := newTestClient(t, 1, func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	_, err := c.EmbedQuery(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, apierr.CodeEngineUnavailable, apierr.Code(err))
	assert.Equal(t, http.StatusServiceUnavailable, apierr.From(err).Status)
}

func TestTimeoutIsUnavailable(t *testing.T) {
	c, err := New(Options{
		BaseURL:      "http://engine",
		QueryTimeout: 20 * time.Millisecond,
		HTTPClient: &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		})},
	})
	require.NoError(t, err)

	_, err = c.Health(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestObserveReportsOutcome(t *testing.T) {
	var got []string
	c, err := New(Options{
		BaseURL: "http://engine",
		HTTPClient: &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, Health{Status: "ok", Service: "engine"}), nil
		})},
		Observe: func(path, outcome string, _ time.Duration) { got = append(got, path+":"+outcome) },
	})
	require.NoError(t, err)

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, []string{PathHealth + ":ok"}, got)
}

func sseResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestChatStreamRelaysTokens(t *testing.T) {
	c := newTestClient(t, 0, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, PathChatMessage, req.URL.Path)
		assert.Equal(t, "text/event-stream", req.Header.Get("Accept"))
		return sseResponse("data: {\"token\":\"Ciao\"}\n\ndata: {\"token\":\" mondo\"}\n\ndata: [DONE]\n\ndata: {\"token\":\"late\"}\n\n"), nil
	})

	var sb strings.Builder
	err := c.ChatStream(context.Background(), ChatRequest{Message: "hi"}, func(tok string) error {
		sb.WriteString(tok)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Ciao mondo", sb.String())
}

func TestChatStreamErrorFrame(t *testing.T) {
	c := newTestClient(t, 0, func(req *http.Request) (*http.Response, error) {
		return sseResponse("data: {\"token\":\"A\"}\n\ndata: {\"error\":\"Rate limit\"}\n\ndata: [DONE]\n\n"), nil
	})

	var tokens []string
	err := c.ChatStream(context.Background(), ChatRequest{Message: "hi"}, func(tok string) error {
		tokens = append(tokens, tok)
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, apierr.CodeEngineError, apierr.Code(err))
	assert.Equal(t, []string{"A"}, tokens)
}

func TestChatStreamEOFWithoutDone(t *testing.T) {
	c := newTestClient(t, 0, func(req *http.Request) (*http.Response, error) {
		return sseResponse(": keepalive\ndata: {\"token\":\"x\"}"), nil
	})
	var n int
	err := c.ChatStream(context.Background(), ChatRequest{}, func(string) error { n++; return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestParseTime(t *testing.T) {
	s := "2024-03-01T10:00:00+01:00"
	got := ParseTime(&s)
	require.NotNil(t, got)
	assert.Equal(t, 9, got.Hour())

	d := "2024-03-01"
	require.NotNil(t, ParseTime(&d))

	bad := "yesterday"
	assert.Nil(t, ParseTime(&bad))
	assert.Nil(t, ParseTime(nil))
}
