package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crypto-assistant/internal/envelope"
	"crypto-assistant/internal/market"
	"crypto-assistant/internal/observability"
)

const (
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 150 * time.Millisecond

	maxBodyBytes = 8 << 20
)

type Client struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithMaxRetries bounds retries of idempotent requests. Asks are never
// retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithHTTPClient replaces the default client; WithTimeout applied earlier is lost.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL is the normalized backend root, without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

type requestIDKey struct{}

// WithRequestID tags ctx so outgoing requests carry X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type askRequest struct {
	Query string `json:"query"`
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// Ask posts the raw query text once and decodes the response envelope.
func (c *Client) Ask(ctx context.Context, query string) (envelope.Envelope, error) {
	body, err := json.Marshal(askRequest{Query: query})
	if err != nil {
		return envelope.Envelope{}, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ask", bytes.NewReader(body))
	if err != nil {
		return envelope.Envelope{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := requestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	observability.RecordBackendLatency("ask", time.Since(start).Seconds())
	if err != nil {
		return envelope.Envelope{}, &TransportError{Op: "request ask", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return envelope.Envelope{}, &TransportError{Op: "read ask", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return envelope.Envelope{}, &UpstreamError{Op: "ask", Status: resp.StatusCode, Detail: detailOf(data)}
	}
	env, err := envelope.Decode(data)
	if err != nil {
		return envelope.Envelope{}, &TransportError{Op: "decode ask", Err: err}
	}
	return env, nil
}

// GetMarkets fetches the market list. The second return value names the
// backend that answered.
func (c *Client) GetMarkets(ctx context.Context, q market.Query) ([]envelope.MarketCoin, string, error) {
	u, err := url.Parse(c.baseURL + "/api/markets")
	if err != nil {
		return nil, "", fmt.Errorf("invalid base url: %w", err)
	}
	params := u.Query()
	params.Set("per_page", strconv.Itoa(q.PerPage))
	params.Set("sparkline", strconv.FormatBool(q.Sparkline))
	u.RawQuery = params.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, "", &TransportError{Op: "request markets", Err: ctx.Err()}
			case <-time.After(c.retryDelay):
			}
		}
		coins, err := c.getMarketsOnce(ctx, u.String())
		if err == nil {
			return coins, u.Host, nil
		}
		lastErr = err
		var te *TransportError
		if !errors.As(err, &te) || !shouldRetry(te.Err) {
			break
		}
	}
	return nil, "", lastErr
}

func (c *Client) getMarketsOnce(ctx context.Context, endpoint string) ([]envelope.MarketCoin, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if id := requestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	observability.RecordBackendLatency("markets", time.Since(start).Seconds())
	if err != nil {
		return nil, &TransportError{Op: "request markets", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Op: "read markets", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Op: "markets", Status: resp.StatusCode, Detail: detailOf(data)}
	}
	var coins []envelope.MarketCoin
	if err := json.Unmarshal(data, &coins); err != nil {
		return nil, &TransportError{Op: "decode markets", Err: err}
	}
	return coins, nil
}

// detailOf reads {"detail": "..."} from an error body. Non-string details
// (validation error lists, objects) are ignored.
func detailOf(data []byte) string {
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err != nil || len(eb.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(eb.Detail, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "reset by peer") ||
		strings.Contains(msg, "connection refused") || strings.HasSuffix(msg, ": eof")
}
