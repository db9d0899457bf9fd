// Package newsapi is the outbound gateway to the News API v2 endpoints.
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danmuck/newswire/internal/observability"
)

const (
	DefaultBaseURL = "https://newsapi.org/v2/"
	DefaultTimeout = 10 * time.Second

	EndpointHeadlines = "top-headlines"
	EndpointSources   = "sources"

	apiKeyHeader = "X-Api-Key"
	maxBodyBytes = 8 * 1024 * 1024
)

var (
	ErrUpstreamFetch  = errors.New("newsapi: upstream fetch failed")
	ErrAPIKeyRequired = errors.New("newsapi: api key required")
)

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	UserAgent  string
}

func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// Client issues single GET requests against the News API. It never retries.
type Client struct {
	base   *url.URL
	apiKey string
	http   *http.Client
	agent  string
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrAPIKeyRequired
	}
	rawBase := strings.TrimSpace(cfg.BaseURL)
	if rawBase == "" {
		rawBase = DefaultBaseURL
	}
	if !strings.HasSuffix(rawBase, "/") {
		rawBase += "/"
	}
	base, err := url.Parse(rawBase)
	if err != nil {
		return nil, fmt.Errorf("newsapi: parse base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	copied := *hc
	copied.Timeout = cfg.Timeout
	agent := strings.TrimSpace(cfg.UserAgent)
	if agent == "" {
		agent = "newswire/1.0"
	}
	return &Client{
		base:   base,
		apiKey: strings.TrimSpace(cfg.APIKey),
		http:   &copied,
		agent:  agent,
	}, nil
}

func (c *Client) FetchHeadlines(ctx context.Context, params map[string]string) (HeadlinesResult, error) {
	raw, err := c.get(ctx, EndpointHeadlines, params)
	if err != nil {
		return HeadlinesResult{}, err
	}
	var body headlinesBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return HeadlinesResult{}, fmt.Errorf("%w: decode %s: %v", ErrUpstreamFetch, EndpointHeadlines, err)
	}
	return HeadlinesResult{
		Raw:          raw,
		Status:       body.Status,
		TotalResults: body.TotalResults,
		Articles:     body.Articles,
	}, nil
}

func (c *Client) FetchSources(ctx context.Context, params map[string]string) (SourcesResult, error) {
	raw, err := c.get(ctx, EndpointSources, params)
	if err != nil {
		return SourcesResult{}, err
	}
	var body sourcesBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return SourcesResult{}, fmt.Errorf("%w: decode %s: %v", ErrUpstreamFetch, EndpointSources, err)
	}
	return SourcesResult{
		Raw:     raw,
		Status:  body.Status,
		Sources: body.Sources,
	}, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	u := c.base.ResolveReference(&url.URL{Path: endpoint})
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstreamFetch, err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.agent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.RecordUpstream(endpoint, 0, time.Since(start), false)
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstreamFetch, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		observability.RecordUpstream(endpoint, resp.StatusCode, time.Since(start), false)
		return nil, fmt.Errorf("%w: %s: read body: %v", ErrUpstreamFetch, endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		observability.RecordUpstream(endpoint, resp.StatusCode, time.Since(start), false)
		return nil, upstreamStatusError(endpoint, resp.StatusCode, raw)
	}
	observability.RecordUpstream(endpoint, resp.StatusCode, time.Since(start), true)
	return json.RawMessage(raw), nil
}

func upstreamStatusError(endpoint string, status int, raw []byte) error {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Code != "" {
		return fmt.Errorf("%w: %s: status=%d code=%s message=%q", ErrUpstreamFetch, endpoint, status, body.Code, body.Message)
	}
	return fmt.Errorf("%w: %s: status=%d", ErrUpstreamFetch, endpoint, status)
}
