package meetdex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Client talks to a meetdex server over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	cfg := &clientConfig{
		userAgent: "meetdex-go-sdk",
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.apiKey,
		userAgent:  cfg.userAgent,
		httpClient: httpClient,
	}
}

// Search runs one query. An unsuccessful strategy run is reported inside the
// result, not as an error.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	var result SearchResult
	err := c.do(ctx, http.MethodPost, "/search", req, &result)
	return result, err
}

// Strategies lists the strategies registered on the server.
func (c *Client) Strategies(ctx context.Context) ([]StrategyInfo, error) {
	var resp struct {
		Strategies []StrategyInfo `json:"strategies"`
	}
	if err := c.do(ctx, http.MethodGet, "/strategies", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Strategies, nil
}

// Stats returns per-document-type index statistics.
func (c *Client) Stats(ctx context.Context) (map[string]IndexStats, error) {
	var resp struct {
		Indices map[string]IndexStats `json:"indices"`
	}
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Indices, nil
}

// Health reports service health. A degraded service is not an error; check
// report.Status.
func (c *Client) Health(ctx context.Context) (HealthReport, error) {
	var report HealthReport
	err := c.do(ctx, http.MethodGet, "/healthz", nil, &report)
	// The server answers 503 with a full report when degraded.
	var apiErr *APIError
	if err != nil && errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
		return report, nil
	}
	return report, err
}

// Reindex queues a background rebuild of one meeting's documents.
func (c *Client) Reindex(ctx context.Context, meetingID string) (ReindexJob, error) {
	var job ReindexJob
	if meetingID == "" {
		return job, fmt.Errorf("meetdex: meeting id required")
	}
	path := "/meetings/" + url.PathEscape(meetingID) + "/reindex"
	err := c.do(ctx, http.MethodPost, path, nil, &job)
	return job, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("meetdex: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("meetdex: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("meetdex: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.decodeError(resp, out)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("meetdex: decode response: %w", err)
		}
	}
	return nil
}

// decodeError reads an error body. The health endpoint returns its normal
// payload with a 503, so the body is also decoded into out when possible.
func (c *Client) decodeError(resp *http.Response, out any) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Code: "unknown", Message: resp.Status}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err == nil {
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Code != "" {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Message
		} else if out != nil {
			_ = json.Unmarshal(raw, out)
		}
	}
	return apiErr
}
