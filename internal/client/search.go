package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"recon_sync/ingestion/internal/metrics"
	"recon_sync/ingestion/internal/models"
	"recon_sync/ingestion/internal/query"
)

// ErrMalformedResponse is returned when the index answers 200 with a body
// that is not a search result envelope
var ErrMalformedResponse = errors.New("malformed search response")

// StatusError is returned for non-200 responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("search API returned status %d: %s", e.StatusCode, e.Body)
}

// Options configures the search client
type Options struct {
	PageSize           int
	Timeout            time.Duration
	InsecureSkipVerify bool
	MaxRetries         int
	RetryDelay         time.Duration
	UserAgent          string
}

// SearchResult is one page of hits for a kind
type SearchResult struct {
	Kind  models.Kind
	Total int64
	// Hits holds the _source document of every hit, in index order
	Hits []json.RawMessage
	// Skipped counts hits that carried no _source document
	Skipped int
}

// Client is the search index client
type Client struct {
	builder    *query.SearchBuilder
	httpClient *http.Client
	pageSize   int
	maxRetries int
	retryDelay time.Duration
	userAgent  string
}

// NewClient creates a new search client
func NewClient(builder *query.SearchBuilder, opts Options) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 10
	transport.MaxIdleConnsPerHost = 4
	transport.IdleConnTimeout = 90 * time.Second
	if opts.InsecureSkipVerify {
		//nolint:gosec // opt-in for an index with a broken certificate, warned about at startup
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "recon-sync/1.0"
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	return &Client{
		builder:    builder,
		pageSize:   opts.PageSize,
		maxRetries: opts.MaxRetries,
		retryDelay: retryDelay,
		userAgent:  userAgent,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
	}
}

// Search fetches one page of hits for kind
func (c *Client) Search(ctx context.Context, kind models.Kind) (*SearchResult, error) {
	url, err := c.builder.URL(kind, c.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s search: %w", kind.Index(), err)
	}

	start := time.Now()
	body, err := c.get(ctx, url)
	if err != nil {
		metrics.RecordAPICall(kind.Index(), "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to fetch %s: %w", kind.Index(), err)
	}
	metrics.RecordAPICall(kind.Index(), "success", time.Since(start).Seconds())

	result, err := ParseHits(kind, body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", kind.Index(), err)
	}

	log.Debug().
		Str("index", kind.Index()).
		Int64("total", result.Total).
		Int("hits", len(result.Hits)).
		Msg("Search page fetched")

	return result, nil
}

// ParseHits extracts the hit sources from a search response body
func ParseHits(kind models.Kind, body []byte) (*SearchResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrMalformedResponse)
	}

	hits := gjson.GetBytes(body, "hits.hits")
	if !hits.IsArray() {
		return nil, fmt.Errorf("%w: missing hits.hits", ErrMalformedResponse)
	}

	// hits.total is a number on older clusters and {"value": n} on newer ones
	total := gjson.GetBytes(body, "hits.total")
	if total.IsObject() {
		total = total.Get("value")
	}

	result := &SearchResult{Kind: kind, Total: total.Int()}
	for _, hit := range hits.Array() {
		src := hit.Get("_source")
		if !src.Exists() {
			result.Skipped++
			continue
		}
		result.Hits = append(result.Hits, json.RawMessage(src.Raw))
	}

	return result, nil
}

// get performs a GET request against the index with retry on transient failures
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryDelay * time.Duration(1<<uint(attempt-1))
			log.Info().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying search request after backoff")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, retry, err := c.do(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// do issues a single request. The bool result reports whether a failure is
// worth retrying.
func (c *Client) do(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, false, nil
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		log.Warn().
			Int("status", resp.StatusCode).
			Msg("Received retryable status from search API")
		return nil, true, &StatusError{StatusCode: resp.StatusCode, Body: truncate(body)}
	default:
		return nil, false, &StatusError{StatusCode: resp.StatusCode, Body: truncate(body)}
	}
}

func truncate(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
