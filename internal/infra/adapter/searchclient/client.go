// Package searchclient adapts the Provenance Hunter's external-search
// dependency onto an HTTP search API, with an HTML-scraping fallback for
// endpoints that answer with a results page instead of JSON. It reuses the
// teacher's resilience stack (circuit breaker, retry) and its Hydrator's
// SSRF-validation idiom, applied to search-result URLs instead of
// feed-sourced ones.
package searchclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"catchup-feed/internal/resilience/circuitbreaker"
	"catchup-feed/internal/resilience/retry"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// SearchClient is the contract internal/usecase/provenance depends on.
type SearchClient interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// HTTPSearchClient implements SearchClient over a configurable search API.
type HTTPSearchClient struct {
	httpClient     *http.Client
	config         Config
	limiter        *rate.Limiter
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// New builds an HTTPSearchClient from cfg.
func New(cfg Config) (*HTTPSearchClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("search client config: %w", err)
	}

	return &HTTPSearchClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		config:         cfg,
		limiter:        rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		circuitBreaker: circuitbreaker.New(circuitbreaker.SearchClientConfig()),
		retryConfig:    retry.SearchClientConfig(),
	}, nil
}

// Search queries the configured endpoint and returns only results that
// survived URL validation and carried a parseable publication date.
func (c *HTTPSearchClient) Search(ctx context.Context, query string) ([]Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search client: rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var results []Result
	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (any, error) {
			return c.doSearch(ctx, query)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("search client circuit breaker open, request rejected")
				return ErrCircuitOpen
			}
			return err
		}
		results = cbResult.([]Result)
		return nil
	})
	if retryErr != nil {
		if errors.Is(retryErr, ErrCircuitOpen) {
			return nil, ErrCircuitOpen
		}
		return nil, fmt.Errorf("search client: %w", retryErr)
	}

	return c.filterValid(results), nil
}

func (c *HTTPSearchClient) doSearch(ctx context.Context, query string) ([]Result, error) {
	endpoint, err := url.Parse(c.config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("search client: invalid endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("q", query)
	q.Set("limit", fmt.Sprintf("%d", c.config.MaxResults))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("search client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: "search endpoint error"}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("search client: read body: %w", err)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return parseJSONResults(body)
	}
	return parseHTMLResults(body)
}

// filterValid drops results with an invalid/private URL (SSRF) — the date
// filter already happened during parsing, since a missing date means the
// result never became a Result value in the first place.
func (c *HTTPSearchClient) filterValid(results []Result) []Result {
	valid := make([]Result, 0, len(results))
	for _, r := range results {
		if err := validateResultURL(r.URL, c.config.DenyPrivateIPs); err != nil {
			slog.Warn("search client: dropping result with unsafe url",
				slog.String("url", r.URL), slog.String("error", err.Error()))
			continue
		}
		valid = append(valid, r)
	}
	return valid
}

func parseJSONResults(body []byte) ([]Result, error) {
	var resp jsonSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("search client: decode json: %w", err)
	}

	results := make([]Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		date, err := parseDate(r.PublishedDate)
		if err != nil {
			continue // absence (or malformed) date disqualifies the result
		}
		results = append(results, Result{URL: r.URL, PublishedDate: date})
	}
	return results, nil
}

// parseHTMLResults is the fallback path for search endpoints that answer
// with a results page rather than JSON. It looks for result entries marked
// up with a link and a <time datetime="..."> element, a common shape for
// search-result listings.
func parseHTMLResults(body []byte) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("search client: parse html: %w", err)
	}

	var results []Result
	doc.Find(".result, [data-result]").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a").First()
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		dateAttr, ok := sel.Find("time").First().Attr("datetime")
		if !ok {
			return
		}
		date, err := parseDate(dateAttr)
		if err != nil {
			return
		}
		results = append(results, Result{URL: href, PublishedDate: date})
	})
	return results, nil
}

func parseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}
