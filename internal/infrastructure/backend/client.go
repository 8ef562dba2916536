// Package backend is the HTTP client for the analytics API that serves filter
// metadata, scoped option lookups and the aggregated dashboard payloads.
package backend

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

	"github.com/tidwall/gjson"

	"github.com/woodland-analytics/woodland-dash/internal/domain/dashboard"
	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/performance"
)

const maxResponseBytes = 32 << 20

// ErrMalformedResponse is returned when a 2xx body lacks the expected shape.
var ErrMalformedResponse = errors.New("malformed backend response")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Path    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %s: %s", e.Path, e.Message)
}

// Client talks to the analytics backend. It is safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewClient creates a client for baseURL, e.g. "http://localhost:5000/api".
func NewClient(baseURL string, timeout time.Duration, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// FetchMetadata loads the unfiltered value lists from GET /filters.
func (c *Client) FetchMetadata(ctx context.Context) (*filters.Metadata, error) {
	body, err := c.get(ctx, "metadata", "/filters", nil)
	if err != nil {
		return nil, err
	}

	var md filters.Metadata
	if err := json.Unmarshal(body, &md); err != nil {
		return nil, fmt.Errorf("%w: decode filter metadata: %v", ErrMalformedResponse, err)
	}
	return &md, nil
}

// FetchOptions resolves a chain's dependent values for one governing value,
// e.g. GET /filters/rawMaterials?product=prod-1. It satisfies
// filters.OptionFetcher.
func (c *Client) FetchOptions(ctx context.Context, chain filters.Chain, governing string) ([]string, error) {
	key := chain.Dependent.MetadataKey()
	if key == "" {
		return nil, fmt.Errorf("%w: %s has no scoped endpoint", filters.ErrUnknownField, chain.Dependent)
	}
	return c.FetchScoped(ctx, "/filters/"+key, string(chain.Governing), governing, key)
}

// FetchScoped performs one scoped lookup and extracts the string list under key.
func (c *Client) FetchScoped(ctx context.Context, endpoint, param, value, key string) ([]string, error) {
	body, err := c.get(ctx, "scoped_"+key, endpoint, url.Values{param: {value}})
	if err != nil {
		return nil, err
	}

	result := gjson.GetBytes(body, key)
	if !result.Exists() || !result.IsArray() {
		return nil, fmt.Errorf("%w: %s missing %q list", ErrMalformedResponse, endpoint, key)
	}
	items := result.Array()
	values := make([]string, 0, len(items))
	for _, item := range items {
		values = append(values, item.String())
	}
	return values, nil
}

// FetchConsumption loads the consumption dashboard for the given query.
func (c *Client) FetchConsumption(ctx context.Context, params url.Values) (*dashboard.ConsumptionPayload, error) {
	body, err := c.get(ctx, "consumption_dashboard", "/consumption/dashboard", params)
	if err != nil {
		return nil, err
	}
	var payload dashboard.ConsumptionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode consumption dashboard: %v", ErrMalformedResponse, err)
	}
	return payload.Normalize(), nil
}

// FetchSales loads the sales dashboard for the given query.
func (c *Client) FetchSales(ctx context.Context, params url.Values) (*dashboard.SalesPayload, error) {
	body, err := c.get(ctx, "sales_dashboard", "/sales/dashboard", params)
	if err != nil {
		return nil, err
	}
	var payload dashboard.SalesPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode sales dashboard: %v", ErrMalformedResponse, err)
	}
	return payload.Normalize(), nil
}

func (c *Client) get(ctx context.Context, operation, path string, params url.Values) ([]byte, error) {
	marker := c.perfTracker.StartOperation("backend:"+operation, "")
	defer c.perfTracker.CompleteOperation(marker)

	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	marker.AddMetadata("path", path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		marker.SetError(err)
		c.logger.Backend().Warn("Backend request failed", "path", path, "error", err.Error(), "duration", time.Since(start))
		return nil, fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("failed to read %s response: %w", path, err)
	}
	marker.AddMetadata("status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Path: path, Message: errorMessage(body, resp.StatusCode)}
		marker.SetError(apiErr)
		c.logger.Backend().Warn("Backend returned error status",
			"path", path,
			"status", resp.StatusCode,
			"message", apiErr.Message,
			"duration", time.Since(start))
		return nil, apiErr
	}

	c.logger.Backend().Debug("Backend request completed",
		"path", path,
		"query", params.Encode(),
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start))
	return body, nil
}

// errorMessage prefers the body's "message", then "error", then a generic text.
func errorMessage(body []byte, status int) string {
	if gjson.ValidBytes(body) {
		for _, key := range []string{"message", "error"} {
			if v := gjson.GetBytes(body, key); v.Exists() && v.String() != "" {
				return v.String()
			}
		}
	}
	return fmt.Sprintf("API Error: %d", status)
}
