package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dpup/routepoi/internal/clients/ratelimit"
	"github.com/dpup/routepoi/internal/config"
	"github.com/dpup/routepoi/internal/lib/geo"
	"github.com/dpup/routepoi/internal/lib/poi"
)

const userAgent = "routepoi/1.0"

// HTTPDoer interface for dependency injection in tests
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides access to an Overpass API interpreter
type Client struct {
	httpClient HTTPDoer
	baseURL    string
	cfg        config.OverpassConfig
	limiter    *ratelimit.Limiter
}

// Corridor is the area around a path that a query covers.
type Corridor struct {
	Path         []geo.Point
	RadiusMeters float64
}

// NewClient creates a new Overpass API client
func NewClient(cfg config.OverpassConfig) *Client {
	return NewClientWithHTTPDoer(cfg, &http.Client{
		// Leave headroom over the server-side query timeout.
		Timeout: cfg.Timeout + timeoutSlack,
	})
}

// NewClientWithHTTPDoer creates a client with a custom HTTP transport
func NewClientWithHTTPDoer(cfg config.OverpassConfig, doer HTTPDoer) *Client {
	return &Client{
		httpClient: doer,
		baseURL:    cfg.URL,
		cfg:        cfg,
		limiter:    ratelimit.New(cfg.MinInterval),
	}
}

// FetchPOIs returns shops and campsites within the corridor.
func (c *Client) FetchPOIs(ctx context.Context, corridor Corridor) ([]poi.Candidate, error) {
	q, err := c.buildQuery(corridor, c.poiFilters())
	if err != nil {
		return nil, err
	}
	return c.fetch(ctx, q)
}

// FetchSettlements returns place nodes within the corridor.
func (c *Client) FetchSettlements(ctx context.Context, corridor Corridor) ([]poi.Candidate, error) {
	q, err := c.buildQuery(corridor, c.settlementFilters())
	if err != nil {
		return nil, err
	}
	return c.fetch(ctx, q)
}

// FetchBoundaries returns administrative boundary relations touching the
// corridor, with their outer rings assembled into polygons.
func (c *Client) FetchBoundaries(ctx context.Context, corridor Corridor) ([]poi.Candidate, error) {
	q, err := c.buildQuery(corridor, c.boundaryFilters())
	if err != nil {
		return nil, err
	}
	return c.fetch(ctx, q)
}

func (c *Client) fetch(ctx context.Context, q string) ([]poi.Candidate, error) {
	resp, err := c.Query(ctx, q)
	if err != nil {
		return nil, err
	}

	candidates := make([]poi.Candidate, 0, len(resp.Elements))
	for _, e := range resp.Elements {
		if cand, ok := e.Candidate(); ok {
			candidates = append(candidates, cand)
		}
	}
	return candidates, nil
}

// Query posts raw Overpass QL and decodes the JSON response.
func (c *Client) Query(ctx context.Context, q string) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("data", q)

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == 429:
		return nil, fmt.Errorf("rate limit exceeded")
	case resp.StatusCode == 504:
		return nil, fmt.Errorf("overpass query timed out")
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if strings.Contains(result.Remark, "runtime error") {
		return nil, fmt.Errorf("overpass runtime error: %s", result.Remark)
	}
	return &result, nil
}
