package elevation

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
	"github.com/dpup/routepoi/internal/logging"
)

// Per-request location limits of the two services.
const (
	openMeteoBatch    = 100
	openTopoDataBatch = 100
)

// HTTPDoer interface for dependency injection in tests
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client looks up terrain elevation from Open-Meteo, falling back to
// OpenTopoData when Open-Meteo fails.
type Client struct {
	httpClient HTTPDoer
	cfg        config.ElevationConfig
	limiter    *ratelimit.Limiter
	log        logging.Logger
}

// NewClient creates a new elevation client
func NewClient(cfg config.ElevationConfig, log logging.Logger) *Client {
	return NewClientWithHTTPDoer(cfg, &http.Client{Timeout: cfg.Timeout}, log)
}

// NewClientWithHTTPDoer creates a client with a custom HTTP transport
func NewClientWithHTTPDoer(cfg config.ElevationConfig, doer HTTPDoer, log logging.Logger) *Client {
	return &Client{
		httpClient: doer,
		cfg:        cfg,
		limiter:    ratelimit.New(cfg.MinInterval),
		log:        logging.OrNop(log),
	}
}

type openMeteoResponse struct {
	Elevation []*float64 `json:"elevation"`
}

type openTopoDataResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Results []struct {
		Elevation *float64 `json:"elevation"`
	} `json:"results"`
}

// Lookup returns one elevation in meters per point, nil where neither
// service has data. Batches that fail on both services return an error.
func (c *Client) Lookup(ctx context.Context, points []geo.Point) ([]*float64, error) {
	out := make([]*float64, 0, len(points))
	for start := 0; start < len(points); start += openMeteoBatch {
		end := min(start+openMeteoBatch, len(points))
		batch := points[start:end]

		values, err := c.openMeteo(ctx, batch)
		if err != nil {
			c.log.Warnw("open-meteo elevation failed, trying opentopodata", "error", err, "points", len(batch))
			values, err = c.openTopoData(ctx, batch)
			if err != nil {
				return nil, fmt.Errorf("elevation lookup failed: %w", err)
			}
		}
		out = append(out, values...)
	}
	return out, nil
}

func (c *Client) openMeteo(ctx context.Context, points []geo.Point) ([]*float64, error) {
	if c.cfg.OpenMeteoURL == "" {
		return nil, fmt.Errorf("open-meteo url not configured")
	}
	lats := make([]string, len(points))
	lons := make([]string, len(points))
	for i, p := range points {
		lats[i] = fmt.Sprintf("%.6f", p.Latitude)
		lons[i] = fmt.Sprintf("%.6f", p.Longitude)
	}
	params := url.Values{}
	params.Set("latitude", strings.Join(lats, ","))
	params.Set("longitude", strings.Join(lons, ","))

	var resp openMeteoResponse
	if err := c.get(ctx, c.cfg.OpenMeteoURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Elevation) != len(points) {
		return nil, fmt.Errorf("open-meteo returned %d elevations for %d points", len(resp.Elevation), len(points))
	}
	return resp.Elevation, nil
}

func (c *Client) openTopoData(ctx context.Context, points []geo.Point) ([]*float64, error) {
	if c.cfg.OpenTopoDataURL == "" {
		return nil, fmt.Errorf("opentopodata url not configured")
	}
	out := make([]*float64, 0, len(points))
	for start := 0; start < len(points); start += openTopoDataBatch {
		batch := points[start:min(start+openTopoDataBatch, len(points))]
		locations := make([]string, len(batch))
		for i, p := range batch {
			locations[i] = fmt.Sprintf("%.6f,%.6f", p.Latitude, p.Longitude)
		}
		params := url.Values{}
		params.Set("locations", strings.Join(locations, "|"))

		var resp openTopoDataResponse
		if err := c.get(ctx, c.cfg.OpenTopoDataURL+"?"+params.Encode(), &resp); err != nil {
			return nil, err
		}
		if resp.Status != "" && resp.Status != "OK" {
			return nil, fmt.Errorf("opentopodata status %s: %s", resp.Status, resp.Error)
		}
		if len(resp.Results) != len(batch) {
			return nil, fmt.Errorf("opentopodata returned %d results for %d points", len(resp.Results), len(batch))
		}
		for _, r := range resp.Results {
			out = append(out, r.Elevation)
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, requestURL string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 429 {
		return fmt.Errorf("rate limit exceeded")
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
