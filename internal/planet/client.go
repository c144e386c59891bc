// Package planet is the client for the imagery catalog, orders and
// basemap endpoints. All remote calls are wrapped in a bounded
// exponential retry at this boundary; callers see one result per call.
package planet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/logging"
)

const (
	defaultBaseURL     = "https://api.planet.com"
	defaultPageDelay   = 1 * time.Second
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3

	quickSearchPath = "/data/v1/quick-search"
	ordersPath      = "/compute/ops/orders/v2"
	mosaicsPath     = "/basemaps/v1/mosaics"
)

// Config configures the API client.
type Config struct {
	BaseURL     string
	APIKey      string
	PageDelay   time.Duration // delay between successive page requests
	Timeout     time.Duration
	MaxAttempts int
}

// Client talks to the imagery API.
type Client struct {
	baseURL     string
	apiKey      string
	pageDelay   time.Duration
	maxAttempts int
	http        *http.Client
	log         *slog.Logger
}

// NewClient creates a client with defaults applied.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PageDelay == 0 {
		cfg.PageDelay = defaultPageDelay
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		pageDelay:   cfg.PageDelay,
		maxAttempts: cfg.MaxAttempts,
		http:        &http.Client{Timeout: cfg.Timeout},
		log:         logging.Component("planet"),
	}
}

// SearchScenes runs a paginated quick-search and returns every scene
// across all pages. The structured filter travels only on the first
// request; later pages follow the opaque next reference. Any
// non-success page aborts the whole call and discards earlier pages.
func (c *Client) SearchScenes(ctx context.Context, q SearchQuery) ([]Scene, error) {
	payload, err := json.Marshal(buildSearchRequest(q))
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	var scenes []Scene
	next := ""
	for page := 0; ; page++ {
		if page > 0 {
			if err := c.pause(ctx); err != nil {
				return nil, err
			}
		}

		var (
			status int
			body   []byte
		)
		if page == 0 {
			status, body, err = c.do(ctx, http.MethodPost, c.baseURL+quickSearchPath, payload)
		} else {
			status, body, err = c.do(ctx, http.MethodGet, next, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("catalog search: %w", err)
		}
		if status != http.StatusOK {
			return nil, &SearchError{StatusCode: status, Body: string(body)}
		}

		var pg searchPage
		if err := json.Unmarshal(body, &pg); err != nil {
			return nil, fmt.Errorf("decode search page: %w", err)
		}
		for _, f := range pg.Features {
			acquired, err := time.Parse(time.RFC3339, f.Properties.Acquired)
			if err != nil {
				return nil, fmt.Errorf("scene %s: parse acquired %q: %w", f.ID, f.Properties.Acquired, err)
			}
			scenes = append(scenes, Scene{
				ID:         f.ID,
				Acquired:   acquired,
				Footprint:  f.Geometry,
				CloudCover: f.Properties.CloudCover,
				Thumbnail:  f.Links.Thumbnail,
			})
		}

		c.log.Debug("search page fetched", "page", page, "features", len(pg.Features))
		if pg.Links.Next == "" {
			return scenes, nil
		}
		next = pg.Links.Next
	}
}

// SubmitOrder submits a scene order. Only an Accepted response counts
// as success; anything else is an OrderError.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (string, error) {
	clip := req.Clip
	payload := orderPayload{
		Name: req.Name,
		Products: []orderProduct{{
			ItemIDs:       req.ItemIDs,
			ItemType:      ItemTypePSScene,
			ProductBundle: req.ProductBundle,
		}},
		Tools: []orderTool{{Clip: &clipTool{AOI: &clip}}},
	}
	return c.submit(ctx, payload)
}

// SubmitMosaicOrder submits a composite/basemap order.
func (c *Client) SubmitMosaicOrder(ctx context.Context, req MosaicOrderRequest) (string, error) {
	geometry := req.Geometry
	payload := orderPayload{
		Name:       req.Name,
		SourceType: "basemaps",
		Products: []orderProduct{{
			MosaicName: req.MosaicName,
			Geometry:   &geometry,
		}},
		Tools: []orderTool{{Clip: &clipTool{}}},
	}
	return c.submit(ctx, payload)
}

func (c *Client) submit(ctx context.Context, payload orderPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal order payload: %w", err)
	}
	status, respBody, err := c.do(ctx, http.MethodPost, c.baseURL+ordersPath, body)
	if err != nil {
		return "", fmt.Errorf("submit order: %w", err)
	}
	if status != http.StatusAccepted {
		return "", &OrderError{StatusCode: status, Body: truncate(string(respBody), 200)}
	}
	var resp orderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("order accepted but response carried no id")
	}
	return resp.ID, nil
}

// GetOrder polls the state of a submitted order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*OrderStatus, error) {
	status, body, err := c.do(ctx, http.MethodGet, c.baseURL+ordersPath+"/"+orderID, nil)
	if err != nil {
		return nil, fmt.Errorf("order status %s: %w", orderID, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("order status %s: status %d: %s", orderID, status, truncate(string(body), 200))
	}
	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode order status %s: %w", orderID, err)
	}
	return &OrderStatus{
		ID:         resp.ID,
		State:      resp.State,
		SourceType: resp.SourceType,
		Artifacts:  resp.Links.Results,
		Raw:        json.RawMessage(body),
	}, nil
}

// ListMosaics pages through the basemap series listing.
func (c *Client) ListMosaics(ctx context.Context) ([]Mosaic, error) {
	var all []Mosaic
	next := c.baseURL + mosaicsPath
	for page := 0; next != ""; page++ {
		if page > 0 {
			if err := c.pause(ctx); err != nil {
				return nil, err
			}
		}
		status, body, err := c.do(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, fmt.Errorf("list mosaics: %w", err)
		}
		if status != http.StatusOK {
			return nil, &SearchError{StatusCode: status, Body: string(body)}
		}
		var pg mosaicsPage
		if err := json.Unmarshal(body, &pg); err != nil {
			return nil, fmt.Errorf("decode mosaics page: %w", err)
		}
		all = append(all, pg.Mosaics...)
		next = pg.Links.Next
	}
	return all, nil
}

// Download fetches a delivered artifact. Artifact locations are
// pre-signed URLs, so no credentials are attached.
func (c *Client) Download(ctx context.Context, location string) ([]byte, error) {
	status, body, err := c.get(ctx, location, false)
	if err != nil {
		return nil, fmt.Errorf("download artifact: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("download artifact: status %d", status)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, url string, auth bool) (int, []byte, error) {
	return c.doAuth(ctx, http.MethodGet, url, nil, auth)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (int, []byte, error) {
	return c.doAuth(ctx, method, url, body, true)
}

// doAuth performs one logical request, retrying transport failures and
// server errors with exponential backoff. Client errors (4xx) return
// immediately so the caller can classify them.
func (c *Client) doAuth(ctx context.Context, method, url string, body []byte, auth bool) (int, []byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond

	var (
		lastStatus int
		lastBody   []byte
		lastErr    error
	)
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		status, respBody, err := c.once(ctx, method, url, body, auth)
		if err == nil && status < http.StatusInternalServerError {
			return status, respBody, nil
		}
		lastStatus, lastBody, lastErr = status, respBody, err
		if attempt == c.maxAttempts {
			break
		}
		sleep := bo.NextBackOff()
		if sleep == backoff.Stop {
			break
		}
		c.log.Warn("request failed, retrying",
			"method", method, "url", url, "attempt", attempt, "status", status, "error", err)
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	if lastErr != nil {
		return 0, nil, fmt.Errorf("%s %s after %d attempts: %w", method, url, c.maxAttempts, lastErr)
	}
	return lastStatus, lastBody, nil
}

func (c *Client) once(ctx context.Context, method, url string, body []byte, auth bool) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.SetBasicAuth(c.apiKey, "")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// pause enforces the inter-page delay.
func (c *Client) pause(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.pageDelay):
		return nil
	}
}

func buildSearchRequest(q SearchQuery) searchRequest {
	cfg := []any{
		fieldFilter{Type: "GeometryFilter", FieldName: "geometry", Config: q.Geometry},
		fieldFilter{Type: "DateRangeFilter", FieldName: "acquired", Config: dateRangeConfig{
			GTE: q.Start.Format("2006-01-02") + "T00:00:00Z",
			LTE: q.End.Format("2006-01-02") + "T23:59:59Z",
		}},
		fieldFilter{Type: "RangeFilter", FieldName: "cloud_cover", Config: rangeConfig{LTE: q.CloudCoverMax}},
	}
	if q.AssetType != "" {
		cfg = append(cfg, listFilter{Type: "AssetFilter", Config: []string{q.AssetType}})
	}
	if q.QualityCategory != "" {
		cfg = append(cfg, fieldFilter{Type: "StringInFilter", FieldName: "quality_category",
			Config: []string{q.QualityCategory}})
	}
	return searchRequest{
		ItemTypes: []string{ItemTypePSScene},
		Filter:    andFilter{Type: "AndFilter", Config: cfg},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
