package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// AdminClient queries the storefrontd admin API.
type AdminClient struct {
	baseURL string
	client  *http.Client
}

// HealthResult is the response of GET /health.
type HealthResult struct {
	Status string `json:"status"`
	Stores int    `json:"stores"`
	Uptime int64  `json:"uptime_seconds"`
}

// StoreCounters mirrors the engine counters served by the admin API.
type StoreCounters struct {
	Updates   int64 `json:"updates"`
	Searches  int64 `json:"searches"`
	Hits      int64 `json:"hits"`
	NoResults int64 `json:"no_results"`
	Trolls    int64 `json:"trolls"`
	Failures  int64 `json:"failures"`
}

// StoreStatus describes one loaded store.
type StoreStatus struct {
	Slug       string         `json:"slug"`
	StoreName  string         `json:"store_name"`
	Products   int            `json:"products"`
	Categories []string       `json:"categories"`
	IndexSize  int            `json:"index_size"`
	Counters   *StoreCounters `json:"counters"`
}

// StoresResult is the response of GET /admin/stores.
type StoresResult struct {
	Stores []StoreStatus `json:"stores"`
}

// ReloadResult is the response of POST /reload/{slug}.
type ReloadResult struct {
	Slug     string `json:"slug"`
	Products int    `json:"products"`
}

// RescanResult is the response of POST /reload.
type RescanResult struct {
	Stores int `json:"stores"`
}

// NewAdminClient creates a new admin API client. Request deadlines come
// from the caller's context, so slow operations like a full rescan can
// run longer than a health probe.
func NewAdminClient(baseURL string) *AdminClient {
	return &AdminClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

// Health fetches the daemon health summary.
func (c *AdminClient) Health(ctx context.Context) (HealthResult, error) {
	var out HealthResult
	err := c.do(ctx, http.MethodGet, "/health", &out)
	return out, err
}

// Stores fetches every loaded store with its stats.
func (c *AdminClient) Stores(ctx context.Context) (StoresResult, error) {
	var out StoresResult
	err := c.do(ctx, http.MethodGet, "/admin/stores", &out)
	return out, err
}

// StoreStats fetches stats for a single store.
func (c *AdminClient) StoreStats(ctx context.Context, slug string) (StoreStatus, error) {
	var out StoreStatus
	err := c.do(ctx, http.MethodGet, "/admin/"+url.PathEscape(slug)+"/stats", &out)
	return out, err
}

// Reload asks the daemon to reload one store from disk.
func (c *AdminClient) Reload(ctx context.Context, slug string) (ReloadResult, error) {
	var out ReloadResult
	err := c.do(ctx, http.MethodPost, "/reload/"+url.PathEscape(slug), &out)
	return out, err
}

// ReloadAll asks the daemon to rescan the stores root.
func (c *AdminClient) ReloadAll(ctx context.Context) (RescanResult, error) {
	var out RescanResult
	err := c.do(ctx, http.MethodPost, "/reload", &out)
	return out, err
}

func (c *AdminClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// Error responses carry {"message": ...}.
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Message, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
