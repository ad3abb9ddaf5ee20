package httpserver

import "github.com/fyrsmithlabs/storefrontd/internal/engine"

// adminEngine is the optional stats surface a store engine may expose.
// Engines that do not implement it still serve webhooks; their admin
// entries just omit the counters.
type adminEngine interface {
	Stats() engine.Stats
	Categories() []string
	IndexSize() int
}

// WebhookResponse is the response body for POST /webhook/:slug.
type WebhookResponse struct {
	OK bool `json:"ok"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Stores int    `json:"stores"`
	Uptime int64  `json:"uptime_seconds"`
}

// ReloadResponse is the response body for POST /reload/:slug.
type ReloadResponse struct {
	Slug     string `json:"slug"`
	Products int    `json:"products"`
}

// RescanResponse is the response body for POST /reload.
type RescanResponse struct {
	Stores int `json:"stores"`
}

// StoreStats describes one loaded store for the admin API.
type StoreStats struct {
	Slug       string        `json:"slug"`
	StoreName  string        `json:"store_name"`
	Products   int           `json:"products"`
	Categories []string      `json:"categories,omitempty"`
	IndexSize  int           `json:"index_size"`
	Counters   *engine.Stats `json:"counters,omitempty"`
}

// StoresResponse is the response body for GET /admin/stores.
type StoresResponse struct {
	Stores []StoreStats `json:"stores"`
}
