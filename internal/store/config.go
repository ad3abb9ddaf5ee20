package store

import (
	"encoding/json"
	"fmt"

	"github.com/fyrsmithlabs/storefrontd/internal/config"
)

// MinConfigVersion is the minimum supported config.json schema version.
// Stores below it still load, with a warning.
const MinConfigVersion = 1

// requiredConfigKeys must all be present in config.json.
var requiredConfigKeys = []string{"bot_token", "store_name", "indexing_fields", "filters"}

// StoreConfig holds one store's settings from config.json.
type StoreConfig struct {
	BotToken       config.Secret
	StoreName      string
	IndexingFields []string
	Filters        []string
	ConfigVersion  int
	Currency       string
	Language       string
}

// parseStoreConfig validates required keys and decodes config.json.
func parseStoreConfig(data []byte) (*StoreConfig, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}
	for _, key := range requiredConfigKeys {
		if _, ok := raw[key]; !ok {
			return nil, fmt.Errorf("%w: missing required key %q", ErrConfigValidation, key)
		}
	}

	var file struct {
		BotToken       string   `json:"bot_token"`
		StoreName      string   `json:"store_name"`
		IndexingFields []string `json:"indexing_fields"`
		Filters        []string `json:"filters"`
		ConfigVersion  int      `json:"config_version"`
		Currency       string   `json:"currency"`
		Language       string   `json:"language"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}

	return &StoreConfig{
		BotToken:       config.Secret(file.BotToken),
		StoreName:      file.StoreName,
		IndexingFields: file.IndexingFields,
		Filters:        file.Filters,
		ConfigVersion:  file.ConfigVersion,
		Currency:       file.Currency,
		Language:       file.Language,
	}, nil
}
