package field

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"trackmeta/internal/store"
)

// installationKey is the store slot holding the installation parameters.
// Field slots are prefixed, so it cannot collide with one.
const installationKey = "installation"

var (
	// ErrNotConfigured is returned when no client id has been saved.
	ErrNotConfigured = errors.New("installation is not configured")
	// ErrInvalidClientID is returned when saving an empty client id.
	ErrInvalidClientID = errors.New("client id must not be empty")
)

// InstallationParameters are the values set on the configuration screen.
type InstallationParameters struct {
	ClientID string `json:"clientId"`
}

// InstallationConfig provides the installation parameters.
type InstallationConfig interface {
	Get(ctx context.Context) (InstallationParameters, error)
}

// StoredConfig keeps the installation parameters in a store slot.
type StoredConfig struct {
	store    store.Store
	fallback InstallationParameters
}

// NewStoredConfig creates a StoredConfig. fallback is returned while nothing
// has been saved.
func NewStoredConfig(s store.Store, fallback InstallationParameters) *StoredConfig {
	return &StoredConfig{store: s, fallback: fallback}
}

// Get returns the saved parameters.
func (c *StoredConfig) Get(ctx context.Context) (InstallationParameters, error) {
	data, err := c.store.Get(ctx, installationKey)
	if errors.Is(err, store.ErrNotFound) {
		if c.fallback.ClientID == "" {
			return InstallationParameters{}, ErrNotConfigured
		}
		return c.fallback, nil
	}
	if err != nil {
		return InstallationParameters{}, fmt.Errorf("failed to load installation parameters: %w", err)
	}

	var params InstallationParameters
	if err := json.Unmarshal(data, &params); err != nil {
		return InstallationParameters{}, fmt.Errorf("failed to decode installation parameters: %w", err)
	}
	if params.ClientID == "" {
		return InstallationParameters{}, ErrNotConfigured
	}
	return params, nil
}

// Save validates and stores params. The client id is trimmed; an empty one is
// rejected with ErrInvalidClientID and nothing is written.
func (c *StoredConfig) Save(ctx context.Context, params InstallationParameters) (InstallationParameters, error) {
	params.ClientID = strings.TrimSpace(params.ClientID)
	if params.ClientID == "" {
		return InstallationParameters{}, ErrInvalidClientID
	}

	data, err := json.Marshal(params)
	if err != nil {
		return InstallationParameters{}, fmt.Errorf("failed to encode installation parameters: %w", err)
	}
	if err := c.store.Set(ctx, installationKey, data); err != nil {
		return InstallationParameters{}, fmt.Errorf("failed to save installation parameters: %w", err)
	}
	return params, nil
}
