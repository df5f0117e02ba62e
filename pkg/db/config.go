package db

import (
	"context"
	"errors"
	"fmt"
)

var ErrNoActiveHouse = errors.New("no active house found")

// Config is the runtime configuration of the active house.
type Config struct {
	House     *House
	APIServer *APIServer
}

// APIAddress returns the API server listen address.
func (c *Config) APIAddress() string {
	if c.APIServer == nil {
		return "0.0.0.0:8080"
	}
	return c.APIServer.Address()
}

// Timezone returns the house timezone.
func (c *Config) Timezone() string {
	if c.House == nil {
		return "UTC"
	}
	return c.House.Timezone
}

// ActiveConfig loads the configuration of the active house.
func (db *DB) ActiveConfig(ctx context.Context) (*Config, error) {
	h, err := db.Houses().GetActive(ctx)
	if err != nil {
		if errors.Is(err, ErrHouseNotFound) {
			return nil, ErrNoActiveHouse
		}
		return nil, fmt.Errorf("failed to get active house: %w", err)
	}

	cfg := &Config{House: h}

	apiServer, err := db.APIServers().Get(ctx, h.ID)
	if err != nil && !errors.Is(err, ErrAPIServerNotFound) {
		return nil, fmt.Errorf("failed to get API server config: %w", err)
	}
	cfg.APIServer = apiServer

	return cfg, nil
}
