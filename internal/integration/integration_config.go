//go:build integration

package integration

import (
	"fmt"

	"bustiming.sgbus.dev/internal/config"
)

// loadIntegrationConfig loads the proxy configuration used against the live
// upstream. The credential comes from LTA_API_KEY or the configured env file.
func loadIntegrationConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if cfg.GetCredential() == "" {
		return nil, fmt.Errorf("no LTA_API_KEY configured for integration tests")
	}
	cfg.Env = "testing"
	return cfg, nil
}
