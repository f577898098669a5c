package config

import (
	"context"
	"log/slog"
	"time"

	"bustiming.sgbus.dev/internal/utils"
)

// ConfigService holds the live configuration and keeps the server credential
// in sync with its sources while the proxy runs.
type ConfigService struct {
	Logger *slog.Logger
	Config *Config
}

func NewConfigService(logger *slog.Logger, config *Config) *ConfigService {
	return &ConfigService{
		Logger: logger,
		Config: config,
	}
}

// ReloadCredential re-resolves the API key and swaps it in when it changed.
// It reports whether the key changed.
func (cs *ConfigService) ReloadCredential(yamlCredential string) bool {
	key, source := ResolveCredential(cs.Config.EnvFile, yamlCredential)
	if key == cs.Config.GetCredential() {
		return false
	}
	cs.Config.SetCredential(key, source)
	if key == "" {
		cs.Logger.Warn("API key removed from all sources")
	} else {
		cs.Logger.Info("API key reloaded", "source", source, "key", utils.MaskKey(key))
	}
	return true
}

// RefreshCredential re-reads the credential every interval so a rotated key in
// the environment file is picked up without a restart. It stops when ctx is done.
func (cs *ConfigService) RefreshCredential(ctx context.Context, yamlCredential string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cs.Logger.Info("Stopping credential refresh routine")
			return
		case <-ticker.C:
			cs.ReloadCredential(yamlCredential)
		}
	}
}
