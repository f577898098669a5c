package config

import (
	"fmt"
	"sync"
	"time"
)

// FallbackPolicy decides which client failures are answered with demo data.
type FallbackPolicy string

const (
	// FallbackAlways substitutes demo data for every failure, including an empty service list.
	FallbackAlways FallbackPolicy = "always"
	// FallbackCredentialOnly substitutes demo data only for missing or rejected credentials.
	FallbackCredentialOnly FallbackPolicy = "credential-only"
	// FallbackNever surfaces every failure to the caller.
	FallbackNever FallbackPolicy = "never"
)

func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch p := FallbackPolicy(s); p {
	case FallbackAlways, FallbackCredentialOnly, FallbackNever:
		return p, nil
	}
	return "", fmt.Errorf("unknown fallback policy %q (want always, credential-only or never)", s)
}

const (
	DefaultUpstreamURL = "https://datamall2.mytransport.sg/ltaodataservice"
	DefaultTimeZone    = "Asia/Singapore"
)

// Config holds all the configuration settings for the proxy and the client.
type Config struct {
	// proxy
	Port        int    `yaml:"port" validate:"gte=1,lte=65535"`
	PortRange   int    `yaml:"port_range" validate:"gte=1,lte=100"`
	Env         string `yaml:"env" validate:"oneof=development staging production testing"`
	UpstreamURL string `yaml:"upstream_url" validate:"required,url"`
	StaticDir   string `yaml:"static_dir" validate:"required"`
	OpenBrowser bool   `yaml:"open_browser"`
	EnvFile     string `yaml:"env_file"`
	Credential  string `yaml:"credential"`
	SentryDSN   string `yaml:"sentry_dsn"`

	// client
	ProxyURL        string         `yaml:"proxy_url" validate:"required,url"`
	DatabasePath    string         `yaml:"database_path" validate:"required"`
	Fallback        FallbackPolicy `yaml:"fallback" validate:"oneof=always credential-only never"`
	TimeZone        string         `yaml:"time_zone" validate:"required"`
	RefreshInterval time.Duration  `yaml:"refresh_interval" validate:"gte=1s"`
	GTFSPath        string         `yaml:"gtfs_path"`

	Mu               sync.RWMutex `yaml:"-"`
	credentialSource string
	fileCredential   string
}

// Default returns a Config populated with the values used when no file or
// environment override is present.
func Default() *Config {
	return &Config{
		Port:            3000,
		PortRange:       11,
		Env:             "development",
		UpstreamURL:     DefaultUpstreamURL,
		StaticDir:       ".",
		EnvFile:         ".env",
		ProxyURL:        "http://localhost:3000",
		DatabasePath:    "cache/bustiming.db",
		Fallback:        FallbackAlways,
		TimeZone:        DefaultTimeZone,
		RefreshInterval: 30 * time.Second,
	}
}

// SetCredential safely replaces the server-side API key and records where it came from.
func (cfg *Config) SetCredential(key, source string) {
	cfg.Mu.Lock()
	defer cfg.Mu.Unlock()
	cfg.Credential = key
	cfg.credentialSource = source
}

// GetCredential safely returns the server-side API key. Empty means unconfigured.
func (cfg *Config) GetCredential() string {
	cfg.Mu.RLock()
	defer cfg.Mu.RUnlock()
	return cfg.Credential
}

// CredentialSource names where the current key came from (env, env_file, config).
func (cfg *Config) CredentialSource() string {
	cfg.Mu.RLock()
	defer cfg.Mu.RUnlock()
	return cfg.credentialSource
}

// FileCredential is the key found in the YAML file, the last resort when
// re-resolving the credential.
func (cfg *Config) FileCredential() string {
	return cfg.fileCredential
}

// Location loads the display time zone.
func (cfg *Config) Location() (*time.Location, error) {
	return time.LoadLocation(cfg.TimeZone)
}

// PortCandidates lists the ports the proxy tries in order.
func (cfg *Config) PortCandidates() []int {
	ports := make([]int, 0, cfg.PortRange)
	for p := cfg.Port; p < cfg.Port+cfg.PortRange && p <= 65535; p++ {
		ports = append(ports, p)
	}
	return ports
}
