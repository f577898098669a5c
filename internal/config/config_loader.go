package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"bustiming.sgbus.dev/internal/report"
	"bustiming.sgbus.dev/internal/utils"
)

const credentialEnvVar = "LTA_API_KEY"

// Credential sources, in precedence order.
const (
	SourceEnv     = "env"
	SourceEnvFile = "env_file"
	SourceConfig  = "config"
)

// LoadConfig builds the effective configuration: defaults, then the YAML file
// at path (optional), then environment overrides, then credential resolution.
// The result is validated before it is returned.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadConfigFromFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	cfg.fileCredential = cfg.Credential
	key, source := ResolveCredential(cfg.EnvFile, cfg.fileCredential)
	cfg.SetCredential(key, source)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("file_path", path),
			Level: sentry.LevelError,
		})
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("file_path", path),
			Level: sentry.LevelError,
		})
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("BUSTIMING_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("LTA_UPSTREAM_URL"); v != "" {
		cfg.UpstreamURL = v
	}
	if v := os.Getenv("BUSTIMING_PROXY_URL"); v != "" {
		cfg.ProxyURL = v
	}
	if v := os.Getenv("SENTRY_DSN"); v != "" {
		cfg.SentryDSN = v
	}
	return nil
}

// ResolveCredential finds the server API key: the LTA_API_KEY environment
// variable first, then an LTA_API_KEY line in envFile, then fallback (the
// value from the YAML file). It returns the key and the name of its source.
func ResolveCredential(envFile, fallback string) (string, string) {
	if v := os.Getenv(credentialEnvVar); v != "" {
		return v, SourceEnv
	}

	if envFile != "" {
		values, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
				Tags:  utils.MakeMap("file_path", envFile),
				Level: sentry.LevelWarning,
			})
		}
		if v := values[credentialEnvVar]; v != "" {
			return v, SourceEnvFile
		}
	}

	if fallback != "" {
		return fallback, SourceConfig
	}
	return "", ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags on cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
