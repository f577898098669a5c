package proxy

import (
	"log/slog"
	"net/http"

	"bustiming.sgbus.dev/internal/config"
	"bustiming.sgbus.dev/internal/offline"
)

// Application wires together the dependencies of the proxy: the live
// configuration, the upstream HTTP client, the offline asset worker and the
// static file handler it fills its cache from.
type Application struct {
	ConfigService *config.ConfigService
	Client        *http.Client
	Worker        *offline.Worker
	Static        *StaticHandler
	Logger        *slog.Logger
	Version       string
}

// New creates the proxy application. client is used for every upstream call.
func New(cfg *config.Config, logger *slog.Logger, client *http.Client, version string) *Application {
	static := NewStaticHandler(cfg.StaticDir, logger)
	worker := offline.NewWorker(offline.NewCacheStorage(offline.DefaultCacheCapacity), static, logger)

	return &Application{
		ConfigService: config.NewConfigService(logger, cfg),
		Client:        client,
		Worker:        worker,
		Static:        static,
		Logger:        logger,
		Version:       version,
	}
}
