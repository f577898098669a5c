package report

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// SetupSentry initialises the Sentry client. An empty dsn leaves the SDK
// disabled, which turns every Report* call into a no-op.
func SetupSentry(dsn, env, version string) error {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      env,
		Release:          "bustiming@" + version,
		EnableTracing:    dsn != "",
		Debug:            env == "development" && dsn != "",
		TracesSampleRate: 0.2,
	}); err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	if dsn != "" {
		sentry.CaptureMessage("bustiming started")
	}
	return nil
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
