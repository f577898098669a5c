package utils

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/getsentry/sentry-go"

	"bustiming.sgbus.dev/internal/report"
)

// CreateCacheDirectory ensures the directory holding local state exists.
func CreateCacheDirectory(cacheDir string, logger *slog.Logger) error {
	stat, err := os.Stat(cacheDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
				Level:        sentry.LevelError,
				ExtraContext: map[string]interface{}{"cache_dir": cacheDir},
			})
			return err
		}
		logger.Debug("created cache directory", "dir", cacheDir)
		return nil
	}

	if !stat.IsDir() {
		err := fmt.Errorf("%s is not a directory", cacheDir)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Level:        sentry.LevelError,
			ExtraContext: map[string]interface{}{"cache_dir": cacheDir},
		})
		return err
	}
	return nil
}
