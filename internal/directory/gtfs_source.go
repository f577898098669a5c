package directory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/getsentry/sentry-go"
	remoteGtfs "github.com/jamespfennell/gtfs"

	"bustiming.sgbus.dev/internal/config"
	"bustiming.sgbus.dev/internal/models"
	"bustiming.sgbus.dev/internal/report"
	"bustiming.sgbus.dev/internal/utils"
)

// GTFSSource serves the stop directory from a GTFS static bundle instead of
// the live API. It pages its stops the same way the API does.
type GTFSSource struct {
	stops    []models.BusStop
	pageSize int
}

// LoadGTFSSource reads a bundle from a local path or an http(s) URL.
func LoadGTFSSource(ctx context.Context, location string, client *http.Client, maxRetries int) (*GTFSSource, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		data, err = downloadGTFSBundle(ctx, client, location, maxRetries)
	} else {
		data, err = os.ReadFile(location)
	}
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("gtfs_path", location),
			Level: sentry.LevelError,
		})
		return nil, fmt.Errorf("failed to load GTFS bundle from %s: %w", location, err)
	}
	return NewGTFSSource(data)
}

func downloadGTFSBundle(ctx context.Context, client *http.Client, url string, maxRetries int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}

	resp, err := config.DoWithBackoff(ctx, client, req, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to make GET request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response status %d when downloading GTFS bundle from %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

// NewGTFSSource parses a zipped bundle. Only boarding locations become
// directory entries; stations, entrances and nodes are skipped. stop_code
// is used as the stop code and falls back to stop_id when blank.
func NewGTFSSource(data []byte) (*GTFSSource, error) {
	static, err := remoteGtfs.ParseStatic(data, remoteGtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse GTFS static data: %w", err)
	}

	stops := make([]models.BusStop, 0, len(static.Stops))
	for _, s := range static.Stops {
		if s.Type != 0 || s.Latitude == nil || s.Longitude == nil {
			continue
		}
		code := s.Code
		if code == "" {
			code = s.Id
		}
		stops = append(stops, models.BusStop{
			BusStopCode: code,
			Description: s.Name,
			RoadName:    s.Description,
			Latitude:    *s.Latitude,
			Longitude:   *s.Longitude,
		})
	}
	return &GTFSSource{stops: stops, pageSize: DefaultPageSize}, nil
}

func (g *GTFSSource) Len() int { return len(g.stops) }

func (g *GTFSSource) FetchStopsPage(ctx context.Context, skip int) ([]models.BusStop, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if skip < 0 {
		return nil, fmt.Errorf("negative skip %d", skip)
	}
	if skip >= len(g.stops) {
		return []models.BusStop{}, nil
	}
	end := min(skip+g.pageSize, len(g.stops))
	return g.stops[skip:end], nil
}
