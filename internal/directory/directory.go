package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"bustiming.sgbus.dev/internal/geo"
	"bustiming.sgbus.dev/internal/metrics"
	"bustiming.sgbus.dev/internal/models"
	"bustiming.sgbus.dev/internal/report"
)

const (
	DefaultPageSize = 500
	DefaultTTL      = 24 * time.Hour
	// DefaultRetryAfter is how long a partial or stale directory is served
	// before the source is paged again.
	DefaultRetryAfter = time.Minute

	maxSearchResults = 20
	minQueryLength   = 2
	// maxPages stops a misbehaving source from paging forever.
	maxPages = 200
)

// PageSource yields the stop directory one page at a time.
type PageSource interface {
	FetchStopsPage(ctx context.Context, skip int) ([]models.BusStop, error)
}

// CacheStore persists the directory between runs.
type CacheStore interface {
	LoadStops(ctx context.Context) ([]models.BusStop, time.Time, bool, error)
	SaveStops(ctx context.Context, stops []models.BusStop, fetchedAt time.Time) error
}

// Directory is the client-side stop directory: a paginated fetch cached for
// TTL, plus text and proximity search over it.
type Directory struct {
	TTL        time.Duration
	RetryAfter time.Duration
	PageSize   int
	Now        func() time.Time

	source PageSource
	store  CacheStore
	logger *slog.Logger

	// mu is held for the whole of ListAll so concurrent callers share one refresh.
	mu        sync.Mutex
	stops     []models.BusStop
	fetchedAt time.Time
	retryAt   time.Time
}

func New(source PageSource, store CacheStore, logger *slog.Logger) *Directory {
	return &Directory{
		TTL:        DefaultTTL,
		RetryAfter: DefaultRetryAfter,
		PageSize:   DefaultPageSize,
		Now:        time.Now,
		source:     source,
		store:      store,
		logger:     logger,
	}
}

// ListAll returns every stop. A cache younger than TTL is served as is;
// otherwise the source is paged until a page comes back empty or short.
//
// A failed page ends the fetch. What was accumulated so far is returned but
// not persisted; with nothing accumulated the stale cache is returned instead.
// Either is held in memory for RetryAfter so rapid callers do not re-page.
func (d *Directory) ListAll(ctx context.Context) ([]models.BusStop, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.Now()
	if d.stops != nil && (now.Sub(d.fetchedAt) < d.TTL || now.Before(d.retryAt)) {
		return d.stops, nil
	}

	cached, cachedAt, ok, err := d.store.LoadStops(ctx)
	if err != nil {
		d.logger.Warn("stop cache unreadable, refetching", "error", err)
		ok = false
	}
	if ok && now.Sub(cachedAt) < d.TTL {
		d.remember(cached, cachedAt)
		return d.stops, nil
	}

	fetched, fetchErr := d.fetchAll(ctx)
	switch {
	case fetchErr == nil && len(fetched) > 0:
		if err := d.store.SaveStops(ctx, fetched, now); err != nil {
			d.logger.Error("failed to persist stop directory", "error", err)
		}
		metrics.DirectoryRefreshes.WithLabelValues("complete").Inc()
		d.logger.Info("stop directory refreshed", "stops", len(fetched))
		d.remember(fetched, now)
		return d.stops, nil

	case len(fetched) > 0:
		metrics.DirectoryRefreshes.WithLabelValues("partial").Inc()
		d.logger.Warn("stop directory fetch incomplete", "stops", len(fetched), "error", fetchErr)
		d.hold(fetched, now)
		return d.stops, nil
	}

	metrics.DirectoryRefreshes.WithLabelValues("failed").Inc()
	if ok {
		d.logger.Warn("serving stale stop directory", "age", now.Sub(cachedAt).Round(time.Minute), "error", fetchErr)
		d.hold(cached, now)
		return d.stops, nil
	}
	if fetchErr == nil {
		fetchErr = errors.New("stop directory source returned no stops")
	}
	report.ReportErrorWithSentryOptions(fetchErr, report.SentryReportOptions{
		Tags:  map[string]string{"component": "directory"},
		Level: sentry.LevelWarning,
	})
	return nil, fetchErr
}

func (d *Directory) remember(stops []models.BusStop, at time.Time) {
	d.stops = stops
	d.fetchedAt = at
	d.retryAt = time.Time{}
	metrics.DirectoryStops.Set(float64(len(stops)))
}

// hold keeps a degraded directory until RetryAfter has passed. It never
// counts as fresh for TTL purposes.
func (d *Directory) hold(stops []models.BusStop, now time.Time) {
	d.stops = stops
	d.fetchedAt = time.Time{}
	d.retryAt = now.Add(d.RetryAfter)
	metrics.DirectoryStops.Set(float64(len(stops)))
}

func (d *Directory) fetchAll(ctx context.Context) ([]models.BusStop, error) {
	var all []models.BusStop
	for page, skip := 0, 0; page < maxPages; page, skip = page+1, skip+d.PageSize {
		stops, err := d.source.FetchStopsPage(ctx, skip)
		if err != nil {
			return all, fmt.Errorf("stops page at %d: %w", skip, err)
		}
		if len(stops) == 0 {
			break
		}
		all = append(all, stops...)
		if len(stops) < d.PageSize {
			break
		}
	}
	return all, nil
}

// Search does a case-insensitive substring match of query against the code,
// description and road name, returning at most 20 stops. Queries shorter than
// two characters return nothing without loading the directory.
func (d *Directory) Search(ctx context.Context, query string) ([]models.BusStop, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if len([]rune(q)) < minQueryLength {
		return nil, nil
	}

	stops, err := d.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.BusStop
	for _, s := range stops {
		if s.Matches(q) {
			out = append(out, s)
			if len(out) == maxSearchResults {
				break
			}
		}
	}
	return out, nil
}

// Nearby returns the limit stops closest to (lat, lon); limit <= 0 means 10.
func (d *Directory) Nearby(ctx context.Context, lat, lon float64, limit int) ([]NearbyStop, error) {
	stops, err := d.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return NearestStops(stops, lat, lon, limit), nil
}

// Bounds is the bounding box of every stop with coordinates.
func (d *Directory) Bounds(ctx context.Context) (geo.BoundingBox, error) {
	stops, err := d.ListAll(ctx)
	if err != nil {
		return geo.BoundingBox{}, err
	}
	return geo.ComputeBoundingBox(stops)
}
