package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"bustiming.sgbus.dev/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource serves pages from a fixed slice and can fail at a given skip.
type fakeSource struct {
	mu       sync.Mutex
	stops    []models.BusStop
	pageSize int
	failAt   int // skip offset that errors; -1 disables
	calls    []int
	delay    time.Duration
}

func newFakeSource(n, pageSize int) *fakeSource {
	stops := make([]models.BusStop, n)
	for i := range stops {
		stops[i] = models.BusStop{
			BusStopCode: fmt.Sprintf("%05d", 10000+i),
			RoadName:    fmt.Sprintf("Road %d", i),
			Description: fmt.Sprintf("Stop %d", i),
			Latitude:    1.3 + float64(i)*0.001,
			Longitude:   103.8 + float64(i)*0.001,
		}
	}
	return &fakeSource{stops: stops, pageSize: pageSize, failAt: -1}
}

var errPage = errors.New("page failed")

func (f *fakeSource) FetchStopsPage(ctx context.Context, skip int) ([]models.BusStop, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, skip)
	if skip == f.failAt {
		return nil, errPage
	}
	if skip >= len(f.stops) {
		return nil, nil
	}
	return f.stops[skip:min(skip+f.pageSize, len(f.stops))], nil
}

func (f *fakeSource) Calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

type memoryStore struct {
	stops     []models.BusStop
	fetchedAt time.Time
	ok        bool
	saves     int
}

func (m *memoryStore) LoadStops(ctx context.Context) ([]models.BusStop, time.Time, bool, error) {
	return m.stops, m.fetchedAt, m.ok, nil
}

func (m *memoryStore) SaveStops(ctx context.Context, stops []models.BusStop, fetchedAt time.Time) error {
	m.stops, m.fetchedAt, m.ok = stops, fetchedAt, true
	m.saves++
	return nil
}
