package controller

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"bustiming.sgbus.dev/internal/directory"
	"bustiming.sgbus.dev/internal/geo"
	"bustiming.sgbus.dev/internal/models"
	"bustiming.sgbus.dev/internal/storage"
)

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fetchCall struct{ stop, svc string }

type fakeFetcher struct {
	mu    sync.Mutex
	calls []fetchCall
	fn    func(ctx context.Context, stop, svc string) (*models.ArrivalsResult, error)
}

func (f *fakeFetcher) FetchArrivals(ctx context.Context, stop, svc string) (*models.ArrivalsResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{stop, svc})
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, stop, svc)
}

func (f *fakeFetcher) Calls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

type fakeFinder struct {
	mu       sync.Mutex
	queries  []string
	stops    []models.BusStop
	bounds   geo.BoundingBox
	nearbyFn func(lat, lon float64, limit int) ([]directory.NearbyStop, error)
}

func (f *fakeFinder) Search(ctx context.Context, query string) ([]models.BusStop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.stops, nil
}

func (f *fakeFinder) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.queries)
}

func (f *fakeFinder) Nearby(ctx context.Context, lat, lon float64, limit int) ([]directory.NearbyStop, error) {
	if f.nearbyFn != nil {
		return f.nearbyFn(lat, lon, limit)
	}
	return directory.NearestStops(f.stops, lat, lon, limit), nil
}

func (f *fakeFinder) Bounds(ctx context.Context) (geo.BoundingBox, error) {
	return f.bounds, nil
}

type memStore struct {
	mu        sync.Mutex
	favorites []models.Favorite
	recent    []string
	theme     string
	apiKey    string
}

func (s *memStore) Favorites(ctx context.Context) ([]models.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.favorites), nil
}

func (s *memStore) SaveFavorites(ctx context.Context, favs []models.Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.favorites = slices.Clone(favs)
	return nil
}

func (s *memStore) RecentSearches(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.recent), nil
}

func (s *memStore) SaveRecentSearches(ctx context.Context, recent []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = slices.Clone(recent)
	return nil
}

func (s *memStore) Theme(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.theme == "" {
		return storage.ThemeDark, nil
	}
	return s.theme, nil
}

func (s *memStore) SaveTheme(ctx context.Context, theme string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = theme
	return nil
}

func (s *memStore) APIKey(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKey, nil
}

func (s *memStore) SaveAPIKey(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
	return nil
}

// recordingRenderer keeps every call it receives.
type recordingRenderer struct {
	mu          sync.Mutex
	loading     int
	errors      []string
	stopInfos   []StopInfo
	services    [][]string
	arrivals    []ArrivalsView
	indicator   []bool
	favorites   [][]FavoriteView
	recent      [][]string
	suggestions [][]Suggestion
	hidden      int
	themes      []string
	notices     []string
}

func (r *recordingRenderer) ShowLoading() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading++
}

func (r *recordingRenderer) HideSections() {}

func (r *recordingRenderer) ShowError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

func (r *recordingRenderer) ShowStopInfo(info StopInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopInfos = append(r.stopInfos, info)
}

func (r *recordingRenderer) ShowServices(services []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services = append(r.services, services)
}

func (r *recordingRenderer) ShowArrivals(view ArrivalsView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arrivals = append(r.arrivals, view)
}

func (r *recordingRenderer) SetFavoriteIndicator(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indicator = append(r.indicator, active)
}

func (r *recordingRenderer) ShowFavorites(favs []FavoriteView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.favorites = append(r.favorites, favs)
}

func (r *recordingRenderer) ShowRecent(codes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recent = append(r.recent, codes)
}

func (r *recordingRenderer) ShowSuggestions(results []Suggestion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suggestions = append(r.suggestions, results)
}

func (r *recordingRenderer) HideSuggestions() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hidden++
}

func (r *recordingRenderer) ApplyTheme(theme string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.themes = append(r.themes, theme)
}

func (r *recordingRenderer) Notify(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, message)
}

func (r *recordingRenderer) lastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errors) == 0 {
		return ""
	}
	return r.errors[len(r.errors)-1]
}

func (r *recordingRenderer) lastNotice() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return ""
	}
	return r.notices[len(r.notices)-1]
}

func (r *recordingRenderer) suggestionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.suggestions)
}

// scriptedConfirmer answers every prompt with answer and keeps the prompts.
type scriptedConfirmer struct {
	answer  bool
	prompts []string
}

func (c *scriptedConfirmer) Confirm(prompt string) bool {
	c.prompts = append(c.prompts, prompt)
	return c.answer
}

type keyHolder struct {
	mu  sync.Mutex
	key string
}

func (k *keyHolder) APIKey() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.key
}

func (k *keyHolder) SetAPIKey(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.key = key
}

type harness struct {
	c         *Controller
	fetcher   *fakeFetcher
	finder    *fakeFinder
	store     *memStore
	renderer  *recordingRenderer
	confirmer *scriptedConfirmer
	session   *keyHolder
}

func nextBusIn(d time.Duration, load string) *models.NextBus {
	return &models.NextBus{
		EstimatedArrival: testNow.Add(d).Format(time.RFC3339),
		Load:             load,
		Type:             "DD",
	}
}

// arrivals returns a live result for stop with the given services, each with
// two predictions.
func arrivals(stop string, services ...string) *models.ArrivalsResult {
	res := &models.ArrivalsResult{}
	res.BusStopCode = stop
	for _, no := range services {
		res.Services = append(res.Services, models.Service{
			ServiceNo: no,
			Operator:  "SBST",
			NextBus:   nextBusIn(90*time.Second, "SEA"),
			NextBus2:  nextBusIn(12*time.Minute, "SDA"),
		})
	}
	return res
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		fetcher: &fakeFetcher{fn: func(ctx context.Context, stop, svc string) (*models.ArrivalsResult, error) {
			return arrivals(stop, "961M", "961", "2", "10"), nil
		}},
		finder:    &fakeFinder{},
		store:     &memStore{},
		renderer:  &recordingRenderer{},
		confirmer: &scriptedConfirmer{answer: true},
		session:   &keyHolder{},
	}
	h.c = New(Deps{
		Fetcher:   h.fetcher,
		Finder:    h.finder,
		Store:     h.store,
		Renderer:  h.renderer,
		Confirmer: h.confirmer,
		Session:   h.session,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	h.c.Now = func() time.Time { return testNow }
	h.c.Location = time.UTC
	// Long enough that no tick fires during a test.
	h.c.Interval = time.Hour
	t.Cleanup(h.c.Stop)
	return h
}
