// Package controller holds the application state of the bus timing client
// and the events that change it. Rendering and confirmation prompts are
// delegated to the front end through Renderer and Confirmer.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"bustiming.sgbus.dev/internal/config"
	"bustiming.sgbus.dev/internal/directory"
	"bustiming.sgbus.dev/internal/geo"
	"bustiming.sgbus.dev/internal/models"
	"bustiming.sgbus.dev/internal/storage"
)

const (
	DefaultInterval      = 30 * time.Second
	DefaultDebounce      = 300 * time.Millisecond
	DefaultFavoriteFetch = 4

	// verifyStopCode is queried to check a newly entered API key.
	verifyStopCode = "83139"
)

var (
	ErrNoSelection     = errors.New("no stop and service selected")
	ErrServiceNotFound = errors.New("service data not found")
	ErrEmptyAPIKey     = errors.New("empty API key")
	ErrAPIKeyRejected  = errors.New("API key rejected")
	ErrCancelled       = errors.New("cancelled by user")
	ErrInvalidLocation = errors.New("invalid coordinates")
)

// Section is the part of the UI currently showing.
type Section string

const (
	SectionIdle    Section = "idle"
	SectionLoading Section = "loading"
	SectionResults Section = "results"
	SectionError   Section = "error"
)

// Renderer draws state for the user. Calls may come from background tasks.
type Renderer interface {
	ShowLoading()
	HideSections()
	ShowError(message string)
	ShowStopInfo(info StopInfo)
	ShowServices(services []string)
	ShowArrivals(view ArrivalsView)
	SetFavoriteIndicator(active bool)
	ShowFavorites(favs []FavoriteView)
	ShowRecent(codes []string)
	ShowSuggestions(results []Suggestion)
	HideSuggestions()
	ApplyTheme(theme string)
	Notify(message string)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ArrivalsFetcher interface {
	FetchArrivals(ctx context.Context, stopCode, serviceNo string) (*models.ArrivalsResult, error)
}

type StopFinder interface {
	Search(ctx context.Context, query string) ([]models.BusStop, error)
	Nearby(ctx context.Context, lat, lon float64, limit int) ([]directory.NearbyStop, error)
	Bounds(ctx context.Context) (geo.BoundingBox, error)
}

// Store persists user preferences between runs.
type Store interface {
	Favorites(ctx context.Context) ([]models.Favorite, error)
	SaveFavorites(ctx context.Context, favs []models.Favorite) error
	RecentSearches(ctx context.Context) ([]string, error)
	SaveRecentSearches(ctx context.Context, recent []string) error
	Theme(ctx context.Context) (string, error)
	SaveTheme(ctx context.Context, theme string) error
	APIKey(ctx context.Context) (string, error)
	SaveAPIKey(ctx context.Context, key string) error
}

// KeyHolder carries the credential override the fetcher sends.
type KeyHolder interface {
	APIKey() string
	SetAPIKey(key string)
}

// State is a snapshot of the controller.
type State struct {
	Section    Section
	StopCode   string
	ServiceNo  string
	Services   []models.Service
	Demo       bool
	Favorites  []models.Favorite
	FavTimings map[string][]models.NextBus
	Recent     []string
	Theme      string
	LastError  string
	LastQuery  string
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Fetcher   ArrivalsFetcher
	Finder    StopFinder
	Store     Store
	Renderer  Renderer
	Confirmer Confirmer
	Session   KeyHolder
	Logger    *slog.Logger
}

type Controller struct {
	Interval      time.Duration
	Debounce      time.Duration
	FavoriteFetch int
	NearbyLimit   int
	Location      *time.Location
	Now           func() time.Time

	fetcher   ArrivalsFetcher
	finder    StopFinder
	store     Store
	renderer  Renderer
	confirmer Confirmer
	session   KeyHolder
	logger    *slog.Logger
	backoff   *config.BackoffStore

	mu          sync.Mutex
	state       State
	searchSeq   uint64
	refreshSeq  uint64
	autoRefresh *Task
	favRefresh  *Task
	debounce    *time.Timer
}

func New(deps Deps) *Controller {
	return &Controller{
		Interval:      DefaultInterval,
		Debounce:      DefaultDebounce,
		FavoriteFetch: DefaultFavoriteFetch,
		NearbyLimit:   directory.DefaultNearbyLimit,
		Location:      time.Local,
		Now:           time.Now,
		fetcher:       deps.Fetcher,
		finder:        deps.Finder,
		store:         deps.Store,
		renderer:      deps.Renderer,
		confirmer:     deps.Confirmer,
		session:       deps.Session,
		logger:        deps.Logger,
		backoff:       config.NewBackoffStore(),
		state: State{
			Section:    SectionIdle,
			FavTimings: make(map[string][]models.NextBus),
			Theme:      storage.ThemeDark,
		},
	}
}

// Load restores persisted preferences and draws the initial screen.
func (c *Controller) Load(ctx context.Context) error {
	favs, err := c.store.Favorites(ctx)
	if err != nil {
		return err
	}
	recent, err := c.store.RecentSearches(ctx)
	if err != nil {
		return err
	}
	theme, err := c.store.Theme(ctx)
	if err != nil {
		return err
	}
	key, err := c.store.APIKey(ctx)
	if err != nil {
		return err
	}
	if key != "" {
		c.session.SetAPIKey(key)
	}

	c.mu.Lock()
	c.state.Favorites = favs
	c.state.Recent = recent
	c.state.Theme = theme
	favViews := newFavoriteViews(favs, c.state.FavTimings, c.Now())
	c.mu.Unlock()

	c.renderer.ApplyTheme(theme)
	c.renderer.ShowRecent(recent)
	c.renderer.ShowFavorites(favViews)
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	s.Services = append([]models.Service(nil), c.state.Services...)
	s.Favorites = append([]models.Favorite(nil), c.state.Favorites...)
	s.Recent = append([]string(nil), c.state.Recent...)
	s.FavTimings = make(map[string][]models.NextBus, len(c.state.FavTimings))
	for k, v := range c.state.FavTimings {
		s.FavTimings[k] = append([]models.NextBus(nil), v...)
	}
	return s
}

// Start launches the always-on favorites refresh.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.favRefresh == nil {
		c.favRefresh = NewTask("favorites-refresh", c.Interval, func(ctx context.Context) {
			c.RefreshFavorites(ctx)
		}, c.logger)
		c.favRefresh.Immediate = true
	}
	task := c.favRefresh
	c.mu.Unlock()

	task.Start(ctx)
}

// Stop halts every background task and pending suggestion.
func (c *Controller) Stop() {
	c.mu.Lock()
	fav := c.favRefresh
	auto := c.autoRefresh
	c.autoRefresh = nil
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	c.mu.Unlock()

	if auto != nil {
		auto.Stop()
	}
	if fav != nil {
		fav.Stop()
	}
}

// AutoRefreshing reports whether the selected service is being refreshed.
func (c *Controller) AutoRefreshing() bool {
	c.mu.Lock()
	task := c.autoRefresh
	c.mu.Unlock()
	return task != nil && task.Running()
}

func (c *Controller) fail(message string) {
	c.mu.Lock()
	c.state.Section = SectionError
	c.state.LastError = message
	c.mu.Unlock()
	c.renderer.ShowError(message)
}
