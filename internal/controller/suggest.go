package controller

import (
	"context"
	"strings"
	"time"

	"bustiming.sgbus.dev/internal/directory"
	"bustiming.sgbus.dev/internal/geo"
	"bustiming.sgbus.dev/internal/models"
)

// boundsMargin pads the network bounding box, in degrees, before deciding a
// location is outside the service area.
const boundsMargin = 0.01

// SearchInput schedules stop suggestions for query once typing pauses for
// Debounce. A new call cancels the pending timer; a search already running
// is left to finish.
func (c *Controller) SearchInput(ctx context.Context, query string) {
	c.mu.Lock()
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	if len([]rune(strings.TrimSpace(query))) < 2 {
		c.mu.Unlock()
		c.renderer.HideSuggestions()
		return
	}
	defer c.mu.Unlock()

	c.debounce = time.AfterFunc(c.Debounce, func() {
		_, _ = c.Suggest(ctx, query)
	})
}

// Suggest runs a stop search right away and shows the matches.
func (c *Controller) Suggest(ctx context.Context, query string) ([]models.BusStop, error) {
	results, err := c.finder.Search(ctx, query)
	if err != nil {
		c.logger.Warn("stop search failed", "error", err)
		return nil, err
	}
	c.renderer.ShowSuggestions(stopSuggestions(results))
	return results, nil
}

// SearchNearby suggests the stops closest to (lat, lon).
func (c *Controller) SearchNearby(ctx context.Context, lat, lon float64) ([]directory.NearbyStop, error) {
	if !geo.IsValidLatLon(lat, lon) {
		c.renderer.Notify("Location permission denied or unavailable")
		return nil, ErrInvalidLocation
	}

	if bounds, err := c.finder.Bounds(ctx); err == nil && !bounds.Expand(boundsMargin).Contains(lat, lon) {
		c.logger.Warn("location outside service area", "lat", lat, "lon", lon)
		c.renderer.Notify("Your location is outside the bus network; showing the closest stops.")
	}

	stops, err := c.finder.Nearby(ctx, lat, lon, c.NearbyLimit)
	if err != nil {
		c.logger.Error("nearby search failed", "error", err)
		c.renderer.Notify("Failed to find nearby stops")
		return nil, err
	}
	c.renderer.ShowSuggestions(nearbySuggestions(stops))
	return stops, nil
}
