package controller

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"bustiming.sgbus.dev/internal/metrics"
	"bustiming.sgbus.dev/internal/models"
	"bustiming.sgbus.dev/internal/utils"
)

func (c *Controller) isFavoriteLocked(stopCode, serviceNo string) bool {
	return c.favoriteIndexLocked(stopCode, serviceNo) >= 0
}

func (c *Controller) favoriteIndexLocked(stopCode, serviceNo string) int {
	return slices.IndexFunc(c.state.Favorites, func(f models.Favorite) bool {
		return f.StopCode == stopCode && f.ServiceNo == serviceNo
	})
}

// ToggleFavorite adds the selected stop and service to the favorites, or
// removes them when already present. It reports whether the pair is now a
// favorite.
func (c *Controller) ToggleFavorite(ctx context.Context) (bool, error) {
	c.mu.Lock()
	stop, svc := c.state.StopCode, c.state.ServiceNo
	if stop == "" || svc == "" {
		c.mu.Unlock()
		return false, ErrNoSelection
	}

	added := false
	if idx := c.favoriteIndexLocked(stop, svc); idx >= 0 {
		c.state.Favorites = slices.Delete(slices.Clone(c.state.Favorites), idx, idx+1)
	} else {
		c.state.Favorites = append(slices.Clone(c.state.Favorites), models.Favorite{
			StopCode:  stop,
			ServiceNo: svc,
			Timestamp: utils.NewEpochMillis(c.Now()),
		})
		added = true
	}
	favs := slices.Clone(c.state.Favorites)
	views := newFavoriteViews(favs, c.state.FavTimings, c.Now())
	c.mu.Unlock()

	if err := c.saveFavorites(ctx, favs); err != nil {
		return added, err
	}
	c.renderer.ShowFavorites(views)
	c.renderer.SetFavoriteIndicator(added)
	return added, nil
}

// RemoveFavorite deletes a favorite after the user confirms. It reports
// whether anything was removed.
func (c *Controller) RemoveFavorite(ctx context.Context, stopCode, serviceNo string) (bool, error) {
	prompt := fmt.Sprintf("Remove Favorite: Bus %s at Stop %s?", serviceNo, stopCode)
	if !c.confirmer.Confirm(prompt) {
		return false, nil
	}

	c.mu.Lock()
	idx := c.favoriteIndexLocked(stopCode, serviceNo)
	if idx < 0 {
		c.mu.Unlock()
		return false, nil
	}
	c.state.Favorites = slices.Delete(slices.Clone(c.state.Favorites), idx, idx+1)
	delete(c.state.FavTimings, models.FavoriteKey(stopCode, serviceNo))
	favs := slices.Clone(c.state.Favorites)
	views := newFavoriteViews(favs, c.state.FavTimings, c.Now())
	current := c.state.StopCode == stopCode && c.state.ServiceNo == serviceNo
	c.mu.Unlock()

	if err := c.saveFavorites(ctx, favs); err != nil {
		return true, err
	}
	c.renderer.ShowFavorites(views)
	if current {
		c.renderer.SetFavoriteIndicator(false)
	}
	return true, nil
}

func (c *Controller) saveFavorites(ctx context.Context, favs []models.Favorite) error {
	metrics.FavoritesTracked.Set(float64(len(favs)))
	if err := c.store.SaveFavorites(ctx, favs); err != nil {
		c.logger.Error("failed to save favorites", "error", err)
		return err
	}
	return nil
}

// RefreshFavorites fetches every favorite stop once, at most FavoriteFetch
// at a time, and merges the upcoming arrivals into the favorite timings.
// Stops that keep failing are skipped until their backoff expires.
func (c *Controller) RefreshFavorites(ctx context.Context) {
	c.mu.Lock()
	favs := slices.Clone(c.state.Favorites)
	c.mu.Unlock()
	if len(favs) == 0 {
		return
	}

	var stops []string
	wanted := make(map[string][]string)
	for _, f := range favs {
		if _, seen := wanted[f.StopCode]; !seen {
			stops = append(stops, f.StopCode)
		}
		wanted[f.StopCode] = append(wanted[f.StopCode], f.ServiceNo)
	}

	var mu sync.Mutex
	updates := make(map[string][]models.NextBus)

	p := pool.New().WithMaxGoroutines(max(c.FavoriteFetch, 1))
	for _, stop := range stops {
		if c.backoff.ShouldSkip(stop) {
			c.logger.Debug("skipping favorite stop in backoff", "stop_code", stop)
			continue
		}
		p.Go(func() {
			res, err := c.fetcher.FetchArrivals(ctx, stop, "")
			if err != nil {
				c.backoff.UpdateBackoff(stop)
				c.logger.Warn("failed to refresh favorite timings", "stop_code", stop, "error", err)
				return
			}
			c.backoff.ResetBackoff(stop)

			mu.Lock()
			defer mu.Unlock()
			for _, s := range res.Services {
				if slices.Contains(wanted[stop], s.ServiceNo) {
					updates[models.FavoriteKey(stop, s.ServiceNo)] = s.Predictions()
				}
			}
		})
	}
	p.Wait()

	c.mu.Lock()
	for k, v := range updates {
		c.state.FavTimings[k] = v
	}
	views := newFavoriteViews(c.state.Favorites, c.state.FavTimings, c.Now())
	c.mu.Unlock()

	metrics.FavoritesTracked.Set(float64(len(favs)))
	c.renderer.ShowFavorites(views)
}
