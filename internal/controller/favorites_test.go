package controller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bustiming.sgbus.dev/internal/models"
	"bustiming.sgbus.dev/internal/utils"
)

func selectStop(t *testing.T, h *harness, stop, svc string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.c.SubmitSearch(ctx, stop))
	require.NoError(t, h.c.SelectService(ctx, svc))
}

func TestToggleFavoriteTwiceRestoresSet(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	selectStop(t, h, "83139", "10")

	before := h.c.Snapshot().Favorites

	added, err := h.c.ToggleFavorite(ctx)
	require.NoError(t, err)
	assert.True(t, added)
	require.Len(t, h.store.favorites, 1)
	assert.Equal(t, models.Favorite{StopCode: "83139", ServiceNo: "10", Timestamp: utils.NewEpochMillis(testNow)}, h.store.favorites[0])

	added, err = h.c.ToggleFavorite(ctx)
	require.NoError(t, err)
	assert.False(t, added)

	assert.Equal(t, len(before), len(h.c.Snapshot().Favorites))
	assert.Empty(t, h.store.favorites)
	assert.Equal(t, []bool{false, true, false}, h.renderer.indicator)
}

func TestToggleFavoriteNeedsSelection(t *testing.T) {
	h := newHarness(t)
	_, err := h.c.ToggleFavorite(context.Background())
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestToggleFavoriteKeepsPairsDistinct(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	selectStop(t, h, "83139", "10")
	_, err := h.c.ToggleFavorite(ctx)
	require.NoError(t, err)

	require.NoError(t, h.c.SelectService(ctx, "2"))
	_, err = h.c.ToggleFavorite(ctx)
	require.NoError(t, err)

	favs := h.c.Snapshot().Favorites
	require.Len(t, favs, 2)
	assert.Equal(t, "83139_10", favs[0].Key())
	assert.Equal(t, "83139_2", favs[1].Key())
}

func TestRemoveFavoriteNeedsConfirmation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	selectStop(t, h, "83139", "10")
	_, err := h.c.ToggleFavorite(ctx)
	require.NoError(t, err)

	h.confirmer.answer = false
	removed, err := h.c.RemoveFavorite(ctx, "83139", "10")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Len(t, h.store.favorites, 1)
	assert.Equal(t, []string{"Remove Favorite: Bus 10 at Stop 83139?"}, h.confirmer.prompts)

	h.confirmer.answer = true
	removed, err = h.c.RemoveFavorite(ctx, "83139", "10")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, h.store.favorites)
	assert.Equal(t, false, h.renderer.indicator[len(h.renderer.indicator)-1])
}

func TestRefreshFavoritesFetchesEachStopOnce(t *testing.T) {
	h := newHarness(t)
	h.store.favorites = []models.Favorite{
		{StopCode: "83139", ServiceNo: "15"},
		{StopCode: "83139", ServiceNo: "150"},
		{StopCode: "20251", ServiceNo: "176"},
	}
	require.NoError(t, h.c.Load(context.Background()))

	h.fetcher.fn = func(ctx context.Context, stop, svc string) (*models.ArrivalsResult, error) {
		if stop == "83139" {
			res := arrivals(stop, "15", "150", "16")
			res.Services[1].NextBus2 = nil
			return res, nil
		}
		return arrivals(stop, "176"), nil
	}

	h.c.RefreshFavorites(context.Background())

	assert.ElementsMatch(t, []fetchCall{{"83139", ""}, {"20251", ""}}, h.fetcher.Calls())

	timings := h.c.Snapshot().FavTimings
	assert.Len(t, timings["83139_15"], 2)
	assert.Len(t, timings["83139_150"], 1)
	assert.Len(t, timings["20251_176"], 2)
	assert.NotContains(t, timings, "83139_16")

	views := h.renderer.favorites[len(h.renderer.favorites)-1]
	require.Len(t, views, 3)
	assert.Equal(t, []string{"1", "12"}, views[0].Timings)
	assert.Equal(t, "crowd-green", views[0].CrowdClass)
}

func TestRefreshFavoritesBacksOffFailingStop(t *testing.T) {
	h := newHarness(t)
	h.store.favorites = []models.Favorite{
		{StopCode: "83139", ServiceNo: "15"},
		{StopCode: "20251", ServiceNo: "176"},
	}
	require.NoError(t, h.c.Load(context.Background()))

	var badCalls atomic.Int32
	h.fetcher.fn = func(ctx context.Context, stop, svc string) (*models.ArrivalsResult, error) {
		if stop == "83139" {
			badCalls.Add(1)
			return nil, errors.New("upstream down")
		}
		return arrivals(stop, "176"), nil
	}

	h.c.RefreshFavorites(context.Background())
	h.c.RefreshFavorites(context.Background())

	// The failing stop is skipped on the second pass; the healthy one is not.
	assert.Equal(t, int32(1), badCalls.Load())
	assert.Len(t, h.fetcher.Calls(), 3)
	assert.Contains(t, h.c.Snapshot().FavTimings, "20251_176")
}

func TestRefreshFavoritesKeepsOldTimingsOnFailure(t *testing.T) {
	h := newHarness(t)
	h.store.favorites = []models.Favorite{{StopCode: "83139", ServiceNo: "15"}}
	require.NoError(t, h.c.Load(context.Background()))

	h.c.RefreshFavorites(context.Background())
	require.Len(t, h.c.Snapshot().FavTimings["83139_15"], 0, "service 15 is not served by the default fixture")

	h.fetcher.fn = func(ctx context.Context, stop, svc string) (*models.ArrivalsResult, error) {
		return arrivals(stop, "15"), nil
	}
	h.c.backoff.ResetBackoff("83139")
	h.c.RefreshFavorites(context.Background())
	require.Len(t, h.c.Snapshot().FavTimings["83139_15"], 2)

	h.fetcher.fn = func(ctx context.Context, stop, svc string) (*models.ArrivalsResult, error) {
		return nil, errors.New("boom")
	}
	h.c.RefreshFavorites(context.Background())
	assert.Len(t, h.c.Snapshot().FavTimings["83139_15"], 2)
}

func TestStartRefreshesFavoritesImmediately(t *testing.T) {
	h := newHarness(t)
	h.store.favorites = []models.Favorite{{StopCode: "83139", ServiceNo: "15"}}
	require.NoError(t, h.c.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.c.Start(ctx)

	require.Eventually(t, func() bool { return len(h.fetcher.Calls()) == 1 }, time2s, tick)
	h.c.Stop()
}
