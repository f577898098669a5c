package controller

import (
	"context"
	"errors"
	"slices"

	"bustiming.sgbus.dev/internal/models"
	"bustiming.sgbus.dev/internal/transit"
)

const (
	msgEmptyCode       = "Please enter a bus stop code"
	msgInvalidCode     = "Bus stop code must be 5 digits"
	msgNoServices      = "No bus services found for this stop. Please check the bus stop code."
	msgServiceNotFound = "Service data not found"
	msgFetchFailed     = "Failed to fetch bus arrival data"
)

func userMessage(err error) string {
	switch {
	case errors.Is(err, transit.ErrEmptyStopCode):
		return msgEmptyCode
	case errors.Is(err, transit.ErrInvalidStopCode):
		return msgInvalidCode
	case errors.Is(err, transit.ErrNoServices):
		return msgNoServices
	case err.Error() != "":
		return err.Error()
	}
	return msgFetchFailed
}

// SubmitSearch looks up the arrivals at code. Codes that are not exactly
// five digits are rejected without a network call.
func (c *Controller) SubmitSearch(ctx context.Context, code string) error {
	c.mu.Lock()
	c.state.LastQuery = code
	c.mu.Unlock()

	code, err := transit.NormalizeStopCode(code)
	if err != nil {
		c.fail(userMessage(err))
		return err
	}

	c.mu.Lock()
	c.state.Section = SectionLoading
	c.state.LastError = ""
	c.searchSeq++
	c.refreshSeq++
	seq := c.searchSeq
	auto := c.autoRefresh
	c.autoRefresh = nil
	c.mu.Unlock()

	if auto != nil {
		auto.Stop()
	}
	c.renderer.ShowLoading()
	c.renderer.HideSections()

	res, err := c.fetcher.FetchArrivals(ctx, code, "")

	c.mu.Lock()
	stale := seq != c.searchSeq
	c.mu.Unlock()
	if stale {
		c.logger.Debug("dropping superseded search", "stop_code", code)
		return nil
	}

	if err != nil {
		c.logger.Error("search failed", "stop_code", code, "error", err)
		c.fail(userMessage(err))
		return err
	}
	if len(res.Services) == 0 {
		c.fail(msgNoServices)
		return transit.ErrNoServices
	}

	c.addRecent(ctx, code)

	services := slices.Clone(res.Services)
	SortServices(services)
	names := make([]string, len(services))
	for i, s := range services {
		names[i] = s.ServiceNo
	}

	c.mu.Lock()
	c.state.Section = SectionResults
	c.state.StopCode = code
	c.state.ServiceNo = ""
	c.state.Services = services
	c.state.Demo = res.Demo
	c.mu.Unlock()

	c.renderer.ShowStopInfo(newStopInfo(code, res.Demo))
	c.renderer.ShowServices(names)
	return nil
}

// Retry repeats the last submitted search.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	q := c.state.LastQuery
	c.mu.Unlock()
	if q == "" {
		return nil
	}
	return c.SubmitSearch(ctx, q)
}

// SelectService shows the arrivals of serviceNo at the current stop and
// (re)starts the auto-refresh.
func (c *Controller) SelectService(ctx context.Context, serviceNo string) error {
	c.mu.Lock()
	idx := c.serviceIndexLocked(serviceNo)
	if idx < 0 {
		c.mu.Unlock()
		c.fail(msgServiceNotFound)
		return ErrServiceNotFound
	}
	c.state.ServiceNo = serviceNo
	c.state.Section = SectionResults
	view := newArrivalsView(c.state.StopCode, c.state.Services[idx], c.state.Demo, c.Now(), c.Location)
	fav := c.isFavoriteLocked(c.state.StopCode, serviceNo)
	c.mu.Unlock()

	c.renderer.ShowArrivals(view)
	c.renderer.SetFavoriteIndicator(fav)
	c.startAutoRefresh(ctx)
	return nil
}

func (c *Controller) serviceIndexLocked(serviceNo string) int {
	return slices.IndexFunc(c.state.Services, func(s models.Service) bool {
		return s.ServiceNo == serviceNo
	})
}

func (c *Controller) startAutoRefresh(ctx context.Context) {
	task := NewTask("auto-refresh", c.Interval, func(ctx context.Context) {
		_ = c.Refresh(ctx)
	}, c.logger)

	c.mu.Lock()
	old := c.autoRefresh
	c.autoRefresh = task
	c.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	task.Start(ctx)
}

// Refresh refetches the selected service. Failures are logged and returned
// but never shown; a response that arrives after a newer request is dropped.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	stop, svc := c.state.StopCode, c.state.ServiceNo
	if stop == "" || svc == "" {
		c.mu.Unlock()
		return nil
	}
	c.refreshSeq++
	seq := c.refreshSeq
	c.mu.Unlock()

	res, err := c.fetcher.FetchArrivals(ctx, stop, svc)
	if err != nil {
		c.logger.Debug("refresh failed", "stop_code", stop, "service_no", svc, "error", err)
		return err
	}

	c.mu.Lock()
	if seq != c.refreshSeq || stop != c.state.StopCode || svc != c.state.ServiceNo {
		c.mu.Unlock()
		c.logger.Debug("dropping stale refresh", "stop_code", stop, "service_no", svc)
		return nil
	}
	fresh, ok := res.FindService(svc)
	if !ok {
		c.mu.Unlock()
		return nil
	}
	idx := c.serviceIndexLocked(svc)
	if idx < 0 {
		c.mu.Unlock()
		return nil
	}
	c.state.Services[idx] = fresh
	c.state.Demo = res.Demo
	view := newArrivalsView(stop, fresh, res.Demo, c.Now(), c.Location)
	c.mu.Unlock()

	c.renderer.ShowArrivals(view)
	return nil
}

// OpenFavorite searches the favorite's stop and selects its service.
func (c *Controller) OpenFavorite(ctx context.Context, stopCode, serviceNo string) error {
	if err := c.SubmitSearch(ctx, stopCode); err != nil {
		return err
	}
	c.mu.Lock()
	n := len(c.state.Services)
	c.mu.Unlock()
	if n == 0 {
		return nil
	}
	return c.SelectService(ctx, serviceNo)
}

func (c *Controller) addRecent(ctx context.Context, code string) {
	c.mu.Lock()
	c.state.Recent = PushRecent(c.state.Recent, code)
	recent := slices.Clone(c.state.Recent)
	c.mu.Unlock()

	if err := c.store.SaveRecentSearches(ctx, recent); err != nil {
		c.logger.Warn("failed to save recent searches", "error", err)
	}
	c.renderer.ShowRecent(recent)
}
