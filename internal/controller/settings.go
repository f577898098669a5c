package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"bustiming.sgbus.dev/internal/storage"
	"bustiming.sgbus.dev/internal/transit"
)

const uuidKeyLength = 36

// ToggleTheme switches between dark and light and returns the new theme.
func (c *Controller) ToggleTheme(ctx context.Context) (string, error) {
	c.mu.Lock()
	theme := storage.ThemeLight
	if c.state.Theme == storage.ThemeLight {
		theme = storage.ThemeDark
	}
	c.state.Theme = theme
	c.mu.Unlock()

	c.renderer.ApplyTheme(theme)
	return theme, c.store.SaveTheme(ctx, theme)
}

// SaveAPIKey checks key against a known stop and keeps it only when live
// data comes back. A key that is not 36 characters long needs confirmation.
func (c *Controller) SaveAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		c.renderer.Notify("Please enter an API key")
		return ErrEmptyAPIKey
	}
	if len(key) != uuidKeyLength {
		prompt := fmt.Sprintf("The key length is %d characters. LTA DataMall keys are usually 36 characters (UUID format). Are you sure you want to save?", len(key))
		if !c.confirmer.Confirm(prompt) {
			return ErrCancelled
		}
	}

	old := c.session.APIKey()
	c.session.SetAPIKey(key)

	res, err := c.fetcher.FetchArrivals(ctx, verifyStopCode, "")
	if err != nil {
		c.session.SetAPIKey(old)
		var ue *transit.UpstreamError
		if errors.As(err, &ue) && ue.StatusCode == http.StatusNotFound {
			c.renderer.Notify("Server Not Found: the proxy is not reachable at the configured URL. Live data requires the proxy server.")
		} else {
			c.renderer.Notify("Verification Failed: " + err.Error())
		}
		return fmt.Errorf("verify API key: %w", err)
	}
	if res.Demo {
		c.session.SetAPIKey(old)
		c.renderer.Notify("Verification Failed: The API key seems invalid (Server returned Demo data). Please check your key.")
		return ErrAPIKeyRejected
	}

	if err := c.store.SaveAPIKey(ctx, key); err != nil {
		return err
	}
	c.renderer.Notify("Success! API key verified and saved.")
	c.reloadAfterKeyChange(ctx)
	return nil
}

// ClearAPIKey forgets the user's key after confirmation, reverting to the
// server key or demo data. It reports whether the key was cleared.
func (c *Controller) ClearAPIKey(ctx context.Context) (bool, error) {
	if !c.confirmer.Confirm("Clear your API key? The app will revert to Demo Mode.") {
		return false, nil
	}
	c.session.SetAPIKey("")
	if err := c.store.SaveAPIKey(ctx, ""); err != nil {
		return true, err
	}
	c.reloadAfterKeyChange(ctx)
	return true, nil
}

func (c *Controller) reloadAfterKeyChange(ctx context.Context) {
	c.mu.Lock()
	stop := c.state.StopCode
	c.mu.Unlock()

	if stop != "" {
		_ = c.SubmitSearch(ctx, stop)
	}
	c.RefreshFavorites(ctx)
}
