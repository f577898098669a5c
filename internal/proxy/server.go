package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"
)

const shutdownTimeout = 5 * time.Second

// Listen binds the first free port among candidates.
func Listen(candidates []int, logger *slog.Logger) (net.Listener, error) {
	if len(candidates) == 0 {
		return nil, errors.New("no ports to try")
	}
	for _, port := range candidates {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return ln, nil
		}
		logger.Warn("port unavailable, trying next", "port", port, "error", err)
	}
	return nil, fmt.Errorf("no free port in %d-%d", candidates[0], candidates[len(candidates)-1])
}

// Serve installs the offline cache, binds a port and serves until ctx is
// cancelled, then shuts down gracefully.
func (app *Application) Serve(ctx context.Context) error {
	cfg := app.ConfigService.Config

	if err := app.Worker.Install(ctx); err != nil {
		app.Logger.Warn("offline cache not installed", "error", err)
	} else {
		app.Worker.Activate()
	}

	ln, err := Listen(cfg.PortCandidates(), app.Logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      app.Routes(ctx),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.Logger.Handler(), slog.LevelError),
	}

	port := ln.Addr().(*net.TCPAddr).Port
	url := fmt.Sprintf("http://localhost:%d", port)
	app.Logger.Info("starting server", "addr", ln.Addr().String(), "env", cfg.Env, "url", url)
	if cfg.GetCredential() == "" {
		app.Logger.Warn("LTA_API_KEY not configured; arrival requests need an AccountKey header")
	}

	if cfg.OpenBrowser {
		go func() {
			if err := OpenBrowser(url); err != nil {
				app.Logger.Warn("could not open browser", "url", url, "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	app.Logger.Info("shutting down server", "addr", ln.Addr().String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// OpenBrowser opens url with the platform's default handler.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}
