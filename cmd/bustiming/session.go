package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"bustiming.sgbus.dev/internal/controller"
	"bustiming.sgbus.dev/internal/directory"
	"bustiming.sgbus.dev/internal/storage"
	"bustiming.sgbus.dev/internal/transit"
	"bustiming.sgbus.dev/internal/utils"
)

const gtfsDownloadRetries = 3

// session is one client run: the local store, the controller and the
// terminal renderer it draws to.
type session struct {
	store *storage.Store
	ctrl  *controller.Controller
	out   *textRenderer
}

// openSession wires the client side for a command. Favorites are only
// printed while loading when showFavorites is set.
func (env *cliEnv) openSession(c *cli.Context, showFavorites bool) (*session, error) {
	cfg := env.cfg

	if err := utils.CreateCacheDirectory(filepath.Dir(cfg.DatabasePath), env.logger); err != nil {
		return nil, fmt.Errorf("failed to prepare %s: %w", cfg.DatabasePath, err)
	}
	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("invalid time zone %q: %w", cfg.TimeZone, err)
	}

	httpClient := utils.NewPooledClient()
	keys := transit.NewSession("")
	client := transit.NewClient(cfg.ProxyURL, httpClient, keys, cfg.Fallback, env.logger)

	var source directory.PageSource = client
	if cfg.GTFSPath != "" {
		gtfsSource, err := directory.LoadGTFSSource(c.Context, cfg.GTFSPath, httpClient, gtfsDownloadRetries)
		if err != nil {
			store.Close()
			return nil, err
		}
		env.logger.Debug("stop directory seeded from GTFS", "path", cfg.GTFSPath, "stops", gtfsSource.Len())
		source = gtfsSource
	}

	out := newTextRenderer(env.stdout)
	out.quiet = !showFavorites

	ctrl := controller.New(controller.Deps{
		Fetcher:   client,
		Finder:    directory.New(source, store, env.logger),
		Store:     store,
		Renderer:  out,
		Confirmer: newLineConfirmer(env.stdin, env.stdout, c.Bool("yes")),
		Session:   keys,
		Logger:    env.logger,
	})
	ctrl.Interval = cfg.RefreshInterval
	ctrl.Location = loc

	if err := ctrl.Load(c.Context); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	return &session{store: store, ctrl: ctrl, out: out}, nil
}

func (s *session) Close() error {
	s.ctrl.Stop()
	return s.store.Close()
}

// interruptContext is cancelled on SIGINT or SIGTERM.
func interruptContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

// shown turns an error the controller already put on screen into a bare
// non-zero exit.
func shown(err error) error {
	if err == nil {
		return nil
	}
	return cli.Exit("", 1)
}
