package main

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"bustiming.sgbus.dev/internal/models"
	"bustiming.sgbus.dev/internal/proxy"
	"bustiming.sgbus.dev/internal/report"
	"bustiming.sgbus.dev/internal/utils"
)

func yesFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "answer yes to every confirmation",
	}
}

func (env *cliEnv) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the arrivals proxy and serve the static app",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "first port to try"},
			&cli.StringFlag{Name: "static", Usage: "directory of static assets"},
			&cli.BoolFlag{Name: "open", Usage: "open the app in a browser once listening"},
		},
		Action: func(c *cli.Context) error {
			cfg := env.cfg
			if c.IsSet("port") {
				cfg.Port = c.Int("port")
			}
			if c.IsSet("static") {
				cfg.StaticDir = c.String("static")
			}
			if c.IsSet("open") {
				cfg.OpenBrowser = c.Bool("open")
			}

			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

			if err := report.SetupSentry(cfg.SentryDSN, cfg.Env, version); err != nil {
				logger.Warn("sentry disabled", "error", err)
			}
			defer report.FlushSentry()
			report.ConfigureScope(cfg.Env, version)

			ctx, stop := interruptContext(c)
			defer stop()

			app := proxy.New(cfg, logger, utils.NewPooledClient(), version)
			if key := cfg.GetCredential(); key != "" {
				logger.Info("API key loaded", "source", cfg.CredentialSource(), "key", utils.MaskKey(key))
			}
			go app.ConfigService.RefreshCredential(ctx, cfg.FileCredential(), time.Minute)

			if err := app.Serve(ctx); err != nil {
				report.ReportError(err)
				return err
			}
			return nil
		},
	}
}

func (env *cliEnv) arrivalsCommand() *cli.Command {
	return &cli.Command{
		Name:      "arrivals",
		Usage:     "show the arrivals at a stop",
		ArgsUsage: "<stop code> [service]",
		Action: func(c *cli.Context) error {
			code := c.Args().First()
			if code == "" {
				return cli.Exit("a stop code is required", 2)
			}
			s, err := env.openSession(c, false)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.ctrl.SubmitSearch(c.Context, code); err != nil {
				return shown(err)
			}

			services := []string{c.Args().Get(1)}
			if services[0] == "" {
				services = services[:0]
				for _, svc := range s.ctrl.Snapshot().Services {
					services = append(services, svc.ServiceNo)
				}
			}
			for _, svc := range services {
				if err := s.ctrl.SelectService(c.Context, svc); err != nil {
					return shown(err)
				}
			}
			return nil
		},
	}
}

func (env *cliEnv) watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "keep the arrivals of one service on screen",
		ArgsUsage: "<stop code> <service>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return cli.Exit("a stop code and a service are required", 2)
			}
			s, err := env.openSession(c, false)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := interruptContext(c)
			defer stop()

			if err := s.ctrl.SubmitSearch(ctx, c.Args().Get(0)); err != nil {
				return shown(err)
			}
			if err := s.ctrl.SelectService(ctx, c.Args().Get(1)); err != nil {
				return shown(err)
			}
			s.out.printf("Refreshing every %s, Ctrl-C to stop\n", s.ctrl.Interval)
			<-ctx.Done()
			return nil
		},
	}
}

func (env *cliEnv) searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "find stops by code, description or road name",
		ArgsUsage: "<query>",
		Action: func(c *cli.Context) error {
			query := strings.Join(c.Args().Slice(), " ")
			if len([]rune(strings.TrimSpace(query))) < 2 {
				return cli.Exit("the query needs at least 2 characters", 2)
			}
			s, err := env.openSession(c, false)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.ctrl.Suggest(c.Context, query); err != nil {
				return err
			}
			return nil
		},
	}
}

func (env *cliEnv) nearbyCommand() *cli.Command {
	return &cli.Command{
		Name:      "nearby",
		Usage:     "list the stops closest to a location",
		ArgsUsage: "<lat> <lon>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 10, Usage: "number of stops to list"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return cli.Exit("a latitude and a longitude are required", 2)
			}
			lat, err := strconv.ParseFloat(c.Args().Get(0), 64)
			if err != nil {
				return cli.Exit(fmt.Sprintf("invalid latitude %q", c.Args().Get(0)), 2)
			}
			lon, err := strconv.ParseFloat(c.Args().Get(1), 64)
			if err != nil {
				return cli.Exit(fmt.Sprintf("invalid longitude %q", c.Args().Get(1)), 2)
			}

			s, err := env.openSession(c, false)
			if err != nil {
				return err
			}
			defer s.Close()

			s.ctrl.NearbyLimit = c.Int("limit")
			if _, err := s.ctrl.SearchNearby(c.Context, lat, lon); err != nil {
				return shown(err)
			}
			return nil
		},
	}
}

func (env *cliEnv) favoritesCommand() *cli.Command {
	return &cli.Command{
		Name:  "favorites",
		Usage: "manage saved stop and service pairs",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "show favorites with their next arrivals",
				Action: func(c *cli.Context) error {
					s, err := env.openSession(c, false)
					if err != nil {
						return err
					}
					defer s.Close()

					s.out.quiet = false
					if len(s.ctrl.Snapshot().Favorites) == 0 {
						s.out.ShowFavorites(nil)
						return nil
					}
					s.ctrl.RefreshFavorites(c.Context)
					return nil
				},
			},
			{
				Name:      "add",
				Usage:     "save a stop and service",
				ArgsUsage: "<stop code> <service>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 2 {
						return cli.Exit("a stop code and a service are required", 2)
					}
					s, err := env.openSession(c, false)
					if err != nil {
						return err
					}
					defer s.Close()

					stop, svc := c.Args().Get(0), c.Args().Get(1)
					if err := s.ctrl.OpenFavorite(c.Context, stop, svc); err != nil {
						return shown(err)
					}
					if isFavorite(s.ctrl.Snapshot().Favorites, stop, svc) {
						s.out.Notify("Already a favorite")
						return nil
					}
					if _, err := s.ctrl.ToggleFavorite(c.Context); err != nil {
						return err
					}
					s.out.Notify(fmt.Sprintf("Added Bus %s at Stop %s to favorites", svc, stop))
					return nil
				},
			},
			{
				Name:      "remove",
				Usage:     "forget a stop and service",
				ArgsUsage: "<stop code> <service>",
				Flags:     []cli.Flag{yesFlag()},
				Action: func(c *cli.Context) error {
					if c.NArg() < 2 {
						return cli.Exit("a stop code and a service are required", 2)
					}
					s, err := env.openSession(c, false)
					if err != nil {
						return err
					}
					defer s.Close()

					removed, err := s.ctrl.RemoveFavorite(c.Context, c.Args().Get(0), c.Args().Get(1))
					if err != nil {
						return err
					}
					if removed {
						s.out.Notify("Removed")
					}
					return nil
				},
			},
			{
				Name:  "refresh",
				Usage: "keep the favorites board on screen",
				Action: func(c *cli.Context) error {
					s, err := env.openSession(c, true)
					if err != nil {
						return err
					}
					defer s.Close()

					ctx, stop := interruptContext(c)
					defer stop()

					s.ctrl.Start(ctx)
					<-ctx.Done()
					return nil
				},
			},
		},
	}
}

func isFavorite(favs []models.Favorite, stopCode, serviceNo string) bool {
	return slices.ContainsFunc(favs, func(f models.Favorite) bool {
		return f.StopCode == stopCode && f.ServiceNo == serviceNo
	})
}

func (env *cliEnv) recentCommand() *cli.Command {
	return &cli.Command{
		Name:  "recent",
		Usage: "list recently searched stops",
		Action: func(c *cli.Context) error {
			s, err := env.openSession(c, false)
			if err != nil {
				return err
			}
			defer s.Close()

			recent := s.ctrl.Snapshot().Recent
			if len(recent) == 0 {
				s.out.Notify("No recent searches")
				return nil
			}
			for _, code := range recent {
				s.out.printf("  %s\n", code)
			}
			return nil
		},
	}
}

func (env *cliEnv) themeCommand() *cli.Command {
	return &cli.Command{
		Name:      "theme",
		Usage:     "show or toggle the colour theme",
		ArgsUsage: "[toggle]",
		Action: func(c *cli.Context) error {
			s, err := env.openSession(c, false)
			if err != nil {
				return err
			}
			defer s.Close()

			switch c.Args().First() {
			case "":
			case "toggle":
				if _, err := s.ctrl.ToggleTheme(c.Context); err != nil {
					return err
				}
			default:
				return cli.Exit(fmt.Sprintf("unknown theme action %q", c.Args().First()), 2)
			}
			s.out.printf("Theme: %s\n", s.out.Theme())
			return nil
		},
	}
}

func (env *cliEnv) keyCommand() *cli.Command {
	return &cli.Command{
		Name:  "key",
		Usage: "manage your personal API key",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "verify and save an API key",
				ArgsUsage: "<key>",
				Flags:     []cli.Flag{yesFlag()},
				Action: func(c *cli.Context) error {
					s, err := env.openSession(c, false)
					if err != nil {
						return err
					}
					defer s.Close()

					return shown(s.ctrl.SaveAPIKey(c.Context, c.Args().First()))
				},
			},
			{
				Name:  "clear",
				Usage: "forget the saved API key",
				Flags: []cli.Flag{yesFlag()},
				Action: func(c *cli.Context) error {
					s, err := env.openSession(c, false)
					if err != nil {
						return err
					}
					defer s.Close()

					cleared, err := s.ctrl.ClearAPIKey(c.Context)
					if err != nil {
						return err
					}
					if cleared {
						s.out.Notify("API key cleared")
					}
					return nil
				},
			},
		},
	}
}
