package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"bustiming.sgbus.dev/internal/config"

	_ "time/tzdata"
)

const version = "1.0.0"

// cliEnv is what every command shares: the resolved configuration, the
// logger for client commands and the terminal streams.
type cliEnv struct {
	cfg    *config.Config
	logger *slog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	env := &cliEnv{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}

	if err := newApp(env).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp(env *cliEnv) *cli.App {
	return &cli.App{
		Name:        "bustiming",
		Usage:       "Singapore bus arrival times",
		Description: "Runs the arrivals proxy and queries it from the terminal",
		Version:     version,
		Writer:      env.stdout,
		ErrWriter:   env.stderr,

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML configuration file",
				EnvVars: []string{"BUSTIMING_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "proxy-url",
				Usage: "base URL of the arrivals proxy",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "path of the local SQLite database",
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "environment (development|staging|production|testing)",
			},
			&cli.StringFlag{
				Name:  "fallback",
				Usage: "when to answer with demo data (always|credential-only|never)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log at debug level",
			},
		},
		Before: env.load,

		Commands: []*cli.Command{
			env.serveCommand(),
			env.arrivalsCommand(),
			env.watchCommand(),
			env.searchCommand(),
			env.nearbyCommand(),
			env.favoritesCommand(),
			env.recentCommand(),
			env.themeCommand(),
			env.keyCommand(),
		},
	}
}

// load resolves the configuration once the global flags are parsed. Flags
// win over the file and the environment.
func (env *cliEnv) load(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}

	if c.IsSet("proxy-url") {
		cfg.ProxyURL = c.String("proxy-url")
	}
	if c.IsSet("db") {
		cfg.DatabasePath = c.String("db")
	}
	if c.IsSet("env") {
		cfg.Env = c.String("env")
	}
	if c.IsSet("fallback") {
		policy, err := config.ParseFallbackPolicy(c.String("fallback"))
		if err != nil {
			return err
		}
		cfg.Fallback = policy
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	level := slog.LevelWarn
	if c.Bool("debug") {
		level = slog.LevelDebug
	}
	env.cfg = cfg
	env.logger = slog.New(slog.NewTextHandler(env.stderr, &slog.HandlerOptions{Level: level}))
	return nil
}
