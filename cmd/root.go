package cmd

import (
	"os"

	"github.com/bryan-buckman/infowatch/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "infowatch",
		Usage: "An RSS aggregator that keeps watching the feeds you add",
		Description: `Infowatch loads RSS feeds, keeps their posts in memory and
		polls every feed for new posts on a fixed interval.

		Feeds are added over the HTTP API, imported from OPML or listed in
		the config file. Changes to the aggregator state are streamed to
		clients as server-sent events.

		Flags can generally be set via environment variables, e.g.:

		--listen => INFOWATCH_LISTEN=:8080
		--poll-interval => INFOWATCH_POLL_INTERVAL=5s
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML configuration file",
				EnvVars: []string{"INFOWATCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"INFOWATCH_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "Log as JSON",
				EnvVars: []string{"INFOWATCH_LOG_JSON"},
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
			fetchCmd(),
			validateCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

// Execute runs the app with the process arguments.
func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the config file, then applies any flags set on the
// command line or through the environment.
func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return cfg, err
	}

	if ctx.IsSet("log-level") {
		cfg.LogLevel = ctx.String("log-level")
	}
	if ctx.IsSet("log-json") {
		cfg.LogJSON = ctx.Bool("log-json")
	}
	if ctx.IsSet("listen") {
		cfg.Listen = ctx.String("listen")
	}
	if ctx.IsSet("poll-interval") {
		cfg.PollInterval = ctx.Duration("poll-interval")
	}
	if ctx.IsSet("timeout") {
		cfg.FetchTimeout = ctx.Duration("timeout")
	}
	if ctx.IsSet("proxy") {
		cfg.ProxyURL = ctx.String("proxy")
	}
	if ctx.IsSet("lenient") {
		cfg.LenientItems = ctx.Bool("lenient")
	}
	if ctx.IsSet("feed") {
		cfg.Feeds = append(cfg.Feeds, ctx.StringSlice("feed")...)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, cfg.ApplyLogging()
}

// Flags shared by the commands that fetch feeds.
func fetchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "Timeout for a single feed request",
			EnvVars: []string{"INFOWATCH_FETCH_TIMEOUT"},
		},
		&cli.StringFlag{
			Name:    "proxy",
			Usage:   "allorigins-style relay to fetch feeds through",
			EnvVars: []string{"INFOWATCH_PROXY_URL"},
		},
		&cli.BoolFlag{
			Name:    "lenient",
			Usage:   "Skip items missing a title, description or link instead of rejecting the feed",
			EnvVars: []string{"INFOWATCH_LENIENT_ITEMS"},
		},
	}
}
