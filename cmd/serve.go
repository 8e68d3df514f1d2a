package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryan-buckman/infowatch/internal/config"
	"github.com/bryan-buckman/infowatch/internal/engine"
	"github.com/bryan-buckman/infowatch/internal/rss"
	"github.com/bryan-buckman/infowatch/internal/server"
	"github.com/bryan-buckman/infowatch/internal/state"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the infowatch API and poll feeds",
		Description: `Starts the HTTP API and the feed poller.

Feeds listed in the config file or passed with --feed are added on start.
Every feed is polled again once the previous round has finished and the
poll interval has passed.`,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "Address to listen on",
				EnvVars: []string{"INFOWATCH_LISTEN"},
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "Delay between the end of one poll round and the start of the next",
				EnvVars: []string{"INFOWATCH_POLL_INTERVAL"},
			},
			&cli.StringSliceFlag{
				Name:    "feed",
				Aliases: []string{"f"},
				Usage:   "Feed URL to add on start, can be repeated",
				EnvVars: []string{"INFOWATCH_FEEDS"},
			},
		}, fetchFlags()...),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			store := state.New()
			store.Subscribe(server.LogBinder())

			eng, err := newEngine(cfg, store)
			if err != nil {
				return err
			}

			for _, feedURL := range cfg.Feeds {
				if err := eng.Submit(runCtx, feedURL); err != nil {
					log.WithError(err).Warnf("Could not add feed %s", feedURL)
				}
			}

			eng.Start(runCtx)
			defer eng.Stop()

			srv := server.New(store, eng)
			errChan := make(chan error, 1)
			go func() {
				errChan <- srv.Start(cfg.Listen)
			}()

			select {
			case err := <-errChan:
				return err
			case <-runCtx.Done():
			}

			log.Info("Gracefully shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info("Done!")
			return nil
		},
	}
}

func newFetcher(cfg config.Config) (*rss.Fetcher, error) {
	return rss.NewFetcher(rss.FetcherConfig{
		ProxyURL:  cfg.ProxyURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.FetchTimeout,
	})
}

func newParser(cfg config.Config) *rss.Parser {
	p := rss.NewParser()
	p.Lenient = cfg.LenientItems
	return p
}

func newEngine(cfg config.Config, store *state.Store) (*engine.Engine, error) {
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, err
	}
	return engine.New(store, fetcher, newParser(cfg), engine.WithInterval(cfg.PollInterval)), nil
}
