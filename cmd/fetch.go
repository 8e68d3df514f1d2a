package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bryan-buckman/infowatch/internal/rss"
	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func fetchCmd() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch and parse a single feed",
		ArgsUsage: "<url>",
		Description: `Fetches one feed and prints its channel followed by every post,
each as a JSON object on a single line. Use a tool like jq to process
the output.

Network errors are retried with exponential backoff up to --retries
times. Documents that are not valid RSS are never retried.

Prints all other log messages to stderr.`,
		Flags: append([]cli.Flag{
			&cli.UintFlag{
				Name:  "retries",
				Value: 3,
				Usage: "Retries after a network error",
			},
		}, fetchFlags()...),
		Action: func(ctx *cli.Context) error {
			log.SetOutput(os.Stderr)

			if ctx.NArg() != 1 {
				return errors.New("expected exactly one feed URL")
			}
			feedURL := ctx.Args().First()

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if err := rss.ValidateLink(feedURL, nil); err != nil {
				return err
			}

			fetcher, err := newFetcher(cfg)
			if err != nil {
				return err
			}
			parser := newParser(cfg)

			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			retry := backoff.WithContext(backoff.WithMaxRetries(b, uint64(ctx.Uint("retries"))), ctx.Context)

			var doc *rss.Document
			err = backoff.RetryNotify(func() error {
				body, err := fetcher.Fetch(ctx.Context, feedURL)
				if err != nil {
					return err
				}
				doc, err = parser.Parse(body)
				if err != nil {
					return backoff.Permanent(err)
				}
				return nil
			}, retry, func(err error, wait time.Duration) {
				log.WithError(err).Warnf("Fetch failed, retrying in %s", wait)
			})
			if err != nil {
				return err
			}

			doc.Feed.URL = feedURL
			printStdout(doc.Feed)
			for _, item := range doc.Items {
				item.FeedURL = feedURL
				printStdout(item)
			}
			return nil
		},
	}
}

func printStdout(v interface{}) {
	// Print as single JSON string on a single line
	data, err := json.Marshal(v)
	if err == nil {
		fmt.Println(string(data))
	}
}

