package cmd

import (
	"errors"
	"fmt"

	"github.com/bryan-buckman/infowatch/internal/rss"
	"github.com/urfave/cli/v2"
)

func validateCmd() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a feed URL the way the add-feed form does",
		ArgsUsage: "<url> [known-url...]",
		Description: `Checks that the URL is an absolute http or https URL and that it is
not one of the known URLs given after it. Nothing is fetched.`,
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() < 1 {
				return errors.New("expected a feed URL")
			}
			args := ctx.Args().Slice()
			if err := rss.ValidateLink(args[0], args[1:]); err != nil {
				return err
			}
			fmt.Fprintln(ctx.App.Writer, "ok")
			return nil
		},
	}
}
