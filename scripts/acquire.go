// Command acquire runs one acquisition from the command line and prints the
// recorded outcome as JSON. It uses the same configuration as the service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/denisAlshanov/mediagrab/internal/app"
	"github.com/denisAlshanov/mediagrab/internal/config"
	"github.com/denisAlshanov/mediagrab/internal/services/acquisition"
)

func main() {
	cliApp := cli.App{
		Name:  "acquire",
		Usage: "download media from a YouTube link with placeholder fallback",
		Commands: []*cli.Command{{
			Name:      "get",
			Usage:     "acquire one link and print the result",
			ArgsUsage: "LINK",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "mode",
					Aliases: []string{"m"},
					Value:   string(acquisition.ModeVideo),
					Usage:   "video or audio_only",
				},
				&cli.StringFlag{
					Name:  "output",
					Usage: "local directory for artifacts, overrides OUTPUT_DIR",
				},
				&cli.DurationFlag{
					Name:  "timeout",
					Value: 10 * time.Minute,
					Usage: "overall deadline for the acquisition",
				},
			},
			Action: getAction,
		}, {
			Name:      "formats",
			Usage:     "print the classified catalog and the candidate plan",
			ArgsUsage: "LINK",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "mode",
					Aliases: []string{"m"},
					Value:   string(acquisition.ModeVideo),
					Usage:   "video or audio_only",
				},
			},
			Action: formatsAction,
		}},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func getAction(c *cli.Context) error {
	link := c.Args().First()
	if link == "" {
		return cli.Exit("a link is required", 2)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if dir := c.String("output"); dir != "" {
		cfg.Storage.Backend = config.StorageLocal
		cfg.Storage.OutputDir = dir
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := contextWithTimeout(ctx, c.Duration("timeout"))
	defer cancel()

	service, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer service.Close(c.Context)

	record, err := service.Downloader.Grab(ctx, link, c.String("mode"))
	if err != nil {
		return err
	}

	if err := printJSON(record); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s: %s (%s)\n", record.Status, record.Message, humanize.Bytes(uint64(record.SizeBytes)))

	if record.Status == acquisition.StatusHardFailure || record.Status == acquisition.StatusCancelled {
		return cli.Exit("", 1)
	}
	return nil
}

func formatsAction(c *cli.Context) error {
	link := c.Args().First()
	if link == "" {
		return cli.Exit("a link is required", 2)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	service, err := app.New(c.Context, cfg)
	if err != nil {
		return err
	}
	defer service.Close(c.Context)

	preview, err := service.Downloader.Formats(c.Context, link, c.String("mode"))
	if err != nil {
		return err
	}
	return printJSON(preview)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// contextWithTimeout applies timeout unless it is zero.
func contextWithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
