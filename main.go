package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/h5media/podingest/backend"
	"github.com/urfave/cli"
	"github.com/vaughan0/go-ini"
	log "gopkg.in/inconshreveable/log15.v2"
)

const version = "0.1.0"

func main() {
	app := cli.NewApp()
	app.Name = "podingest"
	app.Usage = "Podcast RSS feed ingester"
	app.Version = version

	configFlag := cli.StringFlag{Name: "config, c", Value: "podingest.conf", Usage: "path to config file"}

	app.Commands = []cli.Command{
		{
			Name:        "ingest",
			Usage:       "download and ingest feeds",
			ArgsUsage:   "URL...",
			Description: "download and ingest one or more podcast feeds concurrently",
			Flags: []cli.Flag{
				configFlag,
				cli.IntFlag{Name: "user, u", Usage: "owning user ID (overrides ingest.user_id)"},
			},
			Action: Ingest,
		},
		{
			Name:        "ingest-file",
			Usage:       "ingest a feed document from disk",
			ArgsUsage:   "PATH",
			Description: "ingest a feed document read from PATH attributed to --url",
			Flags: []cli.Flag{
				configFlag,
				cli.StringFlag{Name: "url", Usage: "feed URL the document was downloaded from"},
				cli.IntFlag{Name: "user, u", Usage: "owning user ID (overrides ingest.user_id)"},
			},
			Action: IngestFile,
		},
		{
			Name:        "refresh",
			Usage:       "re-ingest all stored podcasts",
			Description: "re-ingest every stored podcast once, or forever with --interval",
			Flags: []cli.Flag{
				configFlag,
				cli.DurationFlag{Name: "interval, i", Usage: "repeat every interval until interrupted"},
			},
			Action: Refresh,
		},
		{
			Name:        "migrate",
			Usage:       "apply schema migrations",
			Description: "apply pending schema migrations for the configured database",
			Flags:       []cli.Flag{configFlag},
			Action:      Migrate,
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type environment struct {
	conf         ini.File
	logger       log.Logger
	ingestConfig backend.IngesterConfig
}

func loadEnvironment(c *cli.Context) (*environment, error) {
	conf, err := backend.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	logger, err := backend.NewLogger(conf)
	if err != nil {
		return nil, err
	}

	ingestConfig, err := backend.LoadIngestConfig(conf)
	if err != nil {
		return nil, err
	}

	if c.IsSet("user") {
		ingestConfig.OwnerID = int32(c.Int("user"))
	}

	return &environment{conf: conf, logger: logger, ingestConfig: ingestConfig}, nil
}

func interruptibleContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printOutcome(o backend.FeedOutcome) {
	if o.Err != nil {
		fmt.Printf("%s: failed: %v\n", o.FeedURL, o.Err)
	} else {
		fmt.Printf("%s: podcast %d, %d episodes inserted, %d updated\n",
			o.FeedURL, o.Result.PodcastID, o.Result.EpisodesInserted, o.Result.EpisodesUpdated)
	}

	if o.Result == nil {
		return
	}
	for _, ec := range o.Result.Errors.Summary() {
		fmt.Printf("  %6d  %s\n", ec.Count, ec.Message)
	}
}

func Ingest(c *cli.Context) error {
	if c.NArg() == 0 {
		cli.ShowCommandHelp(c, c.Command.Name)
		return cli.NewExitError("", 1)
	}

	env, err := loadEnvironment(c)
	if err != nil {
		return err
	}

	ctx, cancel := interruptibleContext()
	defer cancel()

	store, closeStore, err := backend.OpenStore(ctx, env.conf, env.logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ingester := backend.NewIngester(store, env.ingestConfig, env.logger.New("module", "ingester"))
	outcomes := ingester.IngestAll(ctx, c.Args(), env.ingestConfig.OwnerID)

	failed := 0
	for _, o := range outcomes {
		printOutcome(o)
		if o.Err != nil {
			failed++
		}
	}

	if failed > 0 {
		return cli.NewExitError(fmt.Sprintf("%d of %d feeds failed", failed, len(outcomes)), 1)
	}
	return nil
}

func IngestFile(c *cli.Context) error {
	if c.NArg() != 1 || c.String("url") == "" {
		cli.ShowCommandHelp(c, c.Command.Name)
		return cli.NewExitError("", 1)
	}

	env, err := loadEnvironment(c)
	if err != nil {
		return err
	}

	body, err := os.ReadFile(c.Args().First())
	if err != nil {
		return err
	}

	ctx, cancel := interruptibleContext()
	defer cancel()

	store, closeStore, err := backend.OpenStore(ctx, env.conf, env.logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ingester := backend.NewIngester(store, env.ingestConfig, env.logger.New("module", "ingester"))
	feedURL := c.String("url")
	result, err := ingester.IngestBytes(ctx, feedURL, body, env.ingestConfig.OwnerID)
	printOutcome(backend.FeedOutcome{FeedURL: feedURL, Result: result, Err: err})
	if err != nil {
		return cli.NewExitError("", 1)
	}

	return nil
}

func Refresh(c *cli.Context) error {
	env, err := loadEnvironment(c)
	if err != nil {
		return err
	}

	ctx, cancel := interruptibleContext()
	defer cancel()

	store, closeStore, err := backend.OpenStore(ctx, env.conf, env.logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ingester := backend.NewIngester(store, env.ingestConfig, env.logger.New("module", "ingester"))
	refresher := backend.NewRefresher(store, ingester, env.ingestConfig.OwnerID, env.logger.New("module", "refresher"))

	if interval := c.Duration("interval"); interval > 0 {
		err = refresher.KeepFeedsFresh(ctx, interval)
		if err == context.Canceled {
			return nil
		}
		return err
	}

	outcomes, err := refresher.RefreshAll(ctx)
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		printOutcome(o)
	}

	return nil
}

func Migrate(c *cli.Context) error {
	conf, err := backend.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}

	version, err := backend.Migrate(conf)
	if err != nil {
		return err
	}

	fmt.Println("Schema version:", version)
	return nil
}
