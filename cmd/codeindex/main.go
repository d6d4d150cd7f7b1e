package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/deidaraiorek/codeindex/internal/config"
	"github.com/deidaraiorek/codeindex/internal/errdefs"
	"github.com/deidaraiorek/codeindex/internal/kwcache"
	"github.com/deidaraiorek/codeindex/internal/search"
)

// app is the state shared by all commands, set up in the Before hook.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	logFile *os.File
	engine  *search.Engine
}

func (a *app) before(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load config: %v", err), 2)
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
		if err := cfg.Validate(); err != nil {
			return cli.Exit(err.Error(), 2)
		}
	}
	a.cfg = cfg

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		a.logFile, err = os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to open log file: %v", err), 2)
		}
		out = io.MultiWriter(os.Stderr, a.logFile)
	}
	a.logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(a.logger)

	common, err := search.LoadCommonKeywords(cfg.CommonKeywords)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	a.engine = search.NewEngine(
		search.WithCache(kwcache.New()),
		search.WithCommonKeywords(common),
		search.WithThreshold(cfg.Search.CommonKeywordThreshold),
		search.WithWorkers(cfg.Search.VerifyWorkers),
		search.WithLogger(a.logger),
	)
	return nil
}

func (a *app) after(*cli.Context) error {
	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}

// selected returns the configured indexes named by --index, or all of them.
func (a *app) selected(c *cli.Context) ([]config.IndexConfig, error) {
	names := c.StringSlice("index")
	if len(names) == 0 {
		return a.cfg.Indexes, nil
	}
	result := make([]config.IndexConfig, 0, len(names))
	for _, name := range names {
		idx, ok := a.cfg.Index(name)
		if !ok {
			return nil, cli.Exit(fmt.Sprintf("unknown index %q", name), 2)
		}
		result = append(result, idx)
	}
	return result, nil
}

// failure turns err into an exit error with a message the user can act on.
func failure(err error) error {
	if err == nil {
		return nil
	}
	if errdefs.Classify(err) == errdefs.KindOther {
		return cli.Exit(err.Error(), 1)
	}
	return cli.Exit(fmt.Sprintf("%s (%v)", errdefs.Message(err), err), 1)
}

func main() {
	a := &app{}
	indexFlag := &cli.StringSliceFlag{
		Name:    "index",
		Aliases: []string{"i"},
		Usage:   "Restrict the command to the named index (repeatable)",
	}

	cliApp := &cli.App{
		Name:  "codeindex",
		Usage: "Keyword index and search for source code trees",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   config.DefaultPath,
				EnvVars: []string{"CODEINDEX_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
		},
		Before: a.before,
		After:  a.after,
		Commands: []*cli.Command{
			{
				Name:   "update",
				Usage:  "Bring the indexes up to date with their directories",
				Flags:  []cli.Flag{indexFlag},
				Action: a.update,
			},
			{
				Name:      "search",
				Usage:     "Search file contents",
				ArgsUsage: "<query>",
				Flags:     append(searchFlags(), indexFlag, &cli.BoolFlag{Name: "exclude-comments", Usage: "Ignore matches inside comments"}),
				Action:    a.search,
			},
			{
				Name:      "files",
				Usage:     "Search file names, e.g. 'test*.cpp'",
				ArgsUsage: "<name>",
				Flags:     append(searchFlags(), indexFlag),
				Action:    a.files,
			},
			{
				Name:   "stats",
				Usage:  "Show index statistics",
				Flags:  []cli.Flag{indexFlag},
				Action: a.stats,
			},
			{
				Name:  "serve",
				Usage: "Serve the search API over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address",
						Value: "localhost:8080",
					},
				},
				Action: a.serve,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "folders",
			Usage: "Comma separated folder filter, '-' excludes (e.g. 'src,-test')",
		},
		&cli.StringFlag{
			Name:  "extensions",
			Usage: "Comma separated extension filter, '-' excludes (e.g. 'cpp,h')",
		},
		&cli.BoolFlag{
			Name:  "case",
			Usage: "Case sensitive search",
		},
		&cli.BoolFlag{
			Name:  "report",
			Usage: "Print the performance report of each search",
		},
	}
}
