package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/deidaraiorek/codeindex/internal/config"
	"github.com/deidaraiorek/codeindex/internal/indexer"
	"github.com/deidaraiorek/codeindex/internal/query"
	"github.com/deidaraiorek/codeindex/internal/search"
	"github.com/deidaraiorek/codeindex/internal/server"
	"github.com/deidaraiorek/codeindex/internal/storage"
)

func (a *app) update(c *cli.Context) error {
	indexes, err := a.selected(c)
	if err != nil {
		return err
	}

	for _, idx := range indexes {
		if !idx.GeneratesIndex() {
			a.logger.Info("index is not generated, skipping", "index", idx.DisplayName())
			continue
		}
		stats, err := a.updateIndex(c.Context, idx)
		if err != nil {
			return failure(fmt.Errorf("%s: %w", idx.DisplayName(), err))
		}
		fmt.Fprintf(c.App.Writer, "%s: %s (%v)\n", idx.DisplayName(), stats, stats.Duration.Round(time.Millisecond))
	}
	return nil
}

func (a *app) updateIndex(ctx context.Context, idx config.IndexConfig) (indexer.Statistics, error) {
	db, err := storage.Open(idx.IndexDB)
	if err != nil {
		return indexer.Statistics{}, err
	}
	defer db.Close()

	return indexer.New(db, indexer.WithLogger(a.logger.With("index", idx.DisplayName()))).Update(ctx, indexer.Job{
		Directories:    idx.Directories,
		Extensions:     idx.Extensions,
		DirExcludes:    idx.DirExcludes,
		IndexContent:   idx.IsContentIndexed(),
		IndexFileNames: idx.IsFileNameIndexed(),
	})
}

func (a *app) params(c *cli.Context) (query.Params, error) {
	if c.NArg() == 0 {
		return query.Params{}, cli.Exit("missing search string", 2)
	}
	reg, err := a.cfg.CommentRegistry()
	if err != nil {
		return query.Params{}, err
	}
	return query.Params{
		Search:          strings.Join(c.Args().Slice(), " "),
		FolderFilter:    c.String("folders"),
		ExtensionFilter: c.String("extensions"),
		CaseSensitive:   c.Bool("case"),
		ExcludeComments: c.Bool("exclude-comments"),
		CommentRules:    reg.Lookup,
	}, nil
}

// run executes fn for every selected index and prints the matches.
func (a *app) run(c *cli.Context, fn func(context.Context, *search.Methods) (search.Result, error)) error {
	indexes, err := a.selected(c)
	if err != nil {
		return err
	}

	for _, idx := range indexes {
		m := search.NewMethods(a.engine, idx)
		res, err := fn(c.Context, m)
		if err != nil {
			return failure(fmt.Errorf("%s: %w", idx.DisplayName(), err))
		}
		for _, path := range res.Matches {
			fmt.Fprintln(c.App.Writer, path)
		}
		if c.Bool("report") && res.Report != nil {
			fmt.Fprintf(c.App.ErrWriter, "%s:\n%s\n", idx.DisplayName(), res.Report)
		}
	}
	return nil
}

func (a *app) search(c *cli.Context) error {
	p, err := a.params(c)
	if err != nil {
		return err
	}
	q, err := query.NewContentQuery(p)
	if err != nil {
		return failure(err)
	}
	return a.run(c, func(ctx context.Context, m *search.Methods) (search.Result, error) {
		return m.SearchContent(ctx, q)
	})
}

func (a *app) files(c *cli.Context) error {
	p, err := a.params(c)
	if err != nil {
		return err
	}
	q, err := query.NewFileQuery(p)
	if err != nil {
		return failure(err)
	}
	return a.run(c, func(ctx context.Context, m *search.Methods) (search.Result, error) {
		return m.SearchFiles(ctx, q)
	})
}

func (a *app) stats(c *cli.Context) error {
	indexes, err := a.selected(c)
	if err != nil {
		return err
	}

	w := c.App.Writer
	for _, idx := range indexes {
		if !idx.GeneratesIndex() {
			continue
		}
		stats, err := search.NewMethods(a.engine, idx).Stats(c.Context)
		if err != nil {
			return failure(fmt.Errorf("%s: %w", idx.DisplayName(), err))
		}
		fmt.Fprintf(w, "%s (%s)\n", idx.DisplayName(), idx.IndexDB)
		fmt.Fprintf(w, "  documents:    %d (%d in index)\n", stats.Documents, stats.DocumentsInIndex)
		fmt.Fprintf(w, "  keywords:     %d\n", stats.Keywords)
		fmt.Fprintf(w, "  associations: %d\n", stats.Associations)
		fmt.Fprintf(w, "  file names:   %d\n", stats.FileNames)
		for _, ext := range stats.ExcludedExtensions {
			name := ext.Extension
			if name == "" {
				name = "(none)"
			}
			fmt.Fprintf(w, "  excluded %s: %d\n", name, ext.Count)
		}
	}
	return nil
}

func (a *app) serve(c *cli.Context) error {
	srv, err := server.New(a.cfg, func(idx config.IndexConfig) *search.Methods {
		return search.NewMethods(a.engine, idx)
	}, a.logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.String("addr"),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving search API", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-c.Context.Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
