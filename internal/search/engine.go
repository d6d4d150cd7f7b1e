package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/deidaraiorek/codeindex/internal/errdefs"
	"github.com/deidaraiorek/codeindex/internal/kwcache"
	"github.com/deidaraiorek/codeindex/internal/query"
	"github.com/deidaraiorek/codeindex/internal/storage"
	"github.com/deidaraiorek/codeindex/internal/textload"
)

const (
	DefaultThreshold = 100
	DefaultWorkers   = 4
)

// Result lists the matching files sorted by path.
type Result struct {
	Matches []string
	Report  *PerformanceReport
}

type Engine struct {
	cache     *kwcache.Cache
	common    CommonKeywords
	threshold int
	workers   int
	loader    *textload.Loader
	logger    *slog.Logger
}

type Option func(*Engine)

func WithCache(c *kwcache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

func WithCommonKeywords(ck CommonKeywords) Option {
	return func(e *Engine) { e.common = ck }
}

// WithThreshold sets the number of candidate documents below which common
// keywords are no longer used to narrow the result.
func WithThreshold(n int) Option {
	return func(e *Engine) { e.threshold = n }
}

// WithWorkers limits the number of files verified concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

func WithLoader(l *textload.Loader) Option {
	return func(e *Engine) { e.loader = l }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		threshold: DefaultThreshold,
		workers:   DefaultWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = kwcache.New()
	}
	if e.common == nil {
		e.common = CommonKeywords{}
	}
	if e.loader == nil {
		e.loader = textload.Default
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.workers < 1 {
		e.workers = 1
	}
	return e
}

// keywordGroup holds the keywords one query token resolved to.
type keywordGroup struct {
	token string
	names []string
	ids   []int64
}

// isCancelled reports whether err only says that the search was stopped.
func isCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errdefs.Classify(err) == errdefs.KindCancelled
}

// SearchContent returns the files of db matching q. A cancelled or
// interrupted search yields an empty result without error.
func (e *Engine) SearchContent(ctx context.Context, db *storage.IndexDB, q *query.ContentQuery) (Result, error) {
	report := NewPerformanceReport()
	matches, err := e.searchContent(ctx, db, q, report)
	report.Done()
	e.logger.Debug("content search finished", "index", db.Location(), "search", q.Search(),
		"matches", len(matches), "report", report)

	if err != nil {
		if isCancelled(ctx, err) {
			return Result{Report: report}, nil
		}
		return Result{Report: report}, err
	}
	return Result{Matches: matches, Report: report}, nil
}

func (e *Engine) searchContent(ctx context.Context, db *storage.IndexDB, q *query.ContentQuery, report *PerformanceReport) ([]string, error) {
	report.NewAction("Keyword lookup")
	if err := e.cache.Invalidate(db.Location()); err != nil {
		e.logger.Debug("keyword cache invalidated", "index", db.Location(), "error", err)
	}

	var groups []keywordGroup
	for _, token := range q.IndexedTokens() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", errdefs.ErrCancelled, err)
		}
		kws, err := e.lookup(ctx, db, token)
		if err != nil {
			return nil, err
		}
		report.AddData("String '%s' results in %d keyword matches", token, len(kws))
		if len(kws) == 0 {
			return nil, nil
		}
		g := keywordGroup{token: token, names: make([]string, len(kws)), ids: make([]int64, len(kws))}
		for i, kw := range kws {
			g.names[i], g.ids[i] = kw.Name, kw.ID
		}
		groups = append(groups, g)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrCancelled, err)
	}

	report.NewAction("Intersect documents")
	good, bad := e.qualify(groups)
	docIDs, err := e.intersect(ctx, db, good, bad, report)
	if err != nil || len(docIDs) == 0 {
		return nil, err
	}

	report.NewAction("Resolve paths")
	paths, err := db.Paths(ctx, docIDs)
	if err != nil {
		return nil, err
	}
	candidates := slices.DeleteFunc(paths, func(p string) bool { return !q.MatchesFilters(p) })
	report.AddData("%d of %d documents pass the filters", len(candidates), len(docIDs))

	if !q.RequiresVerification() {
		return candidates, nil
	}
	report.NewAction("Verify content")
	return e.verify(ctx, q, candidates)
}

func (e *Engine) lookup(ctx context.Context, db *storage.IndexDB, token string) ([]storage.Keyword, error) {
	if kws, ok := e.cache.Get(db.Location(), token); ok {
		return kws, nil
	}
	kws, err := db.LookupKeywords(ctx, token)
	if err != nil {
		return nil, err
	}
	e.cache.Put(db.Location(), token, kws)
	return kws, nil
}

// rank returns the lowest common keyword rank among the keywords of g. A
// wildcard token is common as soon as one of its keywords is.
func (e *Engine) rank(g keywordGroup) (int, bool) {
	best, found := 0, false
	for _, name := range g.names {
		if r, ok := e.common.Rank(name); ok && (!found || r < best) {
			best, found = r, true
		}
	}
	return best, found
}

// qualify splits groups into good keywords, longest token first, and
// common keywords, most common first.
func (e *Engine) qualify(groups []keywordGroup) (good, bad []keywordGroup) {
	ranks := make(map[string]int)
	for _, g := range groups {
		if r, ok := e.rank(g); ok {
			ranks[g.token] = r
			bad = append(bad, g)
		} else {
			good = append(good, g)
		}
	}
	slices.SortStableFunc(good, func(a, b keywordGroup) int {
		return cmp.Compare(len(b.token), len(a.token))
	})
	slices.SortStableFunc(bad, func(a, b keywordGroup) int {
		return cmp.Compare(ranks[a.token], ranks[b.token])
	})
	return good, bad
}

// intersect narrows the document set keyword by keyword. Common keywords are
// only consulted while at least threshold documents remain.
func (e *Engine) intersect(ctx context.Context, db *storage.IndexDB, good, bad []keywordGroup, report *PerformanceReport) ([]int64, error) {
	var (
		result  []int64
		started bool
	)
	narrow := func(g keywordGroup) error {
		ids, err := db.DocumentIDs(ctx, g.ids)
		if err != nil {
			return err
		}
		if started {
			result = Intersect(result, ids)
		} else {
			result, started = ids, true
		}
		return nil
	}

	for _, g := range good {
		if err := narrow(g); err != nil {
			return nil, err
		}
		if len(result) == 0 {
			return nil, nil
		}
	}
	for _, g := range bad {
		if started && len(result) < e.threshold {
			report.AddData("Search stopped with common keyword '%s' because %d matches are few enough", g.token, len(result))
			break
		}
		if started {
			report.AddData("Common keyword '%s' used because %d matches are too much", g.token, len(result))
		}
		if err := narrow(g); err != nil {
			return nil, err
		}
		if len(result) == 0 {
			return nil, nil
		}
	}
	report.AddData("%d candidate documents", len(result))
	return result, nil
}

// verify reads the candidates concurrently and keeps those with a match. A
// file which can no longer be read is dropped.
func (e *Engine) verify(ctx context.Context, q *query.ContentQuery, paths []string) ([]string, error) {
	found := make([]bool, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, _, err := e.loader.ReadText(path)
			if err != nil {
				e.logger.Debug("skipping unreadable file", "path", path, "error", err)
				return nil
			}
			found[i] = q.HasMatch(text, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrCancelled, err)
	}

	var result []string
	for i, path := range paths {
		if found[i] {
			result = append(result, path)
		}
	}
	return result, nil
}

// SearchFiles returns the files of db whose name matches q. The index
// compares names case-insensitively, so case sensitive queries are
// filtered again here.
func (e *Engine) SearchFiles(ctx context.Context, db *storage.IndexDB, q *query.FileQuery) (Result, error) {
	report := NewPerformanceReport()
	report.NewAction("File name lookup")

	paths, err := db.FindFileNames(ctx, storage.FileNameQuery{
		Name:    q.Name(),
		Include: q.ExtensionFilter().Includes(),
		Exclude: q.ExtensionFilter().Excludes(),
	})
	if err != nil {
		return cancelledResult(ctx, err, report)
	}
	report.AddData("Name '%s' results in %d files", q.Name(), len(paths))

	report.NewAction("Filter")
	matches := slices.DeleteFunc(paths, func(p string) bool {
		if q.CaseSensitive() && !q.MatchesName(baseName(p)) {
			return true
		}
		return !q.MatchesFolder(p)
	})
	report.Done()
	e.logger.Debug("file search finished", "index", db.Location(), "search", q.Search(),
		"matches", len(matches), "report", report)
	return Result{Matches: matches, Report: report}, nil
}

// cancelledResult closes report and drops err if it only reports a
// cancellation.
func cancelledResult(ctx context.Context, err error, report *PerformanceReport) (Result, error) {
	report.Done()
	if isCancelled(ctx, err) {
		return Result{Report: report}, nil
	}
	return Result{Report: report}, err
}
