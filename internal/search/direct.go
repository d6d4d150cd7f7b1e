package search

import (
	"context"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/deidaraiorek/codeindex/internal/query"
	"github.com/deidaraiorek/codeindex/internal/walker"
)

// Location is a set of directories searched without an index.
type Location struct {
	Directories []string
	Extensions  []string
	DirExcludes []string
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (e *Engine) walk(ctx context.Context, loc Location, report *PerformanceReport, keep func(path string) bool) (Result, error) {
	w := walker.New(walker.Options{
		Directories: loc.Directories,
		Extensions:  loc.Extensions,
		DirExcludes: loc.DirExcludes,
		Logger:      e.logger,
	})

	seen := make(map[string]struct{})
	var matches []string
	scanned := 0
	err := w.Walk(ctx, func(path string, _ fs.DirEntry) error {
		if _, ok := seen[path]; ok {
			return nil
		}
		seen[path] = struct{}{}
		scanned++
		if keep(path) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return cancelledResult(ctx, err, report)
	}

	report.AddData("%d of %d files match", len(matches), scanned)
	report.Done()
	slices.Sort(matches)
	return Result{Matches: matches, Report: report}, nil
}

// SearchContentDirect reads every file of loc passing the query's filters
// and keeps those with a match.
func (e *Engine) SearchContentDirect(ctx context.Context, loc Location, q *query.ContentQuery) (Result, error) {
	report := NewPerformanceReport()
	report.NewAction("Direct content search")

	res, err := e.walk(ctx, loc, report, func(path string) bool {
		if !q.MatchesFilters(path) {
			return false
		}
		text, _, err := e.loader.ReadText(path)
		if err != nil {
			e.logger.Debug("skipping unreadable file", "path", path, "error", err)
			return false
		}
		return q.HasMatch(text, path)
	})
	e.logger.Debug("direct content search finished", "search", q.Search(), "matches", len(res.Matches), "report", report)
	return res, err
}

// SearchFilesDirect compares the names of all files of loc with q.
func (e *Engine) SearchFilesDirect(ctx context.Context, loc Location, q *query.FileQuery) (Result, error) {
	report := NewPerformanceReport()
	report.NewAction("Direct file search")

	res, err := e.walk(ctx, loc, report, q.MatchesPath)
	e.logger.Debug("direct file search finished", "search", q.Search(), "matches", len(res.Matches), "report", report)
	return res, err
}
