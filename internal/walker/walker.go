package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/deidaraiorek/codeindex/internal/errdefs"
)

type Options struct {
	Directories []string
	// Extensions is the allow-list in ".ext" form. "" or "." selects files
	// without extension. An empty list accepts every file.
	Extensions []string
	// DirExcludes skips every directory whose path contains one of these
	// strings, compared case-insensitively.
	DirExcludes []string
	Logger      *slog.Logger
}

type Walker struct {
	dirs       []string
	extensions map[string]struct{}
	excludes   []string
	excluded   map[string]int
	logger     *slog.Logger
}

func New(opts Options) *Walker {
	w := &Walker{
		dirs:     opts.Directories,
		excluded: make(map[string]int),
		logger:   opts.Logger,
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if len(opts.Extensions) > 0 {
		w.extensions = make(map[string]struct{}, len(opts.Extensions))
		for _, ext := range opts.Extensions {
			w.extensions[NormalizeExtension(ext)] = struct{}{}
		}
	}
	for _, ex := range opts.DirExcludes {
		if ex = strings.TrimSpace(ex); ex != "" {
			w.excludes = append(w.excludes, strings.ToLower(ex))
		}
	}
	return w
}

// NormalizeExtension turns "cpp", "*.cpp" and ".CPP" into ".cpp". "" and
// "." stand for no extension and become "".
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	ext = strings.TrimPrefix(ext, "*")
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func (w *Walker) isExcludedDir(path string) bool {
	lower := strings.ToLower(path)
	for _, ex := range w.excludes {
		if strings.Contains(lower, ex) {
			return true
		}
	}
	return false
}

// Accepts reports whether a file with this name passes the extension
// allow-list.
func (w *Walker) Accepts(name string) bool {
	if w.extensions == nil {
		return true
	}
	_, ok := w.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Walk calls fn for every accepted file below the configured directories.
// Unreadable subdirectories are logged and skipped. A directory that does
// not exist yields ErrLocationUnreachable.
func (w *Walker) Walk(ctx context.Context, fn func(path string, d fs.DirEntry) error) error {
	for _, root := range w.dirs {
		if _, err := os.Stat(root); err != nil {
			return fmt.Errorf("%s: %w: %w", root, errdefs.ErrLocationUnreachable, err)
		}

		w.logger.Debug("walking directory", "path", root)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				w.logger.Warn("skipping unreadable path", "path", path, "error", err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				if w.isExcludedDir(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if !w.Accepts(d.Name()) {
				w.excluded[strings.ToLower(filepath.Ext(d.Name()))]++
				return nil
			}
			return fn(path, d)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}
	return nil
}

// Excluded returns the number of files skipped per extension.
func (w *Walker) Excluded() map[string]int {
	return w.excluded
}
