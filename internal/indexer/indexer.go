package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/deidaraiorek/codeindex/internal/errdefs"
	"github.com/deidaraiorek/codeindex/internal/storage"
	"github.com/deidaraiorek/codeindex/internal/textload"
	"github.com/deidaraiorek/codeindex/internal/tokenizer"
	"github.com/deidaraiorek/codeindex/internal/walker"
)

// Job describes one index location to bring up to date.
type Job struct {
	Directories    []string
	Extensions     []string
	DirExcludes    []string
	IndexContent   bool
	IndexFileNames bool
}

type Statistics struct {
	New                int
	Updated            int
	Unchanged          int
	Failed             int
	ExcludedExtensions map[string]int
	Duration           time.Duration
}

func (s Statistics) String() string {
	return fmt.Sprintf("New docs: %d, Updated docs: %d, Unchanged: %d, Failed: %d", s.New, s.Updated, s.Unchanged, s.Failed)
}

type Updater struct {
	db        *storage.IndexDB
	tokenizer *tokenizer.Tokenizer
	loader    *textload.Loader
	logger    *slog.Logger
}

type Option func(*Updater)

func WithLogger(l *slog.Logger) Option {
	return func(u *Updater) { u.logger = l }
}

func WithLoader(l *textload.Loader) Option {
	return func(u *Updater) { u.loader = l }
}

func New(db *storage.IndexDB, opts ...Option) *Updater {
	u := &Updater{
		db:        db,
		tokenizer: tokenizer.NewTokenizer(),
		loader:    textload.Default,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.logger == nil {
		u.logger = slog.Default()
	}
	return u
}

// Update walks the job's directories and stores every new or changed file
// in one transaction together with the cleanup of files that disappeared.
// If ctx is cancelled or the walk fails the index stays as it was.
func (u *Updater) Update(ctx context.Context, job Job) (Statistics, error) {
	start := time.Now()
	stats := Statistics{}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return stats, err
	}
	defer tx.Rollback()

	generation, err := tx.NextGeneration(ctx)
	if err != nil {
		return stats, err
	}
	u.logger.Info("updating index", "index", u.db.Location(), "generation", generation)

	w := walker.New(walker.Options{
		Directories: job.Directories,
		Extensions:  job.Extensions,
		DirExcludes: job.DirExcludes,
		Logger:      u.logger,
	})

	err = w.Walk(ctx, func(path string, d fs.DirEntry) error {
		return u.updateFile(ctx, tx, job, generation, path, d, &stats)
	})
	if err != nil {
		return stats, err
	}

	stats.ExcludedExtensions = w.Excluded()
	if err := tx.RecordExcludedExtensions(ctx, generation, stats.ExcludedExtensions); err != nil {
		return stats, err
	}

	steps, err := tx.Cleanup(ctx, generation)
	for _, step := range steps {
		u.logger.Info("cleanup", "step", step.Name, "rows", step.Rows)
	}
	if err != nil {
		return stats, err
	}

	if err := tx.Commit(); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	u.logger.Info("index updated", "index", u.db.Location(), "stats", stats.String(), "duration", stats.Duration)
	return stats, nil
}

func (u *Updater) updateFile(ctx context.Context, tx *storage.Tx, job Job, generation int64, path string, d fs.DirEntry, stats *Statistics) error {
	info, err := d.Info()
	if err != nil {
		// gone since the directory was read, cleanup takes care of it
		u.logger.Warn("skipping file", "path", path, "error", err)
		return nil
	}
	mtime := info.ModTime().UnixNano()

	docID, stored, err := tx.UpsertDocument(ctx, path, mtime)
	if err != nil {
		return err
	}

	process := stored != mtime
	if !process && job.IndexFileNames {
		has, err := tx.HasFileName(ctx, docID)
		if err != nil {
			return err
		}
		process = !has
	}

	if !process {
		stats.Unchanged++
		return tx.MarkDocument(ctx, docID, generation)
	}

	if err := u.processFile(ctx, tx, job, docID, path); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errdefs.Classify(err) == errdefs.KindLocked {
			return err
		}
		stats.Failed++
		u.logger.Warn("failed to index file", "path", path, "generation", generation,
			"error", errdefs.NewFileIndexError(path, err))
		return tx.MarkDocument(ctx, docID, -1)
	}

	if err := tx.SetModTime(ctx, docID, mtime); err != nil {
		return err
	}
	if stored == 0 {
		stats.New++
	} else {
		stats.Updated++
	}
	return tx.MarkDocument(ctx, docID, generation)
}

func (u *Updater) processFile(ctx context.Context, tx *storage.Tx, job Job, docID int64, path string) error {
	if job.IndexContent {
		text, _, err := u.loader.ReadText(path)
		if err != nil {
			return err
		}
		if err := tx.ReplaceKeywords(ctx, docID, u.tokenizer.TokenizeToKeywords(text)); err != nil {
			return err
		}
	} else if err := tx.ClearKeywords(ctx, docID); err != nil {
		return err
	}

	if job.IndexFileNames {
		base := filepath.Base(path)
		ext := filepath.Ext(base)
		name := strings.TrimSuffix(base, ext)
		if err := tx.ReplaceFileName(ctx, docID, strings.ToLower(name), strings.ToLower(ext)); err != nil {
			return err
		}
	}
	return nil
}
