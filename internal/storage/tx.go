package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tx is the write transaction of one update run.
type Tx struct {
	tx  *sql.Tx
	idb *IndexDB

	// keyword -> id for keywords already resolved during this run
	keywordIDs map[string]int64

	insertKeyword *sql.Stmt
	selectKeyword *sql.Stmt
	insertKw2doc  *sql.Stmt
}

type CleanupStep struct {
	Name string
	Rows int64
}

var cleanupSteps = []struct {
	name  string
	query string
}{
	{"associations", "DELETE FROM kw2doc WHERE docID IN (SELECT docID FROM documentInIndex WHERE indexID < ?1)"},
	{"file name associations", "DELETE FROM fileName2doc WHERE docID IN (SELECT docID FROM documentInIndex WHERE indexID < ?1)"},
	{"documents", "DELETE FROM documents WHERE id IN (SELECT docID FROM documentInIndex WHERE indexID < ?1) OR id NOT IN (SELECT docID FROM documentInIndex)"},
	{"document index", "DELETE FROM documentInIndex WHERE indexID < ?1"},
	{"orphaned keywords", "DELETE FROM keywords WHERE id NOT IN (SELECT kwID FROM kw2doc)"},
	{"orphaned file names", "DELETE FROM fileName WHERE id NOT IN (SELECT fileNameID FROM fileName2doc)"},
	{"index info", "DELETE FROM indexInfo WHERE id < ?1"},
	{"excluded extensions", "DELETE FROM excludedExtensions WHERE generationId < ?1"},
}

func (t *Tx) wrapErr(op string, err error) error {
	return t.idb.wrapErr(op, err)
}

// NextGeneration appends a run to indexInfo and returns its id. Documents
// of earlier runs keep lower generations.
func (t *Tx) NextGeneration(ctx context.Context) (int64, error) {
	res, err := t.tx.ExecContext(ctx, "INSERT INTO indexInfo (id, timestamp) VALUES (NULL, ?)", time.Now().Unix())
	if err != nil {
		return 0, t.wrapErr("insert index info", err)
	}
	id, err := res.LastInsertId()
	return id, t.wrapErr("insert index info", err)
}

// UpsertDocument returns the id of the document at path, inserting it if
// needed. storedMtime is 0 for new documents so they are always processed.
func (t *Tx) UpsertDocument(ctx context.Context, path string, mtime int64) (docID int64, storedMtime int64, err error) {
	res, err := t.tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO documents (id, timestamp, fullpath) VALUES (NULL, ?, ?)",
		mtime, path,
	)
	if err != nil {
		return 0, 0, t.wrapErr("insert document", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		docID, err = res.LastInsertId()
		return docID, 0, t.wrapErr("insert document", err)
	}

	err = t.tx.QueryRowContext(ctx,
		"SELECT id, timestamp FROM documents WHERE fullpath = ?", path,
	).Scan(&docID, &storedMtime)
	return docID, storedMtime, t.wrapErr("query document", err)
}

func (t *Tx) SetModTime(ctx context.Context, docID, mtime int64) error {
	_, err := t.tx.ExecContext(ctx, "UPDATE documents SET timestamp = ? WHERE id = ?", mtime, docID)
	return t.wrapErr("update document", err)
}

func (t *Tx) prepare(ctx context.Context) error {
	if t.insertKeyword != nil {
		return nil
	}

	var err error
	if t.insertKeyword, err = t.tx.PrepareContext(ctx, "INSERT OR IGNORE INTO keywords (id, keyword) VALUES (NULL, ?)"); err != nil {
		return t.wrapErr("prepare", err)
	}
	if t.selectKeyword, err = t.tx.PrepareContext(ctx, "SELECT id FROM keywords WHERE keyword = ?"); err != nil {
		return t.wrapErr("prepare", err)
	}
	if t.insertKw2doc, err = t.tx.PrepareContext(ctx, "INSERT OR IGNORE INTO kw2doc (kwID, docID) VALUES (?, ?)"); err != nil {
		return t.wrapErr("prepare", err)
	}
	return nil
}

func (t *Tx) keywordID(ctx context.Context, keyword string) (int64, error) {
	if id, ok := t.keywordIDs[keyword]; ok {
		return id, nil
	}

	res, err := t.insertKeyword.ExecContext(ctx, keyword)
	if err != nil {
		return 0, fmt.Errorf("failed to insert keyword %q: %w", keyword, err)
	}

	var id int64
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		id, err = res.LastInsertId()
		if err != nil {
			return 0, err
		}
	} else if err := t.selectKeyword.QueryRowContext(ctx, keyword).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to query keyword %q: %w", keyword, err)
	}

	t.keywordIDs[keyword] = id
	return id, nil
}

// ReplaceKeywords drops all keyword associations of the document and
// associates it with keywords instead. Keywords must already be lower-cased.
func (t *Tx) ReplaceKeywords(ctx context.Context, docID int64, keywords map[string]struct{}) error {
	if err := t.ClearKeywords(ctx, docID); err != nil {
		return err
	}
	if err := t.prepare(ctx); err != nil {
		return err
	}

	for kw := range keywords {
		kwID, err := t.keywordID(ctx, kw)
		if err != nil {
			return t.wrapErr("store keyword", err)
		}
		if _, err := t.insertKw2doc.ExecContext(ctx, kwID, docID); err != nil {
			return t.wrapErr("insert association", err)
		}
	}
	return nil
}

func (t *Tx) ClearKeywords(ctx context.Context, docID int64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM kw2doc WHERE docID = ?", docID)
	return t.wrapErr("delete associations", err)
}

// ReplaceFileName associates the document with name (without extension) and
// ext. Both are stored lower-cased.
func (t *Tx) ReplaceFileName(ctx context.Context, docID int64, name, ext string) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM fileName2doc WHERE docID = ?", docID); err != nil {
		return t.wrapErr("delete file name association", err)
	}
	if _, err := t.tx.ExecContext(ctx, "INSERT OR IGNORE INTO fileName (id, name, ext) VALUES (NULL, ?, ?)", name, ext); err != nil {
		return t.wrapErr("insert file name", err)
	}

	var id int64
	if err := t.tx.QueryRowContext(ctx, "SELECT id FROM fileName WHERE name = ? AND ext = ?", name, ext).Scan(&id); err != nil {
		return t.wrapErr("query file name", err)
	}
	_, err := t.tx.ExecContext(ctx, "INSERT OR IGNORE INTO fileName2doc (fileNameID, docID) VALUES (?, ?)", id, docID)
	return t.wrapErr("insert file name association", err)
}

func (t *Tx) HasFileName(ctx context.Context, docID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM fileName2doc WHERE docID = ?)", docID,
	).Scan(&exists)
	return exists, t.wrapErr("query file name association", err)
}

// MarkDocument stamps the document with generation. Use -1 to have it
// removed by the next cleanup.
func (t *Tx) MarkDocument(ctx context.Context, docID, generation int64) error {
	_, err := t.tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO documentInIndex (docID, indexID) VALUES (?, ?)",
		docID, generation,
	)
	return t.wrapErr("mark document", err)
}

func (t *Tx) RecordExcludedExtensions(ctx context.Context, generation int64, counts map[string]int) error {
	for ext, n := range counts {
		if _, err := t.tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO excludedExtensions (generationId, extension, fileCount) VALUES (?, ?, ?)",
			generation, ext, n,
		); err != nil {
			return t.wrapErr("record excluded extension", err)
		}
	}
	return nil
}

// Cleanup removes every document stamped with a lower generation than
// generation together with its associations, then prunes orphaned keywords,
// file names and old run records.
func (t *Tx) Cleanup(ctx context.Context, generation int64) ([]CleanupStep, error) {
	steps := make([]CleanupStep, 0, len(cleanupSteps))
	for _, step := range cleanupSteps {
		var args []any
		if strings.Contains(step.query, "?1") {
			args = append(args, generation)
		}
		res, err := t.tx.ExecContext(ctx, step.query, args...)
		if err != nil {
			return steps, t.wrapErr("cleanup "+step.name, err)
		}
		n, _ := res.RowsAffected()
		steps = append(steps, CleanupStep{Name: step.name, Rows: n})
	}
	return steps, nil
}

func (t *Tx) closeStmts() {
	for _, stmt := range []*sql.Stmt{t.insertKeyword, t.selectKeyword, t.insertKw2doc} {
		if stmt != nil {
			stmt.Close()
		}
	}
}

func (t *Tx) Commit() error {
	t.closeStmts()
	return t.wrapErr("commit", t.tx.Commit())
}

// Rollback is a no-op after Commit.
func (t *Tx) Rollback() error {
	t.closeStmts()
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return t.wrapErr("rollback", err)
}
