package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/deidaraiorek/codeindex/internal/errdefs"
)

// Maximum number of ids bound into a single IN (...) list.
const chunkSize = 500

type Keyword struct {
	ID   int64
	Name string
}

type ExcludedExtension struct {
	Extension string `json:"extension"`
	Count     int    `json:"count"`
}

type Stats struct {
	Documents          int64               `json:"documents"`
	DocumentsInIndex   int64               `json:"documents_in_index"`
	Keywords           int64               `json:"keywords"`
	Associations       int64               `json:"associations"`
	FileNames          int64               `json:"file_names"`
	ExcludedExtensions []ExcludedExtension `json:"excluded_extensions"`
}

type IndexDB struct {
	db       *sql.DB
	location string

	mu        sync.Mutex
	interrupt context.Context
	cancel    context.CancelFunc
}

// dsn builds a file: URI for dbPath. The path is escaped so that '?' and
// '#' in directory names are not taken for the query part.
func dsn(dbPath, params string) string {
	u := url.URL{Scheme: "file", Opaque: (&url.URL{Path: dbPath}).EscapedPath(), RawQuery: params}
	return u.String()
}

// Open opens the index at dbPath for writing and creates the schema if
// needed.
func Open(dbPath string) (*IndexDB, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath, "_busy_timeout=5000"))
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errdefs.NewStorageError("enable WAL", dbPath, err)
	}

	idb := newIndexDB(db, dbPath)
	if err := idb.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return idb, nil
}

// OpenReadOnly opens an existing index for searching. It never creates the
// database file.
func OpenReadOnly(dbPath string) (*IndexDB, error) {
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", dbPath, errdefs.ErrIndexMissing)
		}
		return nil, fmt.Errorf("%s: %w: %w", dbPath, errdefs.ErrIndexMissing, err)
	}

	db, err := sql.Open("sqlite3", dsn(dbPath, "mode=ro&_busy_timeout=5000"))
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w: %w", dbPath, errdefs.ErrIndexMissing, err)
	}
	return newIndexDB(db, dbPath), nil
}

func newIndexDB(db *sql.DB, location string) *IndexDB {
	ctx, cancel := context.WithCancel(context.Background())
	return &IndexDB{db: db, location: location, interrupt: ctx, cancel: cancel}
}

func (idb *IndexDB) initSchema() error {
	_, err := idb.db.Exec(Schema)
	return idb.wrapErr("create schema", err)
}

func (idb *IndexDB) Location() string {
	return idb.location
}

func (idb *IndexDB) Close() error {
	idb.mu.Lock()
	idb.cancel()
	idb.mu.Unlock()
	return idb.db.Close()
}

// Interrupt aborts every statement currently running on this index.
// Statements started afterwards are not affected.
func (idb *IndexDB) Interrupt() {
	idb.mu.Lock()
	defer idb.mu.Unlock()
	idb.cancel()
	idb.interrupt, idb.cancel = context.WithCancel(context.Background())
}

// withInterrupt derives a context that is also cancelled by Interrupt.
func (idb *IndexDB) withInterrupt(ctx context.Context) (context.Context, context.CancelFunc) {
	idb.mu.Lock()
	intr := idb.interrupt
	idb.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(intr, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (idb *IndexDB) count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := idb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, idb.wrapErr("count "+table, err)
}

func (idb *IndexDB) Stats(ctx context.Context) (Stats, error) {
	ctx, cancel := idb.withInterrupt(ctx)
	defer cancel()

	var (
		s   Stats
		err error
	)
	counters := []struct {
		table string
		dst   *int64
	}{
		{"documents", &s.Documents},
		{"documentInIndex", &s.DocumentsInIndex},
		{"keywords", &s.Keywords},
		{"kw2doc", &s.Associations},
		{"fileName", &s.FileNames},
	}
	for _, c := range counters {
		if *c.dst, err = idb.count(ctx, c.table); err != nil {
			return Stats{}, err
		}
	}

	s.ExcludedExtensions, err = idb.excludedExtensions(ctx)
	if err != nil {
		return Stats{}, err
	}
	return s, nil
}

// ExcludedExtensions returns the extensions skipped by the latest update
// run, most frequent first.
func (idb *IndexDB) ExcludedExtensions(ctx context.Context) ([]ExcludedExtension, error) {
	ctx, cancel := idb.withInterrupt(ctx)
	defer cancel()
	return idb.excludedExtensions(ctx)
}

func (idb *IndexDB) excludedExtensions(ctx context.Context) ([]ExcludedExtension, error) {
	rows, err := idb.db.QueryContext(ctx, `
		SELECT extension, fileCount FROM excludedExtensions
		WHERE generationId = (SELECT MAX(generationId) FROM excludedExtensions)
		ORDER BY fileCount DESC, extension`)
	if err != nil {
		return nil, idb.wrapErr("query excluded extensions", err)
	}
	defer rows.Close()

	var result []ExcludedExtension
	for rows.Next() {
		var e ExcludedExtension
		if err := rows.Scan(&e.Extension, &e.Count); err != nil {
			return nil, idb.wrapErr("scan excluded extension", err)
		}
		result = append(result, e)
	}
	return result, idb.wrapErr("query excluded extensions", rows.Err())
}

// LookupKeywords resolves one query token to the keywords it stands for.
// A '*' in token matches any number of characters.
func (idb *IndexDB) LookupKeywords(ctx context.Context, token string) ([]Keyword, error) {
	ctx, cancel := idb.withInterrupt(ctx)
	defer cancel()

	token = strings.ToLower(token)
	query := "SELECT id, keyword FROM keywords WHERE keyword = ?"
	arg := token
	if strings.Contains(token, "*") {
		query = "SELECT id, keyword FROM keywords WHERE keyword LIKE ? ESCAPE '!'"
		arg = likePattern(token)
	}

	rows, err := idb.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, idb.wrapErr("lookup keyword", err)
	}
	defer rows.Close()

	var result []Keyword
	for rows.Next() {
		var kw Keyword
		if err := rows.Scan(&kw.ID, &kw.Name); err != nil {
			return nil, idb.wrapErr("scan keyword", err)
		}
		result = append(result, kw)
	}
	return result, idb.wrapErr("lookup keyword", rows.Err())
}

// DocumentIDs returns the sorted, distinct ids of all documents containing
// at least one of the given keywords.
func (idb *IndexDB) DocumentIDs(ctx context.Context, kwIDs []int64) ([]int64, error) {
	ctx, cancel := idb.withInterrupt(ctx)
	defer cancel()

	var result []int64
	for chunk := range slices.Chunk(kwIDs, chunkSize) {
		query := "SELECT DISTINCT docID FROM kw2doc WHERE kwID IN (" + placeholders(len(chunk)) + ") ORDER BY docID"
		ids, err := queryInt64s(ctx, idb.db, query, int64Args(chunk))
		if err != nil {
			return nil, idb.wrapErr("query documents", err)
		}
		result = append(result, ids...)
	}
	if len(kwIDs) > chunkSize {
		slices.Sort(result)
		result = slices.Compact(result)
	}
	return result, nil
}

// Paths resolves document ids to their sorted full paths.
func (idb *IndexDB) Paths(ctx context.Context, docIDs []int64) ([]string, error) {
	ctx, cancel := idb.withInterrupt(ctx)
	defer cancel()

	result := make([]string, 0, len(docIDs))
	for chunk := range slices.Chunk(docIDs, chunkSize) {
		query := "SELECT fullpath FROM documents WHERE id IN (" + placeholders(len(chunk)) + ")"
		paths, err := queryStrings(ctx, idb.db, query, int64Args(chunk))
		if err != nil {
			return nil, idb.wrapErr("query paths", err)
		}
		result = append(result, paths...)
	}
	slices.Sort(result)
	return result, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryInt64s(ctx context.Context, q querier, query string, args []any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

func queryStrings(ctx context.Context, q querier, query string, args []any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// Begin starts the single write transaction of an update run. Cancelling
// ctx rolls it back.
func (idb *IndexDB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := idb.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, idb.wrapErr("begin transaction", err)
	}
	return &Tx{tx: tx, idb: idb, keywordIDs: make(map[string]int64)}, nil
}
