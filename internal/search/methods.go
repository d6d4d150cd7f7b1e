package search

import (
	"context"
	"sync"

	"github.com/deidaraiorek/codeindex/internal/config"
	"github.com/deidaraiorek/codeindex/internal/query"
	"github.com/deidaraiorek/codeindex/internal/storage"
)

// Methods runs searches against one configured location. It uses the
// index where one is generated for the kind of search and walks the
// directories otherwise. Cancel stops the running search, including the
// SQL statement currently executing.
type Methods struct {
	engine *Engine
	index  config.IndexConfig

	mu     sync.Mutex
	db     *storage.IndexDB
	cancel context.CancelFunc
}

func NewMethods(engine *Engine, index config.IndexConfig) *Methods {
	return &Methods{engine: engine, index: index}
}

func (m *Methods) Index() config.IndexConfig {
	return m.index
}

func (m *Methods) location() Location {
	return Location{
		Directories: m.index.Directories,
		Extensions:  m.index.Extensions,
		DirExcludes: m.index.DirExcludes,
	}
}

// start derives the context of one search. Cancelling the parent has the
// same effect as calling Cancel.
func (m *Methods) start(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	stop := context.AfterFunc(ctx, m.interrupt)
	return ctx, func() {
		stop()
		cancel()
		m.mu.Lock()
		m.cancel = nil
		m.mu.Unlock()
	}
}

func (m *Methods) open() (*storage.IndexDB, error) {
	db, err := storage.OpenReadOnly(m.index.IndexDB)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.db = db
	m.mu.Unlock()
	return db, nil
}

func (m *Methods) release(db *storage.IndexDB) {
	m.mu.Lock()
	m.db = nil
	m.mu.Unlock()
	db.Close()
}

func (m *Methods) interrupt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		m.db.Interrupt()
	}
}

// Cancel stops the running search. The search returns an empty result.
func (m *Methods) Cancel() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.interrupt()
}

func (m *Methods) SearchContent(ctx context.Context, q *query.ContentQuery) (Result, error) {
	ctx, done := m.start(ctx)
	defer done()

	if !m.index.IsContentIndexed() {
		return m.engine.SearchContentDirect(ctx, m.location(), q)
	}
	db, err := m.open()
	if err != nil {
		return Result{}, err
	}
	defer m.release(db)
	return m.engine.SearchContent(ctx, db, q)
}

func (m *Methods) SearchFiles(ctx context.Context, q *query.FileQuery) (Result, error) {
	ctx, done := m.start(ctx)
	defer done()

	if !m.index.IsFileNameIndexed() {
		return m.engine.SearchFilesDirect(ctx, m.location(), q)
	}
	db, err := m.open()
	if err != nil {
		return Result{}, err
	}
	defer m.release(db)
	return m.engine.SearchFiles(ctx, db, q)
}

// Stats describes the index of the location.
func (m *Methods) Stats(ctx context.Context) (storage.Stats, error) {
	ctx, done := m.start(ctx)
	defer done()

	db, err := m.open()
	if err != nil {
		return storage.Stats{}, err
	}
	defer m.release(db)
	return db.Stats(ctx)
}
