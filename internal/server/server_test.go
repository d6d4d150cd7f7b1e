package server_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/codeindex/internal/config"
	"github.com/deidaraiorek/codeindex/internal/indexer"
	"github.com/deidaraiorek/codeindex/internal/search"
	"github.com/deidaraiorek/codeindex/internal/server"
	"github.com/deidaraiorek/codeindex/internal/storage"
)

var quiet = slog.New(slog.DiscardHandler)

type response struct {
	Matches []string `json:"matches"`
	Error   string   `json:"error"`
	Kind    string   `json:"kind"`
}

func newServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "src")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	files := map[string]string{
		"main.c":   "int main() {\n  // TODO remove\n  return 0;\n}",
		"util.c":   "void TODO_list() {}\nint helper;",
		"notes.md": "TODO: write docs",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	dbPath := filepath.Join(t.TempDir(), "project.db")
	db, err := storage.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = indexer.New(db, indexer.WithLogger(quiet)).Update(context.Background(), indexer.Job{
		Directories:    []string{dir},
		IndexContent:   true,
		IndexFileNames: true,
	})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Indexes = []config.IndexConfig{
		{
			IndexDB:     dbPath,
			Directories: []string{dir},
			UpdateMode:  config.UpdateManual,
			Type:        config.TypeContentAndName,
		},
		{
			Name:        "direct",
			Directories: []string{dir},
			UpdateMode:  config.UpdateNone,
			Type:        config.TypeContent,
		},
	}
	require.NoError(t, cfg.Validate())

	engine := search.NewEngine(search.WithLogger(quiet))
	srv, err := server.New(cfg, func(idx config.IndexConfig) *search.Methods {
		return search.NewMethods(engine, idx)
	}, quiet)
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, dir
}

func get(t *testing.T, ts *httptest.Server, path string, params url.Values) (int, response) {
	t.Helper()
	u := ts.URL + path
	if params != nil {
		u += "?" + params.Encode()
	}
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestIndexes(t *testing.T) {
	ts, _ := newServer(t)

	resp, err := http.Get(ts.URL + "/api/indexes")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var infos []struct {
		Name           string `json:"name"`
		ContentIndexed bool   `json:"content_indexed"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "project", infos[0].Name)
	assert.True(t, infos[0].ContentIndexed)
	assert.Equal(t, "direct", infos[1].Name)
	assert.False(t, infos[1].ContentIndexed)
}

func TestSearch(t *testing.T) {
	ts, dir := newServer(t)

	tests := []struct {
		name     string
		index    string
		params   url.Values
		expected []string
	}{
		{"indexed", "project", url.Values{"q": {"TODO"}}, []string{"main.c", "notes.md"}},
		{"index name case", "PROJECT", url.Values{"q": {"todo"}}, []string{"main.c", "notes.md"}},
		{"exclude comments", "project", url.Values{"q": {"TODO"}, "exclude_comments": {"true"}}, []string{"notes.md"}},
		{"extension filter", "project", url.Values{"q": {"TODO"}, "extensions": {"c"}}, []string{"main.c"}},
		{"wildcard", "project", url.Values{"q": {"TODO*"}, "extensions": {"c"}}, []string{"main.c", "util.c"}},
		{"direct", "direct", url.Values{"q": {"helper"}}, []string{"util.c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, ts, "/api/indexes/"+tt.index+"/search", tt.params)
			require.Equal(t, http.StatusOK, status, body.Error)

			expected := make([]string, len(tt.expected))
			for i, name := range tt.expected {
				expected[i] = filepath.Join(dir, name)
			}
			assert.Equal(t, expected, body.Matches)
		})
	}
}

func TestFiles(t *testing.T) {
	ts, dir := newServer(t)

	status, body := get(t, ts, "/api/indexes/project/files", url.Values{"q": {"*.c"}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{filepath.Join(dir, "main.c"), filepath.Join(dir, "util.c")}, body.Matches)

	status, body = get(t, ts, "/api/indexes/direct/files", url.Values{"q": {"notes"}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{filepath.Join(dir, "notes.md")}, body.Matches)
}

func TestStats(t *testing.T) {
	ts, _ := newServer(t)

	resp, err := http.Get(ts.URL + "/api/indexes/project/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats storage.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.EqualValues(t, 3, stats.Documents)
	assert.EqualValues(t, 3, stats.FileNames)
}

func TestErrors(t *testing.T) {
	ts, _ := newServer(t)

	status, body := get(t, ts, "/api/indexes/nope/search", url.Values{"q": {"x"}})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body.Kind)

	status, body = get(t, ts, "/api/indexes/project/search", url.Values{"q": {"<"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "query", body.Kind)
	assert.Contains(t, body.Error, "no indexed word")

	status, body = get(t, ts, "/api/indexes/project/search", url.Values{"q": {"x"}, "case": {"maybe"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "query", body.Kind)

	status, body = get(t, ts, "/api/indexes/direct/stats", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "index_missing", body.Kind)
}
