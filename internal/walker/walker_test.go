package walker_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/codeindex/internal/errdefs"
	"github.com/deidaraiorek/codeindex/internal/walker"
)

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

func collect(t *testing.T, w *walker.Walker, root string) []string {
	t.Helper()
	var got []string
	err := w.Walk(context.Background(), func(path string, _ fs.DirEntry) error {
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		got = append(got, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	sort.Strings(got)
	return got
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"main.c",
		"inc/util.H",
		"Makefile",
		"docs/readme.txt",
		"docs/notes.txt",
		"ThirdParty/lib/x.c",
		"build/out.o",
	)

	w := walker.New(walker.Options{
		Directories: []string{root},
		Extensions:  []string{".c", "h", "."},
		DirExcludes: []string{"thirdparty"},
	})

	assert.Equal(t, []string{"Makefile", "inc/util.H", "main.c"}, collect(t, w, root))
	assert.Equal(t, map[string]int{".txt": 2, ".o": 1}, w.Excluded())
}

func TestWalkWithoutAllowList(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.c", "b.txt")

	w := walker.New(walker.Options{Directories: []string{root}})

	assert.Equal(t, []string{"a.c", "b.txt"}, collect(t, w, root))
	assert.Empty(t, w.Excluded())
}

func TestWalkMissingDirectory(t *testing.T) {
	w := walker.New(walker.Options{Directories: []string{filepath.Join(t.TempDir(), "gone")}})

	err := w.Walk(context.Background(), func(string, fs.DirEntry) error { return nil })
	assert.ErrorIs(t, err, errdefs.ErrLocationUnreachable)
}

func TestWalkCancelled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.c", "b.c")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := walker.New(walker.Options{Directories: []string{root}})
	err := w.Walk(ctx, func(string, fs.DirEntry) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeExtension(t *testing.T) {
	tests := map[string]string{
		"cpp":   ".cpp",
		"*.CPP": ".cpp",
		".h":    ".h",
		".":     "",
		"":      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, walker.NormalizeExtension(in), in)
	}
}
