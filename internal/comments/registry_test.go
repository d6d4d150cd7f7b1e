package comments_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/codeindex/internal/comments"
)

func TestRegistryLookup(t *testing.T) {
	r := comments.NewRegistry()

	generic, err := comments.NewRule(`;[^\n]*`, "", "", false)
	require.NoError(t, err)
	cpp, err := comments.NewRule(`//[^\n]*`, `/\*`, `\*/`, false)
	require.NoError(t, err)

	require.NoError(t, r.Add([]string{"*"}, generic))
	require.NoError(t, r.Add([]string{"c*", "h*"}, cpp))

	rule, ok := r.Lookup("/src/main.CPP")
	require.True(t, ok)
	assert.Equal(t, cpp.Line.String(), rule.Line.String())

	rule, ok = r.Lookup("/src/boot.asm")
	require.True(t, ok)
	assert.Equal(t, generic.Line.String(), rule.Line.String())
}

func TestRegistryMostSignificantWins(t *testing.T) {
	r := comments.NewRegistry()

	wide, err := comments.NewRule(`#[^\n]*`, "", "", false)
	require.NoError(t, err)
	exact, err := comments.NewRule(`//[^\n]*`, "", "", false)
	require.NoError(t, err)

	require.NoError(t, r.Add([]string{"cpp"}, exact))
	require.NoError(t, r.Add([]string{"c*"}, wide))

	rule, ok := r.Lookup("a.cpp")
	require.True(t, ok)
	assert.Equal(t, exact.Line.String(), rule.Line.String())
}

func TestRegistryInvalidPattern(t *testing.T) {
	r := comments.NewRegistry()
	assert.Error(t, r.Add([]string{"[c"}, comments.Rule{}))
}

func TestDefaultRegistry(t *testing.T) {
	r := comments.DefaultRegistry()

	_, ok := r.Lookup("notes.txt")
	assert.False(t, ok)

	rule, ok := r.Lookup("script.py")
	require.True(t, ok)
	assert.True(t, rule.TripleQuotes)

	rule, ok = r.Lookup("query.sql")
	require.True(t, ok)
	assert.Equal(t, `--[^\n]*`, rule.Line.String())

	input := "int foo() {\n    return 42;  // foo in comment\n}"
	rule, ok = r.Lookup("test.cpp")
	require.True(t, ok)
	_, found := comments.Analyze(input, rule)
	require.Len(t, found, 1)
	assert.Equal(t, "// foo in comment", input[found[0].Start:found[0].End])
}
