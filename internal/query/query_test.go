package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/codeindex/internal/comments"
	"github.com/deidaraiorek/codeindex/internal/errdefs"
	"github.com/deidaraiorek/codeindex/internal/query"
)

func TestContentQueryRejectsUnindexable(t *testing.T) {
	for _, search := range []string{"<", "!", "", "  ***  "} {
		_, err := query.NewContentQuery(query.Params{Search: search})
		assert.Equal(t, errdefs.KindQuery, errdefs.Classify(err), search)
	}
}

func TestContentQueryPattern(t *testing.T) {
	tests := []struct {
		search  string
		pattern string
	}{
		{"linux *", `\blinux\b\s*\*`},
		{"createNode ( CComVariant", `\bcreateNode\b\s*\(\s*\bCComVariant\b`},
		{"unknown **4", `\bunknown\b\s*\S+(?:\s+\S+){0,3}`},
		{"regex <!abc!>", `\bregex\b\s*(?:abc)`},
		{"a **1", `\ba\b\s*\S+`},
		{"#if", `#if\b`},
		{"a<=b", `\ba\b\s*<\s*=\s*\bb\b`},
		{"foo#", `\bfoo#`},
		{"über", `über\b`},
	}

	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			q, err := query.NewContentQuery(query.Params{Search: tt.search})
			require.NoError(t, err)
			assert.Equal(t, tt.pattern, q.Pattern())
		})
	}
}

func TestContentQueryParts(t *testing.T) {
	q, err := query.NewContentQuery(query.Params{Search: "a < b"})
	require.NoError(t, err)
	assert.Equal(t, []query.Part{idx("a"), scan("<"), idx("b")}, q.Parts())
	assert.False(t, q.CaseSensitive())
	assert.Equal(t, []string{"a", "b"}, q.IndexedTokens())
}

func TestContentQueryMatching(t *testing.T) {
	text := "CreateNode(x); createnode (y); createNodeEx(z)"

	q, err := query.NewContentQuery(query.Params{Search: "createNode ("})
	require.NoError(t, err)
	assert.Len(t, q.Matches(text, ""), 2)

	q, err = query.NewContentQuery(query.Params{Search: "createNode (", CaseSensitive: true})
	require.NoError(t, err)
	assert.Empty(t, q.Matches(text, ""))

	q, err = query.NewContentQuery(query.Params{Search: "createNode*"})
	require.NoError(t, err)
	assert.Len(t, q.Matches(text, ""), 3)

	q, err = query.NewContentQuery(query.Params{Search: "x **2 y"})
	require.NoError(t, err)
	assert.True(t, q.HasMatch("x a y", ""))
	assert.True(t, q.HasMatch("x a b y", ""))
	assert.False(t, q.HasMatch("x a b c y", ""))
}

func TestContentQueryBoundaries(t *testing.T) {
	q, err := query.NewContentQuery(query.Params{Search: "foo#"})
	require.NoError(t, err)
	assert.True(t, q.HasMatch("x = foo# y", ""))
	assert.False(t, q.HasMatch("x = barfoo# y", ""))

	q, err = query.NewContentQuery(query.Params{Search: "über"})
	require.NoError(t, err)
	assert.True(t, q.HasMatch("Das Über alles", ""))
	assert.False(t, q.HasMatch("überall", ""))
}

func TestRequiresVerification(t *testing.T) {
	tests := []struct {
		params   query.Params
		expected bool
	}{
		{query.Params{Search: "single"}, false},
		{query.Params{Search: "wild*"}, false},
		{query.Params{Search: "two words"}, true},
		{query.Params{Search: "call("}, true},
		{query.Params{Search: "single", CaseSensitive: true}, true},
		{query.Params{Search: "single", ExcludeComments: true}, true},
	}
	for _, tt := range tests {
		q, err := query.NewContentQuery(tt.params)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, q.RequiresVerification(), tt.params.Search)
	}
}

func cppRules(t *testing.T) query.CommentRuleFunc {
	t.Helper()
	rule, err := comments.NewRule(`//[^\n]*`, `/\*`, `\*/`, false)
	require.NoError(t, err)
	return func(string) (comments.Rule, bool) { return rule, true }
}

func TestCommentExclusion(t *testing.T) {
	text := "int foo() {\n    return 42;  // foo in comment\n}"

	q, err := query.NewContentQuery(query.Params{Search: "foo"})
	require.NoError(t, err)
	assert.Len(t, q.Matches(text, "test.cpp"), 2)

	q, err = query.NewContentQuery(query.Params{Search: "foo", ExcludeComments: true, CommentRules: cppRules(t)})
	require.NoError(t, err)
	matches := q.Matches(text, "test.cpp")
	require.Len(t, matches, 1)
	assert.Equal(t, "foo", text[matches[0].Start:matches[0].End])
	assert.Equal(t, 4, matches[0].Start)
}

func TestCommentExclusionMultiline(t *testing.T) {
	text := "/* This is a TODO\n   that spans multiple lines */\nint main() {\n    // Another TODO\n    return 0;  // TODO fix this\n}"

	q, err := query.NewContentQuery(query.Params{Search: "TODO"})
	require.NoError(t, err)
	assert.Len(t, q.Matches(text, "test.cpp"), 3)

	q, err = query.NewContentQuery(query.Params{Search: "TODO", ExcludeComments: true, CommentRules: cppRules(t)})
	require.NoError(t, err)
	assert.Empty(t, q.Matches(text, "test.cpp"))
	assert.False(t, q.HasMatch(text, "test.cpp"))
}

func TestCommentExclusionWithoutRule(t *testing.T) {
	none := func(string) (comments.Rule, bool) { return comments.Rule{}, false }
	q, err := query.NewContentQuery(query.Params{Search: "TODO", ExcludeComments: true, CommentRules: none})
	require.NoError(t, err)

	assert.Len(t, q.Matches("# TODO fix this\nprint('hello')", "test.txt"), 1)
}

func TestMatchesFilters(t *testing.T) {
	q, err := query.NewContentQuery(query.Params{Search: "x", FolderFilter: "src,-vendor", ExtensionFilter: "c,h"})
	require.NoError(t, err)

	assert.True(t, q.HasFilters())
	assert.True(t, q.MatchesFilters("/home/src/a.c"))
	assert.True(t, q.MatchesFilters("/home/SRC/a.H"))
	assert.False(t, q.MatchesFilters("/home/src/vendor/a.c"))
	assert.False(t, q.MatchesFilters("/home/src/a.cpp"))
	assert.False(t, q.MatchesFilters("/home/lib/a.c"))
}

func TestFileQuery(t *testing.T) {
	q, err := query.NewFileQuery(query.Params{Search: "test*.*"})
	require.NoError(t, err)
	assert.Equal(t, "test*", q.Name())
	assert.True(t, q.HasWildcard())
	assert.True(t, q.ExtensionFilter().IsEmpty())
	assert.True(t, q.MatchesPath("/src/Test_1.cpp"))
	assert.True(t, q.MatchesPath("/src/test"))
	assert.False(t, q.MatchesPath("/src/atest.c"))

	q, err = query.NewFileQuery(query.Params{Search: "Main.CPP"})
	require.NoError(t, err)
	assert.Equal(t, "Main", q.Name())
	assert.False(t, q.HasWildcard())
	assert.Equal(t, []string{".cpp"}, q.ExtensionFilter().Includes())
	assert.True(t, q.MatchesPath("/src/main.cpp"))
	assert.False(t, q.MatchesPath("/src/main.c"))

	q, err = query.NewFileQuery(query.Params{Search: "main.cpp", ExtensionFilter: "h"})
	require.NoError(t, err)
	assert.Equal(t, "main.cpp", q.Name())

	q, err = query.NewFileQuery(query.Params{Search: "Main", CaseSensitive: true})
	require.NoError(t, err)
	assert.True(t, q.MatchesName("Main"))
	assert.False(t, q.MatchesName("main"))
}

func TestMatchesInRange(t *testing.T) {
	matches := []query.Match{{0, 2}, {5, 7}, {10, 12}, {20, 25}}

	assert.Equal(t, []query.Match{{5, 7}, {10, 12}}, query.MatchesInRange(matches, 3, 11))
	assert.Empty(t, query.MatchesInRange(matches, 13, 20))
	assert.Equal(t, matches, query.MatchesInRange(matches, 0, 100))
}
