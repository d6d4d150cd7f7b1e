package comments_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/codeindex/internal/comments"
)

func cppRule(t *testing.T) comments.Rule {
	t.Helper()
	rule, err := comments.NewRule(`//[^\n]*`, `/\*`, `\*/`, false)
	require.NoError(t, err)
	return rule
}

func text(s string, sp comments.Span) string {
	return s[sp.Start:sp.End]
}

func TestFindStrings(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"no string", "no string", nil},
		{"double", `a = "abc";`, []string{`"abc"`}},
		{"single and double", `f('x', "y")`, []string{`'x'`, `"y"`}},
		{"escaped quote", `"a\"b" c`, []string{`"a\"b"`}},
		{"escaped backslash", `"a\\" "b"`, []string{`"a\\"`, `"b"`}},
		{"other quote inside", `"it's" x`, []string{`"it's"`}},
		{"ends at newline", "don't\nx = \"y\"", []string{`"y"`}},
		{"does not span lines", "a = \"one\ntwo\" b", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, sp := range comments.FindStrings(tt.input, false) {
				got = append(got, text(tt.input, sp))
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestUnterminatedStringKeepsNextLineComment(t *testing.T) {
	input := "s = \"unclosed\n// TODO \"quoted\""

	strs, cmts := comments.Analyze(input, cppRule(t))

	require.Len(t, strs, 1)
	assert.Equal(t, `"quoted"`, text(input, strs[0]))
	require.Len(t, cmts, 1)
	assert.Equal(t, `// TODO "quoted"`, text(input, cmts[0]))
}

func TestFindStringsIgnoresQuotesInTripleQuotes(t *testing.T) {
	input := "x = \"\"\"it's a docstring\"\"\"\ny = 'z'"

	spans := comments.FindStrings(input, true)

	require.Len(t, spans, 1)
	assert.Equal(t, "'z'", text(input, spans[0]))
}

func TestFindCommentsCpp(t *testing.T) {
	rule := cppRule(t)

	t.Run("line comment", func(t *testing.T) {
		input := "int main() {\n    // This is a comment\n    return 0;\n}"
		_, found := comments.Analyze(input, rule)
		require.Len(t, found, 1)
		assert.Equal(t, "// This is a comment", text(input, found[0]))
	})

	t.Run("block comment", func(t *testing.T) {
		input := "int main() {\n    /* This is a\n       multiline comment */\n    return 0;\n}"
		_, found := comments.Analyze(input, rule)
		require.Len(t, found, 1)
		assert.Equal(t, "/* This is a\n       multiline comment */", text(input, found[0]))
	})

	t.Run("inside strings ignored", func(t *testing.T) {
		_, found := comments.Analyze(`char* s = "// not a comment";`, rule)
		assert.Empty(t, found)
		_, found = comments.Analyze(`char* s = "/* not a comment */";`, rule)
		assert.Empty(t, found)
	})

	t.Run("mixed", func(t *testing.T) {
		input := "// First comment\n" +
			"char* s1 = \"// not a comment\";\n" +
			"/* Second comment */\n" +
			"char* s2 = \"/* also not a comment */\";\n" +
			"// Third comment"
		_, found := comments.Analyze(input, rule)
		assert.Len(t, found, 3)
	})

	t.Run("block start inside line comment", func(t *testing.T) {
		input := "// see /* here\nint x; /* real */"
		_, found := comments.Analyze(input, rule)
		require.Len(t, found, 2)
		assert.Equal(t, "// see /* here", text(input, found[0]))
		assert.Equal(t, "/* real */", text(input, found[1]))
	})

	t.Run("line comment nested in block", func(t *testing.T) {
		input := "/* a // b */ int x;"
		_, found := comments.Analyze(input, rule)
		require.Len(t, found, 2)
		assert.Equal(t, "/* a // b */", text(input, found[0]))
	})

	t.Run("unclosed block", func(t *testing.T) {
		input := "/* This comment never closes"
		_, found := comments.Analyze(input, rule)
		require.Len(t, found, 1)
		assert.Equal(t, len(input), found[0].Len())
	})
}

func TestFindCommentsPython(t *testing.T) {
	rule, err := comments.NewRule(`#[^\n]*`, `"""`, `"""`, true)
	require.NoError(t, err)

	input := "def hello():\n    # This is a comment\n    print(\"hello # not\")\n    # Another comment\n"
	_, found := comments.Analyze(input, rule)
	assert.Len(t, found, 2)

	doc := "def hello():\n    \"\"\"This is a\n    docstring\"\"\"\n    print(\"hello\")\n"
	_, found = comments.Analyze(doc, rule)
	require.Len(t, found, 1)
	assert.Contains(t, text(doc, found[0]), "docstring")
}

func TestSpansContains(t *testing.T) {
	assert.False(t, comments.Spans(nil).Contains(0))

	single := comments.Spans{{Start: 10, End: 20}}
	assert.False(t, single.Contains(9))
	assert.True(t, single.Contains(10))
	assert.True(t, single.Contains(19))
	assert.False(t, single.Contains(20))
	assert.False(t, single.Contains(35))

	multi := comments.Spans{{Start: 10, End: 12}, {Start: 30, End: 40}, {Start: 50, End: 60}}
	for pos, want := range map[int]bool{5: false, 11: true, 25: false, 35: true, 39: true, 45: false, 55: true, 65: false} {
		assert.Equal(t, want, multi.Contains(pos), "pos %d", pos)
	}
}

func TestSpansCovers(t *testing.T) {
	spans := comments.Spans{{Start: 10, End: 20}}

	assert.True(t, spans.Covers(10, 20))
	assert.True(t, spans.Covers(12, 15))
	assert.False(t, spans.Covers(15, 25))
	assert.False(t, spans.Covers(5, 12))
	assert.True(t, spans.Covers(15, 15))
}
