package query

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/grafana/regexp"

	"github.com/deidaraiorek/codeindex/internal/comments"
	"github.com/deidaraiorek/codeindex/internal/errdefs"
)

// CommentRuleFunc returns the comment rule for a file, if there is one.
type CommentRuleFunc func(path string) (comments.Rule, bool)

type Params struct {
	Search          string
	FolderFilter    string
	ExtensionFilter string
	CaseSensitive   bool
	ExcludeComments bool
	CommentRules    CommentRuleFunc
}

// filters is shared by content and file queries.
type filters struct {
	folder    *IncludeExclude
	extension *IncludeExclude
}

func newFilters(folder, extension string) (filters, error) {
	f := filters{}
	var err error
	if f.folder, err = NewIncludeExclude(ParseFolderFilter(folder), false); err != nil {
		return f, errdefs.NewQueryError(folder, fmt.Sprintf("invalid folder filter: %v", err))
	}
	if f.extension, err = NewIncludeExclude(ParseExtensionFilter(extension), true); err != nil {
		return f, errdefs.NewQueryError(extension, fmt.Sprintf("invalid extension filter: %v", err))
	}
	return f, nil
}

func (f filters) HasFilters() bool {
	return !f.folder.IsEmpty() || !f.extension.IsEmpty()
}

func (f filters) FolderFilter() *IncludeExclude    { return f.folder }
func (f filters) ExtensionFilter() *IncludeExclude { return f.extension }

func (f filters) MatchesFolder(path string) bool {
	return f.folder.Match(path)
}

func (f filters) MatchesExtension(path string) bool {
	return f.extension.Match(filepath.Ext(path))
}

// MatchesFilters applies the folder and the extension filter to path.
func (f filters) MatchesFilters(path string) bool {
	return f.MatchesFolder(path) && f.MatchesExtension(path)
}

type ContentQuery struct {
	filters
	params  Params
	parts   []Part
	pattern string
	re      *regexp.Regexp
}

// NewContentQuery parses p.Search. The search must contain at least one
// word which can be looked up in the index.
func NewContentQuery(p Params) (*ContentQuery, error) {
	f, err := newFilters(p.FolderFilter, p.ExtensionFilter)
	if err != nil {
		return nil, err
	}

	q := &ContentQuery{filters: f, params: p, parts: SplitParts(p.Search)}
	if !q.hasPart(IndexPart) {
		return nil, errdefs.NewQueryError(p.Search, "the search contains no indexed word")
	}

	q.pattern = buildPattern(q.parts)
	expr := q.pattern
	if !p.CaseSensitive {
		expr = "(?i)" + expr
	}
	if q.re, err = regexp.Compile(expr); err != nil {
		return nil, errdefs.NewQueryError(p.Search, fmt.Sprintf("invalid regular expression: %v", err))
	}
	return q, nil
}

func isASCIIWord(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// keywordPattern matches one indexed word. '*' stands for any number of
// word characters. \b only knows ASCII word characters, so a boundary
// next to '#' or a non-ASCII letter would reject "foo# bar" or "über";
// boundaries are only added next to ASCII word characters.
func keywordPattern(kw string) string {
	var sb strings.Builder
	first, _ := utf8.DecodeRuneInString(kw)
	if isASCIIWord(first) {
		sb.WriteString(`\b`)
	}
	for _, c := range kw {
		if c == '*' {
			sb.WriteString(`[\p{L}\p{N}_]*`)
		} else {
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	last, _ := utf8.DecodeLastRuneInString(kw)
	if isASCIIWord(last) {
		sb.WriteString(`\b`)
	}
	return sb.String()
}

func buildPattern(parts []Part) string {
	var exprs []string
	for _, p := range parts {
		switch p.Type {
		case IndexPart:
			exprs = append(exprs, keywordPattern(p.Text))
		case ScanPart:
			for _, c := range p.Text {
				exprs = append(exprs, regexp.QuoteMeta(string(c)))
			}
		case MatchWordsPart:
			n, _ := strconv.Atoi(p.Text)
			expr := `\S+`
			if n > 1 {
				expr += fmt.Sprintf(`(?:\s+\S+){0,%d}`, n-1)
			}
			exprs = append(exprs, expr)
		case RegExPart:
			exprs = append(exprs, "(?:"+p.Text+")")
		}
	}
	return strings.Join(exprs, `\s*`)
}

func (q *ContentQuery) hasPart(t PartType) bool {
	for _, p := range q.parts {
		if p.Type == t {
			return true
		}
	}
	return false
}

func (q *ContentQuery) Search() string         { return q.params.Search }
func (q *ContentQuery) Parts() []Part          { return q.parts }
func (q *ContentQuery) CaseSensitive() bool    { return q.params.CaseSensitive }
func (q *ContentQuery) Regexp() *regexp.Regexp { return q.re }

// Pattern is the regular expression without flags.
func (q *ContentQuery) Pattern() string { return q.pattern }

// IndexedTokens returns the lower-cased words to look up in the index.
func (q *ContentQuery) IndexedTokens() []string {
	var tokens []string
	for _, p := range q.parts {
		if p.Type == IndexPart {
			tokens = append(tokens, strings.ToLower(p.Text))
		}
	}
	return tokens
}

// RequiresVerification reports whether index hits must be confirmed by
// matching the file content: phrases, case sensitive searches and searches
// excluding comments.
func (q *ContentQuery) RequiresVerification() bool {
	if len(q.parts) > 1 {
		for _, p := range q.parts {
			if p.Type != IndexPart {
				return true
			}
		}
	}
	return q.params.CaseSensitive || q.params.ExcludeComments
}

type FileQuery struct {
	filters
	params  Params
	name    string
	pattern *regexp.Regexp
}

// NewFileQuery parses a file name search like "main.cpp" or "test*.*". The
// part after the last '.' acts as extension filter unless an explicit one is
// given.
func NewFileQuery(p Params) (*FileQuery, error) {
	name, extFilter := p.Search, p.ExtensionFilter
	if strings.Contains(name, ".") && extFilter == "" {
		ext := filepath.Ext(name)
		name = strings.TrimSuffix(name, ext)
		if ext != ".*" {
			extFilter = ext
		}
	}

	f, err := newFilters(p.FolderFilter, extFilter)
	if err != nil {
		return nil, err
	}
	q := &FileQuery{filters: f, params: p, name: name}

	if HasWildcard(name) {
		expr := "^" + wildcardPattern(name) + "$"
		if !p.CaseSensitive {
			expr = "(?i)" + expr
		}
		if q.pattern, err = regexp.Compile(expr); err != nil {
			return nil, errdefs.NewQueryError(p.Search, fmt.Sprintf("invalid file name pattern: %v", err))
		}
	}
	return q, nil
}

func (q *FileQuery) Search() string      { return q.params.Search }
func (q *FileQuery) Name() string        { return q.name }
func (q *FileQuery) CaseSensitive() bool { return q.params.CaseSensitive }
func (q *FileQuery) HasWildcard() bool   { return q.pattern != nil }

// NamePattern is the anchored expression for a wildcard name, nil otherwise.
func (q *FileQuery) NamePattern() *regexp.Regexp { return q.pattern }

// MatchesName compares a file name without extension with the search.
func (q *FileQuery) MatchesName(name string) bool {
	switch {
	case q.pattern != nil:
		return q.pattern.MatchString(name)
	case q.params.CaseSensitive:
		return name == q.name
	default:
		return strings.EqualFold(name, q.name)
	}
}

// MatchesPath applies the name comparison and both filters to path.
func (q *FileQuery) MatchesPath(path string) bool {
	base := filepath.Base(path)
	return q.MatchesName(strings.TrimSuffix(base, filepath.Ext(base))) && q.MatchesFilters(path)
}
