package query

import (
	"sort"

	"github.com/deidaraiorek/codeindex/internal/comments"
)

// Match is the byte range [Start, End) of one hit.
type Match struct {
	Start int
	End   int
}

func (q *ContentQuery) commentSpans(text, path string) comments.Spans {
	if !q.params.ExcludeComments || q.params.CommentRules == nil || path == "" {
		return nil
	}
	rule, ok := q.params.CommentRules(path)
	if !ok {
		return nil
	}
	_, spans := comments.Analyze(text, rule)
	return spans
}

// Matches returns all hits in text in order. When comments are excluded,
// hits lying entirely inside a comment of path's language are dropped.
func (q *ContentQuery) Matches(text, path string) []Match {
	spans := q.commentSpans(text, path)

	var result []Match
	for _, loc := range q.re.FindAllStringIndex(text, -1) {
		if spans != nil && spans.Covers(loc[0], loc[1]) {
			continue
		}
		result = append(result, Match{Start: loc[0], End: loc[1]})
	}
	return result
}

// HasMatch reports whether Matches would return at least one hit.
func (q *ContentQuery) HasMatch(text, path string) bool {
	spans := q.commentSpans(text, path)
	if spans == nil {
		return q.re.MatchString(text)
	}
	for _, loc := range q.re.FindAllStringIndex(text, -1) {
		if !spans.Covers(loc[0], loc[1]) {
			return true
		}
	}
	return false
}

// MatchesInRange returns the matches starting within [start, end). matches
// must be sorted by Start.
func MatchesInRange(matches []Match, start, end int) []Match {
	i := sort.Search(len(matches), func(i int) bool { return matches[i].Start >= start })
	j := i
	for j < len(matches) && matches[j].Start < end {
		j++
	}
	return matches[i:j]
}
