package comments

import (
	"sort"

	"github.com/grafana/regexp"
)

var tripleQuote = regexp.MustCompile(`"""|'''`)

// Span is the half-open byte range [Start, End) of a string literal or comment.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int {
	return s.End - s.Start
}

// Spans is sorted by Start.
type Spans []Span

func (s Spans) at(pos int) (Span, bool) {
	i := sort.Search(len(s), func(i int) bool { return s[i].Start > pos })
	if i == 0 {
		return Span{}, false
	}
	return s[i-1], true
}

// Contains reports whether pos lies inside the span starting at or just
// before pos.
func (s Spans) Contains(pos int) bool {
	sp, ok := s.at(pos)
	return ok && pos >= sp.Start && pos < sp.End
}

// Covers reports whether [start, end) lies entirely inside a single span.
func (s Spans) Covers(start, end int) bool {
	if end <= start {
		return s.Contains(start)
	}
	sp, ok := s.at(start)
	return ok && start >= sp.Start && end <= sp.End
}

// FindStrings returns the single and double quoted string literals of text.
// A quote counts as a delimiter when it is preceded by an even number of
// backslashes. Such literals end at a newline. With tripleQuotes set, quotes
// inside """ or ''' blocks are ignored; the blocks themselves are not
// reported as strings.
func FindStrings(text string, tripleQuotes bool) Spans {
	var masked Spans
	if tripleQuotes {
		masked = findTripleQuoted(text)
	}

	var (
		spans Spans
		open  byte
		start int
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\n':
			open = 0
		case c != '"' && c != '\'':
		case masked.Contains(i):
		case backslashesBefore(text, i)%2 != 0:
		case open == 0:
			open, start = c, i
		case open == c:
			spans = append(spans, Span{Start: start, End: i + 1})
			open = 0
		}
	}
	return spans
}

func findTripleQuoted(text string) Spans {
	var (
		spans Spans
		open  string
		start int
	)
	for _, loc := range tripleQuote.FindAllStringIndex(text, -1) {
		if backslashesBefore(text, loc[0])%2 != 0 {
			continue
		}
		q := text[loc[0]:loc[1]]
		switch {
		case open == "":
			open, start = q, loc[0]
		case open == q:
			spans = append(spans, Span{Start: start, End: loc[1]})
			open = ""
		}
	}
	return spans
}

func backslashesBefore(text string, pos int) int {
	n := 0
	for i := pos - 1; i >= 0 && text[i] == '\\'; i-- {
		n++
	}
	return n
}

// FindComments returns the comments of text according to rule. Comment
// starts inside one of strs are ignored, as are block comment starts inside
// a line comment. An unterminated block comment runs to the end of text.
func FindComments(text string, rule Rule, strs Spans) Spans {
	var lines Spans
	if rule.Line != nil {
		for _, loc := range rule.Line.FindAllStringIndex(text, -1) {
			if !strs.Contains(loc[0]) {
				lines = append(lines, Span{Start: loc[0], End: loc[1]})
			}
		}
	}

	result := append(Spans(nil), lines...)
	if rule.BlockStart != nil && rule.BlockStop != nil {
		result = append(result, findBlocks(text, rule, strs, lines)...)
	}
	return merge(result)
}

func findBlocks(text string, rule Rule, strs, lines Spans) Spans {
	var blocks Spans
	pos := 0
	for pos < len(text) {
		loc := rule.BlockStart.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end == start {
			end++
		}
		if strs.Contains(start) || lines.Contains(start) {
			pos = end
			continue
		}
		stop := rule.BlockStop.FindStringIndex(text[end:])
		if stop == nil {
			blocks = append(blocks, Span{Start: start, End: len(text)})
			break
		}
		pos = end + stop[1]
		blocks = append(blocks, Span{Start: start, End: pos})
	}
	return blocks
}

func merge(spans Spans) Spans {
	if len(spans) < 2 {
		return spans
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	merged := spans[:1]
	for _, sp := range spans[1:] {
		prev := merged[len(merged)-1]
		if sp.Start >= prev.Start && sp.End <= prev.End {
			continue
		}
		merged = append(merged, sp)
	}
	return merged
}

// Analyze finds the strings and then the comments of text.
func Analyze(text string, rule Rule) (strs Spans, comments Spans) {
	strs = FindStrings(text, rule.TripleQuotes)
	return strs, FindComments(text, rule, strs)
}
