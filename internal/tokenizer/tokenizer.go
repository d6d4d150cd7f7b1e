package tokenizer

import (
	"iter"
	"strings"

	"github.com/grafana/regexp"
)

// A token is a run of word characters or '#', so identifiers, numbers and
// preprocessor words like "#if" come out whole.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_#]+`)

type Tokenizer struct {
	re *regexp.Regexp
}

func NewTokenizer() *Tokenizer {
	return &Tokenizer{re: tokenPattern}
}

// Tokens yields the tokens of text in order. Every range over the returned
// sequence starts again at the beginning of text.
func (t *Tokenizer) Tokens(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		s := t.Scan(text)
		for {
			tok, ok := s.Next()
			if !ok || !yield(tok) {
				return
			}
		}
	}
}

func (t *Tokenizer) Tokenize(text string) []string {
	tokens := make([]string, 0)
	for tok := range t.Tokens(text) {
		tokens = append(tokens, tok)
	}
	return tokens
}

// TokenizeToKeywords returns the distinct lower-cased tokens of text, which
// is what the index stores per document.
func (t *Tokenizer) TokenizeToKeywords(text string) map[string]struct{} {
	result := make(map[string]struct{})
	for tok := range t.Tokens(text) {
		result[strings.ToLower(tok)] = struct{}{}
	}
	return result
}

func (t *Tokenizer) Scan(text string) *Scanner {
	return &Scanner{re: t.re, text: text}
}

// Scanner walks the tokens of one text. Offset reports the byte position of
// the token most recently returned by Next.
type Scanner struct {
	re     *regexp.Regexp
	text   string
	pos    int
	offset int
}

func (s *Scanner) Next() (string, bool) {
	if s.pos >= len(s.text) {
		return "", false
	}
	loc := s.re.FindStringIndex(s.text[s.pos:])
	if loc == nil {
		s.pos = len(s.text)
		return "", false
	}
	start, end := s.pos+loc[0], s.pos+loc[1]
	s.offset = start
	s.pos = end
	return s.text[start:end], true
}

func (s *Scanner) Offset() int {
	return s.offset
}

func (s *Scanner) Reset() {
	s.pos = 0
	s.offset = 0
}
