package comments

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/grafana/regexp"
)

// Rule describes how comments look in one language. Any of the patterns may
// be nil.
type Rule struct {
	Line         *regexp.Regexp
	BlockStart   *regexp.Regexp
	BlockStop    *regexp.Regexp
	TripleQuotes bool
}

func NewRule(line, blockStart, blockStop string, tripleQuotes bool) (Rule, error) {
	rule := Rule{TripleQuotes: tripleQuotes}
	var err error
	if rule.Line, err = compileOptional(line); err != nil {
		return Rule{}, fmt.Errorf("invalid line comment pattern: %w", err)
	}
	if rule.BlockStart, err = compileOptional(blockStart); err != nil {
		return Rule{}, fmt.Errorf("invalid block comment start: %w", err)
	}
	if rule.BlockStop, err = compileOptional(blockStop); err != nil {
		return Rule{}, fmt.Errorf("invalid block comment stop: %w", err)
	}
	return rule, nil
}

func compileOptional(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	return regexp.Compile(expr)
}

type mapping struct {
	pattern      string
	significance int
	rule         Rule
}

// Registry maps file extension glob patterns to comment rules.
type Registry struct {
	mu       sync.RWMutex
	mappings []mapping
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers rule for each extension pattern ("cpp", "h*", "py?").
// Patterns are matched without the leading dot and case-insensitively.
func (r *Registry) Add(patterns []string, rule Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range patterns {
		p = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(p), "."))
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid extension pattern %q", p)
		}
		r.mappings = append(r.mappings, mapping{
			pattern:      p,
			significance: significance(p),
			rule:         rule,
		})
	}
	return nil
}

// significance is the number of non wildcard characters, so "cpp" beats "c*".
func significance(pattern string) int {
	n := 0
	for _, c := range pattern {
		switch c {
		case '*', '?', '[', ']', '{', '}', ',':
		default:
			n++
		}
	}
	return n
}

// Lookup returns the rule of the most significant pattern matching the
// extension of path. On a tie the pattern added last wins.
func (r *Registry) Lookup(path string) (Rule, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	r.mu.RLock()
	defer r.mu.RUnlock()

	best := -1
	var rule Rule
	for _, m := range r.mappings {
		ok, err := doublestar.Match(m.pattern, ext)
		if err != nil || !ok {
			continue
		}
		if m.significance >= best {
			best = m.significance
			rule = m.rule
		}
	}
	return rule, best >= 0
}

var defaultRules = []struct {
	extensions   []string
	line         string
	blockStart   string
	blockStop    string
	tripleQuotes bool
}{
	{
		extensions: []string{"c", "cc", "cpp", "cxx", "h", "hh", "hpp", "hxx", "inl", "java", "js", "ts", "go", "cs", "rs", "swift", "kt", "scala", "m", "mm", "php"},
		line:       `//[^\n]*`,
		blockStart: `/\*`,
		blockStop:  `\*/`,
	},
	{
		extensions:   []string{"py", "pyw"},
		line:         `#[^\n]*`,
		blockStart:   `"""`,
		blockStop:    `"""`,
		tripleQuotes: true,
	},
	{
		extensions: []string{"sh", "bash", "zsh", "pl", "pm", "rb", "r", "cmake", "yml", "yaml", "toml", "ps1", "mk"},
		line:       `#[^\n]*`,
	},
	{
		extensions: []string{"sql"},
		line:       `--[^\n]*`,
		blockStart: `/\*`,
		blockStop:  `\*/`,
	},
	{
		extensions: []string{"lua", "hs", "ada", "adb", "ads"},
		line:       `--[^\n]*`,
	},
}

func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range defaultRules {
		rule, err := NewRule(d.line, d.blockStart, d.blockStop, d.tripleQuotes)
		if err != nil {
			panic(err)
		}
		if err := r.Add(d.extensions, rule); err != nil {
			panic(err)
		}
	}
	return r
}
