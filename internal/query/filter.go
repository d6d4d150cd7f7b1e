package query

import (
	"strings"

	"github.com/grafana/regexp"
)

// FilterItem is one entry of a comma separated filter list. Pattern may
// contain the wildcards '*' and '?'.
type FilterItem struct {
	Pattern string
	Include bool
}

// ParseExtensionFilter parses "cpp, *.h, -.txt, ." into ".ext" items. A
// lone "." selects files without extension and becomes "".
func ParseExtensionFilter(s string) []FilterItem {
	var items []FilterItem
	for _, item := range strings.Split(strings.ToLower(s), ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		include := true
		if strings.HasPrefix(item, "-") {
			item = strings.TrimSpace(item[1:])
			include = false
		}
		item = strings.TrimPrefix(item, "*.")
		if !strings.HasPrefix(item, ".") {
			item = "." + item
		}
		if item == "." {
			item = ""
		}
		items = append(items, FilterItem{Pattern: item, Include: include})
	}
	return items
}

func ParseFolderFilter(s string) []FilterItem {
	var items []FilterItem
	for _, item := range strings.Split(strings.ToLower(strings.TrimSpace(s)), ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.HasPrefix(item, "-") {
			if item = item[1:]; item != "" {
				items = append(items, FilterItem{Pattern: item, Include: false})
			}
			continue
		}
		items = append(items, FilterItem{Pattern: item, Include: true})
	}
	return items
}

// HasWildcard reports whether s contains '*' or '?'.
func HasWildcard(s string) bool {
	return strings.ContainsAny(s, "*?")
}

// wildcardPattern converts a wildcard string to a regular expression.
func wildcardPattern(s string) string {
	var sb strings.Builder
	for _, c := range s {
		switch c {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return sb.String()
}

// IncludeExclude matches text against include and exclude wildcard lists.
// Without fullMatch a pattern may match anywhere in the text.
type IncludeExclude struct {
	include   *regexp.Regexp
	exclude   *regexp.Regexp
	includes  []string
	excludes  []string
	fullMatch bool
}

func NewIncludeExclude(items []FilterItem, fullMatch bool) (*IncludeExclude, error) {
	ie := &IncludeExclude{fullMatch: fullMatch}
	for _, item := range items {
		if item.Include {
			ie.includes = append(ie.includes, item.Pattern)
		} else {
			ie.excludes = append(ie.excludes, item.Pattern)
		}
	}

	var err error
	if ie.include, err = ie.compile(ie.includes); err != nil {
		return nil, err
	}
	if ie.exclude, err = ie.compile(ie.excludes); err != nil {
		return nil, err
	}
	return ie, nil
}

func (ie *IncludeExclude) compile(patterns []string) (*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	alts := make([]string, len(patterns))
	for i, p := range patterns {
		alts[i] = wildcardPattern(p)
	}
	expr := "(?i)(?:" + strings.Join(alts, "|") + ")"
	if ie.fullMatch {
		expr = "(?i)^(?:" + strings.Join(alts, "|") + ")$"
	}
	return regexp.Compile(expr)
}

func (ie *IncludeExclude) IsEmpty() bool {
	return ie.include == nil && ie.exclude == nil
}

func (ie *IncludeExclude) Includes() []string { return ie.includes }
func (ie *IncludeExclude) Excludes() []string { return ie.excludes }

// Match reports whether text passes. Excludes are checked first.
func (ie *IncludeExclude) Match(text string) bool {
	if ie.exclude != nil && ie.exclude.MatchString(text) {
		return false
	}
	if ie.include != nil {
		return ie.include.MatchString(text)
	}
	return true
}
