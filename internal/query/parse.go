package query

import (
	"strconv"
	"strings"

	"github.com/grafana/regexp"
)

type PartType int

const (
	// IndexPart is a word looked up in the keyword index. It may contain '*'.
	IndexPart PartType = iota + 1
	// ScanPart is literal text between words, spaces removed.
	ScanPart
	// MatchWordsPart ("**N") allows up to N arbitrary words.
	MatchWordsPart
	// RegExPart ("<!expr!>") is inserted into the pattern as is.
	RegExPart
)

func (t PartType) String() string {
	switch t {
	case IndexPart:
		return "index"
	case ScanPart:
		return "scan"
	case MatchWordsPart:
		return "words"
	case RegExPart:
		return "regex"
	default:
		return "unknown"
	}
}

type Part struct {
	Type PartType
	Text string
}

var (
	queryToken = regexp.MustCompile(`[\p{L}\p{N}_#*]+|<!.*?!>`)
	matchWords = regexp.MustCompile(`^\*\*([0-9]+)`)
)

// SplitParts splits a search string into its parts. Tokens consisting only
// of asterisks are not words; they stay part of the surrounding scan text.
func SplitParts(search string) []Part {
	var parts []Part
	pos := 0
	for _, loc := range queryToken.FindAllStringIndex(search, -1) {
		begin, end := loc[0], loc[1]
		token := search[begin:end]
		if strings.Trim(token, "*") == "" {
			continue
		}

		if begin > pos {
			parts = append(parts, Part{Type: ScanPart, Text: trimScan(search[pos:begin])})
		}

		if strings.HasPrefix(token, "<!") {
			parts = append(parts, Part{Type: RegExPart, Text: token[2 : len(token)-2]})
		} else if n, ok := matchWordsCount(token); ok {
			parts = append(parts, Part{Type: MatchWordsPart, Text: n})
		} else {
			parts = append(parts, Part{Type: IndexPart, Text: token})
		}
		pos = end
	}

	if pos < len(search) {
		parts = append(parts, Part{Type: ScanPart, Text: trimScan(search[pos:])})
	}
	return parts
}

// matchWordsCount returns N for a token starting with "**N", N > 0.
// Anything following the number is ignored.
func matchWordsCount(token string) (string, bool) {
	m := matchWords.FindStringSubmatch(token)
	if m == nil {
		return "", false
	}
	n, err := strconv.Atoi(m[1])
	return m[1], err == nil && n > 0
}

func trimScan(s string) string {
	return strings.ReplaceAll(s, " ", "")
}
