package search

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// CommonKeywords maps a keyword that occurs in most files to its rank. A
// lower rank means a more common, less useful keyword.
type CommonKeywords map[string]int

// ParseCommonKeywords reads one keyword per line, most common first. Empty
// lines are skipped.
func ParseCommonKeywords(r io.Reader) (CommonKeywords, error) {
	ck := make(CommonKeywords)
	scanner := bufio.NewScanner(r)
	rank := 0
	for scanner.Scan() {
		kw := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if kw == "" {
			continue
		}
		if _, ok := ck[kw]; !ok {
			ck[kw] = rank
		}
		rank++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read common keywords: %w", err)
	}
	return ck, nil
}

// LoadCommonKeywords reads the common keyword file at path. An empty path
// yields an empty map.
func LoadCommonKeywords(path string) (CommonKeywords, error) {
	if path == "" {
		return CommonKeywords{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open common keywords: %w", err)
	}
	defer f.Close()
	return ParseCommonKeywords(f)
}

func (ck CommonKeywords) Rank(kw string) (int, bool) {
	rank, ok := ck[kw]
	return rank, ok
}
