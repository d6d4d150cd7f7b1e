package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/deidaraiorek/codeindex/internal/comments"
	"github.com/deidaraiorek/codeindex/internal/walker"
)

const DefaultPath = "codeindex.toml"

type UpdateMode string

const (
	UpdateNone      UpdateMode = "none"
	UpdateManual    UpdateMode = "manual"
	UpdateTriggered UpdateMode = "triggered"
)

type IndexType string

const (
	TypeContent        IndexType = "content"
	TypeName           IndexType = "name"
	TypeContentAndName IndexType = "content+name"
)

type Config struct {
	LogLevel       string              `toml:"log_level"`
	LogFile        string              `toml:"log_file"`
	CommonKeywords string              `toml:"common_keywords"`
	Search         SearchConfig        `toml:"search"`
	Indexes        []IndexConfig       `toml:"index"`
	CommentRules   []CommentRuleConfig `toml:"comment_rule"`
}

type SearchConfig struct {
	// Common keywords are only used while more documents than this remain.
	CommonKeywordThreshold int `toml:"common_keyword_threshold"`
	VerifyWorkers          int `toml:"verify_workers"`
}

type IndexConfig struct {
	Name        string     `toml:"name"`
	IndexDB     string     `toml:"indexdb"`
	Directories []string   `toml:"directories"`
	Extensions  []string   `toml:"extensions"`
	DirExcludes []string   `toml:"dir_excludes"`
	UpdateMode  UpdateMode `toml:"update_mode"`
	Type        IndexType  `toml:"type"`
}

type CommentRuleConfig struct {
	Extensions   []string `toml:"extensions"`
	Line         string   `toml:"line"`
	BlockStart   string   `toml:"block_start"`
	BlockStop    string   `toml:"block_stop"`
	TripleQuotes bool     `toml:"triple_quotes"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Search: SearchConfig{
			CommonKeywordThreshold: 100,
			VerifyWorkers:          4,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, fmt.Errorf("invalid config at line %d, column %d: %w", row, col, err)
		}
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	for i := range c.Indexes {
		idx := &c.Indexes[i]
		if idx.UpdateMode == "" {
			idx.UpdateMode = UpdateTriggered
		}
		if idx.Type == "" {
			idx.Type = TypeContent
		}
		for j, ext := range idx.Extensions {
			idx.Extensions[j] = walker.NormalizeExtension(ext)
		}
		for j, dir := range idx.Directories {
			idx.Directories[j] = filepath.Clean(dir)
		}
		if idx.IndexDB != "" {
			idx.IndexDB = filepath.Clean(idx.IndexDB)
		}
	}
	if c.Search.CommonKeywordThreshold <= 0 {
		c.Search.CommonKeywordThreshold = 100
	}
	if c.Search.VerifyWorkers <= 0 {
		c.Search.VerifyWorkers = 1
	}
}

func (c *Config) Validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for i, idx := range c.Indexes {
		switch idx.UpdateMode {
		case UpdateNone, UpdateManual, UpdateTriggered:
		default:
			return fmt.Errorf("index %d: unknown update_mode %q", i+1, idx.UpdateMode)
		}
		switch idx.Type {
		case TypeContent, TypeName, TypeContentAndName:
		default:
			return fmt.Errorf("index %d: unknown type %q", i+1, idx.Type)
		}
		if idx.GeneratesIndex() && idx.IndexDB == "" {
			return fmt.Errorf("index %d: indexdb is required", i+1)
		}
		if len(idx.Directories) == 0 {
			return fmt.Errorf("index %d: at least one directory is required", i+1)
		}

		name := strings.ToLower(idx.DisplayName())
		if name == "" {
			return fmt.Errorf("index %d: name is required when no indexdb is set", i+1)
		}
		if seen[name] {
			return fmt.Errorf("index %d: duplicate index name %q", i+1, idx.DisplayName())
		}
		seen[name] = true
	}

	for i, r := range c.CommentRules {
		if len(r.Extensions) == 0 {
			return fmt.Errorf("comment_rule %d: extensions are required", i+1)
		}
		if _, err := comments.NewRule(r.Line, r.BlockStart, r.BlockStop, r.TripleQuotes); err != nil {
			return fmt.Errorf("comment_rule %d: %w", i+1, err)
		}
	}
	return nil
}

// Index returns the index with the given display name, compared
// case-insensitively.
func (c *Config) Index(name string) (IndexConfig, bool) {
	for _, idx := range c.Indexes {
		if strings.EqualFold(idx.DisplayName(), name) {
			return idx, true
		}
	}
	return IndexConfig{}, false
}

// CommentRegistry returns the built-in comment rules extended by the
// configured ones.
func (c *Config) CommentRegistry() (*comments.Registry, error) {
	reg := comments.DefaultRegistry()
	for i, r := range c.CommentRules {
		rule, err := comments.NewRule(r.Line, r.BlockStart, r.BlockStop, r.TripleQuotes)
		if err != nil {
			return nil, fmt.Errorf("comment_rule %d: %w", i+1, err)
		}
		if err := reg.Add(r.Extensions, rule); err != nil {
			return nil, fmt.Errorf("comment_rule %d: %w", i+1, err)
		}
	}
	return reg, nil
}

func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", s)
	}
	return level, nil
}

// DisplayName is the configured name or the base name of the index file.
func (i IndexConfig) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	base := filepath.Base(i.IndexDB)
	if i.IndexDB == "" || base == "." {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (i IndexConfig) GeneratesIndex() bool {
	return i.UpdateMode != UpdateNone
}

func (i IndexConfig) IsContentIndexed() bool {
	return i.GeneratesIndex() && (i.Type == TypeContent || i.Type == TypeContentAndName)
}

func (i IndexConfig) IsFileNameIndexed() bool {
	return i.GeneratesIndex() && (i.Type == TypeName || i.Type == TypeContentAndName)
}
