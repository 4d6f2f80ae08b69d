package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/rxresolve/pkg/rxresolve/internalerr"
	"github.com/cognicore/rxresolve/pkg/rxresolve/matcher"
)

// Config holds everything a resolution or discovery run needs.
type Config struct {
	// Vocabulary is the JSON file holding {"drugs": [...]}.
	Vocabulary string `yaml:"vocabulary"`
	// Synonyms is the optional alias -> target JSON map.
	Synonyms string `yaml:"synonyms"`
	// CuratedSynonyms is an optional YAML file of synonym groups.
	CuratedSynonyms string `yaml:"curated_synonyms"`

	Match    MatchConfig    `yaml:"match"`
	Scan     ScanConfig     `yaml:"scan"`
	Resolver ResolverConfig `yaml:"resolver"`
	Output   OutputConfig   `yaml:"output"`
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`
}

// MatchConfig tunes the matcher.
type MatchConfig struct {
	Strategy matcher.Strategy `yaml:"strategy"`
}

// ScanConfig controls the corpus discovery pass.
type ScanConfig struct {
	// Archives is a glob of corpus paths, e.g. /data/synthea/output_*.tar.gz.
	Archives     string `yaml:"archives"`
	MaxArchives  int    `yaml:"max_archives"`
	EntryPattern string `yaml:"entry_pattern"`
	Workers      int    `yaml:"workers"`
	TopN         int    `yaml:"top_n"`
}

// ResolverConfig configures the external synonym resolution API.
type ResolverConfig struct {
	Enabled   bool              `yaml:"enabled"`
	BaseURL   string            `yaml:"base_url"`
	Delay     time.Duration     `yaml:"delay"`
	Timeout   time.Duration     `yaml:"timeout"`
	CacheSize int               `yaml:"cache_size"`
	Overrides map[string]string `yaml:"overrides"`
}

// OutputConfig names the files a discovery run writes.
type OutputConfig struct {
	SynonymMap string `yaml:"synonym_map"`
}

// StoreConfig points at the optional SQLite run ledger.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures the zap logger built by the CLI.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Vocabulary: "data/drug_vocabulary.json",
		Synonyms:   "data/synonym_map.json",
		Match:      MatchConfig{Strategy: matcher.StrategyFirst},
		Scan: ScanConfig{
			MaxArchives:  12,
			EntryPattern: "**/*.json",
			Workers:      1,
			TopN:         50,
		},
		Resolver: ResolverConfig{
			Enabled:   true,
			BaseURL:   "https://rxnav.nlm.nih.gov",
			Delay:     200 * time.Millisecond,
			Timeout:   10 * time.Second,
			CacheSize: 1024,
		},
		Output: OutputConfig{SynonymMap: "data/synonym_map.json"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads a YAML config file on top of Default. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	switch c.Match.Strategy {
	case "", matcher.StrategyFirst, matcher.StrategyRanked:
	default:
		return fmt.Errorf("match.strategy %q: %w", c.Match.Strategy, internalerr.ErrInvalidConfig)
	}
	if c.Vocabulary == "" {
		return fmt.Errorf("vocabulary path required: %w", internalerr.ErrInvalidConfig)
	}
	if c.Scan.Workers < 0 {
		return fmt.Errorf("scan.workers %d: %w", c.Scan.Workers, internalerr.ErrInvalidConfig)
	}
	if c.Scan.TopN < 0 {
		return fmt.Errorf("scan.top_n %d: %w", c.Scan.TopN, internalerr.ErrInvalidConfig)
	}
	if c.Scan.MaxArchives < 0 {
		return fmt.Errorf("scan.max_archives %d: %w", c.Scan.MaxArchives, internalerr.ErrInvalidConfig)
	}
	if c.Resolver.Delay < 0 || c.Resolver.Timeout < 0 {
		return fmt.Errorf("resolver delay and timeout must not be negative: %w", internalerr.ErrInvalidConfig)
	}
	return nil
}
