package synonym

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/rxresolve/pkg/rxresolve/vocab"
)

// Map stores alias -> target mappings for drug names:
// - Brand -> generic (nexplanon -> etonogestrel)
// - Misspellings and formulations seen in clinical records
// - Auto-mapped fuzzy hits discovered by a corpus scan
//
// Aliases are normalized on insert. Targets are kept as written and
// only normalized at lookup time, because a target may be any spelling
// of a vocabulary entry. A Map resolves exactly one hop: targets are
// never looked up again as aliases.
type Map struct {
	entries map[string]string
}

// Entry is a single alias mapping.
type Entry struct {
	Alias  string
	Target string
}

// New creates an empty synonym map.
func New() *Map {
	return &Map{entries: make(map[string]string)}
}

// FromEntries builds a map from alias -> target pairs.
func FromEntries(pairs map[string]string) *Map {
	m := New()
	for alias, target := range pairs {
		m.Set(alias, target)
	}
	return m
}

// Set maps alias to target. Blank aliases or targets are ignored.
func (m *Map) Set(alias, target string) {
	alias = vocab.Normalize(alias)
	if alias == "" || strings.TrimSpace(target) == "" {
		return
	}
	m.entries[alias] = target
}

// Lookup returns the target for an alias.
func (m *Map) Lookup(alias string) (string, bool) {
	if m == nil {
		return "", false
	}
	target, ok := m.entries[vocab.Normalize(alias)]
	return target, ok
}

// Has reports whether alias is mapped.
func (m *Map) Has(alias string) bool {
	_, ok := m.Lookup(alias)
	return ok
}

// Len returns the number of aliases.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns all mappings sorted by alias.
func (m *Map) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, 0, len(m.entries))
	for alias, target := range m.entries {
		out = append(out, Entry{Alias: alias, Target: target})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

// Merge copies other's mappings into m. Entries from other win.
func (m *Map) Merge(other *Map) {
	if other == nil {
		return
	}
	for alias, target := range other.entries {
		m.entries[alias] = target
	}
}

// LoadJSON loads an alias -> target JSON object.
// A missing file yields an empty map: the synonym source is optional.
func LoadJSON(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, err
	}

	var pairs map[string]string
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return FromEntries(pairs), nil
}

// LoadYAML loads curated synonym groups.
//
// Expected format:
//
//	synonyms:
//	  - canonical: Etonogestrel
//	    variants: [nexplanon, implanon]
//	  - canonical: Naproxen
//	    variants: [aleve, naprosyn]
//
// Every variant maps to its group's canonical name.
func LoadYAML(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config struct {
		Synonyms []struct {
			Canonical string   `yaml:"canonical"`
			Variants  []string `yaml:"variants"`
		} `yaml:"synonyms"`
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m := New()
	for _, group := range config.Synonyms {
		canonical := strings.TrimSpace(group.Canonical)
		for _, v := range group.Variants {
			if vocab.Normalize(v) == vocab.Normalize(canonical) {
				continue
			}
			m.Set(v, canonical)
		}
	}
	return m, nil
}

// WriteJSON writes m as an indented JSON object sorted by alias.
// The file is replaced atomically so a crashed run never leaves a
// truncated map behind.
func WriteJSON(path string, m *Map) error {
	pairs := make(map[string]string, m.Len())
	for _, e := range m.Entries() {
		pairs[e.Alias] = e.Target
	}
	data, err := json.MarshalIndent(pairs, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".synonyms-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
