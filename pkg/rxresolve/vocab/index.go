package vocab

import (
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// minFirstTokenLen is the exclusive lower bound on first-token keys.
// "ibuprofen 200mg" indexes "ibuprofen"; "zzz 200mg" does not index "zzz".
const minFirstTokenLen = 3

// Normalize lowercases a name and trims surrounding whitespace.
// Every lookup key in the resolver goes through Normalize first.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Index maps normalized keys to canonical vocabulary names.
//
// Two keys are inserted per vocabulary entry:
//   - the full normalized name
//   - its first space-delimited token, when longer than 3 characters
//
// Keys keep the position of their first insertion. Re-inserting a key
// replaces its canonical name (last write wins) without moving it, so
// Scan always visits keys in first-insertion order.
//
// An Index is read-only once Build returns and is safe for concurrent reads.
type Index struct {
	keys      []string
	canonical []string
	pos       map[string]int
	scans     atomic.Int64
}

// Build creates the lookup index for an ordered vocabulary.
func Build(names []string) *Index {
	idx := &Index{
		keys:      make([]string, 0, len(names)*2),
		canonical: make([]string, 0, len(names)*2),
		pos:       make(map[string]int, len(names)*2),
	}
	for _, name := range names {
		normalized := Normalize(name)
		if normalized == "" {
			continue
		}
		idx.insert(normalized, name)

		first, _, _ := strings.Cut(normalized, " ")
		if utf8.RuneCountInString(first) > minFirstTokenLen {
			idx.insert(first, name)
		}
	}
	return idx
}

func (idx *Index) insert(key, name string) {
	if i, ok := idx.pos[key]; ok {
		idx.canonical[i] = name
		return
	}
	idx.pos[key] = len(idx.keys)
	idx.keys = append(idx.keys, key)
	idx.canonical = append(idx.canonical, name)
}

// Lookup returns the canonical name stored under an already-normalized key.
func (idx *Index) Lookup(key string) (string, bool) {
	i, ok := idx.pos[key]
	if !ok {
		return "", false
	}
	return idx.canonical[i], true
}

// Has reports whether key is an index key.
func (idx *Index) Has(key string) bool {
	_, ok := idx.pos[key]
	return ok
}

// Len returns the number of distinct keys.
func (idx *Index) Len() int {
	return len(idx.keys)
}

// Keys returns a copy of the index keys in insertion order.
func (idx *Index) Keys() []string {
	out := make([]string, len(idx.keys))
	copy(out, idx.keys)
	return out
}

// Scan calls fn for every key in insertion order until fn returns false.
func (idx *Index) Scan(fn func(key, canonical string) bool) {
	idx.scans.Add(1)
	for i, key := range idx.keys {
		if !fn(key, idx.canonical[i]) {
			return
		}
	}
}

// Scans returns how many times Scan has been called.
func (idx *Index) Scans() int64 {
	return idx.scans.Load()
}
