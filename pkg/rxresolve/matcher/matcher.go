// Package matcher resolves free-text medication names to canonical
// vocabulary entries.
//
// Resolution runs short-circuiting tiers in a fixed order:
//
//  1. negative cache: inputs already proven unmatchable return at once
//  2. exact: the normalized input is an index key
//  3. synonym: the input is an alias whose target is an index key
//  4. fuzzy: an index key is a substring of the input, or the reverse
//  5. miss: the input is added to the negative cache
//
// The fuzzy tier costs a full pass over the index, so the negative cache
// is what keeps noisy corpora with many repeated unknowns tractable.
package matcher

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hbollon/go-edlib"

	"github.com/cognicore/rxresolve/pkg/rxresolve/synonym"
	"github.com/cognicore/rxresolve/pkg/rxresolve/vocab"
)

// Tier identifies which resolution step produced a result.
type Tier int

const (
	TierNone Tier = iota
	TierCached
	TierExact
	TierSynonym
	TierFuzzy
)

func (t Tier) String() string {
	switch t {
	case TierCached:
		return "cached"
	case TierExact:
		return "exact"
	case TierSynonym:
		return "synonym"
	case TierFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// Strategy selects how the fuzzy tier picks among substring candidates.
type Strategy string

const (
	// StrategyFirst returns the first candidate in index insertion order.
	StrategyFirst Strategy = "first"
	// StrategyRanked returns the candidate whose key is most similar to
	// the input by Levenshtein similarity. Ties keep insertion order.
	StrategyRanked Strategy = "ranked"
)

// Result describes one resolution.
type Result struct {
	Input      string
	Normalized string
	Canonical  string
	Tier       Tier
}

// Found reports whether the input resolved to a vocabulary entry.
func (r Result) Found() bool {
	return r.Canonical != ""
}

// Stats counts resolutions by tier.
type Stats struct {
	Cached      int64
	Exact       int64
	Synonym     int64
	Fuzzy       int64
	Misses      int64
	CacheSize   int
	FuzzyScans  int64
	IndexKeys   int
	SynonymKeys int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStrategy sets the fuzzy tier strategy. Unknown values fall back to
// StrategyFirst.
func WithStrategy(s Strategy) Option {
	return func(r *Resolver) {
		if s == StrategyRanked {
			r.strategy = StrategyRanked
			return
		}
		r.strategy = StrategyFirst
	}
}

// Resolver matches medication names against a vocabulary index.
//
// The index and synonym map are read-only. The negative cache is the only
// mutable state and is guarded, so one Resolver may serve several scanner
// workers; a fresh Resolver per run (or per test) keeps caches isolated.
type Resolver struct {
	index    *vocab.Index
	synonyms *synonym.Map
	strategy Strategy

	mu       sync.RWMutex
	negative map[string]struct{}

	cached, exact, syn, fuzzy, misses atomic.Int64
}

// New creates a resolver. A nil synonym map behaves as an empty one.
func New(index *vocab.Index, synonyms *synonym.Map, opts ...Option) *Resolver {
	if synonyms == nil {
		synonyms = synonym.New()
	}
	r := &Resolver{
		index:    index,
		synonyms: synonyms,
		strategy: StrategyFirst,
		negative: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Match returns the canonical name for raw, or false when nothing matches.
func (r *Resolver) Match(raw string) (string, bool) {
	res := r.Resolve(raw)
	return res.Canonical, res.Found()
}

// Resolve runs all tiers and records misses in the negative cache.
func (r *Resolver) Resolve(raw string) Result {
	res := r.lookup(raw)
	if res.Tier == TierNone {
		r.mu.Lock()
		r.negative[res.Normalized] = struct{}{}
		r.mu.Unlock()
		r.misses.Add(1)
	}
	return res
}

// Peek runs the cache check and the matching tiers without recording a
// miss. Corpus scans use it to count unknowns without growing the cache.
func (r *Resolver) Peek(raw string) Result {
	return r.lookup(raw)
}

func (r *Resolver) lookup(raw string) Result {
	normalized := vocab.Normalize(raw)
	res := Result{Input: raw, Normalized: normalized}

	r.mu.RLock()
	_, failed := r.negative[normalized]
	r.mu.RUnlock()
	if failed {
		r.cached.Add(1)
		res.Tier = TierCached
		return res
	}

	if canonical, ok := r.index.Lookup(normalized); ok {
		r.exact.Add(1)
		res.Canonical, res.Tier = canonical, TierExact
		return res
	}

	if target, ok := r.synonyms.Lookup(normalized); ok {
		// One hop only: the target must be an index key.
		if canonical, ok := r.index.Lookup(vocab.Normalize(target)); ok {
			r.syn.Add(1)
			res.Canonical, res.Tier = canonical, TierSynonym
			return res
		}
	}

	if canonical, ok := r.scan(normalized); ok {
		r.fuzzy.Add(1)
		res.Canonical, res.Tier = canonical, TierFuzzy
		return res
	}

	return res
}

func (r *Resolver) scan(normalized string) (string, bool) {
	var (
		found     string
		ok        bool
		bestScore float32 = -1
	)
	r.index.Scan(func(key, canonical string) bool {
		if !strings.Contains(normalized, key) && !strings.Contains(key, normalized) {
			return true
		}
		if r.strategy != StrategyRanked {
			found, ok = canonical, true
			return false
		}
		score, err := edlib.StringsSimilarity(normalized, key, edlib.Levenshtein)
		if err != nil {
			score = 0
		}
		if score > bestScore {
			found, ok, bestScore = canonical, true, score
		}
		return score < 1
	})
	return found, ok
}

// Unmatchable reports whether raw is in the negative cache.
func (r *Resolver) Unmatchable(raw string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.negative[vocab.Normalize(raw)]
	return ok
}

// Stats returns a snapshot of resolver counters.
func (r *Resolver) Stats() Stats {
	r.mu.RLock()
	size := len(r.negative)
	r.mu.RUnlock()
	return Stats{
		Cached:      r.cached.Load(),
		Exact:       r.exact.Load(),
		Synonym:     r.syn.Load(),
		Fuzzy:       r.fuzzy.Load(),
		Misses:      r.misses.Load(),
		CacheSize:   size,
		FuzzyScans:  r.index.Scans(),
		IndexKeys:   r.index.Len(),
		SynonymKeys: r.synonyms.Len(),
	}
}
