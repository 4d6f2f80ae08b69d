package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/rxresolve/pkg/rxresolve/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu       sync.RWMutex
	runs     map[string]store.Run
	unknowns map[string]map[string]int
	synonyms map[string]store.Synonym
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		runs:     make(map[string]store.Run),
		unknowns: make(map[string]map[string]int),
		synonyms: make(map[string]store.Synonym),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// CreateRun records a new run.
func (s *Store) CreateRun(ctx context.Context, r store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = r
	return nil
}

// FinishRun overwrites a run with its final counts.
func (s *Store) FinishRun(ctx context.Context, r store.Run) error {
	return s.CreateRun(ctx, r)
}

// GetRun returns a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	return r, ok, nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpsertUnknowns replaces the counts of the given terms for a run.
func (s *Store) UpsertUnknowns(ctx context.Context, runID string, unknowns []store.Unknown) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	terms, ok := s.unknowns[runID]
	if !ok {
		terms = make(map[string]int)
		s.unknowns[runID] = terms
	}
	for _, u := range unknowns {
		terms[u.Term] = u.Count
	}
	return nil
}

// TopUnknowns returns the k most frequent unknowns of a run.
func (s *Store) TopUnknowns(ctx context.Context, runID string, k int) ([]store.Unknown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Unknown, 0, len(s.unknowns[runID]))
	for term, count := range s.unknowns[runID] {
		out = append(out, store.Unknown{Term: term, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// UpsertSynonym stores a synonym keyed by alias.
func (s *Store) UpsertSynonym(ctx context.Context, syn store.Synonym) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synonyms[syn.Alias] = syn
	return nil
}

// Synonyms returns all synonyms sorted by alias.
func (s *Store) Synonyms(ctx context.Context) ([]store.Synonym, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Synonym, 0, len(s.synonyms))
	for _, syn := range s.synonyms {
		out = append(out, syn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out, nil
}
