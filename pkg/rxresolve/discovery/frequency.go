package discovery

import "sort"

// TermCount is an unmatched medication string and its occurrence count.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// FrequencyTable counts raw unmatched medication strings.
// Terms are kept exactly as they appeared in the records; first-seen order
// breaks ties in Top so rankings are deterministic.
type FrequencyTable struct {
	counts map[string]int
	order  []string
}

// NewFrequencyTable creates an empty table.
func NewFrequencyTable() *FrequencyTable {
	return &FrequencyTable{counts: make(map[string]int)}
}

// Add records one occurrence of term.
func (f *FrequencyTable) Add(term string) {
	f.AddN(term, 1)
}

// AddN records n occurrences of term.
func (f *FrequencyTable) AddN(term string, n int) {
	if n <= 0 {
		return
	}
	if _, ok := f.counts[term]; !ok {
		f.order = append(f.order, term)
	}
	f.counts[term] += n
}

// Count returns the occurrences of term.
func (f *FrequencyTable) Count(term string) int {
	return f.counts[term]
}

// Len returns the number of distinct terms.
func (f *FrequencyTable) Len() int {
	return len(f.order)
}

// Total returns the sum of all counts.
func (f *FrequencyTable) Total() int {
	total := 0
	for _, c := range f.counts {
		total += c
	}
	return total
}

// Merge adds other's counts. Terms new to f are appended in other's
// first-seen order.
func (f *FrequencyTable) Merge(other *FrequencyTable) {
	if other == nil {
		return
	}
	for _, term := range other.order {
		f.AddN(term, other.counts[term])
	}
}

// Top returns the n most frequent terms by count descending.
// n <= 0 returns every term.
func (f *FrequencyTable) Top(n int) []TermCount {
	out := make([]TermCount, len(f.order))
	for i, term := range f.order {
		out[i] = TermCount{Term: term, Count: f.counts[term]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
