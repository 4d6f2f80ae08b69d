package discovery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cognicore/rxresolve/pkg/rxresolve/synonym"
)

// DefaultDelay is the pause between resolution requests.
const DefaultDelay = 200 * time.Millisecond

// NameResolver looks up a canonical ingredient for a drug mention.
// *rxnav.Client implements it.
type NameResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// Resolution is one successful lookup.
type Resolution struct {
	Term     string `json:"term"`
	Count    int    `json:"count"`
	Resolved string `json:"resolved"`
}

// ResolveSummary reports a resolution pass.
type ResolveSummary struct {
	Attempted  int
	Skipped    int
	Failed     int
	Resolved   []Resolution
	Unresolved []TermCount
}

// ResolvePass asks an external resolver about frequent unknown terms and
// records hits as synonyms. Lookup failures leave the term unresolved and
// are never retried.
type ResolvePass struct {
	Client NameResolver
	// Delay is waited between consecutive requests.
	Delay  time.Duration
	Logger *zap.Logger
}

// Run resolves terms in order and adds hits to syn under the normalized
// term. Terms syn already maps are skipped. Cancelling ctx stops the pass
// and returns what was resolved so far along with ctx's error.
func (p *ResolvePass) Run(ctx context.Context, terms []TermCount, syn *synonym.Map) (ResolveSummary, error) {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var summary ResolveSummary
	for _, tc := range terms {
		if syn.Has(tc.Term) {
			summary.Skipped++
			continue
		}
		if summary.Attempted > 0 && p.Delay > 0 {
			if err := sleep(ctx, p.Delay); err != nil {
				return summary, err
			}
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		summary.Attempted++
		resolved, err := p.Client.Resolve(ctx, tc.Term)
		if err != nil || resolved == "" {
			summary.Failed++
			summary.Unresolved = append(summary.Unresolved, tc)
			log.Info("could not resolve", zap.String("term", tc.Term), zap.Int("count", tc.Count), zap.Error(err))
			continue
		}

		syn.Set(tc.Term, resolved)
		summary.Resolved = append(summary.Resolved, Resolution{Term: tc.Term, Count: tc.Count, Resolved: resolved})
		log.Info("resolved", zap.String("term", tc.Term), zap.String("resolved", resolved))
	}
	return summary, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
