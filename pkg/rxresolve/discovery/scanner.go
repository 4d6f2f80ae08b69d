// Package discovery scans clinical record corpora for medication names the
// vocabulary cannot resolve, ranks them by frequency, and optionally asks an
// external API to resolve the most common ones into new synonyms.
package discovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/rxresolve/pkg/rxresolve/corpus"
	"github.com/cognicore/rxresolve/pkg/rxresolve/fhir"
	"github.com/cognicore/rxresolve/pkg/rxresolve/matcher"
	"github.com/cognicore/rxresolve/pkg/rxresolve/synonym"
)

// Report aggregates one corpus scan.
type Report struct {
	Sources      int
	SourceErrors int
	Records      int
	ParseErrors  int
	Patients     int

	// NoMedication counts parsed records without any medication entry.
	NoMedication int
	// NoMatch counts records whose medications all failed to resolve.
	NoMatch int

	Mentions int
	Exact    int
	Synonym  int
	Fuzzy    int
	Misses   int

	Unknown *FrequencyTable
	// AutoSynonyms maps normalized mentions resolved by the fuzzy tier to
	// their canonical name, ready to be written out as synonym input.
	AutoSynonyms *synonym.Map
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{
		Unknown:      NewFrequencyTable(),
		AutoSynonyms: synonym.New(),
	}
}

// Matched returns the number of mentions that resolved.
func (r *Report) Matched() int {
	return r.Exact + r.Synonym + r.Fuzzy
}

// Merge folds a partial report into r.
func (r *Report) Merge(o *Report) {
	r.Sources += o.Sources
	r.SourceErrors += o.SourceErrors
	r.Records += o.Records
	r.ParseErrors += o.ParseErrors
	r.Patients += o.Patients
	r.NoMedication += o.NoMedication
	r.NoMatch += o.NoMatch
	r.Mentions += o.Mentions
	r.Exact += o.Exact
	r.Synonym += o.Synonym
	r.Fuzzy += o.Fuzzy
	r.Misses += o.Misses
	r.Unknown.Merge(o.Unknown)
	r.AutoSynonyms.Merge(o.AutoSynonyms)
}

// Scanner runs every medication mention of a corpus through a resolver
// without recording misses in the resolver's negative cache. Misses are
// counted by raw string instead.
type Scanner struct {
	Resolver *matcher.Resolver
	// Workers > 1 scans that many sources concurrently. Each worker fills
	// its own partial report; partials are merged in source order.
	Workers int
	Logger  *zap.Logger
}

// Scan reads all sources and returns the aggregated report. Unreadable
// sources and malformed records are counted, not returned. Only context
// cancellation aborts the scan.
func (s *Scanner) Scan(ctx context.Context, sources []corpus.Source) (*Report, error) {
	if s.Resolver == nil {
		return nil, fmt.Errorf("discovery: scanner has no resolver")
	}
	log := s.logger()

	if s.Workers <= 1 || len(sources) <= 1 {
		report := NewReport()
		for i, src := range sources {
			log.Info("scanning source",
				zap.Int("index", i+1),
				zap.Int("total", len(sources)),
				zap.String("source", src.Name()))
			if err := s.scanSource(ctx, src, report); err != nil {
				return nil, err
			}
		}
		return report, nil
	}

	partials := make([]*Report, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for i, src := range sources {
		g.Go(func() error {
			partial := NewReport()
			log.Info("scanning source",
				zap.Int("index", i+1),
				zap.Int("total", len(sources)),
				zap.String("source", src.Name()))
			if err := s.scanSource(gctx, src, partial); err != nil {
				return err
			}
			partials[i] = partial
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := NewReport()
	for _, p := range partials {
		report.Merge(p)
	}
	return report, nil
}

func (s *Scanner) scanSource(ctx context.Context, src corpus.Source, report *Report) error {
	log := s.logger()
	report.Sources++

	before := report.Records
	err := src.Each(ctx, func(rec corpus.Record) error {
		s.scanRecord(rec, report)
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		report.SourceErrors++
		log.Warn("source failed", zap.String("source", src.Name()), zap.Error(err))
		return nil
	}
	log.Debug("source done",
		zap.String("source", src.Name()),
		zap.Int("records", report.Records-before))
	return nil
}

func (s *Scanner) scanRecord(rec corpus.Record, report *Report) {
	report.Records++
	if !rec.OK() {
		report.ParseErrors++
		s.logger().Debug("skipping malformed record",
			zap.String("source", rec.Source),
			zap.String("record", rec.Name),
			zap.Error(rec.Err))
		return
	}
	if _, ok := fhir.FindPatient(rec.Bundle); ok {
		report.Patients++
	}

	meds := fhir.ExtractMedications(rec.Bundle)
	if len(meds) == 0 {
		report.NoMedication++
		return
	}

	matched := false
	for _, med := range meds {
		report.Mentions++
		res := s.Resolver.Peek(med)
		switch res.Tier {
		case matcher.TierExact:
			report.Exact++
		case matcher.TierSynonym:
			report.Synonym++
		case matcher.TierFuzzy:
			report.Fuzzy++
			report.AutoSynonyms.Set(res.Normalized, res.Canonical)
		default:
			report.Misses++
			report.Unknown.Add(med)
		}
		matched = matched || res.Found()
	}
	if !matched {
		report.NoMatch++
	}
}

func (s *Scanner) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}
