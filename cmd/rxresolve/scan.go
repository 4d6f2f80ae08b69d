package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/cognicore/rxresolve/internal/rxnav"
	"github.com/cognicore/rxresolve/pkg/rxresolve/config"
	"github.com/cognicore/rxresolve/pkg/rxresolve/corpus"
	"github.com/cognicore/rxresolve/pkg/rxresolve/discovery"
	"github.com/cognicore/rxresolve/pkg/rxresolve/internalerr"
	"github.com/cognicore/rxresolve/pkg/rxresolve/store"
	"github.com/cognicore/rxresolve/pkg/rxresolve/store/sqlite"
	"github.com/cognicore/rxresolve/pkg/rxresolve/synonym"
	"github.com/cognicore/rxresolve/pkg/rxresolve/vocab"
)

func scanCommand(c *cli.Context) error {
	cfg, comp, log, err := setup(c)
	if err != nil {
		return err
	}
	defer log.Sync()

	if v := c.String("archives"); v != "" {
		cfg.Scan.Archives = v
	}
	if v := c.Int("max-archives"); v > 0 {
		cfg.Scan.MaxArchives = v
	}
	if v := c.Int("workers"); v > 0 {
		cfg.Scan.Workers = v
	}
	if v := c.Int("top"); v > 0 {
		cfg.Scan.TopN = v
	}
	if c.Bool("no-resolve") {
		cfg.Resolver.Enabled = false
	}
	if v := c.String("out"); v != "" {
		cfg.Output.SynonymMap = v
	}
	if v := c.String("db"); v != "" {
		cfg.Store.Path = v
	}
	if cfg.Scan.Archives == "" {
		return fmt.Errorf("no corpus given (--archives or scan.archives): %w", internalerr.ErrInvalidConfig)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	paths, err := corpus.Discover(cfg.Scan.Archives, cfg.Scan.MaxArchives)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no corpus matches %q: %w", cfg.Scan.Archives, internalerr.ErrNotFound)
	}
	var sources []corpus.Source
	for _, p := range paths {
		src, err := corpus.Open(p, cfg.Scan.EntryPattern)
		if err != nil {
			log.Warn("skipping corpus path", zap.String("path", p), zap.Error(err))
			continue
		}
		sources = append(sources, src)
	}
	log.Info("corpus discovered", zap.Int("paths", len(paths)), zap.Int("sources", len(sources)))

	var ledger store.Store
	run := store.Run{ID: store.NewRunID(), StartedAt: time.Now()}
	if cfg.Store.Path != "" {
		ledger, err = sqlite.OpenSQLite(ctx, cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer ledger.Close()
		if err := ledger.CreateRun(ctx, run); err != nil {
			return fmt.Errorf("create run: %w", err)
		}
	}

	scanner := &discovery.Scanner{Resolver: comp.Resolver, Workers: cfg.Scan.Workers, Logger: log}
	report, err := scanner.Scan(ctx, sources)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	top := report.Unknown.Top(cfg.Scan.TopN)
	printReport(c.App.Writer, report, top)

	learned := synonym.New()
	learned.Merge(comp.Synonyms)
	learned.Merge(report.AutoSynonyms)

	var summary discovery.ResolveSummary
	if cfg.Resolver.Enabled && len(top) > 0 {
		pass := &discovery.ResolvePass{
			Client: newRxNavClient(cfg.Resolver),
			Delay:  cfg.Resolver.Delay,
			Logger: log,
		}
		summary, err = pass.Run(ctx, top, learned)
		if err != nil {
			log.Warn("resolution pass interrupted", zap.Error(err))
		}
		printResolutions(c.App.Writer, summary)
	}

	if cfg.Output.SynonymMap != "" {
		if err := synonym.WriteJSON(cfg.Output.SynonymMap, learned); err != nil {
			return fmt.Errorf("write synonym map: %w", err)
		}
		log.Info("synonym map written",
			zap.String("path", cfg.Output.SynonymMap),
			zap.Int("entries", learned.Len()))
	}

	if ledger != nil {
		// The scan context may be cancelled by now; the ledger still
		// records what was gathered.
		if err := recordRun(context.WithoutCancel(ctx), ledger, run, report, summary); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		log.Info("run recorded", zap.String("run", run.ID), zap.String("db", cfg.Store.Path))
	}
	return nil
}

func newRxNavClient(cfg config.ResolverConfig) *rxnav.Client {
	overrides := make(map[string]string, len(rxnav.DefaultOverrides)+len(cfg.Overrides))
	for k, v := range rxnav.DefaultOverrides {
		overrides[k] = v
	}
	for k, v := range cfg.Overrides {
		overrides[k] = v
	}
	client := rxnav.New(cfg.BaseURL, overrides, cfg.CacheSize)
	if cfg.Timeout > 0 {
		client.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return client
}

func recordRun(ctx context.Context, ledger store.Store, run store.Run, report *discovery.Report, summary discovery.ResolveSummary) error {
	run.FinishedAt = time.Now()
	run.Sources = report.Sources
	run.SourceErrors = report.SourceErrors
	run.Records = report.Records
	run.ParseErrors = report.ParseErrors
	run.Mentions = report.Mentions
	run.Matched = report.Matched()
	run.Unknown = report.Unknown.Len()

	all := report.Unknown.Top(0)
	unknowns := make([]store.Unknown, 0, len(all))
	for _, tc := range all {
		unknowns = append(unknowns, store.Unknown{Term: tc.Term, Count: tc.Count})
	}
	if err := ledger.UpsertUnknowns(ctx, run.ID, unknowns); err != nil {
		return err
	}

	for _, e := range report.AutoSynonyms.Entries() {
		syn := store.Synonym{Alias: e.Alias, Target: e.Target, Source: store.SourceFuzzy, RunID: run.ID}
		if err := ledger.UpsertSynonym(ctx, syn); err != nil {
			return err
		}
	}
	for _, r := range summary.Resolved {
		syn := store.Synonym{Alias: vocab.Normalize(r.Term), Target: r.Resolved, Source: store.SourceAPI, RunID: run.ID}
		if err := ledger.UpsertSynonym(ctx, syn); err != nil {
			return err
		}
	}
	return ledger.FinishRun(ctx, run)
}

func printReport(w io.Writer, r *discovery.Report, top []discovery.TermCount) {
	fmt.Fprintf(w, "Sources:        %d (%d failed)\n", r.Sources, r.SourceErrors)
	fmt.Fprintf(w, "Records:        %d (%d malformed)\n", r.Records, r.ParseErrors)
	fmt.Fprintf(w, "Patients:       %d\n", r.Patients)
	fmt.Fprintf(w, "No medication:  %d\n", r.NoMedication)
	fmt.Fprintf(w, "No match:       %d\n", r.NoMatch)
	fmt.Fprintf(w, "Mentions:       %d\n", r.Mentions)
	fmt.Fprintf(w, "Matched:        %d (exact %d, synonym %d, fuzzy %d)\n", r.Matched(), r.Exact, r.Synonym, r.Fuzzy)
	fmt.Fprintf(w, "Unknown:        %d mentions, %d distinct\n", r.Misses, r.Unknown.Len())
	if len(top) == 0 {
		return
	}
	fmt.Fprintf(w, "\nTop %d unknown medications:\n", len(top))
	for i, tc := range top {
		fmt.Fprintf(w, "%4d. %-60s %d\n", i+1, tc.Term, tc.Count)
	}
}

func printResolutions(w io.Writer, s discovery.ResolveSummary) {
	fmt.Fprintf(w, "\nResolution: %d attempted, %d resolved, %d unresolved, %d already mapped\n",
		s.Attempted, len(s.Resolved), s.Failed, s.Skipped)
	for _, r := range s.Resolved {
		fmt.Fprintf(w, "  %s -> %s\n", r.Term, r.Resolved)
	}
}
