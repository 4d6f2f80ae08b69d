package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/cognicore/rxresolve/pkg/rxresolve/internalerr"
	"github.com/cognicore/rxresolve/pkg/rxresolve/store"
	"github.com/cognicore/rxresolve/pkg/rxresolve/store/sqlite"
)

// runsCommand lists ledger runs, newest first.
func runsCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	path := cfg.Store.Path
	if v := c.String("db"); v != "" {
		path = v
	}
	if path == "" {
		return fmt.Errorf("no ledger given (--db or store.path): %w", internalerr.ErrInvalidConfig)
	}

	ledger, err := sqlite.OpenSQLite(c.Context, path)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	runs, err := ledger.ListRuns(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	w := c.App.Writer
	for _, r := range runs {
		took := "running"
		if !r.FinishedAt.IsZero() {
			took = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s  %s  %-8s sources=%d records=%d mentions=%d matched=%d unknown=%d\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), took,
			r.Sources, r.Records, r.Mentions, r.Matched, r.Unknown)
	}

	if k := c.Int("unknowns"); k > 0 && len(runs) > 0 {
		return printUnknowns(c, ledger, runs[0].ID, k)
	}
	return nil
}

func printUnknowns(c *cli.Context, ledger store.Store, runID string, k int) error {
	top, err := ledger.TopUnknowns(c.Context, runID, k)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\nTop unknown medications of %s:\n", runID)
	for i, u := range top {
		fmt.Fprintf(c.App.Writer, "%4d. %-60s %d\n", i+1, u.Term, u.Count)
	}
	return nil
}
