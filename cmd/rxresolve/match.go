package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// matchCommand prints input<TAB>canonical<TAB>tier for every name.
// Unmatched names print an empty canonical column.
func matchCommand(c *cli.Context) error {
	_, comp, log, err := setup(c)
	if err != nil {
		return err
	}
	defer log.Sync()

	out := bufio.NewWriter(c.App.Writer)
	defer out.Flush()

	emit := func(name string) {
		res := comp.Resolver.Resolve(name)
		fmt.Fprintf(out, "%s\t%s\t%s\n", name, res.Canonical, res.Tier)
	}

	if c.NArg() > 0 {
		for _, name := range c.Args().Slice() {
			emit(name)
		}
	} else {
		scanner := bufio.NewScanner(c.App.Reader)
		for scanner.Scan() {
			line := strings.TrimRight(scanner.Text(), "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			emit(line)
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}

	stats := comp.Resolver.Stats()
	log.Debug("match done",
		zap.Int64("exact", stats.Exact),
		zap.Int64("synonym", stats.Synonym),
		zap.Int64("fuzzy", stats.Fuzzy),
		zap.Int64("cached", stats.Cached),
		zap.Int64("misses", stats.Misses))
	return nil
}
