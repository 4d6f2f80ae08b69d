package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/cognicore/rxresolve/pkg/rxresolve/internalerr"
)

// resolveCommand asks the resolution API about each name and prints
// name<TAB>ingredient. Names the API cannot resolve print an empty column.
func resolveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	if c.NArg() == 0 {
		return fmt.Errorf("resolve: no names given: %w", internalerr.ErrInvalidInput)
	}

	client := newRxNavClient(cfg.Resolver)
	for _, name := range c.Args().Slice() {
		resolved, err := client.Resolve(c.Context, name)
		if err != nil && !errors.Is(err, internalerr.ErrNotResolved) {
			log.Warn("lookup failed", zap.String("name", name), zap.Error(err))
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", name, resolved)
	}
	return nil
}
