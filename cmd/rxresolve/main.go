// Command rxresolve maps free-text medication names to a canonical drug
// vocabulary and mines clinical record corpora for names it cannot map.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cognicore/rxresolve/pkg/rxresolve/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "rxresolve: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "rxresolve",
		Usage: "Resolve medication names against a drug vocabulary",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file (defaults apply when empty)",
			},
			&cli.StringFlag{
				Name:  "vocab",
				Usage: "Vocabulary JSON file (overrides config)",
			},
			&cli.StringFlag{
				Name:  "synonyms",
				Usage: "Synonym map JSON file (overrides config)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error (overrides config)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "match",
				Usage:     "Resolve names given as arguments or one per line on stdin",
				ArgsUsage: "[name...]",
				Action:    matchCommand,
			},
			{
				Name:  "scan",
				Usage: "Scan FHIR corpora for medication names the vocabulary misses",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "archives",
						Usage: "Glob of corpus paths, e.g. 'output_*.tar.gz' (overrides config)",
					},
					&cli.IntFlag{
						Name:  "max-archives",
						Usage: "Maximum number of corpus paths to scan (0 = config value)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Sources scanned concurrently (0 = config value)",
					},
					&cli.IntFlag{
						Name:  "top",
						Usage: "Number of unknown terms to report (0 = config value)",
					},
					&cli.BoolFlag{
						Name:  "no-resolve",
						Usage: "Skip the resolution API pass",
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "Synonym map output file (overrides config)",
					},
					&cli.StringFlag{
						Name:  "db",
						Usage: "SQLite run ledger (overrides config)",
					},
				},
				Action: scanCommand,
			},
			{
				Name:      "resolve",
				Usage:     "Look names up through the resolution API",
				ArgsUsage: "name...",
				Action:    resolveCommand,
			},
			{
				Name:  "runs",
				Usage: "List discovery runs recorded in the ledger",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "db",
						Usage: "SQLite run ledger (overrides config)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of runs to show (0 = all)",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "unknowns",
						Usage: "Unknown terms to show for the newest run",
					},
				},
				Action: runsCommand,
			},
		},
	}
}

// loadConfig loads the config file and applies global flag overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if v := c.String("vocab"); v != "" {
		cfg.Vocabulary = v
	}
	if v := c.String("synonyms"); v != "" {
		cfg.Synonyms = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, cfg.Validate()
}

// newLogger builds a zap logger writing to stderr.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}

// setup loads config, logger and matching components shared by commands.
func setup(c *cli.Context) (config.Config, *config.Components, *zap.Logger, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return cfg, nil, nil, err
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return cfg, nil, nil, err
	}
	comp, err := (&config.Loader{Config: cfg}).Load()
	if err != nil {
		_ = log.Sync()
		return cfg, nil, nil, err
	}
	log.Debug("vocabulary loaded",
		zap.Int("names", len(comp.Names)),
		zap.Int("keys", comp.Index.Len()),
		zap.Int("synonyms", comp.Synonyms.Len()))
	return cfg, comp, log, nil
}
