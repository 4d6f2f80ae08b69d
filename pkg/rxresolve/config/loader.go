package config

import (
	"fmt"

	"github.com/cognicore/rxresolve/pkg/rxresolve/matcher"
	"github.com/cognicore/rxresolve/pkg/rxresolve/synonym"
	"github.com/cognicore/rxresolve/pkg/rxresolve/vocab"
)

// Loader loads the vocabulary and synonym sources named by a Config and
// constructs the resolver
type Loader struct {
	Config Config
}

// Components holds all loaded components
type Components struct {
	Names    []string
	Index    *vocab.Index
	Synonyms *synonym.Map
	Resolver *matcher.Resolver
}

// Load reads all configured files and returns initialized components.
// Curated YAML synonyms override entries of the JSON map.
func (l *Loader) Load() (*Components, error) {
	cfg := l.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	names, err := vocab.LoadFile(cfg.Vocabulary)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	comp := &Components{
		Names: names,
		Index: vocab.Build(names),
	}

	comp.Synonyms = synonym.New()
	if cfg.Synonyms != "" {
		syn, err := synonym.LoadJSON(cfg.Synonyms)
		if err != nil {
			return nil, fmt.Errorf("load synonyms: %w", err)
		}
		comp.Synonyms = syn
	}
	if cfg.CuratedSynonyms != "" {
		curated, err := synonym.LoadYAML(cfg.CuratedSynonyms)
		if err != nil {
			return nil, fmt.Errorf("load curated synonyms: %w", err)
		}
		comp.Synonyms.Merge(curated)
	}

	comp.Resolver = matcher.New(comp.Index, comp.Synonyms, matcher.WithStrategy(cfg.Match.Strategy))
	return comp, nil
}
