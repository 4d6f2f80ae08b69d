// Package corpus streams clinical record bundles out of archives,
// directories and NDJSON exports one record at a time.
package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/cognicore/rxresolve/pkg/rxresolve/fhir"
	"github.com/cognicore/rxresolve/pkg/rxresolve/internalerr"
)

// DefaultEntryPattern selects the record files inside an archive or directory.
const DefaultEntryPattern = "**/*.json"

// Record is the outcome of reading one record: a parsed bundle or the
// error that prevented parsing it.
type Record struct {
	Source string
	Name   string
	Bundle *fhir.Bundle
	Err    error
}

// OK reports whether the record parsed.
func (r Record) OK() bool {
	return r.Err == nil && r.Bundle != nil
}

// Source yields records sequentially. Each stops early when fn returns an
// error or ctx is cancelled, and returns that error. Per-record parse
// failures are delivered as records, not returned.
type Source interface {
	Name() string
	Each(ctx context.Context, fn func(Record) error) error
}

// Open picks a source implementation for path.
//
//   - directories walk files matching pattern
//   - .tar.gz / .tgz archives stream entries matching pattern
//   - .ndjson / .jsonl files hold one bundle per line
//   - .json files hold a single bundle
func Open(path, pattern string) (Source, error) {
	if pattern == "" {
		pattern = DefaultEntryPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("entry pattern %q: %w", pattern, internalerr.ErrInvalidInput)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return &Dir{Path: path, Pattern: pattern}, nil
	}

	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return &Archive{Path: path, Pattern: pattern}, nil
	case strings.HasSuffix(lower, ".ndjson"), strings.HasSuffix(lower, ".jsonl"):
		return &NDJSON{Path: path}, nil
	case strings.HasSuffix(lower, ".json"):
		return &File{Path: path}, nil
	}
	return nil, fmt.Errorf("%s: %w", path, internalerr.ErrUnsupported)
}

// Discover expands a glob of corpus paths, sorted, keeping at most limit
// matches when limit > 0.
func Discover(pattern string, limit int) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// File is a single bundle document.
type File struct {
	Path string
}

func (f *File) Name() string { return f.Path }

func (f *File) Each(ctx context.Context, fn func(Record) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return err
	}
	return fn(parseRecord(f.Path, filepath.Base(f.Path), data))
}

func parseRecord(source, name string, data []byte) Record {
	rec := Record{Source: source, Name: name}
	rec.Bundle, rec.Err = fhir.Parse(data)
	return rec
}
