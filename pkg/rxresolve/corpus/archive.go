package corpus

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Archive streams a gzip-compressed tarball without extracting it to disk.
// Only one entry is held in memory at a time.
type Archive struct {
	Path    string
	Pattern string
}

func (a *Archive) Name() string { return a.Path }

func (a *Archive) Each(ctx context.Context, fn func(Record) error) error {
	f, err := os.Open(a.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Path, err)
	}
	defer gz.Close()

	pattern := a.Pattern
	if pattern == "" {
		pattern = DefaultEntryPattern
	}

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", a.Path, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := path.Clean(hdr.Name)
		if ok, _ := doublestar.Match(pattern, name); !ok {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("%s: read %s: %w", a.Path, name, err)
		}
		if err := fn(parseRecord(a.Path, name, data)); err != nil {
			return err
		}
	}
}

// Dir walks a directory tree for record files.
type Dir struct {
	Path    string
	Pattern string
}

func (d *Dir) Name() string { return d.Path }

func (d *Dir) Each(ctx context.Context, fn func(Record) error) error {
	pattern := d.Pattern
	if pattern == "" {
		pattern = DefaultEntryPattern
	}
	matches, err := doublestar.Glob(os.DirFS(d.Path), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return fmt.Errorf("%s: %w", d.Path, err)
	}
	sort.Strings(matches)

	for _, name := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(filepath.Join(d.Path, filepath.FromSlash(name)))
		if err != nil {
			if err := fn(Record{Source: d.Path, Name: name, Err: err}); err != nil {
				return err
			}
			continue
		}
		if err := fn(parseRecord(d.Path, name, data)); err != nil {
			return err
		}
	}
	return nil
}
