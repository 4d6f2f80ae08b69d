package corpus

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
)

// maxLineSize bounds a single NDJSON record. Synthea bundles for long
// patient histories run to several megabytes.
const maxLineSize = 64 << 20

// NDJSON reads a bulk export with one bundle per line.
// Blank lines are skipped; malformed lines become error records.
type NDJSON struct {
	Path string
}

func (n *NDJSON) Name() string { return n.Path }

func (n *NDJSON) Each(ctx context.Context, fn func(Record) error) error {
	f, err := os.Open(n.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}
		if err := fn(parseRecord(n.Path, fmt.Sprintf("line %d", line), data)); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s: line %d: %w", n.Path, line+1, err)
	}
	return nil
}
