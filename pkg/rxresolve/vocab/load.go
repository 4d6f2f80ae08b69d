package vocab

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cognicore/rxresolve/pkg/rxresolve/internalerr"
)

// LoadFile reads the canonical drug list from a JSON vocabulary file.
//
// Expected format:
//
//	{"drugs": ["Acetaminophen", "Ibuprofen 200mg", ...]}
//
// A bare JSON array of names is accepted as well. Order is preserved
// and blank names are dropped.
func LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	names, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return names, nil
}

// Parse decodes vocabulary JSON. See LoadFile for the accepted shapes.
func Parse(data []byte) ([]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty vocabulary: %w", internalerr.ErrInvalidInput)
	}

	var raw []string
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	} else {
		var doc struct {
			Drugs []string `json:"drugs"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if doc.Drugs == nil {
			return nil, fmt.Errorf("missing \"drugs\" field: %w", internalerr.ErrInvalidInput)
		}
		raw = doc.Drugs
	}

	names := make([]string, 0, len(raw))
	for _, name := range raw {
		if strings.TrimSpace(name) == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
