package vocab

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cognicore/rxresolve/pkg/rxresolve/internalerr"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Aspirin", "aspirin"},
		{"  IBUPROFEN 200MG\t", "ibuprofen 200mg"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBuildInsertsFullNameAndFirstToken(t *testing.T) {
	idx := Build([]string{"Ibuprofen 200mg"})

	if got, ok := idx.Lookup("ibuprofen 200mg"); !ok || got != "Ibuprofen 200mg" {
		t.Errorf("Lookup(full) = %q, %v", got, ok)
	}
	if got, ok := idx.Lookup("ibuprofen"); !ok || got != "Ibuprofen 200mg" {
		t.Errorf("Lookup(first token) = %q, %v", got, ok)
	}
	if idx.Len() != 2 {
		t.Errorf("Len() = %d, want 2", idx.Len())
	}
}

func TestBuildFirstTokenThreshold(t *testing.T) {
	tests := []struct {
		name    string
		entry   string
		token   string
		indexed bool
	}{
		{"three chars excluded", "Zzz 200mg", "zzz", false},
		{"four chars included", "Zzzz 200mg", "zzzz", true},
		{"two chars excluded", "Xy 5mg", "xy", false},
		{"long token included", "Nexplanon 68 MG Drug Implant", "nexplanon", true},
		{"three accented chars excluded", "Déx 10mg", "déx", false},
		{"four accented chars included", "Déxa 10mg", "déxa", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := Build([]string{tt.entry})
			if got := idx.Has(tt.token); got != tt.indexed {
				t.Errorf("Has(%q) = %v, want %v", tt.token, got, tt.indexed)
			}
		})
	}
}

func TestBuildSingleWordEntryHasOneKey(t *testing.T) {
	idx := Build([]string{"Aspirin"})
	if idx.Len() != 1 {
		t.Errorf("Len() = %d, want 1", idx.Len())
	}
}

func TestBuildCollisionLastWriteWinsKeepsPosition(t *testing.T) {
	idx := Build([]string{"Aspirin 81mg", "Lisinopril", "Aspirin 325mg"})

	keys := idx.Keys()
	want := []string{"aspirin 81mg", "aspirin", "lisinopril", "aspirin 325mg"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	if got, _ := idx.Lookup("aspirin"); got != "Aspirin 325mg" {
		t.Errorf("Lookup(aspirin) = %q, want last write %q", got, "Aspirin 325mg")
	}
}

func TestBuildSkipsBlankNames(t *testing.T) {
	idx := Build([]string{"", "  ", "Metformin"})
	if idx.Len() != 1 {
		t.Errorf("Len() = %d, want 1", idx.Len())
	}
}

func TestScanOrderAndStop(t *testing.T) {
	idx := Build([]string{"Alpha", "Beta", "Gamma"})

	var visited []string
	idx.Scan(func(key, canonical string) bool {
		visited = append(visited, key)
		return key != "beta"
	})

	if !reflect.DeepEqual(visited, []string{"alpha", "beta"}) {
		t.Errorf("visited = %v", visited)
	}
	if idx.Scans() != 1 {
		t.Errorf("Scans() = %d, want 1", idx.Scans())
	}
}

func TestParseShapes(t *testing.T) {
	names, err := Parse([]byte(`{"drugs": ["Aspirin", " ", "Ibuprofen"]}`))
	if err != nil {
		t.Fatalf("Parse object: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"Aspirin", "Ibuprofen"}) {
		t.Errorf("names = %v", names)
	}

	names, err = Parse([]byte(`["Zyrtec", "Aleve"]`))
	if err != nil {
		t.Fatalf("Parse array: %v", err)
	}
	if len(names) != 2 || names[0] != "Zyrtec" {
		t.Errorf("names = %v", names)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]byte(`{"medications": []}`)); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("missing drugs field: err = %v, want ErrInvalidInput", err)
	}
	if _, err := Parse(nil); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("empty input: err = %v, want ErrInvalidInput", err)
	}
	if _, err := Parse([]byte(`{"drugs": [`)); err == nil {
		t.Error("malformed JSON should fail")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drug_vocabulary.json")
	if err := os.WriteFile(path, []byte(`{"drugs":["Nexplanon","Etonogestrel"]}`), 0644); err != nil {
		t.Fatal(err)
	}

	names, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("got %d names, want 2", len(names))
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadFile should fail for a missing file")
	}
}
