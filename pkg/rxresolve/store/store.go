package store

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Store persists discovery runs: what was scanned, which medication
// strings stayed unknown, and which synonyms were learned.
type Store interface {
	Close() error

	// Runs
	CreateRun(ctx context.Context, r Run) error
	FinishRun(ctx context.Context, r Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Unknown terms
	UpsertUnknowns(ctx context.Context, runID string, unknowns []Unknown) error
	TopUnknowns(ctx context.Context, runID string, k int) ([]Unknown, error)

	// Learned synonyms
	UpsertSynonym(ctx context.Context, s Synonym) error
	Synonyms(ctx context.Context) ([]Synonym, error)
}

// Run summarizes one discovery scan.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Sources      int
	SourceErrors int
	Records      int
	ParseErrors  int
	Mentions     int
	Matched      int
	Unknown      int
}

// Unknown is a medication string the vocabulary could not resolve.
type Unknown struct {
	Term  string
	Count int
}

// Synonym sources.
const (
	SourceFuzzy  = "fuzzy"
	SourceAPI    = "api"
	SourceManual = "manual"
)

// Synonym is a learned alias mapping.
type Synonym struct {
	Alias  string
	Target string
	Source string
	RunID  string
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a new lexically sortable run identifier.
func NewRunID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}
