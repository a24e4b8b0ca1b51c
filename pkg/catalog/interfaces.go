package catalog

import (
	"context"
	"time"

	"ttscorpus/pkg/corpus"
)

// Run is one recorded partition run.
type Run struct {
	ID         string    `json:"id"`
	SourceRoot string    `json:"source_root"`
	OutputRoot string    `json:"output_root"`
	Seed       uint64    `json:"seed"`
	TrainRatio float64   `json:"train_ratio"`
	Profile    string    `json:"profile"`
	Written    int       `json:"written"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Entry is a corpus entry together with what the normalizer saw in its source.
type Entry struct {
	corpus.Entry
	SourceRate     int     `json:"source_rate"`
	SourceChannels int     `json:"source_channels"`
	Duration       float64 `json:"duration_s"`
}

// Failure is a source file a run skipped.
type Failure struct {
	Split   corpus.Split `json:"split"`
	Label   string       `json:"label"`
	Source  string       `json:"source"`
	Kind    string       `json:"kind"`
	Message string       `json:"message"`
}

// Count is the number of entries one label has in one split.
type Count struct {
	Label string       `json:"label"`
	Split corpus.Split `json:"split"`
	Files int          `json:"files"`
}

// RunStore persists partition runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *Run, entries []Entry, failures []Failure) error
	LatestRun(ctx context.Context) (*Run, error)
	PruneRuns(ctx context.Context, keep int) (int64, error)
}

// EntryStore reads the entries of a run.
type EntryStore interface {
	Entries(ctx context.Context, runID string) ([]Entry, error)
	Failures(ctx context.Context, runID string) ([]Failure, error)
	Counts(ctx context.Context, runID string) ([]Count, error)
}

// Store composes every catalog interface.
type Store interface {
	RunStore
	EntryStore

	// Close closes the store connection.
	Close() error
}
