package catalog

import (
	"context"
	"fmt"
)

// Stats is a recorded run together with what it produced.
type Stats struct {
	Run      *Run      `json:"run"`
	Counts   []Count   `json:"counts"`
	Failures []Failure `json:"failures"`
	Entries  []Entry   `json:"entries,omitempty"`
}

// LatestStats reads the newest run of s. Entries are loaded only when
// withEntries is set. A catalog without runs yields Stats with a nil Run.
func LatestStats(ctx context.Context, s Store, withEntries bool) (*Stats, error) {
	run, err := s.LatestRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	st := &Stats{Run: run}
	if run == nil {
		return st, nil
	}

	if st.Counts, err = s.Counts(ctx, run.ID); err != nil {
		return nil, fmt.Errorf("counts: %w", err)
	}
	if st.Failures, err = s.Failures(ctx, run.ID); err != nil {
		return nil, fmt.Errorf("failures: %w", err)
	}
	if withEntries {
		if st.Entries, err = s.Entries(ctx, run.ID); err != nil {
			return nil, fmt.Errorf("entries: %w", err)
		}
	}
	return st, nil
}
