package partition

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ttscorpus/pkg/corpus"
)

const (
	stagingPrefix = ".staging-"
	trashPrefix   = ".trash-"
)

// stage is the scratch tree a run builds before it replaces the live splits.
type stage struct {
	out    string
	dir    string
	trash  string
	layout corpus.Layout
}

func newStage(out, runID, audioExt, labelExt string) *stage {
	dir := filepath.Join(out, stagingPrefix+runID)
	return &stage{
		out:    out,
		dir:    dir,
		trash:  filepath.Join(out, trashPrefix+runID),
		layout: corpus.NewLayout(dir, audioExt, labelExt),
	}
}

// sweepStale removes staging and trash directories left by interrupted runs.
func sweepStale(out string, logger *slog.Logger) error {
	entries, err := os.ReadDir(out)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !(strings.HasPrefix(name, stagingPrefix) || strings.HasPrefix(name, trashPrefix)) {
			continue
		}
		logger.Warn("Removing leftover from an interrupted run", "dir", name)
		if err := os.RemoveAll(filepath.Join(out, name)); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return nil
}

// prepare creates the staging skeleton.
func (s *stage) prepare() error {
	if err := os.MkdirAll(s.out, 0o755); err != nil {
		return fmt.Errorf("failed to create output root: %w", err)
	}
	return s.layout.Skeleton()
}

// commit moves the live splits into trash and the staged splits into place.
// If a staged split cannot be moved in, the splits already swapped are
// restored so the output root never mixes two runs.
func (s *stage) commit() error {
	var swapped []corpus.Split
	for _, split := range corpus.Splits {
		live := filepath.Join(s.out, string(split))
		if _, err := os.Stat(live); err == nil {
			if err := os.MkdirAll(s.trash, 0o755); err != nil {
				s.rollback(swapped)
				return fmt.Errorf("failed to create trash: %w", err)
			}
			if err := os.Rename(live, filepath.Join(s.trash, string(split))); err != nil {
				s.rollback(swapped)
				return fmt.Errorf("failed to retire %s: %w", split, err)
			}
		}
		if err := os.Rename(s.layout.SplitDir(split), live); err != nil {
			s.restore(split)
			s.rollback(swapped)
			return fmt.Errorf("failed to install %s: %w", split, err)
		}
		swapped = append(swapped, split)
	}
	return nil
}

// restore puts one retired split back.
func (s *stage) restore(split corpus.Split) {
	old := filepath.Join(s.trash, string(split))
	if _, err := os.Stat(old); err == nil {
		_ = os.Rename(old, filepath.Join(s.out, string(split)))
	}
}

// rollback undoes the swap of the given splits.
func (s *stage) rollback(splits []corpus.Split) {
	for _, split := range splits {
		live := filepath.Join(s.out, string(split))
		_ = os.Rename(live, s.layout.SplitDir(split))
		s.restore(split)
	}
}

// cleanup removes staging and trash.
func (s *stage) cleanup() error {
	return errors.Join(os.RemoveAll(s.trash), os.RemoveAll(s.dir))
}

func removeFile(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
