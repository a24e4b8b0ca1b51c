package partition

import (
	"errors"
	"time"

	"ttscorpus/pkg/audio"
	"ttscorpus/pkg/corpus"
	"ttscorpus/pkg/label"
)

// Failure kinds.
const (
	KindUnreadable  = "unreadable"
	KindUnsupported = "unsupported"
	KindEmpty       = "empty"
	KindWrite       = "write"
	KindLabel       = "label"
	KindDuplicate   = "duplicate"
	KindUnknown     = "unknown"
)

// ErrDuplicateStem is reported for a source whose stem is already taken in its label.
var ErrDuplicateStem = errors.New("duplicate stem")

// LabelCount is the outcome for one label. Train and Test are assignments;
// the Written counts exclude files that failed.
type LabelCount struct {
	Label        string `json:"label"`
	Total        int    `json:"total"`
	Train        int    `json:"train"`
	Test         int    `json:"test"`
	TrainWritten int    `json:"train_written"`
	TestWritten  int    `json:"test_written"`
}

// Failure is a source file that was skipped.
type Failure struct {
	Split   corpus.Split `json:"split"`
	Label   string       `json:"label"`
	Source  string       `json:"source"`
	Kind    string       `json:"kind"`
	Message string       `json:"message"`
}

// Summary is the structured result of a partition run.
type Summary struct {
	RunID      string        `json:"run_id"`
	Seed       uint64        `json:"seed"`
	TrainRatio float64       `json:"train_ratio"`
	SourceRoot string        `json:"source_root"`
	OutputRoot string        `json:"output_root"`
	Profile    string        `json:"profile"`
	Labels     []LabelCount  `json:"labels"`
	Failures   []Failure     `json:"failures"`
	Warnings   []string      `json:"warnings"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
}

// Total returns the number of source files across labels.
func (s *Summary) Total() int {
	n := 0
	for _, l := range s.Labels {
		n += l.Total
	}
	return n
}

// Assigned returns the number of files assigned to a split.
func (s *Summary) Assigned(split corpus.Split) int {
	n := 0
	for _, l := range s.Labels {
		if split == corpus.Train {
			n += l.Train
		} else {
			n += l.Test
		}
	}
	return n
}

// Written returns the number of entries persisted to a split.
func (s *Summary) Written(split corpus.Split) int {
	n := 0
	for _, l := range s.Labels {
		if split == corpus.Train {
			n += l.TrainWritten
		} else {
			n += l.TestWritten
		}
	}
	return n
}

// RealizedRatio is the share of all source files assigned to train.
// It drifts from TrainRatio because the cut is taken per label.
func (s *Summary) RealizedRatio() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return float64(s.Assigned(corpus.Train)) / float64(total)
}

// HasWarnings reports whether the run completed with anything worth flagging.
func (s *Summary) HasWarnings() bool {
	return len(s.Failures) > 0 || len(s.Warnings) > 0
}

// kindOf classifies a per-file error.
func kindOf(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateStem):
		return KindDuplicate
	case errors.Is(err, audio.ErrUnsupported):
		return KindUnsupported
	case errors.Is(err, audio.ErrEmpty):
		return KindEmpty
	case errors.Is(err, audio.ErrUnreadable):
		return KindUnreadable
	case errors.Is(err, audio.ErrWrite):
		return KindWrite
	case errors.Is(err, label.ErrEmpty):
		return KindLabel
	default:
		return KindUnknown
	}
}
