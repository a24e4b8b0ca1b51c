// Package verify checks a partitioned corpus without modifying it: every wav
// must have its label file and vice versa, and every wav must match the
// canonical audio profile.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"ttscorpus/pkg/audio"
	"ttscorpus/pkg/corpus"
	"ttscorpus/pkg/metrics"
)

// FileCheck is the format verdict for one wav. SampleRateOK and MonoOK are
// independent; both are false when Error is set. MonoOK compares against the
// profile's channel count, which is mono unless configured otherwise.
type FileCheck struct {
	Path         string        `json:"path"` // relative to the split's wav root
	SampleRate   int           `json:"sample_rate"`
	Channels     int           `json:"channels"`
	BitDepth     int           `json:"bit_depth"`
	Duration     time.Duration `json:"duration_ns"`
	SampleRateOK bool          `json:"sample_rate_ok"`
	MonoOK       bool          `json:"mono_ok"`
	Error        string        `json:"error,omitempty"`
}

// OK reports whether the file passed every format check.
func (c FileCheck) OK() bool {
	return c.Error == "" && c.SampleRateOK && c.MonoOK
}

// SplitReport is the result for one split.
type SplitReport struct {
	Split corpus.Split `json:"split"`
	// MissingLabels are wavs without a label file.
	MissingLabels []string `json:"missing_labels"`
	// OrphanLabels are label files without a wav, named by the wav they expect.
	OrphanLabels []string    `json:"orphan_labels"`
	Files        []FileCheck `json:"files"`
	Warnings     []string    `json:"warnings"`
}

// WrongRate counts files failing the sample rate check.
func (r *SplitReport) WrongRate() int {
	n := 0
	for _, f := range r.Files {
		if f.Error == "" && !f.SampleRateOK {
			n++
		}
	}
	return n
}

// NotMono counts files failing the channel check.
func (r *SplitReport) NotMono() int {
	n := 0
	for _, f := range r.Files {
		if f.Error == "" && !f.MonoOK {
			n++
		}
	}
	return n
}

// Unreadable counts files whose header could not be read.
func (r *SplitReport) Unreadable() int {
	n := 0
	for _, f := range r.Files {
		if f.Error != "" {
			n++
		}
	}
	return n
}

// HasWarnings reports any pairing, format or structure problem.
func (r *SplitReport) HasWarnings() bool {
	if len(r.MissingLabels) > 0 || len(r.OrphanLabels) > 0 || len(r.Warnings) > 0 {
		return true
	}
	for _, f := range r.Files {
		if !f.OK() {
			return true
		}
	}
	return false
}

// Report is the result of verifying a corpus.
type Report struct {
	Root    string         `json:"root"`
	Profile string         `json:"profile"`
	Splits  []*SplitReport `json:"splits"`
}

// HasWarnings reports whether any split has a problem.
func (r *Report) HasWarnings() bool {
	for _, s := range r.Splits {
		if s.HasWarnings() {
			return true
		}
	}
	return false
}

// Verifier inspects corpus trees. It never writes.
type Verifier struct {
	profile audio.Profile
	layout  corpus.Layout
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Verifier checking against profile. Empty extensions default
// to .wav and .lab.
func New(profile audio.Profile, audioExt, labelExt string, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		profile: profile,
		layout:  corpus.NewLayout("", audioExt, labelExt),
		logger:  logger,
	}
}

// SetMetrics attaches instruments. Nil disables them.
func (v *Verifier) SetMetrics(m *metrics.Metrics) {
	v.metrics = m
}

// Verify checks both splits under root. Only a missing or non-directory root
// is an error; everything else is reported.
func (v *Verifier) Verify(ctx context.Context, root string) (*Report, error) {
	started := time.Now()

	info, err := os.Stat(root)
	if err != nil {
		return nil, &corpus.ConfigError{Op: "verify", Err: err}
	}
	if !info.IsDir() {
		return nil, &corpus.ConfigError{Op: "verify", Err: fmt.Errorf("%s is not a directory", root)}
	}

	l := corpus.NewLayout(root, v.layout.AudioExt, v.layout.LabelExt)
	rep := &Report{Root: root, Profile: v.profile.String()}

	for _, split := range corpus.Splits {
		sr, err := v.verifySplit(ctx, l, split)
		if err != nil {
			return nil, err
		}
		rep.Splits = append(rep.Splits, sr)
		v.metrics.SetSplitCheck(string(split), len(sr.Files), len(sr.MissingLabels), len(sr.OrphanLabels), sr.WrongRate(), sr.NotMono())

		v.logger.Info("Split verified",
			"split", split,
			"files", len(sr.Files),
			"missing_labels", len(sr.MissingLabels),
			"orphan_labels", len(sr.OrphanLabels),
			"wrong_rate", sr.WrongRate(),
			"not_mono", sr.NotMono(),
			"unreadable", sr.Unreadable())
	}

	v.metrics.RecordRun("verify", time.Since(started))
	return rep, nil
}

func (v *Verifier) verifySplit(ctx context.Context, l corpus.Layout, split corpus.Split) (*SplitReport, error) {
	sr := &SplitReport{Split: split}

	wavRoot := l.WavRoot(split)
	wavs, warn, err := collect(wavRoot, l.AudioExt, "")
	if err != nil {
		return nil, err
	}
	if warn != "" {
		sr.Warnings = append(sr.Warnings, warn)
	}

	labs, warn, err := collect(l.LabRoot(split), l.LabelExt, l.AudioExt)
	if err != nil {
		return nil, err
	}
	if warn != "" {
		sr.Warnings = append(sr.Warnings, warn)
	}

	sr.MissingLabels = difference(wavs, labs)
	sr.OrphanLabels = difference(labs, wavs)

	for _, rel := range sortedKeys(wavs) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sr.Files = append(sr.Files, v.check(wavRoot, rel))
	}
	return sr, nil
}

// check inspects one wav header.
func (v *Verifier) check(wavRoot, rel string) FileCheck {
	fc := FileCheck{Path: rel}
	info, err := audio.Inspect(filepath.Join(wavRoot, rel))
	if err != nil {
		fc.Error = err.Error()
		v.logger.Warn("Unreadable wav", "path", rel, "error", err)
		return fc
	}
	fc.SampleRate = info.SampleRate
	fc.Channels = info.Channels
	fc.BitDepth = info.BitDepth
	fc.Duration = info.Duration
	fc.SampleRateOK = info.SampleRateOK(v.profile)
	fc.MonoOK = info.ChannelsOK(v.profile)
	return fc
}

// collect walks root for files ending in ext and returns their paths relative
// to root, with ext rewritten to as when as is set. A missing root yields an
// empty set and a warning.
func collect(root, ext, as string) (map[string]bool, string, error) {
	set := make(map[string]bool)

	info, err := os.Stat(root)
	if errors.Is(err, os.ErrNotExist) {
		return set, fmt.Sprintf("%s does not exist", root), nil
	}
	if err != nil {
		return nil, "", err
	}
	if !info.IsDir() {
		return set, fmt.Sprintf("%s is not a directory", root), nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !corpus.HasExt(d.Name(), ext) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if as != "" {
			rel = corpus.SwapExt(rel, ext, as)
		}
		set[filepath.ToSlash(rel)] = true
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return set, "", nil
}

// difference returns the sorted members of a that are not in b.
func difference(a, b map[string]bool) []string {
	var out []string
	for k := range a {
		if !b[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
