// Package partition builds a train/test speech corpus from a tree of
// per-label recordings.
//
// Each label directory is shuffled with a seeded PRNG and cut at
// floor(n*ratio); the first part goes to train and the rest to test. Every
// assigned file is normalized to the canonical audio profile and paired with a
// label file holding the label name. The new corpus is built in a staging
// directory and swapped in when complete, so a failed or cancelled run leaves
// the previous corpus untouched.
package partition

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ttscorpus/pkg/audio"
	"ttscorpus/pkg/catalog"
	"ttscorpus/pkg/corpus"
	"ttscorpus/pkg/label"
	"ttscorpus/pkg/logging"
	"ttscorpus/pkg/metrics"
	"ttscorpus/pkg/probe"
)

// ratioEpsilon absorbs binary rounding of decimal percentages:
// 100 files at 0.57 must cut at 57, not at floor(56.99999999999999).
const ratioEpsilon = 1e-9

// driftWarning is the gap between requested and realized ratio that gets flagged.
const driftWarning = 0.05

// Normalizer converts one source recording into a corpus wav.
type Normalizer interface {
	Normalize(src, dst string) (*audio.Result, error)
	Profile() audio.Profile
}

// Options controls a partition run.
type Options struct {
	TrainRatio       float64  // in (0,1]
	Seed             *uint64  // nil draws a random seed
	Workers          int      // 0 = runtime.NumCPU()
	SourceExtensions []string // default .wav
	AudioExt         string
	LabelExt         string
}

// DefaultOptions returns an 80/20 split of .wav sources.
func DefaultOptions() Options {
	return Options{
		TrainRatio:       0.8,
		SourceExtensions: []string{".wav"},
		AudioExt:         corpus.DefaultAudioExt,
		LabelExt:         corpus.DefaultLabelExt,
	}
}

// Partitioner runs partitions. It holds no per-run state.
type Partitioner struct {
	opts       Options
	normalizer Normalizer
	labels     label.Writer
	logger     *slog.Logger
	metrics    *metrics.Metrics

	catalogPath string
	keepRuns    int
}

// New creates a Partitioner.
func New(opts Options, n Normalizer, logger *slog.Logger) *Partitioner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	opts.SourceExtensions = normalizeExts(opts.SourceExtensions)
	if len(opts.SourceExtensions) == 0 {
		opts.SourceExtensions = []string{".wav"}
	}
	l := corpus.NewLayout("", opts.AudioExt, opts.LabelExt)
	opts.AudioExt, opts.LabelExt = l.AudioExt, l.LabelExt

	return &Partitioner{opts: opts, normalizer: n, logger: logger}
}

// SetMetrics attaches instruments. Nil disables them.
func (p *Partitioner) SetMetrics(m *metrics.Metrics) {
	p.metrics = m
}

// SetCatalog records every run in the SQLite catalog at path, keeping the
// newest keepRuns runs (0 keeps all). An empty path disables recording.
// The catalog is opened only after the corpus is installed.
func (p *Partitioner) SetCatalog(path string, keepRuns int) {
	p.catalogPath = path
	p.keepRuns = keepRuns
}

// job is one assigned source file.
type job struct {
	split    corpus.Split
	labelIdx int
	label    string
	src      string // relative to the source root
	dup      bool
}

// run is the mutable state of one Run call.
type run struct {
	mu       sync.Mutex
	summary  *Summary
	entries  []catalog.Entry
	stage    *stage
	srcRoot  string
	progress int
}

// Run partitions sourceRoot into outputRoot. Configuration problems are
// returned as *corpus.ConfigError before anything is written. Per-file
// failures do not stop the run; they are listed in the Summary.
func (p *Partitioner) Run(ctx context.Context, sourceRoot, outputRoot string) (*Summary, error) {
	started := time.Now()

	if err := p.Preflight(ctx, sourceRoot, outputRoot); err != nil {
		return nil, err
	}

	seed := p.seed()
	runID := uuid.New().String()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	sets, err := discover(sourceRoot, p.opts.SourceExtensions)
	if err != nil {
		return nil, &corpus.ConfigError{Op: "split", Err: err}
	}

	r := &run{
		srcRoot: sourceRoot,
		stage:   newStage(outputRoot, runID, p.opts.AudioExt, p.opts.LabelExt),
		summary: &Summary{
			RunID:      runID,
			Seed:       seed,
			TrainRatio: p.opts.TrainRatio,
			SourceRoot: sourceRoot,
			OutputRoot: outputRoot,
			Profile:    p.normalizer.Profile().String(),
			Labels:     make([]LabelCount, len(sets)),
			StartedAt:  started,
		},
	}
	if len(sets) == 0 {
		r.warn(p.logger, "source root has no label directories", "source", sourceRoot)
	}

	jobs := p.assign(sets, rng, r.summary)
	p.logger.Info("Partitioning corpus",
		"run", runID,
		"labels", len(sets),
		"files", len(jobs),
		"ratio", p.opts.TrainRatio,
		"seed", seed,
		"workers", p.opts.Workers)

	if err := sweepStale(outputRoot, p.logger); err != nil {
		return nil, fmt.Errorf("failed to clean output root: %w", err)
	}
	if err := r.stage.prepare(); err != nil {
		_ = r.stage.cleanup()
		return nil, err
	}

	if err := p.dispatch(ctx, r, jobs); err != nil {
		_ = r.stage.cleanup()
		return nil, err
	}

	if err := r.stage.commit(); err != nil {
		_ = r.stage.cleanup()
		return nil, fmt.Errorf("failed to install corpus: %w", err)
	}
	if err := r.stage.cleanup(); err != nil {
		r.warn(p.logger, fmt.Sprintf("failed to remove staging leftovers: %v", err))
	}

	s := r.summary
	sort.Slice(s.Failures, func(i, j int) bool {
		if s.Failures[i].Label != s.Failures[j].Label {
			return s.Failures[i].Label < s.Failures[j].Label
		}
		return s.Failures[i].Source < s.Failures[j].Source
	})
	for _, l := range s.Labels {
		p.logger.Info("Label split", "label", l.Label, "train", l.Train, "test", l.Test,
			"train_written", l.TrainWritten, "test_written", l.TestWritten)
	}
	if s.Total() > 0 {
		if drift := math.Abs(s.RealizedRatio() - s.TrainRatio); drift > driftWarning {
			r.warn(p.logger, fmt.Sprintf("realized train ratio %.3f differs from requested %.3f", s.RealizedRatio(), s.TrainRatio))
		}
	}

	s.Duration = time.Since(started)
	p.record(ctx, r)
	p.metrics.RecordRun("split", s.Duration)

	p.logger.Info("Partition complete",
		"run", runID,
		"train", s.Written(corpus.Train),
		"test", s.Written(corpus.Test),
		"failures", len(s.Failures),
		"duration", s.Duration.Round(time.Millisecond))
	return s, nil
}

// Preflight runs the configuration checks Run starts with. It leaves
// nothing behind on disk; a failure is a *corpus.ConfigError.
func (p *Partitioner) Preflight(ctx context.Context, src, out string) error {
	probes := []probe.Probe{
		{Name: "train ratio", Check: probe.RatioInRange(p.opts.TrainRatio), Critical: true},
		{Name: "source root", Check: probe.DirExists(src), Critical: true},
		{Name: "output root", Check: probe.Writable(out), Critical: true},
		{Name: "disjoint roots", Check: probe.Disjoint(src, out), Critical: true},
	}
	if err := probe.AnalyzeResults(p.logger, probe.Run(ctx, probes)); err != nil {
		return &corpus.ConfigError{Op: "split", Err: err}
	}
	return nil
}

func (p *Partitioner) seed() uint64 {
	if p.opts.Seed != nil {
		return *p.opts.Seed
	}
	return rand.Uint64()
}

// assign shuffles every label and cuts it into train and test jobs. Labels
// are visited in sorted order so a given seed always yields the same split.
func (p *Partitioner) assign(sets []labelSet, rng *rand.Rand, s *Summary) []job {
	var jobs []job
	for i, set := range sets {
		dup := duplicates(set.files)

		files := append([]string(nil), set.files...)
		rng.Shuffle(len(files), func(a, b int) { files[a], files[b] = files[b], files[a] })
		cut := int(math.Floor(float64(len(files))*p.opts.TrainRatio + ratioEpsilon))

		s.Labels[i] = LabelCount{Label: set.name, Total: len(files), Train: cut, Test: len(files) - cut}
		for k, f := range files {
			split := corpus.Train
			if k >= cut {
				split = corpus.Test
			}
			jobs = append(jobs, job{
				split:    split,
				labelIdx: i,
				label:    set.name,
				src:      filepath.Join(set.name, f),
				dup:      dup[f],
			})
		}
	}
	return jobs
}

// dispatch runs jobs on a bounded pool. Cancellation stops dispatching;
// jobs already running finish.
func (p *Partitioner) dispatch(ctx context.Context, r *run, jobs []job) error {
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.opts.Workers)

loop:
	for _, j := range jobs {
		select {
		case <-ctx.Done():
			break loop
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			defer func() { <-sem }()

			p.process(r, j, len(jobs))
		}(j)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("partition cancelled: %w", err)
	}
	return nil
}

// process writes one corpus entry: the wav first, then its label.
func (p *Partitioner) process(r *run, j job, total int) {
	stem := corpus.Stem(j.src)
	if j.dup {
		r.fail(p, j, fmt.Errorf("%w %q", ErrDuplicateStem, stem), KindDuplicate)
		return
	}

	start := time.Now()
	wavPath := r.stage.layout.WavPath(j.split, j.label, stem)
	res, err := p.normalizer.Normalize(filepath.Join(r.srcRoot, j.src), wavPath)
	if err != nil {
		r.fail(p, j, err, kindOf(err))
		return
	}

	if err := p.labels.Write(r.stage.layout.LabPath(j.split, j.label, stem), j.label); err != nil {
		_ = removeFile(wavPath)
		r.fail(p, j, err, KindLabel)
		return
	}
	took := time.Since(start)

	rate := p.normalizer.Profile().SampleRate
	seconds := float64(res.FramesOut) / float64(rate)
	p.metrics.RecordWritten(string(j.split), took, seconds, res.Resampled(p.normalizer.Profile()))

	r.mu.Lock()
	defer r.mu.Unlock()
	lc := &r.summary.Labels[j.labelIdx]
	if j.split == corpus.Train {
		lc.TrainWritten++
	} else {
		lc.TestWritten++
	}
	r.entries = append(r.entries, catalog.Entry{
		Entry:          corpus.Entry{Split: j.split, Label: j.label, Stem: stem, Source: j.src},
		SourceRate:     res.SourceRate,
		SourceChannels: res.SourceChannels,
		Duration:       seconds,
	})
	r.progress++
	logging.Trace(p.logger, "Entry written", "split", j.split, "label", j.label, "stem", stem,
		"from_rate", res.SourceRate, "from_channels", res.SourceChannels, "done", r.progress, "of", total)
}

func (r *run) fail(p *Partitioner, j job, err error, kind string) {
	p.logger.Warn("Skipping source file", "source", j.src, "split", j.split, "kind", kind, "error", err)
	p.metrics.RecordFailure(kind)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Failures = append(r.summary.Failures, Failure{
		Split:   j.split,
		Label:   j.label,
		Source:  j.src,
		Kind:    kind,
		Message: err.Error(),
	})
	r.progress++
}

func (r *run) warn(logger *slog.Logger, msg string, args ...any) {
	logger.Warn(msg, args...)
	r.summary.Warnings = append(r.summary.Warnings, msg)
}

// record stores the run in the catalog. A catalog failure is a warning:
// the corpus on disk is already complete.
func (p *Partitioner) record(ctx context.Context, r *run) {
	if p.catalogPath == "" {
		return
	}
	store, err := catalog.Open(p.catalogPath)
	if err != nil {
		r.warn(p.logger, fmt.Sprintf("failed to open catalog: %v", err), "path", p.catalogPath)
		return
	}
	defer store.Close()

	if err := p.saveRun(ctx, store, r); err != nil {
		r.warn(p.logger, fmt.Sprintf("failed to record run in catalog: %v", err), "path", p.catalogPath)
	}
}

func (p *Partitioner) saveRun(ctx context.Context, store catalog.RunStore, r *run) error {
	s := r.summary
	sort.Slice(r.entries, func(i, k int) bool {
		a, b := r.entries[i], r.entries[k]
		if a.Split != b.Split {
			return a.Split > b.Split
		}
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		return a.Stem < b.Stem
	})
	failures := make([]catalog.Failure, len(s.Failures))
	for i, f := range s.Failures {
		failures[i] = catalog.Failure{Split: f.Split, Label: f.Label, Source: f.Source, Kind: f.Kind, Message: f.Message}
	}

	rec := &catalog.Run{
		ID:         s.RunID,
		SourceRoot: absOr(s.SourceRoot),
		OutputRoot: absOr(s.OutputRoot),
		Seed:       s.Seed,
		TrainRatio: s.TrainRatio,
		Profile:    s.Profile,
		Written:    len(r.entries),
		Failed:     len(s.Failures),
		StartedAt:  s.StartedAt,
		FinishedAt: s.StartedAt.Add(s.Duration),
	}
	if err := store.SaveRun(ctx, rec, r.entries, failures); err != nil {
		return err
	}
	if p.keepRuns > 0 {
		if n, err := store.PruneRuns(ctx, p.keepRuns); err != nil {
			return fmt.Errorf("prune: %w", err)
		} else if n > 0 {
			p.logger.Debug("Pruned catalog runs", "removed", n)
		}
	}
	return nil
}

func absOr(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
