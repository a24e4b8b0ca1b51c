// Package audio converts speech recordings to the corpus's canonical format
// and inspects wav headers for conformance checks.
//
// Normalization is a strict format step: fold to mono by channel averaging,
// resample to the profile rate, write PCM. No gain change, no trimming.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"

	"ttscorpus/pkg/logging"
)

// Failure kinds. Callers match them with errors.Is.
var (
	ErrUnreadable  = errors.New("unreadable audio")
	ErrUnsupported = errors.New("unsupported audio")
	ErrEmpty       = errors.New("no audio frames")
	ErrWrite       = errors.New("write failed")
)

// DefaultResampleQuality is the beep.Resample quality used when none is configured.
const DefaultResampleQuality = 4

// Result describes one normalized recording.
type Result struct {
	SourceRate     int `json:"source_rate"`
	SourceChannels int `json:"source_channels"`
	SourceBitDepth int `json:"source_bit_depth"`
	FramesIn       int `json:"frames_in"`
	FramesOut      int `json:"frames_out"`
}

// Resampled reports whether the source rate differed from the target.
func (r *Result) Resampled(p Profile) bool {
	return r.SourceRate != p.SampleRate
}

// Normalizer converts recordings to a Profile. It is safe for concurrent use.
type Normalizer struct {
	profile Profile
	quality int
	logger  *slog.Logger
}

// NewNormalizer creates a Normalizer. quality is the beep.Resample quality (1..64).
func NewNormalizer(p Profile, quality int, logger *slog.Logger) (*Normalizer, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	if quality == 0 {
		quality = DefaultResampleQuality
	}
	if quality < 1 || quality > 64 {
		return nil, fmt.Errorf("resample quality must be between 1 and 64, got %d", quality)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{profile: p, quality: quality, logger: logger}, nil
}

// Profile returns the target format.
func (n *Normalizer) Profile() Profile {
	return n.profile
}

// Normalize decodes src, folds it to mono, resamples it to the profile rate and
// writes PCM wav to dst. Parent directories of dst are created.
// dst is written through a temporary file, so a failed write never leaves a
// truncated wav behind.
func (n *Normalizer) Normalize(src, dst string) (*Result, error) {
	in, err := openSource(src)
	if err != nil {
		return nil, err
	}
	defer in.close()

	if in.frames == 0 {
		return nil, fmt.Errorf("%w in %s", ErrEmpty, filepath.Base(src))
	}
	if in.sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrUnreadable, in.sampleRate)
	}

	res := &Result{
		SourceRate:     in.sampleRate,
		SourceChannels: in.channels,
		SourceBitDepth: in.bitDepth,
		FramesIn:       in.frames,
	}
	n.logger.Debug("Normalizing",
		"src", filepath.Base(src),
		"rate", in.sampleRate,
		"channels", in.channels,
		"bits", in.bitDepth)

	var s beep.Streamer = in.streamer
	if in.sampleRate != n.profile.SampleRate {
		s = beep.Resample(n.quality, beep.SampleRate(in.sampleRate), beep.SampleRate(n.profile.SampleRate), s)
		logging.Trace(n.logger, "Resampling", "src", src, "from", in.sampleRate, "to", n.profile.SampleRate, "quality", n.quality)
	}
	out := &counter{Streamer: s}

	if err := n.write(dst, out); err != nil {
		return nil, err
	}
	if err := in.streamer.Err(); err != nil {
		_ = os.Remove(dst)
		return nil, fmt.Errorf("%w: decode: %v", ErrUnreadable, err)
	}

	res.FramesOut = out.n
	return res, nil
}

func (n *Normalizer) write(dst string, s beep.Streamer) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	tmp := dst + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	// beep clamps samples to [-1,1] while encoding
	if err := wav.Encode(f, s, n.profile.Format()); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: encode %s: %v", ErrWrite, dst, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: close %s: %v", ErrWrite, dst, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}
