// Package corpus describes the on-disk layout of a partitioned speech corpus:
//
//	<root>/<split>/wav/<label>/<stem>.wav
//	<root>/<split>/lab/<label>/<stem>.lab
//
// Other tooling (training recipes, the concatenation demo) reads this layout,
// so paths are derived here and nowhere else.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Split is a destination partition of the corpus.
type Split string

const (
	Train Split = "train"
	Test  Split = "test"
)

// Splits lists every split in report order.
var Splits = []Split{Train, Test}

// Subdirectories of a split.
const (
	WavDir = "wav"
	LabDir = "lab"
)

// Default extensions of the output tree.
const (
	DefaultAudioExt = ".wav"
	DefaultLabelExt = ".lab"
)

// Layout resolves corpus paths under Root.
type Layout struct {
	Root     string
	AudioExt string
	LabelExt string
}

// NewLayout returns a Layout rooted at root. Empty extensions fall back to .wav / .lab.
func NewLayout(root, audioExt, labelExt string) Layout {
	if audioExt == "" {
		audioExt = DefaultAudioExt
	}
	if labelExt == "" {
		labelExt = DefaultLabelExt
	}
	return Layout{Root: root, AudioExt: audioExt, LabelExt: labelExt}
}

// SplitDir returns <root>/<split>.
func (l Layout) SplitDir(s Split) string {
	return filepath.Join(l.Root, string(s))
}

// WavRoot returns <root>/<split>/wav.
func (l Layout) WavRoot(s Split) string {
	return filepath.Join(l.Root, string(s), WavDir)
}

// LabRoot returns <root>/<split>/lab.
func (l Layout) LabRoot(s Split) string {
	return filepath.Join(l.Root, string(s), LabDir)
}

// WavPath returns the audio half of a corpus entry.
func (l Layout) WavPath(s Split, label, stem string) string {
	return filepath.Join(l.WavRoot(s), label, stem+l.AudioExt)
}

// LabPath returns the label half of a corpus entry.
func (l Layout) LabPath(s Split, label, stem string) string {
	return filepath.Join(l.LabRoot(s), label, stem+l.LabelExt)
}

// Skeleton creates the {train,test}/{wav,lab} directories. Existing directories are fine.
func (l Layout) Skeleton() error {
	for _, s := range Splits {
		for _, dir := range []string{l.WavRoot(s), l.LabRoot(s)} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
	}
	return nil
}

// Entry is one persisted corpus unit: a normalized wav and its label file.
type Entry struct {
	Split  Split  `json:"split"`
	Label  string `json:"label"`
	Stem   string `json:"stem"`
	Source string `json:"source"`
}

// Stem strips the directory and the final extension from name.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// HasExt reports whether name ends in ext, ignoring case.
func HasExt(name, ext string) bool {
	return strings.EqualFold(filepath.Ext(name), ext)
}

// SwapExt replaces the trailing from-extension of p with to.
func SwapExt(p, from, to string) string {
	if !HasExt(p, from) {
		return p
	}
	return p[:len(p)-len(filepath.Ext(p))] + to
}

// ConfigError marks a failure detected before any filesystem mutation:
// bad ratio, missing roots, unusable output location.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: invalid configuration: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
