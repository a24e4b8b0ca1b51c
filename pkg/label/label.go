// Package label writes the transcription files that pair with corpus audio.
package label

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmpty is returned for a label that has no printable text.
var ErrEmpty = errors.New("empty label")

// Writer writes label files. The content is the label name itself: every
// recording of a word category carries that word as its transcription.
type Writer struct{}

// Write stores text at dst, creating parent directories.
func (w Writer) Write(dst, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmpty
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create label dir for %s: %w", dst, err)
	}
	tmp := dst + ".part"
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write label %s: %w", dst, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit label %s: %w", dst, err)
	}
	return nil
}
