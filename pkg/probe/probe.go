// Package probe runs named preflight checks before a command mutates anything.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTimeout bounds each check when the caller's context has no deadline.
const DefaultTimeout = 5 * time.Second

// CheckFunc performs one check. It returns nil if the check passes.
type CheckFunc func(ctx context.Context) error

// Probe is a single named preflight check.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool // a failure aborts the command
}

// Result holds the outcome of a single probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Run executes probes in order and returns their results.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))

	for i, p := range probes {
		start := time.Now()

		checkCtx, cancel := ctx, context.CancelFunc(func() {})
		if _, ok := ctx.Deadline(); !ok {
			checkCtx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		}

		err := p.Check(checkCtx)
		cancel()

		results[i] = Result{
			Probe:    p,
			Error:    err,
			Duration: time.Since(start),
		}
	}

	return results
}

// AnalyzeResults logs every result and joins the errors of failed critical probes.
func AnalyzeResults(logger *slog.Logger, results []Result) error {
	if logger == nil {
		logger = slog.Default()
	}
	var criticalErrors []error

	for _, r := range results {
		status := "PASS"
		if r.Error != nil {
			status = "FAIL"
		}

		msg := fmt.Sprintf("[%s] %-20s (%v)", status, r.Probe.Name, r.Duration.Round(time.Millisecond))

		if r.Error != nil {
			if r.Probe.Critical {
				logger.Error(msg, "error", r.Error)
				criticalErrors = append(criticalErrors, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
			} else {
				logger.Warn(msg, "error", r.Error)
			}
		} else {
			logger.Debug(msg)
		}
	}

	if len(criticalErrors) > 0 {
		return errors.Join(criticalErrors...)
	}

	return nil
}

// DirExists passes when path exists and is a directory.
func DirExists(path string) CheckFunc {
	return func(ctx context.Context) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", path)
		}
		return nil
	}
}

// Writable passes when path, or its nearest existing ancestor, is a directory
// that accepts new files. A probe file is created and removed again.
func Writable(path string) CheckFunc {
	return func(ctx context.Context) error {
		dir, err := nearestExisting(path)
		if err != nil {
			return err
		}
		f, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			return fmt.Errorf("%s is not writable: %w", dir, err)
		}
		name := f.Name()
		f.Close()
		return os.Remove(name)
	}
}

func nearestExisting(path string) (string, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		info, err := os.Stat(p)
		if err == nil {
			if !info.IsDir() {
				return "", fmt.Errorf("%s is not a directory", p)
			}
			return p, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", fmt.Errorf("no existing ancestor for %s", path)
		}
		p = parent
	}
}

// RatioInRange passes for a train ratio in (0,1].
func RatioInRange(ratio float64) CheckFunc {
	return func(ctx context.Context) error {
		if !(ratio > 0 && ratio <= 1) {
			return fmt.Errorf("train ratio must be in (0,1], got %g", ratio)
		}
		return nil
	}
}

// Disjoint passes when neither tree contains the other. A rebuild of outer
// would otherwise discover its own output or swap away its input.
func Disjoint(src, out string) CheckFunc {
	return func(ctx context.Context) error {
		a, err := filepath.Abs(src)
		if err != nil {
			return err
		}
		b, err := filepath.Abs(out)
		if err != nil {
			return err
		}
		if a == b {
			return fmt.Errorf("source and output are the same directory: %s", a)
		}
		if within(a, b) {
			return fmt.Errorf("output %s is inside source %s", b, a)
		}
		if within(b, a) {
			return fmt.Errorf("source %s is inside output %s", a, b)
		}
		return nil
	}
}

// within reports whether child lies below parent.
func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
