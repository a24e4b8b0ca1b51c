package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.RecordWritten("train", 20*time.Millisecond, 1.5, true)
	m.RecordWritten("train", 10*time.Millisecond, 0.5, false)
	m.RecordWritten("test", 10*time.Millisecond, 1.0, false)
	m.RecordFailure("unreadable")
	m.RecordRun("split", 2*time.Second)
	m.SetSplitCheck("test", 4, 1, 0, 2, 0)

	path := filepath.Join(t.TempDir(), "ttscorpus.prom")
	require.NoError(t, m.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)

	assert.Contains(t, out, `ttscorpus_files_written_total{split="train"} 2`)
	assert.Contains(t, out, `ttscorpus_files_written_total{split="test"} 1`)
	assert.Contains(t, out, `ttscorpus_files_failed_total{kind="unreadable"} 1`)
	assert.Contains(t, out, `ttscorpus_files_resampled_total 1`)
	assert.Contains(t, out, `ttscorpus_audio_seconds_total 3`)
	assert.Contains(t, out, `ttscorpus_normalize_duration_seconds_count 3`)
	assert.Contains(t, out, `ttscorpus_run_duration_seconds{command="split"} 2`)
	assert.Contains(t, out, `ttscorpus_verify_pairing_defects{kind="missing_label",split="test"} 1`)
	assert.Contains(t, out, `ttscorpus_verify_format_defects{check="sample_rate",split="test"} 2`)
	assert.Contains(t, out, `ttscorpus_verify_files_checked{split="test"} 4`)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordWritten("train", time.Second, 1, true)
		m.RecordFailure("write")
		m.RecordRun("verify", time.Second)
		m.SetSplitCheck("train", 1, 0, 0, 0, 0)
		assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
		assert.Nil(t, m.Registry())
	})
}

func TestMetrics_EmptyPath(t *testing.T) {
	assert.NoError(t, New().WriteTextfile(""))
}

func TestMetrics_Independent(t *testing.T) {
	// private registries: two instances never collide
	a, b := New(), New()
	a.RecordFailure("write")

	families, err := b.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.NotEqual(t, "ttscorpus_files_failed_total", f.GetName())
	}
}
