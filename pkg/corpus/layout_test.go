package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout_Paths(t *testing.T) {
	l := NewLayout("/corpus", "", "")

	assert.Equal(t, filepath.Join("/corpus", "train", "wav"), l.WavRoot(Train))
	assert.Equal(t, filepath.Join("/corpus", "test", "lab"), l.LabRoot(Test))
	assert.Equal(t, filepath.Join("/corpus", "train", "wav", "tolong", "a01.wav"), l.WavPath(Train, "tolong", "a01"))
	assert.Equal(t, filepath.Join("/corpus", "test", "lab", "tolong", "a01.lab"), l.LabPath(Test, "tolong", "a01"))
}

func TestLayout_Skeleton(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(root, ".wav", ".lab")

	require.NoError(t, l.Skeleton())
	require.NoError(t, l.Skeleton(), "Skeleton must be idempotent")

	for _, s := range Splits {
		for _, dir := range []string{l.WavRoot(s), l.LabRoot(s)} {
			info, err := os.Stat(dir)
			require.NoError(t, err)
			assert.True(t, info.IsDir(), dir)
		}
	}
}

func TestStemAndExt(t *testing.T) {
	tests := []struct {
		name    string
		stem    string
		hasWav  bool
		swapped string
	}{
		{"a01.wav", "a01", true, "a01.lab"},
		{"dir/take.2.WAV", "take.2", true, "dir/take.2.lab"},
		{"notes.txt", "notes", false, "notes.txt"},
		{"wav", "wav", false, "wav"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.stem, Stem(tt.name))
			assert.Equal(t, tt.hasWav, HasExt(tt.name, ".wav"))
			assert.Equal(t, tt.swapped, SwapExt(tt.name, ".wav", ".lab"))
		})
	}
}

func TestConfigError(t *testing.T) {
	inner := errors.New("ratio out of range")
	err := error(&ConfigError{Op: "partition", Err: inner})

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "partition")
}
