package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ttscorpus/pkg/catalog"
	"ttscorpus/pkg/corpus"
	"ttscorpus/pkg/partition"
	"ttscorpus/pkg/verify"
)

func sampleSummary() *partition.Summary {
	return &partition.Summary{
		RunID:      "run-1",
		Seed:       42,
		TrainRatio: 0.8,
		OutputRoot: "/data/corpus",
		Profile:    "16000 Hz/1ch/16-bit",
		Labels: []partition.LabelCount{
			{Label: "api", Total: 5, Train: 4, Test: 1, TrainWritten: 3, TestWritten: 1},
			{Label: "tolong", Total: 10, Train: 8, Test: 2, TrainWritten: 8, TestWritten: 2},
		},
		Failures: []partition.Failure{
			{Split: corpus.Train, Label: "api", Source: "api/a02.wav", Kind: partition.KindUnreadable, Message: "bad header"},
		},
		Duration: 1500 * time.Millisecond,
	}
}

func sampleReport() *verify.Report {
	return &verify.Report{
		Root:    "/data/corpus",
		Profile: "16000 Hz/1ch/16-bit",
		Splits: []*verify.SplitReport{
			{
				Split: corpus.Train,
				Files: []verify.FileCheck{
					{Path: "tolong/a01.wav", SampleRate: 16000, Channels: 1, SampleRateOK: true, MonoOK: true},
					{Path: "tolong/a02.wav", SampleRate: 44100, Channels: 2},
				},
				MissingLabels: []string{"tolong/a02.wav"},
			},
			{
				Split:        corpus.Test,
				OrphanLabels: []string{"api/x.wav"},
				Files:        []verify.FileCheck{{Path: "api/y.wav", Error: "unreadable audio: EOF"}},
			},
		},
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	f, err := New("JSON", &buf)
	require.NoError(t, err)
	assert.IsType(t, &JSONFormatter{}, f)

	f, err = New("", &buf)
	require.NoError(t, err)
	assert.IsType(t, &TextFormatter{}, f)

	_, err = New("xml", &buf)
	assert.Error(t, err)
}

func TestText_Summary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).WriteSummary(sampleSummary()))
	out := buf.String()

	assert.Contains(t, out, "Labels: [api tolong]")
	assert.Contains(t, out, "- api: 4 train, 1 test (1 skipped)")
	assert.Contains(t, out, "- tolong: 8 train, 2 test\n")
	assert.Contains(t, out, "Failures (1):")
	assert.Contains(t, out, "api/a02.wav")
	assert.Contains(t, out, "seed 42")
	assert.Contains(t, out, "Ratio 0.80 requested, 0.80 realized")
	assert.Contains(t, out, "Done: 11 train, 3 test written to /data/corpus in 1.5s")
}

func TestText_Report(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).WriteReport(sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "--- TRAIN ---")
	assert.Contains(t, out, "--- TEST ---")
	assert.Regexp(t, `tolong/a01\.wav\s+\| 16000 Hz OK\s+\| mono\s+OK`, out)
	assert.Regexp(t, `tolong/a02\.wav\s+\| 44100 Hz WRONG \| stereo WRONG`, out)
	assert.Contains(t, out, "! 1 .wav without .lab")
	assert.Contains(t, out, "! 1 .lab without .wav")
	assert.Contains(t, out, "UNREADABLE: unreadable audio: EOF")
	assert.Contains(t, out, "Completed with warnings.")
}

func TestText_ReportClean(t *testing.T) {
	var buf bytes.Buffer
	r := &verify.Report{Splits: []*verify.SplitReport{{Split: corpus.Train}, {Split: corpus.Test}}}
	require.NoError(t, NewTextFormatter(&buf).WriteReport(r))
	assert.Contains(t, buf.String(), "Corpus OK.")
}

func sampleStats() *catalog.Stats {
	return &catalog.Stats{
		Run: &catalog.Run{ID: "run-1", Seed: 3, TrainRatio: 0.8, Failed: 2, FinishedAt: time.Now().Add(-2 * time.Hour)},
		Counts: []catalog.Count{
			{Label: "api", Split: corpus.Train, Files: 4},
			{Label: "api", Split: corpus.Test, Files: 1},
			{Label: "tolong", Split: corpus.Train, Files: 8},
		},
		Failures: []catalog.Failure{
			{Split: corpus.Train, Label: "api", Source: "api/rusak.wav", Kind: "unreadable", Message: "bad header"},
			{Split: corpus.Test, Label: "tolong", Source: "tolong/kosong.wav", Kind: "empty", Message: "no audio frames"},
		},
	}
}

func TestText_Stats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).WriteStats(sampleStats()))
	out := buf.String()

	assert.Contains(t, out, "Run run-1 (2 hours ago)")
	assert.Regexp(t, `api\s+4\s+1\s+5`, out)
	assert.Regexp(t, `tolong\s+8\s+0\s+8`, out)
	assert.Regexp(t, `all\s+12\s+1\s+13`, out)
	assert.Contains(t, out, "Failures (2):")
	assert.Regexp(t, `train\s+api/rusak.wav\s+unreadable\s+bad header`, out)
	assert.Regexp(t, `test\s+tolong/kosong.wav\s+empty\s+no audio frames`, out)
	assert.NotContains(t, out, "Entries")

	tests := []struct {
		name string
		st   *catalog.Stats
	}{
		{"Nil", nil},
		{"NoRun", &catalog.Stats{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewTextFormatter(&buf).WriteStats(tt.st))
			assert.Equal(t, "No runs recorded.\n", buf.String())
		})
	}
}

func TestText_StatsEntries(t *testing.T) {
	st := sampleStats()
	st.Entries = []catalog.Entry{{
		Entry:          corpus.Entry{Split: corpus.Train, Label: "api", Stem: "a01", Source: "api/a01.wav"},
		SourceRate:     44100,
		SourceChannels: 2,
		Duration:       1.25,
	}}

	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).WriteStats(st))
	out := buf.String()
	assert.Contains(t, out, "Entries (1):")
	assert.Regexp(t, `train\s+api/a01\s+<- api/a01.wav \(44100 Hz stereo, 1.25s\)`, out)
}

func TestJSON_Stats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(&buf).WriteStats(sampleStats()))

	var got catalog.Stats
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.NotNil(t, got.Run)
	assert.Equal(t, "run-1", got.Run.ID)
	assert.Len(t, got.Counts, 3)
	assert.Len(t, got.Failures, 2)
	assert.Empty(t, got.Entries)
}

func TestJSON_Summary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(&buf).WriteSummary(sampleSummary()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got["run_id"])
	assert.EqualValues(t, 42, got["seed"])
	assert.InDelta(t, 0.8, got["realized_ratio"], 1e-9)
	assert.Len(t, got["labels"], 2)
	assert.Len(t, got["failures"], 1)
}

func TestJSON_Report(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(&buf).WriteReport(sampleReport()))

	var got verify.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Splits, 2)
	assert.Equal(t, []string{"tolong/a02.wav"}, got.Splits[0].MissingLabels)
	assert.False(t, got.Splits[0].Files[1].SampleRateOK)
	assert.True(t, got.HasWarnings())
}
