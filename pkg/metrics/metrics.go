// Package metrics holds the Prometheus instruments of a partition or verify run.
// A command writes them once to a node-exporter textfile when it finishes.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Partition metrics
	FilesWritten      *prometheus.CounterVec
	FilesFailed       *prometheus.CounterVec
	FilesResampled    prometheus.Counter
	NormalizeDuration prometheus.Histogram
	AudioSeconds      prometheus.Counter
	RunDuration       *prometheus.GaugeVec
	LastRun           *prometheus.GaugeVec

	// Verify metrics
	PairingDefects *prometheus.GaugeVec
	FormatDefects  *prometheus.GaugeVec
	FilesChecked   *prometheus.GaugeVec
}

// New creates the instruments on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FilesWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ttscorpus_files_written_total",
			Help: "Corpus entries written, by split",
		}, []string{"split"}),
		FilesFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ttscorpus_files_failed_total",
			Help: "Source files skipped, by failure kind",
		}, []string{"kind"}),
		FilesResampled: f.NewCounter(prometheus.CounterOpts{
			Name: "ttscorpus_files_resampled_total",
			Help: "Source files whose sample rate had to be converted",
		}),
		NormalizeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ttscorpus_normalize_duration_seconds",
			Help:    "Time spent normalizing one source file",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),
		AudioSeconds: f.NewCounter(prometheus.CounterOpts{
			Name: "ttscorpus_audio_seconds_total",
			Help: "Seconds of audio written to the corpus",
		}),
		RunDuration: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ttscorpus_run_duration_seconds",
			Help: "Wall time of the last run",
		}, []string{"command"}),
		LastRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ttscorpus_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}, []string{"command"}),

		PairingDefects: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ttscorpus_verify_pairing_defects",
			Help: "Unpaired files found by the last verify, by split and kind",
		}, []string{"split", "kind"}),
		FormatDefects: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ttscorpus_verify_format_defects",
			Help: "Wav files failing a format check in the last verify, by split and check",
		}, []string{"split", "check"}),
		FilesChecked: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ttscorpus_verify_files_checked",
			Help: "Wav files inspected by the last verify, by split",
		}, []string{"split"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordWritten counts a completed corpus entry.
func (m *Metrics) RecordWritten(split string, took time.Duration, audioSeconds float64, resampled bool) {
	if m == nil {
		return
	}
	m.FilesWritten.WithLabelValues(split).Inc()
	m.NormalizeDuration.Observe(took.Seconds())
	m.AudioSeconds.Add(audioSeconds)
	if resampled {
		m.FilesResampled.Inc()
	}
}

// RecordFailure counts a skipped source file.
func (m *Metrics) RecordFailure(kind string) {
	if m == nil {
		return
	}
	m.FilesFailed.WithLabelValues(kind).Inc()
}

// RecordRun stamps the end of a command.
func (m *Metrics) RecordRun(command string, took time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.WithLabelValues(command).Set(took.Seconds())
	m.LastRun.WithLabelValues(command).Set(float64(time.Now().Unix()))
}

// SetSplitCheck records the verify outcome of one split.
func (m *Metrics) SetSplitCheck(split string, checked, missingLabels, orphanLabels, wrongRate, notMono int) {
	if m == nil {
		return
	}
	m.FilesChecked.WithLabelValues(split).Set(float64(checked))
	m.PairingDefects.WithLabelValues(split, "missing_label").Set(float64(missingLabels))
	m.PairingDefects.WithLabelValues(split, "orphan_label").Set(float64(orphanLabels))
	m.FormatDefects.WithLabelValues(split, "sample_rate").Set(float64(wrongRate))
	m.FormatDefects.WithLabelValues(split, "channels").Set(float64(notMono))
}

// WriteTextfile writes every instrument in the text exposition format.
// The file is replaced atomically so a collector never reads a partial write.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
