// Package config loads and validates the ttscorpus YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Canonical CanonicalConfig `yaml:"canonical"`
	Resample  ResampleConfig  `yaml:"resample"`
	Partition PartitionConfig `yaml:"partition"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// CanonicalConfig is the audio format every normalized wav must have.
type CanonicalConfig struct {
	SampleRate SampleRate `yaml:"sample_rate"`
	Channels   int        `yaml:"channels"`
	BitDepth   int        `yaml:"bit_depth"`
}

// ResampleConfig holds resampler settings.
type ResampleConfig struct {
	Quality int `yaml:"quality"` // 1 (fast) .. 64 (slow)
}

// PartitionConfig holds train/test split settings.
type PartitionConfig struct {
	TrainPercent     float64  `yaml:"train_percent"`
	Seed             *uint64  `yaml:"seed,omitempty"`
	Workers          int      `yaml:"workers"` // 0 = number of CPUs
	SourceExtensions []string `yaml:"source_extensions"`
}

// CorpusConfig holds the file extensions of the output tree.
type CorpusConfig struct {
	AudioExt string `yaml:"audio_ext"`
	LabelExt string `yaml:"label_ext"`
}

// CatalogConfig holds settings for the SQLite corpus catalog.
type CatalogConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`      // empty = <output>/catalog.db
	KeepRuns int    `yaml:"keep_runs"` // 0 = keep every run
}

// MetricsConfig holds settings for Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Canonical: CanonicalConfig{
			SampleRate: 16000,
			Channels:   1,
			BitDepth:   16,
		},
		Resample: ResampleConfig{
			Quality: 4,
		},
		Partition: PartitionConfig{
			TrainPercent:     80,
			Workers:          0,
			SourceExtensions: []string{".wav"},
		},
		Corpus: CorpusConfig{
			AudioExt: ".wav",
			LabelExt: ".lab",
		},
		Catalog: CatalogConfig{
			Enabled:  true,
			KeepRuns: 20,
		},
		Log: LogConfig{
			Path:  "logs/ttscorpus.log",
			Level: "INFO",
		},
	}
}

// Load loads the configuration from the given path.
// A missing file yields the defaults; Load never writes to disk, use
// GenerateDefault for that. Environment overrides are applied afterwards.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Catalog.Path = expandPath(cfg.Catalog.Path)
	cfg.Metrics.Textfile = expandPath(cfg.Metrics.Textfile)
	cfg.Log.Path = expandPath(cfg.Log.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from a .env file into the process environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides selected settings from TTSCORPUS_* environment variables.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("TTSCORPUS_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TTSCORPUS_SEED %q: %w", v, err)
		}
		cfg.Partition.Seed = &seed
	}
	if v := os.Getenv("TTSCORPUS_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TTSCORPUS_WORKERS %q: %w", v, err)
		}
		cfg.Partition.Workers = n
	}
	if v := os.Getenv("TTSCORPUS_TRAIN_PERCENT"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid TTSCORPUS_TRAIN_PERCENT %q: %w", v, err)
		}
		cfg.Partition.TrainPercent = p
	}
	if v := os.Getenv("TTSCORPUS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

var windowsEnvRe = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_]*)%`)

// expandPath resolves $VAR, ${VAR} and %VAR% references.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = windowsEnvRe.ReplaceAllStringFunc(p, func(m string) string {
		return os.Getenv(strings.Trim(m, "%"))
	})
	return os.ExpandEnv(p)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Canonical.Validate(); err != nil {
		return fmt.Errorf("canonical: %w", err)
	}
	if c.Resample.Quality < 1 || c.Resample.Quality > 64 {
		return fmt.Errorf("resample: quality must be between 1 and 64, got %d", c.Resample.Quality)
	}
	if err := c.Partition.Validate(); err != nil {
		return fmt.Errorf("partition: %w", err)
	}
	if err := c.Corpus.Validate(); err != nil {
		return fmt.Errorf("corpus: %w", err)
	}
	if c.Catalog.KeepRuns < 0 {
		return fmt.Errorf("catalog: keep_runs must not be negative, got %d", c.Catalog.KeepRuns)
	}
	switch strings.ToUpper(c.Log.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("log: level must be one of DEBUG, INFO, WARN, ERROR, got %q", c.Log.Level)
	}
	return nil
}

// Validate validates the canonical audio format.
func (c *CanonicalConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	if c.BitDepth != 8 && c.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 8 or 16, got %d", c.BitDepth)
	}
	return nil
}

// Validate validates partition settings.
func (p *PartitionConfig) Validate() error {
	if p.TrainPercent <= 0 || p.TrainPercent > 100 {
		return fmt.Errorf("train_percent must be in (0, 100], got %v", p.TrainPercent)
	}
	if p.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", p.Workers)
	}
	if len(p.SourceExtensions) == 0 {
		return fmt.Errorf("source_extensions cannot be empty")
	}
	for _, ext := range p.SourceExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("source extension %q must start with a dot", ext)
		}
	}
	return nil
}

// Validate validates corpus extensions.
func (c *CorpusConfig) Validate() error {
	if !strings.HasPrefix(c.AudioExt, ".") || !strings.HasPrefix(c.LabelExt, ".") {
		return fmt.Errorf("audio_ext and label_ext must start with a dot, got %q and %q", c.AudioExt, c.LabelExt)
	}
	if strings.EqualFold(c.AudioExt, c.LabelExt) {
		return fmt.Errorf("audio_ext and label_ext must differ, both are %q", c.AudioExt)
	}
	return nil
}

// TrainRatio returns TrainPercent as a fraction.
func (p *PartitionConfig) TrainRatio() float64 {
	return p.TrainPercent / 100
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# ttscorpus configuration
# -----------------------
# sample_rate accepts plain Hz (16000) or units (16kHz, 44.1kHz).
# Environment overrides: TTSCORPUS_SEED, TTSCORPUS_WORKERS,
# TTSCORPUS_TRAIN_PERCENT, TTSCORPUS_LOG_LEVEL.

`)
	data = append(header, data...)

	reQuality := regexp.MustCompile(`(?m)^(\s+)quality:`)
	data = reQuality.ReplaceAll(data, []byte("${1}# 1 (fast) .. 64 (best); above 6 is rarely audible\n${1}quality:"))

	reWorkers := regexp.MustCompile(`(?m)^(\s+)workers:`)
	data = reWorkers.ReplaceAll(data, []byte("${1}# 0 uses one worker per CPU\n${1}workers:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
