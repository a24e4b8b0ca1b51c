package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "ttscorpus.yaml")

	tests := []struct {
		name          string
		setup         func()
		validate      func(*testing.T, *Config)
		checkFile     func(*testing.T)
		expectedError bool
	}{
		{
			name:  "NewFile_Defaults",
			setup: func() {},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Canonical.SampleRate != 16000 {
					t.Errorf("expected default sample rate 16000, got %d", cfg.Canonical.SampleRate)
				}
				if cfg.Canonical.Channels != 1 {
					t.Errorf("expected mono default, got %d channels", cfg.Canonical.Channels)
				}
				if cfg.Partition.Seed != nil {
					t.Errorf("expected no default seed, got %d", *cfg.Partition.Seed)
				}
			},
			checkFile: func(t *testing.T) {
				if _, err := os.Stat(configPath); !os.IsNotExist(err) {
					t.Errorf("Load must not create %s, stat err = %v", configPath, err)
				}
			},
		},
		{
			name: "ExistingFile_Override",
			setup: func() {
				err := os.WriteFile(configPath, []byte("canonical:\n  sample_rate: 22.05kHz\npartition:\n  train_percent: 90\n  seed: 7\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Canonical.SampleRate != 22050 {
					t.Errorf("expected sample rate 22050, got %d", cfg.Canonical.SampleRate)
				}
				if cfg.Partition.TrainPercent != 90 {
					t.Errorf("expected train_percent 90, got %v", cfg.Partition.TrainPercent)
				}
				if cfg.Partition.Seed == nil || *cfg.Partition.Seed != 7 {
					t.Errorf("expected seed 7, got %v", cfg.Partition.Seed)
				}
				if cfg.Corpus.LabelExt != ".lab" {
					t.Errorf("expected default label_ext to survive merge, got %q", cfg.Corpus.LabelExt)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "22.05kHz") {
					t.Error("existing config file should not be rewritten")
				}
			},
		},
		{
			name: "Env_Override",
			setup: func() {
				t.Setenv("TTSCORPUS_SEED", "1234")
				t.Setenv("TTSCORPUS_WORKERS", "3")
				t.Setenv("TTSCORPUS_LOG_LEVEL", "DEBUG")
				err := os.WriteFile(configPath, []byte("partition:\n  workers: 8\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Partition.Seed == nil || *cfg.Partition.Seed != 1234 {
					t.Errorf("expected env seed 1234, got %v", cfg.Partition.Seed)
				}
				if cfg.Partition.Workers != 3 {
					t.Errorf("expected env workers 3, got %d", cfg.Partition.Workers)
				}
				if cfg.Log.Level != "DEBUG" {
					t.Errorf("expected env log level DEBUG, got %s", cfg.Log.Level)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if strings.Contains(string(content), "1234") {
					t.Error("environment override should NOT be persisted to config file")
				}
			},
		},
		{
			name: "Path_Env_Expansion",
			setup: func() {
				t.Setenv("CORPUS_HOME", "/data/corpus")
				t.Setenv("METRICS_DIR", "/var/lib/node_exporter")
				err := os.WriteFile(configPath, []byte("catalog:\n  path: \"$CORPUS_HOME/catalog.db\"\nmetrics:\n  textfile: \"%METRICS_DIR%/ttscorpus.prom\"\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Catalog.Path != "/data/corpus/catalog.db" {
					t.Errorf("expected expanded catalog path, got %q", cfg.Catalog.Path)
				}
				if cfg.Metrics.Textfile != "/var/lib/node_exporter/ttscorpus.prom" {
					t.Errorf("expected expanded textfile path, got %q", cfg.Metrics.Textfile)
				}
			},
		},
		{
			name: "Invalid_YAML",
			setup: func() {
				err := os.WriteFile(configPath, []byte("partition: [not a map]"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "Invalid_TrainPercent",
			setup: func() {
				err := os.WriteFile(configPath, []byte("partition:\n  train_percent: 0\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "Invalid_Env_Seed",
			setup: func() {
				t.Setenv("TTSCORPUS_SEED", "minus-one")
				_ = os.Remove(configPath)
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_ = os.Remove(configPath)
			tt.setup()

			cfg, err := Load(configPath)
			if (err != nil) != tt.expectedError {
				t.Fatalf("Load() error = %v, expectedError %v", err, tt.expectedError)
			}
			if tt.expectedError {
				return
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
			if tt.checkFile != nil {
				tt.checkFile(t)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Defaults", func(*Config) {}, ""},
		{"ZeroRate", func(c *Config) { c.Canonical.SampleRate = 0 }, "sample_rate"},
		{"ThreeChannels", func(c *Config) { c.Canonical.Channels = 3 }, "channels"},
		{"OddBitDepth", func(c *Config) { c.Canonical.BitDepth = 12 }, "bit_depth"},
		{"QualityTooHigh", func(c *Config) { c.Resample.Quality = 65 }, "quality"},
		{"PercentAbove100", func(c *Config) { c.Partition.TrainPercent = 100.5 }, "train_percent"},
		{"Percent100", func(c *Config) { c.Partition.TrainPercent = 100 }, ""},
		{"NegativeWorkers", func(c *Config) { c.Partition.Workers = -1 }, "workers"},
		{"ExtWithoutDot", func(c *Config) { c.Partition.SourceExtensions = []string{"wav"} }, "dot"},
		{"SameExt", func(c *Config) { c.Corpus.LabelExt = ".WAV" }, "differ"},
		{"BadLevel", func(c *Config) { c.Log.Level = "chatty" }, "level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGenerateDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ttscorpus.yaml")

	if err := GenerateDefault(path); err != nil {
		t.Fatalf("GenerateDefault failed: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.HasPrefix(string(first), "# ttscorpus configuration") {
		t.Error("missing header comment")
	}

	if err := os.WriteFile(path, []byte("custom: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := GenerateDefault(path); err != nil {
		t.Fatalf("GenerateDefault on existing file failed: %v", err)
	}
	second, _ := os.ReadFile(path)
	if string(second) != "custom: true\n" {
		t.Error("GenerateDefault must not overwrite an existing file")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing .env should be ignored, got %v", err)
	}

	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("TTSCORPUS_TEST_DOTENV=loaded\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TTSCORPUS_TEST_DOTENV", "")
	os.Unsetenv("TTSCORPUS_TEST_DOTENV")

	if err := LoadDotEnv(envPath); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("TTSCORPUS_TEST_DOTENV"); got != "loaded" {
		t.Errorf("expected variable from .env, got %q", got)
	}
}
