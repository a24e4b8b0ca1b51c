package config

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseSampleRate(t *testing.T) {
	tests := []struct {
		input    string
		expected int
		wantErr  bool
	}{
		{"16000", 16000, false},
		{"16000Hz", 16000, false},
		{"16kHz", 16000, false},
		{"44.1kHz", 44100, false},
		{" 22.05khz ", 22050, false},
		{"", 0, true},
		{"0", 0, true},
		{"fast", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseSampleRate(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSampleRate(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseSampleRate(%q) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}

func TestSampleRateYAML(t *testing.T) {
	type wrapper struct {
		Rate SampleRate `yaml:"rate"`
	}

	tests := []struct {
		input    string
		expected SampleRate
	}{
		{"rate: 8000", 8000},
		{"rate: 48kHz", 48000},
		{"rate: \"11025\"", 11025},
	}

	for _, tt := range tests {
		var w wrapper
		if err := yaml.Unmarshal([]byte(tt.input), &w); err != nil {
			t.Errorf("Unmarshal(%q) failed: %v", tt.input, err)
			continue
		}
		if w.Rate != tt.expected {
			t.Errorf("Unmarshal(%q) = %d, want %d", tt.input, w.Rate, tt.expected)
		}
	}

	out, err := yaml.Marshal(wrapper{Rate: 16000})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != "rate: 16000\n" {
		t.Errorf("Marshal = %q", out)
	}
}
