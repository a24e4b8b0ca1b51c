package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SampleRate is a rate in Hz that accepts unit suffixes in YAML.
type SampleRate int

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *SampleRate) UnmarshalYAML(value *yaml.Node) error {
	var n int
	if err := value.Decode(&n); err == nil {
		*r = SampleRate(n)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	hz, err := ParseSampleRate(s)
	if err != nil {
		return err
	}
	*r = SampleRate(hz)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (r SampleRate) MarshalYAML() (interface{}, error) {
	return int(r), nil
}

// Hz returns the rate as a plain int.
func (r SampleRate) Hz() int {
	return int(r)
}

// ParseSampleRate parses "16000", "16000Hz", "16kHz" or "44.1khz".
func ParseSampleRate(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty sample rate")
	}

	mult := 1.0
	numStr := s
	switch {
	case strings.HasSuffix(s, "khz"):
		mult = 1000
		numStr = strings.TrimSuffix(s, "khz")
	case strings.HasSuffix(s, "hz"):
		numStr = strings.TrimSuffix(s, "hz")
	}

	val, err := strconv.ParseFloat(strings.TrimSpace(numStr), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid sample rate number: %w", err)
	}
	hz := int(math.Round(val * mult))
	if hz <= 0 {
		return 0, fmt.Errorf("sample rate must be positive, got %q", s)
	}
	return hz, nil
}
