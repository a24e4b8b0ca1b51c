package audio

import (
	"fmt"

	"github.com/gopxl/beep/v2"

	"ttscorpus/pkg/config"
)

// Profile is the canonical audio format every corpus wav must satisfy.
type Profile struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultProfile is 16 kHz mono 16-bit PCM.
func DefaultProfile() Profile {
	return Profile{SampleRate: 16000, Channels: 1, BitDepth: 16}
}

// ProfileFromConfig converts the canonical config section.
func ProfileFromConfig(c *config.CanonicalConfig) Profile {
	return Profile{
		SampleRate: c.SampleRate.Hz(),
		Channels:   c.Channels,
		BitDepth:   c.BitDepth,
	}
}

// Validate checks the profile can be encoded.
func (p Profile) Validate() error {
	if p.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", p.SampleRate)
	}
	if p.Channels != 1 && p.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", p.Channels)
	}
	if p.BitDepth != 8 && p.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 8 or 16, got %d", p.BitDepth)
	}
	return nil
}

// Format returns the beep encoding format for the profile.
func (p Profile) Format() beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(p.SampleRate),
		NumChannels: p.Channels,
		Precision:   p.BitDepth / 8,
	}
}

func (p Profile) String() string {
	return fmt.Sprintf("%d Hz/%dch/%d-bit", p.SampleRate, p.Channels, p.BitDepth)
}
