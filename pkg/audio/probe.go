package audio

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// Info is what a wav header says about a file.
type Info struct {
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	BitDepth   int           `json:"bit_depth"`
	Duration   time.Duration `json:"duration"`
}

// Inspect reads the header of a wav file without decoding its payload.
func Inspect(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: wav header: %v", ErrUnreadable, err)
	}
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav file", ErrUnreadable)
	}

	info := &Info{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}
	if dur, err := d.Duration(); err == nil {
		info.Duration = dur
	}
	return info, nil
}

// SampleRateOK reports whether the header rate matches the profile.
func (i *Info) SampleRateOK(p Profile) bool {
	return i.SampleRate == p.SampleRate
}

// ChannelsOK reports whether the header channel count matches the profile.
func (i *Info) ChannelsOK(p Profile) bool {
	return i.Channels == p.Channels
}

// ChannelName renders a channel count the way reports show it.
func ChannelName(n int) string {
	switch n {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return fmt.Sprintf("%dch", n)
	}
}
