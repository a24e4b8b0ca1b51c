package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
)

// WAVE format tags accepted by the integer PCM decoder.
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// source is a decoded recording already folded to mono.
type source struct {
	streamer   beep.Streamer
	sampleRate int
	channels   int
	bitDepth   int
	frames     int
	close      func() error
}

// SupportedExtensions lists the source formats the normalizer can read.
var SupportedExtensions = []string{".wav", ".mp3", ".flac"}

// IsSupported reports whether path has a decodable extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func openSource(path string) (*source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !IsSupported(path) {
		return nil, fmt.Errorf("%w: extension %q", ErrUnsupported, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	switch ext {
	case ".wav":
		defer f.Close()
		return decodeWAV(f)
	case ".mp3":
		s, format, err := mp3.Decode(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: mp3: %v", ErrUnreadable, err)
		}
		return fromBeep(s, format, closeBoth(s, f)), nil
	default:
		s, format, err := flac.Decode(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: flac: %v", ErrUnreadable, err)
		}
		return fromBeep(s, format, closeBoth(s, f)), nil
	}
}

// closeBoth closes the decoder and the file; a decoder may already have closed f.
func closeBoth(s beep.StreamSeekCloser, f *os.File) func() error {
	return func() error {
		err := s.Close()
		_ = f.Close()
		return err
	}
}

func fromBeep(s beep.StreamSeekCloser, format beep.Format, closeFn func() error) *source {
	return &source{
		streamer:   &downmix{Streamer: s},
		sampleRate: int(format.SampleRate),
		channels:   format.NumChannels,
		bitDepth:   format.Precision * 8,
		frames:     s.Len(),
		close:      closeFn,
	}
}

// decodeWAV reads every channel of an integer PCM wav and averages them per frame.
// beep's wav decoder only exposes the first two channels, so multi-channel
// recordings go through go-audio instead.
func decodeWAV(r io.ReadSeeker) (*source, error) {
	tag, err := wavFormatTag(r)
	if err != nil {
		return nil, fmt.Errorf("%w: wav header: %v", ErrUnreadable, err)
	}
	if tag != wavFormatPCM {
		return nil, fmt.Errorf("%w: wav format tag %#x (only integer PCM)", ErrUnsupported, tag)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	d := wav.NewDecoder(r)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: wav header: %v", ErrUnreadable, err)
	}
	// IsValidFile would also reject zero-length data, which is reported as empty
	if d.NumChans < 1 || d.BitDepth < 8 || d.SampleRate == 0 {
		return nil, fmt.Errorf("%w: not a valid wav file", ErrUnreadable)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: wav data: %v", ErrUnreadable, err)
	}

	channels := int(d.NumChans)
	bitDepth := int(d.BitDepth)
	mono, err := averageChannels(buf.Data, channels, bitDepth)
	if err != nil {
		return nil, err
	}

	return &source{
		streamer:   &monoStreamer{samples: mono},
		sampleRate: int(d.SampleRate),
		channels:   channels,
		bitDepth:   bitDepth,
		frames:     len(mono),
		close:      func() error { return nil },
	}, nil
}

// wavFormatTag returns the format tag of the fmt chunk. For
// WAVE_FORMAT_EXTENSIBLE it returns the tag carried in the SubFormat GUID,
// so extensible float data is not mistaken for integer PCM.
func wavFormatTag(r io.ReadSeeker) (uint16, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return 0, err
	}
	if p.Format != riff.WavFormatID {
		return 0, fmt.Errorf("riff format %q is not WAVE", p.Format[:])
	}

	for {
		ch, err := p.NextChunk()
		if err != nil {
			return 0, fmt.Errorf("no fmt chunk: %w", err)
		}
		if ch.ID != riff.FmtID {
			ch.Drain()
			continue
		}
		if ch.Size < 16 {
			return 0, fmt.Errorf("fmt chunk of %d bytes", ch.Size)
		}
		body := make([]byte, ch.Size)
		if _, err := io.ReadFull(ch, body); err != nil {
			return 0, fmt.Errorf("fmt chunk: %w", err)
		}

		tag := binary.LittleEndian.Uint16(body)
		if tag != wavFormatExtensible {
			return tag, nil
		}
		// cbSize, valid bits and channel mask precede the SubFormat GUID
		if len(body) < 26 {
			return 0, fmt.Errorf("extensible fmt chunk of %d bytes", len(body))
		}
		return binary.LittleEndian.Uint16(body[24:26]), nil
	}
}

// averageChannels converts interleaved integer PCM to [-1,1] floats and folds
// every frame to the mean of its channels.
func averageChannels(data []int, channels, bitDepth int) ([]float64, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnreadable, channels)
	}

	var scale, offset float64
	switch bitDepth {
	case 8:
		// 8-bit wav is unsigned
		scale, offset = 128, 128
	case 16, 24, 32:
		scale = float64(int64(1) << (bitDepth - 1))
	default:
		return nil, fmt.Errorf("%w: %d-bit PCM", ErrUnsupported, bitDepth)
	}

	frames := len(data) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += (float64(data[i*channels+c]) - offset) / scale
		}
		mono[i] = sum / float64(channels)
	}
	return mono, nil
}

// monoStreamer plays a mono buffer on both beep channels.
type monoStreamer struct {
	samples []float64
	pos     int
}

func (s *monoStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	for n < len(samples) && s.pos < len(s.samples) {
		v := s.samples[s.pos]
		samples[n] = [2]float64{v, v}
		n++
		s.pos++
	}
	return n, true
}

func (s *monoStreamer) Err() error { return nil }

// downmix averages the two beep channels. Mono beep sources carry the same
// value on both, so averaging leaves them untouched.
type downmix struct {
	Streamer beep.Streamer
}

func (d *downmix) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = d.Streamer.Stream(samples)
	for i := 0; i < n; i++ {
		v := (samples[i][0] + samples[i][1]) / 2
		samples[i] = [2]float64{v, v}
	}
	return n, ok
}

func (d *downmix) Err() error {
	return d.Streamer.Err()
}

// counter counts frames passing through a streamer.
type counter struct {
	Streamer beep.Streamer
	n        int
}

func (c *counter) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = c.Streamer.Stream(samples)
	c.n += n
	return n, ok
}

func (c *counter) Err() error {
	return c.Streamer.Err()
}
