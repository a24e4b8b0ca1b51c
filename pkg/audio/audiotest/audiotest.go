// Package audiotest writes and reads small audio fixtures for tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// flacBlock is the number of samples per channel in each FLAC frame.
const flacBlock = 4096

// Sine returns frames samples of a sine tone at freq Hz with the given amplitude.
func Sine(freq float64, rate, frames int, amp float64) []float64 {
	out := make([]float64, frames)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

// Constant returns frames copies of v.
func Constant(v float64, frames int) []float64 {
	out := make([]float64, frames)
	for i := range out {
		out[i] = v
	}
	return out
}

// Write encodes one sample slice per channel as integer PCM wav.
// All channels must have the same length; values are clamped to [-1,1].
func Write(path string, rate, bitDepth int, channels ...[]float64) error {
	frames, err := frameCount(channels)
	if err != nil {
		return err
	}
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data := make([]int, 0, frames*len(channels))
	for i := 0; i < frames; i++ {
		for _, ch := range channels {
			data = append(data, quantize(ch[i], bitDepth))
		}
	}

	enc := wav.NewEncoder(f, rate, bitDepth, len(channels), 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: rate, NumChannels: len(channels)},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// WriteFLAC encodes one sample slice per channel as a verbatim FLAC stream.
// Only mono and stereo are supported.
func WriteFLAC(path string, rate, bitDepth int, channels ...[]float64) error {
	frames, err := frameCount(channels)
	if err != nil {
		return err
	}
	var assignment frame.Channels
	switch len(channels) {
	case 1:
		assignment = frame.ChannelsMono
	case 2:
		assignment = frame.ChannelsLR
	default:
		return fmt.Errorf("flac fixture: %d channels", len(channels))
	}

	f, err := create(path)
	if err != nil {
		return err
	}
	info := &meta.StreamInfo{
		BlockSizeMin:  flacBlock,
		BlockSizeMax:  flacBlock,
		SampleRate:    uint32(rate),
		NChannels:     uint8(len(channels)),
		BitsPerSample: uint8(bitDepth),
		NSamples:      uint64(frames),
	}
	// Close rewrites the stream info and closes f.
	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		f.Close()
		return err
	}

	for start := 0; start < frames; start += flacBlock {
		n := min(flacBlock, frames-start)
		subframes := make([]*frame.Subframe, len(channels))
		for c, ch := range channels {
			samples := make([]int32, n)
			for i := range samples {
				samples[i] = int32(quantize(ch[start+i], bitDepth))
			}
			subframes[c] = &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples,
				NSamples:  n,
			}
		}
		fr := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(n),
				SampleRate:        uint32(rate),
				Channels:          assignment,
				BitsPerSample:     uint8(bitDepth),
			},
			Subframes: subframes,
		}
		if err := enc.WriteFrame(fr); err != nil {
			enc.Close()
			return err
		}
	}
	return enc.Close()
}

// WriteExtensible writes a mono WAVE_FORMAT_EXTENSIBLE file whose SubFormat
// GUID carries subFormat (1 integer PCM, 3 IEEE float). Float data is
// written as 32-bit little-endian floats, PCM as signed integers.
func WriteExtensible(path string, rate, bitDepth int, subFormat uint16, samples []float64) error {
	blockAlign := bitDepth / 8
	var data bytes.Buffer
	for _, v := range samples {
		switch {
		case subFormat == 3:
			_ = binary.Write(&data, binary.LittleEndian, float32(v))
		case bitDepth == 16:
			_ = binary.Write(&data, binary.LittleEndian, int16(quantize(v, 16)))
		case bitDepth == 32:
			_ = binary.Write(&data, binary.LittleEndian, int32(quantize(v, 32)))
		default:
			return fmt.Errorf("extensible fixture: %d-bit", bitDepth)
		}
	}

	var b bytes.Buffer
	le := func(v any) { _ = binary.Write(&b, binary.LittleEndian, v) }
	b.WriteString("RIFF")
	le(uint32(4 + 8 + 40 + 8 + data.Len()))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	le(uint32(40))
	le(uint16(0xFFFE))
	le(uint16(1))
	le(uint32(rate))
	le(uint32(rate * blockAlign))
	le(uint16(blockAlign))
	le(uint16(bitDepth))
	le(uint16(22))
	le(uint16(bitDepth))
	le(uint32(0x4)) // front center
	le(subFormat)
	b.Write([]byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71})
	b.WriteString("data")
	le(uint32(data.Len()))
	b.Write(data.Bytes())

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b.Bytes(), 0o644)
}

// WriteTone writes a 16-bit 440 Hz tone of the given length, identical on every channel.
func WriteTone(path string, rate, channels int, frames int) error {
	tone := Sine(440, rate, frames, 0.5)
	chans := make([][]float64, channels)
	for i := range chans {
		chans[i] = tone
	}
	return Write(path, rate, 16, chans...)
}

func frameCount(channels [][]float64) (int, error) {
	if len(channels) == 0 {
		return 0, fmt.Errorf("no channels")
	}
	frames := len(channels[0])
	for _, ch := range channels {
		if len(ch) != frames {
			return 0, fmt.Errorf("channel lengths differ")
		}
	}
	return frames, nil
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

// quantize clamps v to [-1,1] and scales it to a signed integer sample.
func quantize(v float64, bitDepth int) int {
	peak := float64(int64(1)<<(bitDepth-1) - 1)
	v = math.Max(-1, math.Min(1, v))
	return int(math.Round(v * peak))
}

// Decoded is a wav read back as floats.
type Decoded struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Samples    []float64 // interleaved
}

// Frames returns the number of frames.
func (d *Decoded) Frames() int {
	return len(d.Samples) / d.Channels
}

// Read decodes a 16-bit (or wider) integer PCM wav.
func Read(path string) (*Decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, err
	}

	scale := float64(int64(1) << (d.BitDepth - 1))
	out := &Decoded{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Samples:    make([]float64, len(buf.Data)),
	}
	for i, v := range buf.Data {
		out.Samples[i] = float64(v) / scale
	}
	return out, nil
}
