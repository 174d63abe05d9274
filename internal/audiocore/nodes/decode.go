package nodes

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/oov/audio/resampler"
	"github.com/tphakala/flac"

	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/errors"
)

// resampleQuality is the oov resampler quality, 0 (fastest) to 10 (best)
const resampleQuality = 10

// Clip is decoded audio held in memory as interleaved float32
type Clip struct {
	Format  audiocore.Format
	Samples []float32
}

// Frames returns the clip length in frames
func (c *Clip) Frames() int {
	if c.Format.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Format.Channels
}

// decoder turns an encoded stream into a clip
type decoder func(data []byte) (*Clip, error)

var decoders = map[string]decoder{
	".wav":  decodeWAV,
	".flac": decodeFLAC,
	".mp3":  decodeMP3,
	".ogg":  decodeVorbis,
	".oga":  decodeVorbis,
}

// SupportedExtensions lists the file extensions DecodeFile accepts
func SupportedExtensions() []string {
	return []string{".flac", ".mp3", ".oga", ".ogg", ".wav"}
}

// DecodeFile reads and decodes an audio file, picking the decoder by extension
func DecodeFile(path string) (*Clip, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := decoders[ext]; !ok {
		return nil, errors.Newf("%w: %q", ErrUnsupportedFile, ext).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryFileParsing).
			Context("file_path", path).
			Build()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryFileIO).
			Context("file_path", path).
			Context("operation", "read_audio_file").
			Build()
	}
	return decode(data, ext, path)
}

// Decode decodes a stream of the type named by ext (".wav", ".flac", ".mp3", ".ogg")
func Decode(r io.Reader, ext string) (*Clip, error) {
	if _, ok := decoders[strings.ToLower(ext)]; !ok {
		return nil, errors.Newf("%w: %q", ErrUnsupportedFile, ext).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryFileParsing).
			Build()
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Newf("%w: %w", ErrDecode, err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryFileParsing).
			Context("format", ext).
			Build()
	}
	return decode(data, ext, "")
}

// decode runs the decoder registered for ext; path is only used for error context
func decode(data []byte, ext, path string) (*Clip, error) {
	ext = strings.ToLower(ext)
	start := time.Now()
	fail := func(cause error) error {
		return errors.Newf("%w: %w", ErrDecode, cause).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryFileParsing).
			Context("format", ext).
			FileContext(path, int64(len(data))).
			Timing("decode_audio", time.Since(start)).
			Build()
	}

	clip, err := decoders[ext](data)
	if err != nil {
		return nil, fail(err)
	}
	if err := clip.Format.Validate(); err != nil {
		return nil, fail(err)
	}
	return clip, nil
}

func decodeWAV(data []byte) (*Clip, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, errors.NewStd("input is not a valid WAV audio file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, err
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(d.BitDepth)
	}
	if bitDepth != 8 && bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, errors.Newf("unsupported bit depth: %d", bitDepth).Build()
	}

	samples := make([]float32, len(buf.Data))
	if bitDepth == 8 {
		// 8-bit WAV is unsigned
		for i, v := range buf.Data {
			samples[i] = float32(v-128) / 128
		}
	} else {
		scale := float32(int64(1) << (bitDepth - 1))
		for i, v := range buf.Data {
			samples[i] = float32(v) / scale
		}
	}
	return &Clip{
		Format:  audiocore.Format{SampleRate: float64(d.SampleRate), Channels: int(d.NumChans)},
		Samples: samples,
	}, nil
}

func decodeFLAC(data []byte) (*Clip, error) {
	d, err := flac.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	width := d.BitsPerSample / 8
	if d.BitsPerSample%8 != 0 || width < 1 || width > 4 {
		return nil, errors.Newf("unsupported bit depth: %d", d.BitsPerSample).Build()
	}
	scale := float32(int64(1) << (d.BitsPerSample - 1))

	samples := make([]float32, 0, int(d.TotalSamples)*d.NChannels)
	for {
		frame, err := d.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for i := 0; i+width <= len(frame); i += width {
			samples = append(samples, float32(pcmSample(frame[i:i+width]))/scale)
		}
	}
	return &Clip{
		Format:  audiocore.Format{SampleRate: float64(d.SampleRate), Channels: d.NChannels},
		Samples: samples,
	}, nil
}

// pcmSample reads one signed little-endian sample of len(b) bytes
func pcmSample(b []byte) int32 {
	switch len(b) {
	case 1:
		return int32(int8(b[0]))
	case 2:
		return int32(int16(binary.LittleEndian.Uint16(b)))
	case 3:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		return v << 8 >> 8
	default:
		return int32(binary.LittleEndian.Uint32(b))
	}
}

func decodeMP3(data []byte) (*Clip, error) {
	d, err := gomp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, err
	}

	// go-mp3 always outputs 16-bit little-endian stereo
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		samples[i] = float32(v) / 32768
	}
	return &Clip{
		Format:  audiocore.Format{SampleRate: float64(d.SampleRate()), Channels: 2},
		Samples: samples,
	}, nil
}

func decodeVorbis(data []byte) (*Clip, error) {
	r, err := oggvorbis.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	ch := r.Channels()
	buf := make([]float32, 4096*ch)
	var samples []float32
	for {
		n, err := r.Read(buf)
		samples = append(samples, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return &Clip{
		Format:  audiocore.Format{SampleRate: float64(r.SampleRate()), Channels: ch},
		Samples: samples,
	}, nil
}

// Resample converts the clip to the target sample rate, keeping the channel
// count. A clip already at the target rate is returned unchanged.
func (c *Clip) Resample(rate float64) *Clip {
	if c.Format.SampleRate == rate || c.Frames() == 0 {
		return c
	}
	ch := c.Format.Channels
	frames := c.Frames()
	r := resampler.New(ch, int(c.Format.SampleRate), int(rate), resampleQuality)

	out := make([][]float32, ch)
	tmp := make([]float32, 4096)
	for channel := range ch {
		in := make([]float32, frames)
		for f := range frames {
			in[f] = c.Samples[f*ch+channel]
		}

		for len(in) > 0 {
			read, written := r.ProcessFloat32(channel, in, tmp)
			out[channel] = append(out[channel], tmp[:written]...)
			if read == 0 && written == 0 {
				break
			}
			in = in[read:]
		}
	}

	outFrames := len(out[0])
	for _, o := range out[1:] {
		outFrames = min(outFrames, len(o))
	}
	samples := make([]float32, outFrames*ch)
	for channel := range ch {
		for f := range outFrames {
			samples[f*ch+channel] = out[channel][f]
		}
	}
	return &Clip{
		Format:  audiocore.Format{SampleRate: rate, Channels: ch},
		Samples: samples,
	}
}
