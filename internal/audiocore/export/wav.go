package export

import (
	"os"
	"path/filepath"

	"github.com/go-audio/wav"

	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/errors"
)

const wavFormatPCM = 1

// WAVSink writes rendered frames to a PCM WAV file
type WAVSink struct {
	path     string
	format   audiocore.Format
	bitDepth int
	file     *os.File
	encoder  *wav.Encoder
	position int64
	closed   bool
}

// NewWAVSink creates the file at path, including missing parent directories
func NewWAVSink(path string, format audiocore.Format, bitDepth int) (*WAVSink, error) {
	if bitDepth == 0 {
		bitDepth = DefaultBitDepth
	}
	if err := validate(format, bitDepth); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fileError(err, path, "create_directory")
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fileError(err, path, "create_file")
	}

	af := format.AudioFormat()
	return &WAVSink{
		path:     path,
		format:   format,
		bitDepth: bitDepth,
		file:     file,
		encoder:  wav.NewEncoder(file, af.SampleRate, bitDepth, af.NumChannels, wavFormatPCM),
	}, nil
}

// Path returns the output file path
func (s *WAVSink) Path() string { return s.path }

// Format returns the sink format
func (s *WAVSink) Format() audiocore.Format { return s.format }

// FramePosition returns the number of frames written
func (s *WAVSink) FramePosition() int64 { return s.position }

// WriteFrames encodes the valid frames of buf
func (s *WAVSink) WriteFrames(buf *audiocore.PCMBuffer) error {
	if s.closed {
		return errors.Newf("write to closed WAV sink").
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryState).
			Context("file_path", s.path).
			Build()
	}
	if buf.FrameLength() == 0 {
		return nil
	}
	if buf.Format().Channels != s.format.Channels {
		return errors.Newf("%w: buffer has %d channels, sink %d", audiocore.ErrFormatMismatch,
			buf.Format().Channels, s.format.Channels).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryGraph).
			Build()
	}
	if err := s.encoder.Write(buf.IntBuffer(s.bitDepth)); err != nil {
		return fileError(err, s.path, "encode_wav")
	}
	s.position += int64(buf.FrameLength())
	return nil
}

// Close finalizes the WAV header and closes the file
func (s *WAVSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	encErr := s.encoder.Close()
	fileErr := s.file.Close()
	if encErr != nil {
		return fileError(encErr, s.path, "finalize_wav")
	}
	if fileErr != nil {
		return fileError(fileErr, s.path, "close_file")
	}
	return nil
}

func fileError(err error, path, operation string) error {
	return errors.New(err).
		Component(audiocore.ComponentAudioCore).
		Category(errors.CategoryFileIO).
		Context("file_path", path).
		Context("operation", operation).
		Build()
}
