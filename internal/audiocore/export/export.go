// Package export provides file sinks for offline rendering. WAVSink encodes
// rendered buffers to a WAV file through go-audio/wav; MemorySink keeps them
// in memory for tests and further processing.
package export

import (
	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/errors"
)

// DefaultBitDepth is the WAV sample size when none is configured
const DefaultBitDepth = 16

// ValidBitDepth reports whether WAV output supports the bit depth
func ValidBitDepth(bitDepth int) bool {
	switch bitDepth {
	case 16, 24, 32:
		return true
	default:
		return false
	}
}

// Sink is a file sink that must be closed to finish the file
type Sink interface {
	audiocore.FileSink
	Close() error
}

func validate(format audiocore.Format, bitDepth int) error {
	if err := format.Validate(); err != nil {
		return err
	}
	if !ValidBitDepth(bitDepth) {
		return errors.Newf("unsupported WAV bit depth: %d", bitDepth).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryValidation).
			Context("bit_depth", bitDepth).
			Build()
	}
	return nil
}
