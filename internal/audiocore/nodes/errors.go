package nodes

import (
	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/errors"
)

var (
	// ErrInvalidParameter is returned for out of range node parameters
	ErrInvalidParameter = errors.New(errors.NewStd("invalid node parameter")).
				Component(audiocore.ComponentAudioCore).
				Category(errors.CategoryValidation).
				Build()

	// ErrUnsupportedFile is returned when a file type has no decoder
	ErrUnsupportedFile = errors.New(errors.NewStd("unsupported audio file")).
				Component(audiocore.ComponentAudioCore).
				Category(errors.CategoryFileParsing).
				Build()

	// ErrDecode is returned when an audio file cannot be decoded
	ErrDecode = errors.New(errors.NewStd("audio decode failed")).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryFileParsing).
			Build()
)

func paramError(param string, value any, reason string) error {
	return errors.Newf("%w: %s %v %s", ErrInvalidParameter, param, value, reason).
		Component(audiocore.ComponentAudioCore).
		Category(errors.CategoryValidation).
		Context("parameter", param).
		Build()
}
