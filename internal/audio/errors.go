package audio

import "errors"

var (
	// ErrMalformedAudio reports a voice PCM buffer whose byte length is not
	// a whole number of 16-bit samples. Fatal to that voice result.
	ErrMalformedAudio = errors.New("malformed audio: pcm byte length is not a multiple of 2")

	// ErrUnsupportedFormat reports a background file that no decoder could
	// handle. Non-fatal: the caller leaves the Background channel empty.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)
