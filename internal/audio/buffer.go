package audio

import "time"

// Buffer is a decoded, immutable audio clip: normalized float64 samples in
// [-1, 1], one slice per channel, at the source's native sample rate. A
// channel owns at most one Buffer and replaces it wholesale when a new voice
// result or background file arrives; buffers are never mutated in place.
type Buffer struct {
	rate int
	data [][]float64
}

// NewBuffer wraps per-channel sample data. All channel slices must have the
// same length; data is not copied, so the caller must not write to it again.
func NewBuffer(rate int, data [][]float64) *Buffer {
	return &Buffer{rate: rate, data: data}
}

// SampleRate returns the buffer's native sample rate in Hz.
func (b *Buffer) SampleRate() int { return b.rate }

// NumChannels returns the number of audio channels.
func (b *Buffer) NumChannels() int { return len(b.data) }

// Frames returns the per-channel sample count.
func (b *Buffer) Frames() int {
	if len(b.data) == 0 {
		return 0
	}
	return len(b.data[0])
}

// Duration is derived: frame count over sample rate.
func (b *Buffer) Duration() time.Duration {
	if b.rate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.rate)
}

// Sample returns channel ch at frame i.
func (b *Buffer) Sample(ch, i int) float64 { return b.data[ch][i] }

// At returns frame i as a stereo pair. Mono buffers are duplicated to both
// sides; buffers with more than two channels fold down to the first two.
func (b *Buffer) At(i int) [2]float64 {
	switch len(b.data) {
	case 0:
		return [2]float64{}
	case 1:
		s := b.data[0][i]
		return [2]float64{s, s}
	default:
		return [2]float64{b.data[0][i], b.data[1][i]}
	}
}
