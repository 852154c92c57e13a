package audio

import (
	"encoding/binary"
	"fmt"
)

// DecodeVoice interprets raw bytes as interleaved 16-bit signed little-endian
// mono PCM at the given sample rate and returns a single-channel buffer with
// samples normalized to [-1, 1]. Fails with ErrMalformedAudio when the byte
// length is not a multiple of 2.
func DecodeVoice(raw []byte, sampleRate int) (*Buffer, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("decode voice (%d bytes): %w", len(raw), ErrMalformedAudio)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("decode voice: sample rate must be positive, got %d", sampleRate)
	}

	samples := make([]float64, len(raw)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
		samples[i] = float64(s) / 32768.0
	}
	return NewBuffer(sampleRate, [][]float64{samples}), nil
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// QuantizeFrames converts stereo float frames to interleaved int16 samples,
// clipping to the int16 range.
func QuantizeFrames(frames [][2]float64) []int16 {
	out := make([]int16, len(frames)*2)
	for i, f := range frames {
		out[i*2] = quantize(f[0])
		out[i*2+1] = quantize(f[1])
	}
	return out
}

func quantize(s float64) int16 {
	v := s * 32767
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}
