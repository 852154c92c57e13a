package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// VoiceWAVName is the fixed download name for the raw synthesized voice.
const VoiceWAVName = "tts_voice_raw.wav"

// WAVHeader is the canonical 44-byte RIFF/WAVE header for PCM audio.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // 36 + data size
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // payload bytes
}

// EncodeWAV wraps raw 16-bit mono little-endian PCM in a self-contained WAV
// file: 44-byte header followed by the payload unmodified. Pure function;
// bypasses the mixing graph entirely.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("encode wav (%d bytes): %w", len(pcm), ErrMalformedAudio)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("encode wav: sample rate must be positive, got %d", sampleRate)
	}

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + uint32(len(pcm)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(pcm)),
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("encode wav header: %w", err)
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}
