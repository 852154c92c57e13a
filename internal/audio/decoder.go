package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// DecodeBackground decodes an arbitrary background music file into a Buffer
// at the file's native sample rate. Known containers go through the beep
// codec family; anything else goes through FFmpeg. Fails with
// ErrUnsupportedFormat when neither path can decode the file, in which case
// the Background channel must be treated as absent, not as a fatal error.
func DecodeBackground(ctx context.Context, path, ffmpegPath string) (*Buffer, error) {
	if buf, err := decodeNative(path); err == nil {
		return buf, nil
	} else if err != errUnknownExtension {
		log.Printf("Native decode failed for %s, falling back to ffmpeg: %v", filepath.Base(path), err)
	}

	samples, err := DecodeFile(ctx, path, ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("decode background %s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
	return BufferFromPCM16(samples), nil
}

var errUnknownExtension = fmt.Errorf("unknown container extension")

func decodeNative(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		streamer beep.Streamer
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	case ".ogg", ".oga":
		streamer, format, err = vorbis.Decode(f)
	default:
		return nil, errUnknownExtension
	}
	if err != nil {
		return nil, err
	}

	return drain(streamer, format)
}

// drain pulls a beep streamer to exhaustion into an immutable Buffer.
func drain(s beep.Streamer, format beep.Format) (*Buffer, error) {
	mono := format.NumChannels == 1
	var left, right []float64

	chunk := make([][2]float64, 2048)
	for {
		n, ok := s.Stream(chunk)
		for _, fr := range chunk[:n] {
			left = append(left, fr[0])
			if !mono {
				right = append(right, fr[1])
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	data := [][]float64{left}
	if !mono {
		data = append(data, right)
	}
	return NewBuffer(int(format.SampleRate), data), nil
}

// DecodeFile runs FFmpeg to decode any container's audio to raw PCM int16.
// Returns interleaved stereo samples at the engine rate.
func DecodeFile(ctx context.Context, path, ffmpegPath string) ([]int16, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-i", path,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprintf("%d", SampleRate),
		"-ac", fmt.Sprintf("%d", Channels),
		"-loglevel", "error",
		"pipe:1",
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}

	// Ensure even byte count for int16 alignment
	if len(out)%2 != 0 {
		out = out[:len(out)-1]
	}

	samples := make([]int16, len(out)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(out[i*2 : i*2+2]))
	}

	return samples, nil
}

// BufferFromPCM16 converts interleaved stereo int16 at the engine rate into a
// normalized two-channel Buffer.
func BufferFromPCM16(samples []int16) *Buffer {
	frames := len(samples) / Channels
	left := make([]float64, frames)
	right := make([]float64, frames)
	for i := 0; i < frames; i++ {
		left[i] = float64(samples[i*2]) / 32768.0
		right[i] = float64(samples[i*2+1]) / 32768.0
	}
	return NewBuffer(SampleRate, [][]float64{left, right})
}
