package audio

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestEncodeWAVHeaderRoundTrip(t *testing.T) {
	rates := []int{8000, 16000, 22050, 24000, 44100, 48000}
	lengths := []int{0, 2, 100, 4096, 96000}

	for _, rate := range rates {
		for _, n := range lengths {
			pcm := make([]byte, n)
			for i := range pcm {
				pcm[i] = byte(i)
			}

			out, err := EncodeWAV(pcm, rate)
			if err != nil {
				t.Fatalf("EncodeWAV(%d bytes, %d Hz): %v", n, rate, err)
			}
			if len(out) != 44+n {
				t.Fatalf("EncodeWAV output %d bytes, want %d", len(out), 44+n)
			}

			if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
				t.Errorf("bad RIFF/WAVE magic: %q %q", out[0:4], out[8:12])
			}
			if got := binary.LittleEndian.Uint32(out[4:8]); got != uint32(36+n) {
				t.Errorf("RIFF size = %d, want %d", got, 36+n)
			}
			if string(out[12:16]) != "fmt " {
				t.Errorf("missing fmt chunk")
			}
			if got := binary.LittleEndian.Uint16(out[20:22]); got != 1 {
				t.Errorf("audio format = %d, want 1 (PCM)", got)
			}
			if got := binary.LittleEndian.Uint16(out[22:24]); got != 1 {
				t.Errorf("channels = %d, want 1 (mono)", got)
			}
			if got := binary.LittleEndian.Uint32(out[24:28]); got != uint32(rate) {
				t.Errorf("sample rate = %d, want %d", got, rate)
			}
			if got := binary.LittleEndian.Uint32(out[28:32]); got != uint32(rate*2) {
				t.Errorf("byte rate = %d, want %d", got, rate*2)
			}
			if got := binary.LittleEndian.Uint16(out[32:34]); got != 2 {
				t.Errorf("block align = %d, want 2", got)
			}
			if got := binary.LittleEndian.Uint16(out[34:36]); got != 16 {
				t.Errorf("bits per sample = %d, want 16", got)
			}
			if string(out[36:40]) != "data" {
				t.Errorf("missing data chunk")
			}
			if got := binary.LittleEndian.Uint32(out[40:44]); got != uint32(n) {
				t.Errorf("data size = %d, want %d", got, n)
			}

			// payload must pass through unmodified
			for i := 0; i < n; i++ {
				if out[44+i] != pcm[i] {
					t.Fatalf("payload byte %d modified: %02x != %02x", i, out[44+i], pcm[i])
				}
			}
		}
	}
}

func TestEncodeWAVRejectsOddLength(t *testing.T) {
	_, err := EncodeWAV([]byte{1, 2, 3}, 48000)
	if !errors.Is(err, ErrMalformedAudio) {
		t.Errorf("EncodeWAV(odd length) = %v, want ErrMalformedAudio", err)
	}
}

func TestEncodeWAVRejectsBadRate(t *testing.T) {
	for _, rate := range []int{0, -1} {
		if _, err := EncodeWAV([]byte{0, 0}, rate); err == nil {
			t.Errorf("EncodeWAV(rate=%d) succeeded, want error", rate)
		}
	}
}
