// Package tts holds the boundary types for the speech-synthesis
// collaborator. The network calls that produce transcripts, translations
// and synthesized audio live outside this engine; all the mixer consumes is
// the raw PCM result delivered here.
package tts

import (
	"time"

	"github.com/openvoiceover/dubmix/internal/audio"
)

// VoiceResult is one synthesized voice-over: raw 16-bit little-endian mono
// PCM plus its sample rate. Style is the synthesizer's gender/style label,
// carried for display but never consulted by the mixing engine.
type VoiceResult struct {
	PCM        []byte `json:"pcmData"`
	SampleRate int    `json:"sampleRate"`
	Style      string `json:"style,omitempty"`
}

// Decode converts the result into a mixable buffer.
func (v VoiceResult) Decode() (*audio.Buffer, error) {
	return audio.DecodeVoice(v.PCM, v.SampleRate)
}

// WAV wraps the raw PCM for the instant-download path, bypassing the graph.
func (v VoiceResult) WAV() ([]byte, error) {
	return audio.EncodeWAV(v.PCM, v.SampleRate)
}

// Duration derives the clip length from the payload size.
func (v VoiceResult) Duration() time.Duration {
	if v.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(v.PCM)/2) * time.Second / time.Duration(v.SampleRate)
}
