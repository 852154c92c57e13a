// Package graph implements the three-channel mixing graph: gain-controlled
// Voice, Background and Original strips summed onto a single output bus.
package graph

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/openvoiceover/dubmix/internal/audio"
)

// Channel identifies one of the three fixed mixing channels.
type Channel int

const (
	Voice Channel = iota
	Background
	Original
	numChannels
)

func (c Channel) String() string {
	switch c {
	case Voice:
		return "voice"
	case Background:
		return "background"
	case Original:
		return "original"
	}
	return "unknown"
}

// ParseChannel maps a channel name from the control surface.
func ParseChannel(name string) (Channel, error) {
	switch name {
	case "voice":
		return Voice, nil
	case "background":
		return Background, nil
	case "original":
		return Original, nil
	}
	return 0, fmt.Errorf("unknown channel %q", name)
}

// MaxGain returns the upper bound of the channel's gain range. Voice may be
// boosted above unity; the other channels only attenuate.
func (c Channel) MaxGain() float64 {
	if c == Voice {
		return 1.5
	}
	return 1.0
}

const resampleQuality = 4

// strip is one gain-controlled channel. Its mixer holds the live source
// handle (none means the channel streams silence) and the effective gain is
// muted ? 0 : gain, so un-muting restores the stored level.
type strip struct {
	ch Channel

	mu      sync.Mutex
	sources beep.Mixer
	gain    float64
	muted   bool
	buf     *audio.Buffer
}

func (s *strip) Stream(samples [][2]float64) (int, bool) {
	s.mu.Lock()
	g := s.gain
	if s.muted {
		g = 0
	}
	n, _ := s.sources.Stream(samples)
	s.mu.Unlock()

	for i := range samples[:n] {
		samples[i][0] *= g
		samples[i][1] *= g
	}
	return n, true
}

func (s *strip) Err() error { return nil }

// Graph owns the three strips and the summing bus. It is constructed once
// and shared; all gain, mute and source changes go through its methods.
type Graph struct {
	strips [numChannels]*strip
	out    beep.Mixer

	mu            sync.Mutex
	originalBound bool
}

// New builds the graph with the given initial gains, unmuted.
func New(voiceGain, backgroundGain, originalGain float64) *Graph {
	g := &Graph{}
	gains := [numChannels]float64{voiceGain, backgroundGain, originalGain}
	for ch := Voice; ch < numChannels; ch++ {
		g.strips[ch] = &strip{ch: ch, gain: clamp(gains[ch], 0, ch.MaxGain())}
		g.out.Add(g.strips[ch])
	}
	return g
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SetBuffer replaces the decoded buffer assigned to the Voice or Background
// channel. The Original channel's source is fixed at bind time.
func (g *Graph) SetBuffer(ch Channel, buf *audio.Buffer) error {
	if ch == Original {
		return fmt.Errorf("original channel has no assignable buffer")
	}
	s := g.strips[ch]
	s.mu.Lock()
	s.buf = buf
	s.mu.Unlock()
	return nil
}

// BindOriginal wires the video's own audio onto the Original strip. The
// binding happens once; repeat calls are ignored because the underlying
// source cannot be tapped twice.
func (g *Graph) BindOriginal(buf *audio.Buffer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.originalBound {
		log.Println("Original channel already bound, ignoring re-bind")
		return
	}
	g.originalBound = true

	s := g.strips[Original]
	s.mu.Lock()
	s.buf = buf
	s.mu.Unlock()
}

// OriginalBound reports whether the video audio binding has been made.
func (g *Graph) OriginalBound() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.originalBound
}

// Buffer returns the channel's assigned decoded buffer, nil when absent.
func (g *Graph) Buffer(ch Channel) *audio.Buffer {
	s := g.strips[ch]
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf
}

// SetGain updates the channel's stored gain. The value must lie within the
// channel's documented range; muting is a separate overlay.
func (g *Graph) SetGain(ch Channel, v float64) error {
	if v < 0 || v > ch.MaxGain() {
		return fmt.Errorf("gain %.3f out of range [0, %.1f] for %s channel", v, ch.MaxGain(), ch)
	}
	s := g.strips[ch]
	s.mu.Lock()
	s.gain = v
	s.mu.Unlock()
	return nil
}

// Gain returns the channel's stored gain, regardless of mute state.
func (g *Graph) Gain(ch Channel) float64 {
	s := g.strips[ch]
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gain
}

// SetMuted forces the channel's effective output to zero without touching
// the stored gain.
func (g *Graph) SetMuted(ch Channel, muted bool) {
	s := g.strips[ch]
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

// Muted reports the channel's mute flag.
func (g *Graph) Muted(ch Channel) bool {
	s := g.strips[ch]
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Play starts a fresh one-shot source on the channel at the given offset
// into its buffer, resampled to the engine rate when needed. Returns nil
// when the channel has no buffer. The handle is single-use: once stopped or
// drained the mixer discards it and it can never be restarted.
func (g *Graph) Play(ch Channel, offset time.Duration, loop bool) *Handle {
	s := g.strips[ch]
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buf == nil || s.buf.Frames() == 0 {
		return nil
	}
	h := newHandle(s.buf, offset, loop)

	var src beep.Streamer = h
	if s.buf.SampleRate() != audio.SampleRate {
		src = beep.Resample(resampleQuality,
			beep.SampleRate(s.buf.SampleRate()), beep.SampleRate(audio.SampleRate), h)
	}
	s.sources.Add(src)
	return h
}

// Stream fills samples with the summed output of all three strips. Strips
// never report drained, so the bus streams silence when nothing is playing.
func (g *Graph) Stream(samples [][2]float64) (int, bool) {
	return g.out.Stream(samples)
}

// Err implements beep.Streamer.
func (g *Graph) Err() error { return nil }
