package stream

import (
	"context"
	"log"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/openvoiceover/dubmix/internal/audio"
)

// SpeakerMonitor routes the live mix to the local output device. The device
// starts suspended and comes up on the first Resume, which the transport
// runs at the top of every play.
type SpeakerMonitor struct {
	broadcaster *Broadcaster

	mu       sync.Mutex
	started  bool
	listener *Listener
	frame    []int16
	pos      int
}

// NewSpeakerMonitor creates a suspended local monitor.
func NewSpeakerMonitor(b *Broadcaster) *SpeakerMonitor {
	return &SpeakerMonitor{broadcaster: b}
}

// Resume initializes the output device once and starts pulling the mix.
// Subsequent calls are no-ops. Device setup can take observable time, which
// is why it runs inside the play path rather than at process start.
func (m *SpeakerMonitor) Resume(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}
	// 200ms device buffer
	if err := speaker.Init(beep.SampleRate(audio.SampleRate), audio.FrameSize*10); err != nil {
		return err
	}
	m.listener = m.broadcaster.Subscribe()
	m.started = true
	speaker.Play(m)
	log.Println("Local monitor device resumed")
	return nil
}

// Stream implements beep.Streamer: it drains buffered mix frames and fills
// underruns with silence so the device never starves.
func (m *SpeakerMonitor) Stream(samples [][2]float64) (int, bool) {
	m.mu.Lock()
	listener := m.listener
	m.mu.Unlock()

	for i := range samples {
		if m.pos >= len(m.frame) {
			m.frame = nil
			m.pos = 0
			if listener != nil {
				select {
				case f, ok := <-listener.C:
					if ok {
						m.frame = f
					}
				default:
				}
			}
		}
		if m.pos+1 < len(m.frame) {
			samples[i][0] = float64(m.frame[m.pos]) / 32768.0
			samples[i][1] = float64(m.frame[m.pos+1]) / 32768.0
			m.pos += 2
		} else {
			samples[i] = [2]float64{}
		}
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (m *SpeakerMonitor) Err() error { return nil }
