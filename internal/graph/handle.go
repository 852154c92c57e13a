package graph

import (
	"sync"
	"time"

	"github.com/openvoiceover/dubmix/internal/audio"
)

// Handle is a one-shot playback instance bound to a decoded buffer. It is
// created at a start offset, streamed by the mixer, and discarded on stop or
// natural end; a stopped handle never produces audio again. Seeking is done
// by discarding the handle and creating a new one.
type Handle struct {
	mu      sync.Mutex
	buf     *audio.Buffer
	pos     int
	loop    bool
	stopped bool
}

func newHandle(buf *audio.Buffer, offset time.Duration, loop bool) *Handle {
	frames := buf.Frames()
	pos := int(offset * time.Duration(buf.SampleRate()) / time.Second)
	if loop && frames > 0 {
		pos %= frames
	}
	return &Handle{buf: buf, pos: pos, loop: loop}
}

// Stream implements beep.Streamer at the buffer's native rate. A looping
// handle tiles its buffer indefinitely; a one-shot handle drains at the end.
func (h *Handle) Stream(samples [][2]float64) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return 0, false
	}

	frames := h.buf.Frames()
	n := 0
	for n < len(samples) {
		if h.pos >= frames {
			if !h.loop || frames == 0 {
				break
			}
			h.pos = 0
		}
		samples[n] = h.buf.At(h.pos)
		h.pos++
		n++
	}
	if n == 0 {
		h.stopped = true
		return 0, false
	}
	return n, true
}

// Err implements beep.Streamer.
func (h *Handle) Err() error { return nil }

// Stop silences the handle permanently. The mixer drops it on its next pull.
func (h *Handle) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
}

// Active reports whether the handle can still produce audio.
func (h *Handle) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.stopped && (h.loop || h.pos < h.buf.Frames())
}

// Position returns the handle's cursor as an offset into its buffer.
func (h *Handle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return time.Duration(h.pos) * time.Second / time.Duration(h.buf.SampleRate())
}
