// Package transport coordinates the video playback clock with the start,
// stop and seek of the graph's audio sources.
package transport

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/openvoiceover/dubmix/internal/graph"
	"github.com/openvoiceover/dubmix/internal/metrics"
	"github.com/openvoiceover/dubmix/internal/video"
)

// State is the transport state machine.
type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

var (
	// ErrNoVideo reports a transport operation before a video was loaded.
	ErrNoVideo = errors.New("no video loaded")

	// ErrNoVoice reports a play attempt with no decodable voice buffer.
	ErrNoVoice = errors.New("no voice buffer decoded")
)

// session holds the live source handles of one continuous play interval,
// anchored to the video clock offset they were started at. Handles are
// single-use, so a session is torn down wholesale and never reused.
type session struct {
	anchor     time.Duration
	voice      *graph.Handle
	background *graph.Handle
	original   *graph.Handle
}

func (s *session) teardown() {
	for _, h := range []*graph.Handle{s.voice, s.background, s.original} {
		if h != nil {
			h.Stop()
		}
	}
}

func (s *session) activeSources() int {
	n := 0
	for _, h := range []*graph.Handle{s.voice, s.background, s.original} {
		if h != nil && h.Active() {
			n++
		}
	}
	return n
}

// Controller drives play, pause and seek against a single video clock. The
// video's current time is the only position state; audio sources are told
// their offset once at start and are discarded on every transition.
type Controller struct {
	graph *graph.Graph

	mu      sync.Mutex
	video   *video.Element
	state   State
	session *session
	endHook func()
	resume  func(context.Context) error
}

// New creates a stopped controller over the graph.
func New(g *graph.Graph) *Controller {
	return &Controller{graph: g}
}

// SetResumeFunc registers the output-device resume step run at the top of
// Play. Resuming may block while the device comes up; it is not an error
// path.
func (c *Controller) SetResumeFunc(fn func(context.Context) error) {
	c.mu.Lock()
	c.resume = fn
	c.mu.Unlock()
}

// AttachVideo binds the controller to a loaded video element and registers
// the natural end-of-media transition.
func (c *Controller) AttachVideo(el *video.Element) {
	c.mu.Lock()
	c.video = el
	c.mu.Unlock()
	el.SetOnEnded(c.handleEnded)
}

// Video returns the attached element, nil before AttachVideo.
func (c *Controller) Video() *video.Element {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.video
}

// Play tears down any previous session and starts a new one anchored at the
// video's current time: Voice starts at offset t only while t is inside the
// voice-over, Background starts looping at t modulo its length, and the
// Original pass-through runs with the video itself.
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playLocked(ctx)
}

func (c *Controller) playLocked(ctx context.Context) error {
	if c.video == nil {
		return ErrNoVideo
	}
	if c.graph.Buffer(graph.Voice) == nil {
		return ErrNoVoice
	}
	if c.resume != nil {
		if err := c.resume(ctx); err != nil {
			log.Printf("Output device resume failed (continuing): %v", err)
		}
	}

	c.teardownLocked()

	t := c.video.CurrentTime()
	sess := &session{anchor: t}

	if vb := c.graph.Buffer(graph.Voice); t < vb.Duration() {
		sess.voice = c.graph.Play(graph.Voice, t, false)
	}
	if bb := c.graph.Buffer(graph.Background); bb != nil && bb.Duration() > 0 {
		sess.background = c.graph.Play(graph.Background, t%bb.Duration(), true)
	}
	if c.graph.OriginalBound() {
		sess.original = c.graph.Play(graph.Original, t, false)
	}

	c.session = sess
	c.video.Play()
	c.state = Playing
	metrics.TransportPlaying.Set(1)
	return nil
}

// Pause freezes the video clock and discards the session's sources. The
// buffer-backed sources cannot resume; the next Play builds fresh ones from
// whatever the clock says then.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.video != nil {
		c.video.Pause()
	}
	c.teardownLocked()
	c.state = Stopped
	metrics.TransportPlaying.Set(0)
}

// Seek repositions the video clock. While playing this is a full restart at
// the new offset so Voice and Background stay phase-locked; no partial
// resync is attempted.
func (c *Controller) Seek(ctx context.Context, t time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.video == nil {
		return ErrNoVideo
	}
	c.video.Seek(t)
	if c.state == Playing {
		return c.playLocked(ctx)
	}
	return nil
}

func (c *Controller) teardownLocked() {
	if c.session != nil {
		c.session.teardown()
		c.session = nil
	}
}

// handleEnded is the natural end-of-media path: it mirrors Pause, then runs
// the registered end hook.
func (c *Controller) handleEnded() {
	c.mu.Lock()
	c.teardownLocked()
	c.state = Stopped
	metrics.TransportPlaying.Set(0)
	hook := c.endHook
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// SetEndHook registers an extra callback fired after a natural end has been
// handled. Pass nil to clear. Used by the export pipeline to finalize.
func (c *Controller) SetEndHook(fn func()) {
	c.mu.Lock()
	c.endHook = fn
	c.mu.Unlock()
}

// State returns the transport state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Position returns the video clock position, zero before a video is loaded.
func (c *Controller) Position() time.Duration {
	c.mu.Lock()
	v := c.video
	c.mu.Unlock()
	if v == nil {
		return 0
	}
	return v.CurrentTime()
}

// ActiveSources counts the session's source handles still able to produce
// audio. Zero whenever the transport is stopped.
func (c *Controller) ActiveSources() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0
	}
	return c.session.activeSources()
}
