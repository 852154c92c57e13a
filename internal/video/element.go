// Package video models the playback side of the dubbing session: a video
// file, its probed metadata, and the playback clock that every audio source
// is synchronized against.
package video

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Element is the engine's stand-in for a video element: it owns the file
// reference and the playback clock. The clock is the sole source of truth
// for position; audio sources are told an offset at start and nothing more.
type Element struct {
	path     string
	duration time.Duration
	hasVideo bool
	hasAudio bool

	mu        sync.Mutex
	playing   bool
	base      time.Duration
	startedAt time.Time
	endTimer  *time.Timer
	onEnded   func()
}

// New builds an element from already-known metadata. Used directly by tests;
// production code goes through Load.
func New(path string, duration time.Duration, hasVideo, hasAudio bool) *Element {
	return &Element{path: path, duration: duration, hasVideo: hasVideo, hasAudio: hasAudio}
}

// Load probes the file with ffprobe and returns a ready element.
func Load(ctx context.Context, path string) (*Element, error) {
	duration, err := probeDuration(ctx, path)
	if err != nil {
		return nil, err
	}
	hasVideo, hasAudio, err := probeStreams(ctx, path)
	if err != nil {
		return nil, err
	}
	return New(path, duration, hasVideo, hasAudio), nil
}

func probeDuration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-i", path,
		"-show_entries", "format=duration",
		"-v", "quiet",
		"-of", "csv=p=0",
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %s: %w", path, err)
	}
	var seconds float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &seconds); err != nil {
		return 0, fmt.Errorf("ffprobe duration %s: %w", path, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func probeStreams(ctx context.Context, path string) (hasVideo, hasAudio bool, err error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-i", path,
		"-show_entries", "stream=codec_type",
		"-v", "quiet",
		"-of", "csv=p=0",
	)
	out, err := cmd.Output()
	if err != nil {
		return false, false, fmt.Errorf("ffprobe streams %s: %w", path, err)
	}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		switch strings.TrimSpace(line) {
		case "video":
			hasVideo = true
		case "audio":
			hasAudio = true
		}
	}
	return hasVideo, hasAudio, nil
}

// Path returns the video file path.
func (e *Element) Path() string { return e.path }

// Duration returns the probed media duration.
func (e *Element) Duration() time.Duration { return e.duration }

// HasVideoStream reports whether the file carries a capturable video track.
func (e *Element) HasVideoStream() bool { return e.hasVideo }

// HasAudioStream reports whether the file carries an original audio track.
func (e *Element) HasAudioStream() bool { return e.hasAudio }

// SetOnEnded registers the natural end-of-media callback. The callback runs
// on the end timer's goroutine after the clock has stopped at the end.
func (e *Element) SetOnEnded(fn func()) {
	e.mu.Lock()
	e.onEnded = fn
	e.mu.Unlock()
}

// CurrentTime returns the clock position, clamped to the media duration.
func (e *Element) CurrentTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked()
}

func (e *Element) positionLocked() time.Duration {
	pos := e.base
	if e.playing {
		pos += time.Since(e.startedAt)
	}
	if pos > e.duration {
		pos = e.duration
	}
	return pos
}

// Playing reports whether the clock is running.
func (e *Element) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// Play starts the clock from the current position and arms the end timer.
func (e *Element) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playing {
		return
	}
	e.playing = true
	e.startedAt = time.Now()
	e.armEndTimerLocked()
}

// Pause freezes the clock at the current position.
func (e *Element) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.playing {
		return
	}
	e.base = e.positionLocked()
	e.playing = false
	e.stopEndTimerLocked()
}

// Seek repositions the clock, keeping it running if it was running.
func (e *Element) Seek(t time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t < 0 {
		t = 0
	}
	if t > e.duration {
		t = e.duration
	}
	e.base = t
	if e.playing {
		e.startedAt = time.Now()
		e.stopEndTimerLocked()
		e.armEndTimerLocked()
	}
}

func (e *Element) armEndTimerLocked() {
	remaining := e.duration - e.positionLocked()
	if remaining < 0 {
		remaining = 0
	}
	e.endTimer = time.AfterFunc(remaining, e.fireEnded)
}

func (e *Element) stopEndTimerLocked() {
	if e.endTimer != nil {
		e.endTimer.Stop()
		e.endTimer = nil
	}
}

func (e *Element) fireEnded() {
	e.mu.Lock()
	if !e.playing {
		e.mu.Unlock()
		return
	}
	e.base = e.duration
	e.playing = false
	e.endTimer = nil
	fn := e.onEnded
	e.mu.Unlock()

	if fn != nil {
		fn()
	}
}
