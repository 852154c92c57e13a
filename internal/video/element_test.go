package video

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestClockAdvancesWhilePlaying(t *testing.T) {
	e := New("clip.mp4", time.Second, true, true)
	e.Play()
	time.Sleep(50 * time.Millisecond)
	e.Pause()

	pos := e.CurrentTime()
	if pos < 30*time.Millisecond || pos > 300*time.Millisecond {
		t.Errorf("position after ~50ms of playback = %v", pos)
	}

	// paused clock must hold still
	time.Sleep(30 * time.Millisecond)
	if e.CurrentTime() != pos {
		t.Errorf("paused clock moved: %v -> %v", pos, e.CurrentTime())
	}
}

func TestSeekClamps(t *testing.T) {
	e := New("clip.mp4", 2*time.Second, true, true)
	e.Seek(-time.Second)
	if e.CurrentTime() != 0 {
		t.Errorf("seek before start: position = %v, want 0", e.CurrentTime())
	}
	e.Seek(5 * time.Second)
	if e.CurrentTime() != 2*time.Second {
		t.Errorf("seek past end: position = %v, want duration", e.CurrentTime())
	}
}

func TestNaturalEndFiresOnce(t *testing.T) {
	e := New("clip.mp4", 40*time.Millisecond, true, true)
	var ended atomic.Int32
	e.SetOnEnded(func() { ended.Add(1) })

	e.Play()
	time.Sleep(200 * time.Millisecond)

	if got := ended.Load(); got != 1 {
		t.Fatalf("ended fired %d times, want 1", got)
	}
	if e.Playing() {
		t.Error("still playing after natural end")
	}
	if e.CurrentTime() != 40*time.Millisecond {
		t.Errorf("position after end = %v, want duration", e.CurrentTime())
	}
}

func TestPauseDisarmsEndTimer(t *testing.T) {
	e := New("clip.mp4", 50*time.Millisecond, true, true)
	var ended atomic.Int32
	e.SetOnEnded(func() { ended.Add(1) })

	e.Play()
	e.Pause()
	time.Sleep(150 * time.Millisecond)

	if got := ended.Load(); got != 0 {
		t.Errorf("ended fired %d times after pause, want 0", got)
	}
}

func TestSeekWhilePlayingReschedulesEnd(t *testing.T) {
	e := New("clip.mp4", time.Second, true, true)
	var ended atomic.Int32
	e.SetOnEnded(func() { ended.Add(1) })

	e.Play()
	e.Seek(time.Second - 30*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	if got := ended.Load(); got != 1 {
		t.Errorf("ended fired %d times after seek near end, want 1", got)
	}
}
