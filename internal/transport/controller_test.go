package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openvoiceover/dubmix/internal/audio"
	"github.com/openvoiceover/dubmix/internal/graph"
	"github.com/openvoiceover/dubmix/internal/video"
)

func monoBuffer(d time.Duration) *audio.Buffer {
	frames := int(d * audio.SampleRate / time.Second)
	data := make([]float64, frames)
	for i := range data {
		data[i] = 0.1
	}
	return audio.NewBuffer(audio.SampleRate, [][]float64{data})
}

// newFixture builds a controller with a 8s video, 5s voice and 3s background.
func newFixture(t *testing.T) (*Controller, *graph.Graph, *video.Element) {
	t.Helper()
	g := graph.New(1.0, 0.5, 0.2)
	if err := g.SetBuffer(graph.Voice, monoBuffer(5*time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := g.SetBuffer(graph.Background, monoBuffer(3*time.Second)); err != nil {
		t.Fatal(err)
	}
	g.BindOriginal(monoBuffer(8 * time.Second))

	c := New(g)
	el := video.New("clip.mp4", 8*time.Second, true, true)
	c.AttachVideo(el)
	return c, g, el
}

func TestPlayWithoutVideo(t *testing.T) {
	c := New(graph.New(1.0, 0.5, 0.2))
	if err := c.Play(context.Background()); !errors.Is(err, ErrNoVideo) {
		t.Errorf("Play without video = %v, want ErrNoVideo", err)
	}
}

func TestPlayWithoutVoice(t *testing.T) {
	g := graph.New(1.0, 0.5, 0.2)
	c := New(g)
	c.AttachVideo(video.New("clip.mp4", time.Second, true, true))
	if err := c.Play(context.Background()); !errors.Is(err, ErrNoVoice) {
		t.Errorf("Play without voice buffer = %v, want ErrNoVoice", err)
	}
	if c.State() != Stopped {
		t.Error("state changed on refused play")
	}
}

func TestPlayThenPauseLeavesNoSources(t *testing.T) {
	c, _, _ := newFixture(t)

	if err := c.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.State() != Playing {
		t.Fatal("not playing after Play")
	}
	if c.ActiveSources() != 3 {
		t.Errorf("active sources while playing = %d, want 3", c.ActiveSources())
	}

	c.Pause()
	if c.State() != Stopped {
		t.Error("not stopped after Pause")
	}
	if c.ActiveSources() != 0 {
		t.Errorf("active sources after pause = %d, want 0 (no dangling audio)", c.ActiveSources())
	}
}

func TestSeekWhilePlayingNeverDuplicatesVoice(t *testing.T) {
	c, _, _ := newFixture(t)
	if err := c.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	old := c.session.voice
	if old == nil {
		t.Fatal("no voice source started")
	}

	if err := c.Seek(context.Background(), 2*time.Second); err != nil {
		t.Fatal(err)
	}
	if old.Active() {
		t.Error("pre-seek voice source still active after seek")
	}
	if c.session.voice == old {
		t.Error("voice source was reused across seek; handles are single-use")
	}
	if c.ActiveSources() != 3 {
		t.Errorf("active sources after seek = %d, want 3", c.ActiveSources())
	}
}

func TestVoiceSkippedPastItsEnd(t *testing.T) {
	// voice is 5s, video 8s: at t=6 the voice-over is already finished
	c, _, _ := newFixture(t)
	if err := c.Seek(context.Background(), 6*time.Second); err != nil {
		t.Fatal(err)
	}
	if err := c.Play(context.Background()); err != nil {
		t.Fatal(err)
	}

	if c.session.voice != nil {
		t.Error("voice source started past voice duration")
	}
	if c.session.background == nil {
		t.Fatal("background source not started")
	}
	// background is 3s: 6.0 mod 3.0 = 0.0
	if off := c.session.background.Position(); off > 25*time.Millisecond {
		t.Errorf("background offset = %v, want ~0 (6s mod 3s)", off)
	}
	c.Pause()
}

func TestBackgroundOffsetModulo(t *testing.T) {
	c, _, _ := newFixture(t)
	if err := c.Seek(context.Background(), 4*time.Second); err != nil {
		t.Fatal(err)
	}
	if err := c.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Pause()

	// 4s mod 3s = 1s into the background clip
	off := c.session.background.Position()
	if off < 900*time.Millisecond || off > 1100*time.Millisecond {
		t.Errorf("background offset = %v, want ~1s", off)
	}
	// voice is started at the anchor itself
	voff := c.session.voice.Position()
	if voff < 3900*time.Millisecond || voff > 4100*time.Millisecond {
		t.Errorf("voice offset = %v, want ~4s", voff)
	}
}

func TestMissingBackgroundIsNotFatal(t *testing.T) {
	// an undecodable background file leaves the channel empty
	g := graph.New(1.0, 0.5, 0.2)
	g.SetBuffer(graph.Voice, monoBuffer(time.Second))
	c := New(g)
	c.AttachVideo(video.New("clip.mp4", 2*time.Second, true, true))

	if err := c.Play(context.Background()); err != nil {
		t.Fatalf("Play with absent background: %v", err)
	}
	defer c.Pause()

	if c.session.background != nil {
		t.Error("background source exists without a buffer")
	}
	if c.session.voice == nil {
		t.Error("voice source missing")
	}
}

func TestNaturalEndStopsSources(t *testing.T) {
	g := graph.New(1.0, 0.5, 0.2)
	g.SetBuffer(graph.Voice, monoBuffer(time.Second))
	c := New(g)
	c.AttachVideo(video.New("clip.mp4", 40*time.Millisecond, true, true))

	ended := make(chan struct{})
	c.SetEndHook(func() { close(ended) })

	if err := c.Play(context.Background()); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("end hook never fired")
	}
	if c.State() != Stopped {
		t.Error("not stopped after natural end")
	}
	if c.ActiveSources() != 0 {
		t.Errorf("active sources after natural end = %d, want 0", c.ActiveSources())
	}
}

func TestRepeatedPlayTearsDownPriorSession(t *testing.T) {
	c, _, _ := newFixture(t)
	if err := c.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := c.session.voice

	if err := c.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Pause()

	if first.Active() {
		t.Error("first session's voice source survived a second Play")
	}
	if c.ActiveSources() != 3 {
		t.Errorf("active sources = %d, want 3", c.ActiveSources())
	}
}

func TestResumeFuncRunsBeforeStart(t *testing.T) {
	c, _, _ := newFixture(t)
	resumed := false
	c.SetResumeFunc(func(context.Context) error {
		resumed = true
		return nil
	})
	if err := c.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Pause()
	if !resumed {
		t.Error("resume func not invoked by Play")
	}
}
