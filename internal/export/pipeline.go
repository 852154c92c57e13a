package export

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openvoiceover/dubmix/internal/metrics"
	"github.com/openvoiceover/dubmix/internal/stream"
	"github.com/openvoiceover/dubmix/internal/transport"
)

// Kind selects what an export job captures.
type Kind string

const (
	KindAudio Kind = "audio" // mixed audio only
	KindVideo Kind = "video" // mixed audio remuxed with the video track
)

// Fixed download names.
const (
	AudioMixName    = "dubbed_audio_mix.mp3"
	VideoExportName = "dubbed_video_export.mkv"
)

// State is the export pipeline state machine.
type State int

const (
	Idle State = iota
	Preparing
	Recording
	Finalizing
)

func (s State) String() string {
	switch s {
	case Preparing:
		return "preparing"
	case Recording:
		return "recording"
	case Finalizing:
		return "finalizing"
	}
	return "idle"
}

// tap buffer: ~10s of frames so capture never drops audio
const tapBuffer = 512

// Job is one export run: created on request, destroyed once the download
// has been produced or the job aborted.
type Job struct {
	ID   string
	Kind Kind

	done chan struct{}

	mu     sync.Mutex
	output string
	err    error
}

// Done is closed when the job has finished, successfully or not.
func (j *Job) Done() <-chan struct{} { return j.done }

// Err returns the job's failure, nil on success. Valid after Done.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Output returns the produced download path. Valid after Done.
func (j *Job) Output() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.output
}

func (j *Job) finish(output string, err error) {
	j.mu.Lock()
	j.output = output
	j.err = err
	j.mu.Unlock()
	close(j.done)
}

// Pipeline drives export jobs: it pauses the transport, builds a capture tap
// off the mix bus in parallel with the normal monitor routing, replays the
// timeline from zero in real time, and assembles the recorder's chunks into
// a download.
type Pipeline struct {
	ctrl        *transport.Controller
	taps        *stream.Broadcaster
	downloadDir string

	newRecorder func() Recorder
	remux       RemuxFunc

	mu    sync.Mutex
	state State
	job   *Job
	last  string
}

// NewPipeline creates an idle export pipeline writing into downloadDir.
func NewPipeline(ctrl *transport.Controller, taps *stream.Broadcaster, downloadDir, ffmpegPath string) *Pipeline {
	return &Pipeline{
		ctrl:        ctrl,
		taps:        taps,
		downloadDir: downloadDir,
		newRecorder: func() Recorder { return NewMP3Recorder(ffmpegPath) },
		remux:       Remux(ffmpegPath),
	}
}

// State returns the pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastDownload returns the most recently produced download path.
func (p *Pipeline) LastDownload() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Export starts a job of the given kind. It fails with ErrExportBusy unless
// the pipeline is Idle, and with ErrCaptureUnsupported before any state is
// touched when a video export has no video stream to capture. The job runs
// for the full video duration; there is no mid-export cancel path.
func (p *Pipeline) Export(ctx context.Context, kind Kind) (*Job, error) {
	el := p.ctrl.Video()
	if el == nil {
		return nil, transport.ErrNoVideo
	}
	if kind == KindVideo && !el.HasVideoStream() {
		return nil, ErrCaptureUnsupported
	}

	p.mu.Lock()
	if p.state != Idle {
		p.mu.Unlock()
		return nil, ErrExportBusy
	}
	p.state = Preparing
	job := &Job{ID: uuid.NewString(), Kind: kind, done: make(chan struct{})}
	p.job = job
	p.mu.Unlock()

	// the job must outlive the request that started it
	jobCtx := context.WithoutCancel(ctx)

	// clean pause before building capture routing: no preview-session
	// sources may still be running when recording starts
	p.ctrl.Pause()

	tap := p.taps.SubscribeBuffered(tapBuffer)
	rec := p.newRecorder()
	if err := rec.Start(jobCtx); err != nil {
		p.abort(job, tap, kind, fmt.Errorf("start recorder: %w", err))
		return nil, fmt.Errorf("start recorder: %w", err)
	}

	stopFeed := make(chan struct{})
	feedDone := make(chan struct{})
	go feed(tap, rec, stopFeed, feedDone)

	ended := make(chan struct{}, 1)
	p.ctrl.SetEndHook(func() {
		select {
		case ended <- struct{}{}:
		default:
		}
	})

	if err := p.ctrl.Seek(jobCtx, 0); err != nil {
		close(stopFeed)
		<-feedDone
		rec.Stop()
		p.ctrl.SetEndHook(nil)
		p.abort(job, tap, kind, err)
		return nil, err
	}
	if err := p.ctrl.Play(jobCtx); err != nil {
		close(stopFeed)
		<-feedDone
		rec.Stop()
		p.ctrl.SetEndHook(nil)
		p.abort(job, tap, kind, err)
		return nil, err
	}

	p.setState(Recording)
	log.Printf("Export %s started: kind=%s duration=%s", job.ID, kind, el.Duration())

	go p.finalize(jobCtx, job, kind, el.Path(), rec, tap, stopFeed, feedDone, ended)
	return job, nil
}

// feed moves tap frames into the recorder until told to stop, then drains
// whatever the tap still holds so no captured audio is lost.
func feed(tap *stream.Listener, rec Recorder, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			for {
				select {
				case frame := <-tap.C:
					if err := rec.WriteFrame(frame); err != nil {
						return
					}
				default:
					return
				}
			}
		case frame, ok := <-tap.C:
			if !ok {
				return
			}
			if err := rec.WriteFrame(frame); err != nil {
				return
			}
		}
	}
}

// finalize waits for the video's natural end, stops the recorder, assembles
// the chunks into the download, and restores normal routing.
func (p *Pipeline) finalize(ctx context.Context, job *Job, kind Kind, videoPath string,
	rec Recorder, tap *stream.Listener, stopFeed, feedDone, ended chan struct{}) {

	<-ended

	p.setState(Finalizing)
	p.ctrl.SetEndHook(nil)

	close(stopFeed)
	<-feedDone

	blob, err := rec.Stop()
	p.taps.Unsubscribe(tap)

	var output string
	if err == nil {
		output, err = p.writeDownload(ctx, job, kind, videoPath, blob)
	}

	p.mu.Lock()
	p.state = Idle
	p.job = nil
	if err == nil {
		p.last = output
	}
	p.mu.Unlock()

	if err != nil {
		metrics.ExportsFailed.WithLabelValues(string(kind)).Inc()
		log.Printf("Export %s failed: %v", job.ID, err)
	} else {
		metrics.ExportsCompleted.WithLabelValues(string(kind)).Inc()
		log.Printf("Export %s complete: %s (%d bytes captured)", job.ID, output, len(blob))
	}
	job.finish(output, err)
}

func (p *Pipeline) writeDownload(ctx context.Context, job *Job, kind Kind, videoPath string, blob []byte) (string, error) {
	if kind == KindAudio {
		out := filepath.Join(p.downloadDir, AudioMixName)
		if err := os.WriteFile(out, blob, 0o644); err != nil {
			return "", fmt.Errorf("write download: %w", err)
		}
		return out, nil
	}

	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("dubmix-%s.mp3", job.ID))
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return "", fmt.Errorf("write capture temp: %w", err)
	}
	defer os.Remove(tmp)

	out := filepath.Join(p.downloadDir, VideoExportName)
	remuxCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	if err := p.remux(remuxCtx, videoPath, tmp, out); err != nil {
		return "", err
	}
	return out, nil
}

func (p *Pipeline) abort(job *Job, tap *stream.Listener, kind Kind, err error) {
	p.taps.Unsubscribe(tap)
	p.mu.Lock()
	p.state = Idle
	p.job = nil
	p.mu.Unlock()
	metrics.ExportsFailed.WithLabelValues(string(kind)).Inc()
	job.finish("", err)
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}
