// Package export captures the live mix (and optionally the video track)
// into a downloadable container while the transport drives the timeline
// through once at wall-clock speed.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/openvoiceover/dubmix/internal/audio"
)

var (
	// ErrExportBusy rejects an export request while another job is in
	// flight; only one ExportJob may exist at a time.
	ErrExportBusy = errors.New("export already in progress")

	// ErrCaptureUnsupported reports a video export against a file with no
	// capturable video stream. Raised before any state mutation.
	ErrCaptureUnsupported = errors.New("video capture unsupported for this source")
)

// Recorder consumes live PCM mix frames and produces an encoded container
// blob when stopped.
type Recorder interface {
	Start(ctx context.Context) error
	WriteFrame(frame []int16) error
	Stop() ([]byte, error)
}

const chunkSize = 32 * 1024

// FFmpegRecorder encodes s16le PCM into an MP3 container through an FFmpeg
// process, accumulating the encoder's output in binary chunks as they become
// available.
type FFmpegRecorder struct {
	ffmpegPath string

	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu     sync.Mutex
	chunks [][]byte

	readDone chan struct{}
}

// NewMP3Recorder creates a recorder producing an MP3 blob.
func NewMP3Recorder(ffmpegPath string) *FFmpegRecorder {
	return &FFmpegRecorder{ffmpegPath: ffmpegPath}
}

// Start launches the encoder process and begins collecting output chunks.
func (r *FFmpegRecorder) Start(ctx context.Context) error {
	r.cmd = exec.CommandContext(ctx, r.ffmpegPath,
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", audio.SampleRate),
		"-ac", fmt.Sprintf("%d", audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", "192k",
		"-f", "mp3",
		"-loglevel", "error",
		"pipe:1",
	)

	stdin, err := r.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("recorder stdin: %w", err)
	}
	stdout, err := r.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("recorder stdout: %w", err)
	}
	if err := r.cmd.Start(); err != nil {
		return fmt.Errorf("recorder start: %w", err)
	}

	r.stdin = stdin
	r.readDone = make(chan struct{})

	go func() {
		defer close(r.readDone)
		for {
			buf := make([]byte, chunkSize)
			n, err := stdout.Read(buf)
			if n > 0 {
				r.mu.Lock()
				r.chunks = append(r.chunks, buf[:n])
				r.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()
	return nil
}

// WriteFrame feeds one 20ms mix frame to the encoder.
func (r *FFmpegRecorder) WriteFrame(frame []int16) error {
	_, err := r.stdin.Write(audio.SamplesToBytes(frame))
	return err
}

// Stop closes the encoder's input, waits for it to flush, and assembles the
// collected chunks into one container blob.
func (r *FFmpegRecorder) Stop() ([]byte, error) {
	if err := r.stdin.Close(); err != nil {
		return nil, fmt.Errorf("recorder close: %w", err)
	}
	<-r.readDone
	if err := r.cmd.Wait(); err != nil {
		return nil, fmt.Errorf("recorder encode: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return bytes.Join(r.chunks, nil), nil
}
