package graph

import (
	"context"
	"time"

	"github.com/openvoiceover/dubmix/internal/audio"
	"github.com/openvoiceover/dubmix/internal/metrics"
)

// Pump pulls the graph's output bus at real-time rate and emits quantized
// 20ms PCM frames. It runs for the life of the process: when nothing is
// playing the bus yields silence, which keeps downstream encoders fed.
type Pump struct {
	graph   *Graph
	frameCh chan []int16
}

// NewPump creates a pump over the graph's output bus.
func NewPump(g *Graph) *Pump {
	return &Pump{
		graph:   g,
		frameCh: make(chan []int16, 100),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pump) Frames() <-chan []int16 {
	return p.frameCh
}

// Run drives the bus until ctx is cancelled.
func (p *Pump) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	frames := make([][2]float64, audio.FrameSize)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		p.graph.Stream(frames)
		pcm := audio.QuantizeFrames(frames)
		metrics.FramesPumped.Inc()

		select {
		case p.frameCh <- pcm:
		case <-ctx.Done():
			return
		}
	}
}
