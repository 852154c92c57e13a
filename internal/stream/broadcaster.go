// Package stream fans the live mix out to monitor listeners and export
// capture taps.
package stream

import (
	"context"
	"sync"

	"github.com/openvoiceover/dubmix/internal/metrics"
)

// Default listener buffer: ~3 seconds at 20ms/frame.
const defaultListenerBuffer = 150

// Broadcaster fans out PCM mix frames from the graph pump to N listeners.
// Monitor streams and export capture taps are both plain subscriptions, so
// attaching a recorder never disturbs the preview routing.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	C    chan []int16 // buffered channel of 20ms PCM frames
	done chan struct{}
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a monitor listener with the default buffer.
func (b *Broadcaster) Subscribe() *Listener {
	return b.SubscribeBuffered(defaultListenerBuffer)
}

// SubscribeBuffered registers a listener with an explicit frame buffer.
// Export taps use a deep buffer so capture never drops mix frames.
func (b *Broadcaster) SubscribeBuffered(frames int) *Listener {
	l := &Listener{
		C:    make(chan []int16, frames),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	metrics.MonitorListeners.Inc()
	return l
}

// Unsubscribe removes a listener and signals it to stop.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	if _, ok := b.listeners[l]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.listeners, l)
	b.mu.Unlock()
	metrics.MonitorListeners.Dec()
	close(l.done)
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Run reads frames from source and fans out to all listeners.
// Slow listeners get frames dropped rather than blocking the broadcast.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.mu.RLock()
			for l := range b.listeners {
				select {
				case l.C <- frame:
				default:
					// listener too slow, drop frame to keep the mix moving
				}
			}
			b.mu.RUnlock()
		}
	}
}
