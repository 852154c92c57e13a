// Package metrics exposes Prometheus instrumentation for the mixing engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesPumped counts 20ms mix frames emitted by the output bus.
	FramesPumped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dubmix_frames_pumped_total",
		Help: "Total number of 20ms PCM frames pumped from the mix bus.",
	})

	// MonitorListeners tracks currently connected monitor stream listeners
	// and export capture taps.
	MonitorListeners = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dubmix_monitor_listeners",
		Help: "Active mix listeners (monitor streams and capture taps).",
	})

	// TransportPlaying is 1 while the transport is in the Playing state.
	TransportPlaying = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dubmix_transport_playing",
		Help: "Whether the transport is currently playing (1) or stopped (0).",
	})

	// ExportsCompleted counts finished export jobs by kind.
	ExportsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dubmix_exports_completed_total",
		Help: "Export jobs that produced a download, by kind.",
	}, []string{"kind"})

	// ExportsFailed counts export jobs aborted by an error.
	ExportsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dubmix_exports_failed_total",
		Help: "Export jobs that aborted with an error, by kind.",
	}, []string{"kind"})
)
