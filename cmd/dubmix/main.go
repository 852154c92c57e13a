package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openvoiceover/dubmix/internal/audio"
	"github.com/openvoiceover/dubmix/internal/config"
	"github.com/openvoiceover/dubmix/internal/export"
	"github.com/openvoiceover/dubmix/internal/graph"
	"github.com/openvoiceover/dubmix/internal/stream"
	"github.com/openvoiceover/dubmix/internal/transport"
	"github.com/openvoiceover/dubmix/internal/tts"
	"github.com/openvoiceover/dubmix/internal/video"
)

const maxVoiceBytes = 256 << 20 // 256 MiB of raw PCM

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		log.Fatalf("Download dir: %v", err)
	}

	log.Println("dubmix starting up...")

	// Mixing graph and real-time pump
	g := graph.New(cfg.VoiceGain, cfg.BackgroundGain, cfg.OriginalGain)
	pump := graph.NewPump(g)
	go pump.Run(ctx)

	// Broadcaster: fan out mix frames to monitors and export taps
	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, pump.Frames())

	// Transport over the shared graph
	ctrl := transport.New(g)
	if cfg.MonitorDevice {
		monitor := stream.NewSpeakerMonitor(broadcaster)
		ctrl.SetResumeFunc(monitor.Resume)
		log.Println("Local monitor device enabled (resumes on first play)")
	}

	// Export pipeline
	exporter := export.NewPipeline(ctrl, broadcaster, cfg.DownloadDir, cfg.FFmpegPath)

	// Latest synthesized voice, kept raw for the WAV download path
	var (
		voiceMu sync.Mutex
		voice   *tts.VoiceResult
	)

	webrtcHandler := stream.NewWebRTCHandler(broadcaster)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/video", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
			http.Error(w, "invalid video path", http.StatusBadRequest)
			return
		}

		el, err := video.Load(r.Context(), req.Path)
		if err != nil {
			log.Printf("Video load failed: %v", err)
			http.Error(w, "cannot probe video", http.StatusUnprocessableEntity)
			return
		}
		ctrl.AttachVideo(el)

		// One-time pass-through binding of the video's own audio. Re-binding
		// on a later load is ignored by the graph.
		if el.HasAudioStream() && !g.OriginalBound() {
			samples, err := audio.DecodeFile(r.Context(), req.Path, cfg.FFmpegPath)
			if err != nil {
				log.Printf("Original audio extraction failed (channel stays silent): %v", err)
			} else {
				g.BindOriginal(audio.BufferFromPCM16(samples))
			}
		}

		log.Printf("Video loaded: %s (%.1fs, video=%v audio=%v)",
			req.Path, el.Duration().Seconds(), el.HasVideoStream(), el.HasAudioStream())
		writeJSON(w, map[string]any{
			"ok":        true,
			"duration":  el.Duration().Seconds(),
			"has_video": el.HasVideoStream(),
			"has_audio": el.HasAudioStream(),
		})
	})

	mux.HandleFunc("/api/voice", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		rate := 0
		fmt.Sscanf(r.URL.Query().Get("rate"), "%d", &rate)

		raw, err := io.ReadAll(io.LimitReader(r.Body, maxVoiceBytes))
		if err != nil {
			http.Error(w, "read body failed", http.StatusBadRequest)
			return
		}

		result := &tts.VoiceResult{PCM: raw, SampleRate: rate, Style: r.URL.Query().Get("style")}
		buf, err := result.Decode()
		if err != nil {
			log.Printf("Voice decode rejected: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		g.SetBuffer(graph.Voice, buf)

		voiceMu.Lock()
		voice = result
		voiceMu.Unlock()

		log.Printf("Voice result accepted: %.1fs at %d Hz", buf.Duration().Seconds(), rate)
		writeJSON(w, map[string]any{"ok": true, "duration": buf.Duration().Seconds()})
	})

	mux.HandleFunc("/api/background", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file field required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		tmp, err := os.CreateTemp("", "dubmix-bg-*"+filepath.Ext(header.Filename))
		if err != nil {
			http.Error(w, "temp file failed", http.StatusInternalServerError)
			return
		}
		defer os.Remove(tmp.Name())
		if _, err := io.Copy(tmp, file); err != nil {
			tmp.Close()
			http.Error(w, "upload failed", http.StatusInternalServerError)
			return
		}
		tmp.Close()

		buf, err := audio.DecodeBackground(r.Context(), tmp.Name(), cfg.FFmpegPath)
		if err != nil {
			// Not fatal to the session: the Background channel stays absent
			// and playback proceeds with Voice and Original only.
			log.Printf("Background rejected: %v", err)
			http.Error(w, "undecodable background file", http.StatusUnprocessableEntity)
			return
		}
		g.SetBuffer(graph.Background, buf)

		log.Printf("Background loaded: %s (%.1fs)", header.Filename, buf.Duration().Seconds())
		writeJSON(w, map[string]any{"ok": true, "duration": buf.Duration().Seconds()})
	})

	mux.HandleFunc("/api/play", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		if err := ctrl.Play(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	})

	mux.HandleFunc("/api/pause", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		ctrl.Pause()
		writeJSON(w, map[string]any{"ok": true})
	})

	mux.HandleFunc("/api/seek", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Position float64 `json:"position"` // seconds
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position < 0 {
			http.Error(w, "invalid position", http.StatusBadRequest)
			return
		}
		t := time.Duration(req.Position * float64(time.Second))
		if err := ctrl.Seek(r.Context(), t); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "position": ctrl.Position().Seconds()})
	})

	mux.HandleFunc("/api/gain", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Channel string  `json:"channel"`
			Value   float64 `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		ch, err := graph.ParseChannel(req.Channel)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := g.SetGain(ch, req.Value); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "channel": req.Channel, "value": req.Value})
	})

	mux.HandleFunc("/api/mute", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Channel string `json:"channel"`
			Muted   bool   `json:"muted"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		ch, err := graph.ParseChannel(req.Channel)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		g.SetMuted(ch, req.Muted)
		writeJSON(w, map[string]any{"ok": true, "channel": req.Channel, "muted": req.Muted})
	})

	mux.HandleFunc("/api/voice.wav", func(w http.ResponseWriter, r *http.Request) {
		voiceMu.Lock()
		result := voice
		voiceMu.Unlock()
		if result == nil {
			http.Error(w, "no voice result", http.StatusNotFound)
			return
		}
		blob, err := result.WAV()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, audio.VoiceWAVName))
		w.Write(blob)
	})

	exportHandler := func(kind export.Kind) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "POST required", http.StatusMethodNotAllowed)
				return
			}
			job, err := exporter.Export(r.Context(), kind)
			switch {
			case errors.Is(err, export.ErrExportBusy):
				http.Error(w, err.Error(), http.StatusConflict)
				return
			case errors.Is(err, export.ErrCaptureUnsupported):
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			case err != nil:
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			writeJSON(w, map[string]any{"ok": true, "job": job.ID, "kind": string(kind)})
		}
	}
	mux.HandleFunc("/api/export/audio", exportHandler(export.KindAudio))
	mux.HandleFunc("/api/export/video", exportHandler(export.KindVideo))

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		channels := map[string]any{}
		for _, ch := range []graph.Channel{graph.Voice, graph.Background, graph.Original} {
			info := map[string]any{
				"gain":  g.Gain(ch),
				"muted": g.Muted(ch),
			}
			if buf := g.Buffer(ch); buf != nil {
				info["duration"] = buf.Duration().Seconds()
			}
			channels[ch.String()] = info
		}

		status := map[string]any{
			"transport":     ctrl.State().String(),
			"position":      ctrl.Position().Seconds(),
			"export":        exporter.State().String(),
			"last_download": exporter.LastDownload(),
			"channels":      channels,
			"listeners":     broadcaster.ListenerCount(),
			"webrtc_peers":  webrtcHandler.PeerCount(),
		}
		if el := ctrl.Video(); el != nil {
			status["video"] = map[string]any{
				"path":      el.Path(),
				"duration":  el.Duration().Seconds(),
				"has_video": el.HasVideoStream(),
			}
		}
		writeJSON(w, status)
	})

	// Live mix monitors
	mux.Handle("/stream", stream.NewHTTPHandler(broadcaster, cfg.FFmpegPath))
	mux.Handle("/offer", webrtcHandler)

	// Produced exports
	mux.Handle("/downloads/", http.StripPrefix("/downloads/",
		http.FileServer(http.Dir(cfg.DownloadDir))))

	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		server.Close()
	}()

	log.Printf("dubmix live on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
