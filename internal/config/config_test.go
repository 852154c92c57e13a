package config

import "testing"

func TestDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.DownloadDir != "downloads" {
		t.Errorf("DownloadDir = %q, want downloads", cfg.DownloadDir)
	}
	if cfg.FFmpegPath != "ffmpeg" {
		t.Errorf("FFmpegPath = %q, want ffmpeg", cfg.FFmpegPath)
	}
	if cfg.MonitorDevice {
		t.Error("MonitorDevice should default to false")
	}
	if cfg.VoiceGain != 1.0 {
		t.Errorf("VoiceGain = %v, want 1.0", cfg.VoiceGain)
	}
	if cfg.BackgroundGain != 0.5 {
		t.Errorf("BackgroundGain = %v, want 0.5", cfg.BackgroundGain)
	}
	if cfg.OriginalGain != 0.2 {
		t.Errorf("OriginalGain = %v, want 0.2", cfg.OriginalGain)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DUBMIX_PORT", "9999")
	t.Setenv("DUBMIX_DOWNLOAD_DIR", "/tmp/out")
	t.Setenv("DUBMIX_FFMPEG", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("DUBMIX_MONITOR_DEVICE", "true")
	t.Setenv("DUBMIX_VOICE_GAIN", "1.25")

	cfg := Load()

	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.DownloadDir != "/tmp/out" {
		t.Errorf("DownloadDir = %q", cfg.DownloadDir)
	}
	if cfg.FFmpegPath != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("FFmpegPath = %q", cfg.FFmpegPath)
	}
	if !cfg.MonitorDevice {
		t.Error("MonitorDevice not enabled")
	}
	if cfg.VoiceGain != 1.25 {
		t.Errorf("VoiceGain = %v, want 1.25", cfg.VoiceGain)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("DUBMIX_PORT", "not-a-number")
	t.Setenv("DUBMIX_MONITOR_DEVICE", "maybe")
	t.Setenv("DUBMIX_BACKGROUND_GAIN", "loud")

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want fallback 8080", cfg.Port)
	}
	if cfg.MonitorDevice {
		t.Error("MonitorDevice should fall back to false")
	}
	if cfg.BackgroundGain != 0.5 {
		t.Errorf("BackgroundGain = %v, want fallback 0.5", cfg.BackgroundGain)
	}
}
