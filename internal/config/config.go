package config

import (
	"os"
	"strconv"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port int

	// Downloads
	DownloadDir string

	// External tools
	FFmpegPath string

	// Monitoring
	MonitorDevice bool // route the mix to the local output device

	// Default channel gains
	VoiceGain      float64 // 0.0 - 1.5
	BackgroundGain float64 // 0.0 - 1.0
	OriginalGain   float64 // 0.0 - 1.0, attenuated under the voice-over
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port:        envInt("DUBMIX_PORT", 8080),
		DownloadDir: envStr("DUBMIX_DOWNLOAD_DIR", "downloads"),
		FFmpegPath:  envStr("DUBMIX_FFMPEG", "ffmpeg"),

		MonitorDevice: envBool("DUBMIX_MONITOR_DEVICE", false),

		VoiceGain:      envFloat("DUBMIX_VOICE_GAIN", 1.0),
		BackgroundGain: envFloat("DUBMIX_BACKGROUND_GAIN", 0.5),
		OriginalGain:   envFloat("DUBMIX_ORIGINAL_GAIN", 0.2),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
