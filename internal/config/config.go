package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for the client.
type Config struct {
	API        APIConfig
	Transcribe TranscribeConfig
	Audio      AudioConfig
	Location   LocationConfig
	Storage    StorageConfig
	Autosave   AutosaveConfig
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type TranscribeConfig struct {
	URL     string
	Timeout time.Duration
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type LocationConfig struct {
	GeolocateURL string
	GeocodeURL   string
}

type StorageConfig struct {
	DataDir string
}

type AutosaveConfig struct {
	Debounce time.Duration
}

// Load resolves configuration from a .env file (when present), environment
// variables, and sensible defaults.
func Load() (Config, error) {
	// Missing .env is not an error; the environment still applies.
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	cfg := Config{
		API: APIConfig{
			BaseURL: strings.TrimRight(envOrDefault("MEDATA_API_BASE", "http://localhost:5000"), "/"),
			Timeout: time.Duration(envOrDefaultInt("MEDATA_HTTP_TIMEOUT_MS", 30000)) * time.Millisecond,
		},
		Transcribe: TranscribeConfig{
			URL:     strings.TrimSpace(os.Getenv("MEDATA_TRANSCRIBE_URL")),
			Timeout: time.Duration(envOrDefaultInt("MEDATA_TRANSCRIBE_TIMEOUT_MS", 60000)) * time.Millisecond,
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("MEDATA_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("MEDATA_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     firstNonEmpty(os.Getenv("MEDATA_AUDIO_INPUT_DEVICE"), "default"),
			SampleRate:      envOrDefaultInt("MEDATA_SAMPLE_RATE", 44100),
			Channels:        envOrDefaultInt("MEDATA_CHANNELS", 1),
		},
		Location: LocationConfig{
			GeolocateURL: strings.TrimSpace(os.Getenv("MEDATA_GEOLOCATE_URL")),
			GeocodeURL:   strings.TrimSpace(os.Getenv("MEDATA_GEOCODE_URL")),
		},
		Storage: StorageConfig{
			DataDir: envOrDefault("MEDATA_DATA_DIR", filepath.Join(home, ".local", "share", "medata")),
		},
		Autosave: AutosaveConfig{
			Debounce: time.Duration(envOrDefaultInt("MEDATA_AUTOSAVE_DEBOUNCE_MS", 1000)) * time.Millisecond,
		},
	}

	if host := strings.TrimSpace(os.Getenv("MEDATA_LOOPBACK_HOST")); host != "" {
		cfg.API.BaseURL = RewriteLoopback(cfg.API.BaseURL, host)
		cfg.Transcribe.URL = RewriteLoopback(cfg.Transcribe.URL, host)
	}

	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 30 * time.Second
	}
	if cfg.Transcribe.Timeout <= 0 {
		cfg.Transcribe.Timeout = 60 * time.Second
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 44100
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Autosave.Debounce <= 0 {
		cfg.Autosave.Debounce = time.Second
	}

	return cfg, nil
}

// RewriteLoopback substitutes the host of rawURL with replacement when the
// configured host is a loopback address. The source system applies the same
// rewrite so a device can reach a backend bound to the developer machine.
func RewriteLoopback(rawURL, replacement string) string {
	if rawURL == "" || replacement == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	host := u.Hostname()
	if host != "localhost" && host != "127.0.0.1" && host != "::1" {
		return rawURL
	}
	if port := u.Port(); port != "" {
		u.Host = replacement + ":" + port
	} else {
		u.Host = replacement
	}
	return u.String()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
