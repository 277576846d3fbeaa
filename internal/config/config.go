package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice agent server.
// It is constructed once at process start and passed by value; handlers and
// agent sessions never read the environment directly.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration

	MetricsNamespace string
	ServiceName      string

	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string

	DeepgramAPIKey string
	DeepgramModel  string

	OpenAIAPIKey string
	OpenAIModel  string
	SystemPrompt string

	CartesiaAPIKey     string
	CartesiaVoiceID    string
	CartesiaModel      string
	CartesiaSampleRate int

	VADStopDuration time.Duration

	// When set, agent sessions record inbound and outbound audio as WAV
	// files under this directory.
	DebugAudioDir string
}

const (
	defaultPort         = 7860
	defaultSystemPrompt = "You are a friendly AI assistant. Respond naturally and keep your answers conversational."

	// British Reading Lady, matching the voice the service shipped with.
	defaultCartesiaVoice = "71a7ad14-091c-4e8e-a314-022ece01c121"
)

// Load reads environment variables and applies safe defaults. Missing LiveKit
// credentials are not an error here: the server boots degraded and the
// session-starting endpoints report 503 until they are present.
func Load() (Config, error) {
	cfg := Config{
		Host:               envOrDefault("HOST", "0.0.0.0"),
		Port:               defaultPort,
		ShutdownTimeout:    15 * time.Second,
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "voxgate"),
		ServiceName:        envOrDefault("APP_SERVICE_NAME", "voxgate-livekit-agent"),
		LiveKitURL:         trimmedEnv("LIVEKIT_URL"),
		LiveKitAPIKey:      trimmedEnv("LIVEKIT_API_KEY"),
		LiveKitAPISecret:   trimmedEnv("LIVEKIT_API_SECRET"),
		DeepgramAPIKey:     trimmedEnv("DEEPGRAM_API_KEY"),
		DeepgramModel:      envOrDefault("DEEPGRAM_MODEL", "nova-2"),
		OpenAIAPIKey:       trimmedEnv("OPENAI_API_KEY"),
		OpenAIModel:        envOrDefault("OPENAI_MODEL", "gpt-4o"),
		SystemPrompt:       envOrDefault("AGENT_SYSTEM_PROMPT", defaultSystemPrompt),
		CartesiaAPIKey:     trimmedEnv("CARTESIA_API_KEY"),
		CartesiaVoiceID:    envOrDefault("CARTESIA_VOICE_ID", defaultCartesiaVoice),
		CartesiaModel:      envOrDefault("CARTESIA_MODEL", "sonic-2"),
		CartesiaSampleRate: 48000,
		VADStopDuration:    200 * time.Millisecond,
		DebugAudioDir:      trimmedEnv("DEBUG_AUDIO_DIR"),
	}

	var err error
	cfg.Port, err = intFromEnv("PORT", cfg.Port)
	if err != nil {
		return Config{}, err
	}
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.VADStopDuration, err = durationFromEnv("VAD_STOP_DURATION", cfg.VADStopDuration)
	if err != nil {
		return Config{}, err
	}
	cfg.CartesiaSampleRate, err = intFromEnv("CARTESIA_SAMPLE_RATE", cfg.CartesiaSampleRate)
	if err != nil {
		return Config{}, err
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("PORT must be in 1..65535")
	}
	if cfg.VADStopDuration <= 0 {
		return Config{}, fmt.Errorf("VAD_STOP_DURATION must be positive")
	}
	switch cfg.CartesiaSampleRate {
	case 16000, 22050, 24000, 44100, 48000:
	default:
		return Config{}, fmt.Errorf("CARTESIA_SAMPLE_RATE %d is not a supported rate", cfg.CartesiaSampleRate)
	}

	return cfg, nil
}

// BindAddr returns the host:port the HTTP server listens on.
func (c Config) BindAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LiveKitConfigured reports whether all three signaling credentials are set.
// Session-starting endpoints are disabled while this is false.
func (c Config) LiveKitConfigured() bool {
	return c.LiveKitURL != "" && c.LiveKitAPIKey != "" && c.LiveKitAPISecret != ""
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
