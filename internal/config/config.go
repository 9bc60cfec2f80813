// Package config loads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// The recitation trainer frontends that are allowed to call the gateway.
// The first entry doubles as the fallback origin echoed to unknown callers.
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:5500",
	"https://allah-intelligence.netlify.app",
	"https://allah-intelligence.pages.dev",
}

// Configuration holds all runtime configuration for the gateway.
type Configuration struct {
	Service       ServiceConfig
	Upstream      UpstreamConfig
	Transcription TranscriptionConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds process-level settings.
type ServiceConfig struct {
	Principal      string
	HTTPPort       string
	ObsPort        string
	AllowedOrigins []string
}

// UpstreamConfig holds credentials and endpoints for the two providers.
// Key values must never be logged or echoed in error messages.
type UpstreamConfig struct {
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	AssemblyAIAPIKey  string
	AssemblyAIBaseURL string
}

// TranscriptionConfig pins the transcription parameters.
//
// The source language is force-pinned rather than auto-detected: the speech
// model tier is chosen for that language up front, and detection is
// explicitly disabled on job submission.
type TranscriptionConfig struct {
	LanguageCode    string        // forced source language for both providers
	SpeechModel     string        // AssemblyAI model tier for that language
	WhisperModel    string        // OpenAI synchronous transcription model
	WhisperPrompt   string        // priming prompt sent with every Whisper call
	TTSModel        string        // OpenAI text-to-speech model
	TTSVoice        string        // default voice when the caller names none
	ChatModel       string        // comparison chat-completion model
	PollInterval    time.Duration // wait between job status reads
	MaxPollAttempts int           // poll ceiling before giving up on a job
}

// KafkaConfig holds event publishing configuration.
type KafkaConfig struct {
	Enabled        bool
	Brokers        []string
	TopicCompleted string
	TopicScored    string
	Principal      string
}

// ObservabilityConfig holds logging configuration.
type ObservabilityConfig struct {
	LogLevel string
}

// Load reads configuration from the environment, applying defaults.
func Load() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal:      envOrDefault("SERVICE_PRINCIPAL", "svc-recitation-gateway"),
			HTTPPort:       envOrDefault("HTTP_PORT", "8787"),
			ObsPort:        envOrDefault("OBS_PORT", "9090"),
			AllowedOrigins: envListOrDefault("ALLOWED_ORIGINS", defaultAllowedOrigins),
		},
		Upstream: UpstreamConfig{
			OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL:     envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			AssemblyAIAPIKey:  os.Getenv("ASSEMBLYAI_API_KEY"),
			AssemblyAIBaseURL: envOrDefault("ASSEMBLYAI_BASE_URL", "https://api.assemblyai.com"),
		},
		Transcription: TranscriptionConfig{
			LanguageCode:    envOrDefault("TRANSCRIPTION_LANGUAGE_CODE", "ar"),
			SpeechModel:     envOrDefault("TRANSCRIPTION_SPEECH_MODEL", "nano"),
			WhisperModel:    envOrDefault("WHISPER_MODEL", "whisper-1"),
			WhisperPrompt:   envOrDefault("WHISPER_PROMPT", "هذا نص باللغة العربية. أرجو تفريغه بدقة بالحروف العربية."),
			TTSModel:        envOrDefault("TTS_MODEL", "tts-1"),
			TTSVoice:        envOrDefault("TTS_VOICE", "nova"),
			ChatModel:       envOrDefault("CHAT_MODEL", "gpt-3.5-turbo"),
			PollInterval:    envDurationOrDefault("TRANSCRIPTION_POLL_INTERVAL", time.Second),
			MaxPollAttempts: envIntOrDefault("TRANSCRIPTION_MAX_POLL_ATTEMPTS", 60),
		},
		Kafka: KafkaConfig{
			Enabled:        envBoolOrDefault("KAFKA_ENABLED", false),
			Brokers:        envListOrDefault("KAFKA_BROKERS", nil),
			TopicCompleted: envOrDefault("KAFKA_TOPIC_COMPLETED", "recitation.transcripts.completed"),
			TopicScored:    envOrDefault("KAFKA_TOPIC_SCORED", "recitation.scores"),
			Principal:      envOrDefault("KAFKA_PRINCIPAL", "svc-recitation-gateway"),
		},
		Observability: ObservabilityConfig{
			LogLevel: envOrDefault("LOG_LEVEL", "info"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envListOrDefault(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBoolOrDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDurationOrDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
