// Package openai wraps the OpenAI API calls the gateway forwards: Whisper
// transcription, text-to-speech, and the chat-completion comparison.
package openai

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"recitation-gateway/internal/observability/metrics"
)

// Defaults applied when the caller omits the optional comparison knobs,
// matching what the practice frontend has always sent.
const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 150
)

// Config holds the provider configuration. The transcription language and
// priming prompt are pinned per deployment, never inferred from content.
type Config struct {
	APIKey        string
	BaseURL       string
	WhisperModel  string
	WhisperPrompt string
	LanguageCode  string
	TTSModel      string
	TTSVoice      string
	ChatModel     string
}

// ChatMessage is one caller-supplied comparison message. The gateway is
// agnostic to the prompt content; all analysis semantics live here.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client calls the OpenAI API with the server-held credential.
type Client struct {
	api     openai.Client
	cfg     Config
	metrics *metrics.Metrics
}

// New creates an OpenAI provider client. Extra request options (e.g. a test
// base URL or HTTP client) are appended after the configured ones.
func New(cfg Config, extra ...option.RequestOption) *Client {
	// The gateway never retries on behalf of the caller; failures are
	// surfaced immediately and retrying is the caller's decision.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)

	return &Client{
		api:     openai.NewClient(opts...),
		cfg:     cfg,
		metrics: metrics.DefaultMetrics,
	}
}

// Transcribe sends audio to the synchronous Whisper endpoint and returns the
// transcript text. The source language is forced and a language-specific
// priming prompt is attached to every call.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	start := time.Now()

	tr, err := c.api.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:     openai.File(bytes.NewReader(audio), filename, "application/octet-stream"),
		Model:    openai.AudioModel(c.cfg.WhisperModel),
		Language: openai.String(c.cfg.LanguageCode),
		Prompt:   openai.String(c.cfg.WhisperPrompt),
	})
	c.metrics.RecordUpstreamCall("openai", "transcribe", err, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return tr.Text, nil
}

// Synthesize converts text to speech and returns the raw audio bytes
// (audio/mpeg). An empty voice falls back to the configured default.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	start := time.Now()

	if voice == "" {
		voice = c.cfg.TTSVoice
	}

	res, err := c.api.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model: openai.SpeechModel(c.cfg.TTSModel),
		Voice: openai.AudioSpeechNewParamsVoice(voice),
		Input: text,
	})
	c.metrics.RecordUpstreamCall("openai", "tts", err, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	return io.ReadAll(res.Body)
}

// Compare forwards the caller's messages to the chat-completion endpoint and
// returns the upstream JSON verbatim. Zero temperature/maxTokens select the
// frontend's historical defaults.
func (c *Client) Compare(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int64) ([]byte, error) {
	start := time.Now()

	if temperature == 0 {
		temperature = defaultTemperature
	}
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.cfg.ChatModel),
		Messages:    msgs,
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(maxTokens),
	})
	c.metrics.RecordUpstreamCall("openai", "compare", err, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return []byte(resp.RawJSON()), nil
}
