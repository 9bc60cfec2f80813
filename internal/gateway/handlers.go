// Package gateway exposes the browser-facing HTTP surface: it validates
// requests, attaches the server-held credentials via the provider clients,
// forwards to exactly one upstream, and normalizes errors into a uniform
// {"error": ...} envelope. It holds no state between requests.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	openaisdk "github.com/openai/openai-go"

	"recitation-gateway/internal/analysis"
	"recitation-gateway/internal/config"
	"recitation-gateway/internal/events"
	"recitation-gateway/internal/models"
	"recitation-gateway/internal/observability/logging"
	"recitation-gateway/internal/observability/metrics"
	"recitation-gateway/internal/provider/assemblyai"
	openaiprov "recitation-gateway/internal/provider/openai"
	"recitation-gateway/internal/transcription"
)

// maxAudioBytes caps the multipart form size accepted from callers.
const maxAudioBytes = 25 << 20

// OpenAIProvider is the synchronous provider surface used by the handlers.
type OpenAIProvider interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
	Compare(ctx context.Context, messages []openaiprov.ChatMessage, temperature float64, maxTokens int64) ([]byte, error)
}

// AsyncTranscriber runs the upload → submit → poll chain.
type AsyncTranscriber interface {
	Transcribe(ctx context.Context, requestId string, audio []byte) (transcription.Result, error)
}

// Handlers holds the gateway's route handlers and their collaborators.
type Handlers struct {
	cfg       *config.Configuration
	openai    OpenAIProvider
	async     AsyncTranscriber
	publisher *events.Publisher
	metrics   *metrics.Metrics
}

// NewHandlers wires the gateway handlers to the provider clients.
func NewHandlers(cfg *config.Configuration, openaiClient OpenAIProvider, async AsyncTranscriber, publisher *events.Publisher) *Handlers {
	return &Handlers{
		cfg:       cfg,
		openai:    openaiClient,
		async:     async,
		publisher: publisher,
		metrics:   metrics.DefaultMetrics,
	}
}

// TranscribeOpenAI handles POST /api/openai/transcribe: multipart audio in,
// plain transcript text out.
func (h *Handlers) TranscribeOpenAI(w http.ResponseWriter, r *http.Request) {
	route := "/api/openai/transcribe"
	requestId := middleware.GetReqID(r.Context())
	logger := logging.WithRequest(requestId, route)

	if h.cfg.Upstream.OpenAIAPIKey == "" {
		h.metrics.RecordRejected(route, "config")
		writeError(w, http.StatusInternalServerError, "OpenAI API key not configured")
		return
	}

	audio, ok := h.readAudioFile(w, r, route)
	if !ok {
		return
	}

	start := time.Now()
	text, err := h.openai.Transcribe(r.Context(), audio, "recording.wav")
	if err != nil {
		status, msg := upstreamError(err, "Error processing audio")
		logger.Error().Err(err).Int("status", status).Msg("Transcription failed")
		writeError(w, status, msg)
		return
	}

	h.publishCompleted(r.Context(), requestId, "openai", text, 0, time.Since(start))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(text))
}

type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// TTS handles POST /api/openai/tts: JSON text in, audio/mpeg bytes out.
func (h *Handlers) TTS(w http.ResponseWriter, r *http.Request) {
	route := "/api/openai/tts"
	requestId := middleware.GetReqID(r.Context())
	logger := logging.WithRequest(requestId, route)

	if h.cfg.Upstream.OpenAIAPIKey == "" {
		h.metrics.RecordRejected(route, "config")
		writeError(w, http.StatusInternalServerError, "OpenAI API key not configured")
		return
	}

	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		h.metrics.RecordRejected(route, "input")
		writeError(w, http.StatusBadRequest, "No text provided")
		return
	}

	audio, err := h.openai.Synthesize(r.Context(), req.Text, req.Voice)
	if err != nil {
		status, msg := upstreamError(err, "Error generating speech")
		logger.Error().Err(err).Int("status", status).Msg("Speech synthesis failed")
		writeError(w, status, msg)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Write(audio)
}

type compareRequest struct {
	Messages    []openaiprov.ChatMessage `json:"messages"`
	Temperature float64                  `json:"temperature"`
	MaxTokens   int64                    `json:"max_tokens"`
}

// Compare handles POST /api/openai/compare: the caller's chat-completion
// payload is forwarded and the upstream JSON returned verbatim. The gateway
// does not interpret the prompt; it only taps the reply to publish a
// best-effort score event.
func (h *Handlers) Compare(w http.ResponseWriter, r *http.Request) {
	route := "/api/openai/compare"
	requestId := middleware.GetReqID(r.Context())
	logger := logging.WithRequest(requestId, route)

	if h.cfg.Upstream.OpenAIAPIKey == "" {
		h.metrics.RecordRejected(route, "config")
		writeError(w, http.StatusInternalServerError, "OpenAI API key not configured")
		return
	}

	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		h.metrics.RecordRejected(route, "input")
		writeError(w, http.StatusBadRequest, "No messages provided")
		return
	}

	raw, err := h.openai.Compare(r.Context(), req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		status, msg := upstreamError(err, "Error processing comparison")
		logger.Error().Err(err).Int("status", status).Msg("Comparison failed")
		writeError(w, status, msg)
		return
	}

	h.publishScore(r.Context(), requestId, raw)

	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

// TranscribeAssemblyAI handles POST /api/assemblyai/transcribe: multipart
// audio in, the async job chain runs inline, {"text", "confidence"} out.
// A poll-ceiling timeout surfaces as 504, distinct from definite failures.
func (h *Handlers) TranscribeAssemblyAI(w http.ResponseWriter, r *http.Request) {
	route := "/api/assemblyai/transcribe"
	requestId := middleware.GetReqID(r.Context())
	logger := logging.WithRequest(requestId, route)

	if h.cfg.Upstream.AssemblyAIAPIKey == "" {
		h.metrics.RecordRejected(route, "config")
		writeError(w, http.StatusInternalServerError, "AssemblyAI API key not configured")
		return
	}

	audio, ok := h.readAudioFile(w, r, route)
	if !ok {
		return
	}

	start := time.Now()
	res, err := h.async.Transcribe(r.Context(), requestId, audio)
	if err != nil {
		if errors.Is(err, transcription.ErrTimedOut) {
			logger.Warn().Int("pollReads", res.PollReads).Msg("Transcription timed out")
			writeError(w, http.StatusGatewayTimeout, "Transcription timed out")
			return
		}
		status, msg := upstreamError(err, "Error processing audio")
		logger.Error().Err(err).Int("status", status).Msg("Async transcription failed")
		writeError(w, status, msg)
		return
	}

	h.publishCompleted(r.Context(), requestId, "assemblyai", res.Text, res.Confidence, time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"text":       res.Text,
		"confidence": res.Confidence,
	})
}

// readAudioFile extracts the multipart "file" field. A missing file is a
// client error answered before any upstream is contacted.
func (h *Handlers) readAudioFile(w http.ResponseWriter, r *http.Request, route string) ([]byte, bool) {
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		h.metrics.RecordRejected(route, "input")
		writeError(w, http.StatusBadRequest, "No audio file provided")
		return nil, false
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		h.metrics.RecordRejected(route, "input")
		writeError(w, http.StatusBadRequest, "No audio file provided")
		return nil, false
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioBytes))
	if err != nil {
		h.metrics.RecordRejected(route, "input")
		writeError(w, http.StatusBadRequest, "No audio file provided")
		return nil, false
	}
	h.metrics.RecordAudioReceived(len(audio))
	return audio, true
}

func (h *Handlers) publishCompleted(ctx context.Context, requestId, provider, text string, confidence float64, duration time.Duration) {
	ev := models.TranscriptionCompleted{
		EventType:    "recitation.transcription.completed",
		RequestID:    requestId,
		Provider:     provider,
		LanguageCode: h.cfg.Transcription.LanguageCode,
		Text:         text,
		Confidence:   confidence,
		DurationMs:   duration.Milliseconds(),
		Timestamp:    time.Now().UnixMilli(),
	}
	if err := h.publisher.PublishCompleted(ctx, ev); err != nil {
		logger := logging.WithRequest(requestId, "")
		logger.Warn().Err(err).Msg("Failed to publish transcription event")
	}
}

// publishScore taps the comparison reply for a similarity score. The raw
// response still goes back to the caller untouched.
func (h *Handlers) publishScore(ctx context.Context, requestId string, raw []byte) {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || len(parsed.Choices) == 0 {
		return
	}

	score := analysis.ParseScore(parsed.Choices[0].Message.Content)
	ev := models.RecitationScored{
		EventType: "recitation.scored",
		RequestID: requestId,
		Score:     score.Value,
		Parsed:    score.Parsed,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := h.publisher.PublishScored(ctx, ev); err != nil {
		logger := logging.WithRequest(requestId, "")
		logger.Warn().Err(err).Msg("Failed to publish score event")
	}
}

// writeError emits the uniform error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// upstreamError maps a provider error to the status code and message to pass
// through. Credential values never appear in provider messages.
func upstreamError(err error, fallback string) (int, string) {
	var sdkErr *openaisdk.Error
	if errors.As(err, &sdkErr) {
		msg := sdkErr.Message
		if msg == "" {
			msg = fallback
		}
		return sdkErr.StatusCode, msg
	}

	var apiErr *assemblyai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = fallback
		}
		return apiErr.StatusCode, msg
	}

	var procErr *transcription.ProcessingError
	if errors.As(err, &procErr) {
		// Job-stage failures have no HTTP status of their own.
		return http.StatusInternalServerError, procErr.Err.Error()
	}

	return http.StatusInternalServerError, fallback
}
