package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"recitation-gateway/internal/config"
	"recitation-gateway/internal/events"
	"recitation-gateway/internal/provider/assemblyai"
	openaiprov "recitation-gateway/internal/provider/openai"
	"recitation-gateway/internal/transcription"
)

type fakeOpenAI struct {
	transcribeCalls int
	synthesizeCalls int
	compareCalls    int

	transcribeText string
	transcribeErr  error
	audio          []byte
	synthesizeErr  error
	compareRaw     []byte
	compareErr     error

	lastVoice    string
	lastMessages []openaiprov.ChatMessage
}

func (f *fakeOpenAI) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	f.transcribeCalls++
	return f.transcribeText, f.transcribeErr
}

func (f *fakeOpenAI) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	f.synthesizeCalls++
	f.lastVoice = voice
	return f.audio, f.synthesizeErr
}

func (f *fakeOpenAI) Compare(ctx context.Context, messages []openaiprov.ChatMessage, temperature float64, maxTokens int64) ([]byte, error) {
	f.compareCalls++
	f.lastMessages = messages
	return f.compareRaw, f.compareErr
}

type fakeAsync struct {
	calls  int
	result transcription.Result
	err    error
}

func (f *fakeAsync) Transcribe(ctx context.Context, requestId string, audio []byte) (transcription.Result, error) {
	f.calls++
	return f.result, f.err
}

func testConfig() *config.Configuration {
	return &config.Configuration{
		Service: config.ServiceConfig{
			AllowedOrigins: []string{"http://localhost:3000", "https://recite.example.com"},
		},
		Upstream: config.UpstreamConfig{
			OpenAIAPIKey:     "sk-test",
			AssemblyAIAPIKey: "aai-test",
		},
		Transcription: config.TranscriptionConfig{
			LanguageCode: "ar",
		},
	}
}

func newTestRouter(cfg *config.Configuration, oa OpenAIProvider, async AsyncTranscriber) http.Handler {
	h := NewHandlers(cfg, oa, async, events.New(nil))
	return NewRouter(cfg, h)
}

func multipartAudio(t *testing.T, field string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "recording.wav")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("RIFF....WAVEfake audio"))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func decodeError(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var envelope map[string]string
	if err := json.Unmarshal(body.Bytes(), &envelope); err != nil {
		t.Fatalf("error body is not a JSON object: %v (%s)", err, body.String())
	}
	return envelope["error"]
}

func TestTranscribeOpenAI_Success(t *testing.T) {
	oa := &fakeOpenAI{transcribeText: "بسم الله الرحمن الرحيم"}
	router := newTestRouter(testConfig(), oa, &fakeAsync{})

	body, contentType := multipartAudio(t, "file")
	req := httptest.NewRequest(http.MethodPost, "/api/openai/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected text/plain, got %q", ct)
	}
	if rec.Body.String() != "بسم الله الرحمن الرحيم" {
		t.Errorf("unexpected transcript %q", rec.Body.String())
	}
	if oa.transcribeCalls != 1 {
		t.Errorf("expected 1 upstream call, got %d", oa.transcribeCalls)
	}
}

func TestTranscribe_MissingFileRejectedBeforeUpstream(t *testing.T) {
	oa := &fakeOpenAI{}
	router := newTestRouter(testConfig(), oa, &fakeAsync{})

	// Wrong field name counts as missing.
	body, contentType := multipartAudio(t, "audio")
	req := httptest.NewRequest(http.MethodPost, "/api/openai/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeError(t, rec.Body); msg != "No audio file provided" {
		t.Errorf("unexpected error message %q", msg)
	}
	if oa.transcribeCalls != 0 {
		t.Errorf("upstream must not be contacted, got %d calls", oa.transcribeCalls)
	}
}

func TestTranscribeOpenAI_MissingKey(t *testing.T) {
	cfg := testConfig()
	cfg.Upstream.OpenAIAPIKey = ""
	oa := &fakeOpenAI{}
	router := newTestRouter(cfg, oa, &fakeAsync{})

	body, contentType := multipartAudio(t, "file")
	req := httptest.NewRequest(http.MethodPost, "/api/openai/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if msg := decodeError(t, rec.Body); msg != "OpenAI API key not configured" {
		t.Errorf("unexpected error message %q", msg)
	}
	if oa.transcribeCalls != 0 {
		t.Error("upstream must not be contacted without a key")
	}
}

func TestTranscribeOpenAI_NoCaching(t *testing.T) {
	oa := &fakeOpenAI{transcribeText: "text"}
	router := newTestRouter(testConfig(), oa, &fakeAsync{})

	for i := 0; i < 2; i++ {
		body, contentType := multipartAudio(t, "file")
		req := httptest.NewRequest(http.MethodPost, "/api/openai/transcribe", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	if oa.transcribeCalls != 2 {
		t.Errorf("identical requests must each hit upstream, got %d calls", oa.transcribeCalls)
	}
}

func TestTTS_Success(t *testing.T) {
	oa := &fakeOpenAI{audio: []byte("mp3-bytes")}
	router := newTestRouter(testConfig(), oa, &fakeAsync{})

	req := httptest.NewRequest(http.MethodPost, "/api/openai/tts",
		strings.NewReader(`{"text":"بسم الله","voice":"alloy"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("expected audio/mpeg, got %q", ct)
	}
	if rec.Body.String() != "mp3-bytes" {
		t.Errorf("audio bytes must pass through untouched")
	}
	if oa.lastVoice != "alloy" {
		t.Errorf("voice not forwarded, got %q", oa.lastVoice)
	}
}

func TestTTS_MissingText(t *testing.T) {
	oa := &fakeOpenAI{}
	router := newTestRouter(testConfig(), oa, &fakeAsync{})

	req := httptest.NewRequest(http.MethodPost, "/api/openai/tts", strings.NewReader(`{"voice":"nova"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeError(t, rec.Body); msg != "No text provided" {
		t.Errorf("unexpected error message %q", msg)
	}
	if oa.synthesizeCalls != 0 {
		t.Error("upstream must not be contacted")
	}
}

func TestCompare_VerbatimPassthrough(t *testing.T) {
	raw := []byte(`{"id":"chatcmpl-1","choices":[{"message":{"content":"Similarity Score: 85"}}],"usage":{"total_tokens":42}}`)
	oa := &fakeOpenAI{compareRaw: raw}
	router := newTestRouter(testConfig(), oa, &fakeAsync{})

	req := httptest.NewRequest(http.MethodPost, "/api/openai/compare",
		strings.NewReader(`{"messages":[{"role":"user","content":"compare these"}]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(rec.Body.Bytes(), raw) {
		t.Errorf("upstream body must pass through byte for byte, got %s", rec.Body.String())
	}
	if len(oa.lastMessages) != 1 || oa.lastMessages[0].Content != "compare these" {
		t.Errorf("messages not forwarded, got %+v", oa.lastMessages)
	}
}

func TestCompare_EmptyMessages(t *testing.T) {
	oa := &fakeOpenAI{}
	router := newTestRouter(testConfig(), oa, &fakeAsync{})

	req := httptest.NewRequest(http.MethodPost, "/api/openai/compare", strings.NewReader(`{"messages":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if oa.compareCalls != 0 {
		t.Error("upstream must not be contacted")
	}
}

func TestTranscribeAssemblyAI_Success(t *testing.T) {
	async := &fakeAsync{result: transcription.Result{
		Text:       "الحمد لله",
		Confidence: 0.93,
		State:      transcription.StateCompleted,
		PollReads:  2,
	}}
	router := newTestRouter(testConfig(), &fakeOpenAI{}, async)

	body, contentType := multipartAudio(t, "file")
	req := httptest.NewRequest(http.MethodPost, "/api/assemblyai/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if out.Text != "الحمد لله" || out.Confidence != 0.93 {
		t.Errorf("unexpected response %+v", out)
	}
}

func TestTranscribeAssemblyAI_Timeout(t *testing.T) {
	async := &fakeAsync{
		result: transcription.Result{State: transcription.StateTimedOut, PollReads: 60},
		err:    transcription.ErrTimedOut,
	}
	router := newTestRouter(testConfig(), &fakeOpenAI{}, async)

	body, contentType := multipartAudio(t, "file")
	req := httptest.NewRequest(http.MethodPost, "/api/assemblyai/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
	if msg := decodeError(t, rec.Body); msg != "Transcription timed out" {
		t.Errorf("unexpected error message %q", msg)
	}
}

func TestTranscribeAssemblyAI_MissingKey(t *testing.T) {
	cfg := testConfig()
	cfg.Upstream.AssemblyAIAPIKey = ""
	async := &fakeAsync{}
	router := newTestRouter(cfg, &fakeOpenAI{}, async)

	body, contentType := multipartAudio(t, "file")
	req := httptest.NewRequest(http.MethodPost, "/api/assemblyai/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if msg := decodeError(t, rec.Body); msg != "AssemblyAI API key not configured" {
		t.Errorf("unexpected error message %q", msg)
	}
	if async.calls != 0 {
		t.Error("job chain must not start without a key")
	}
}

func TestUpstreamStatusPreserved(t *testing.T) {
	async := &fakeAsync{err: &transcription.ProcessingError{
		Stage: "upload",
		Err:   &assemblyai.APIError{StatusCode: http.StatusRequestEntityTooLarge, Message: "File too large"},
	}}
	router := newTestRouter(testConfig(), &fakeOpenAI{}, async)

	body, contentType := multipartAudio(t, "file")
	req := httptest.NewRequest(http.MethodPost, "/api/assemblyai/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("upstream status must pass through, got %d", rec.Code)
	}
	if msg := decodeError(t, rec.Body); msg != "File too large" {
		t.Errorf("unexpected error message %q", msg)
	}
}

func TestJobFailureMapsTo500(t *testing.T) {
	async := &fakeAsync{err: &transcription.ProcessingError{
		Stage: "job",
		Err:   errors.New("audio too short"),
	}}
	router := newTestRouter(testConfig(), &fakeOpenAI{}, async)

	body, contentType := multipartAudio(t, "file")
	req := httptest.NewRequest(http.MethodPost, "/api/assemblyai/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if msg := decodeError(t, rec.Body); msg != "audio too short" {
		t.Errorf("unexpected error message %q", msg)
	}
}

func TestUnknownRoute404(t *testing.T) {
	router := newTestRouter(testConfig(), &fakeOpenAI{}, &fakeAsync{})

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("404 responses still carry CORS headers")
	}
}
