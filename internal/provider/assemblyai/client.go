// Package assemblyai implements the transcription.Backend interface against
// the AssemblyAI v2 REST API.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"recitation-gateway/internal/observability/metrics"
	"recitation-gateway/internal/transcription"
)

const defaultBaseURL = "https://api.assemblyai.com"

// APIError is a non-success response from the AssemblyAI API.
// The status code is preserved so the gateway can pass it through.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assemblyai: %s (HTTP %d)", e.Message, e.StatusCode)
}

// Config holds the client configuration.
//
// LanguageCode and SpeechModel are pinned per deployment: the model tier is
// chosen for the target language, so language detection is always disabled
// on submission.
type Config struct {
	APIKey       string
	BaseURL      string
	LanguageCode string
	SpeechModel  string
}

// Client calls the AssemblyAI upload, transcript-creation and
// transcript-status endpoints. It implements transcription.Backend.
type Client struct {
	cfg     Config
	http    *http.Client
	metrics *metrics.Metrics
}

var _ transcription.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates an AssemblyAI client.
func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: 30 * time.Second},
		metrics: metrics.DefaultMetrics,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

// Upload sends the audio as an opaque octet stream and returns the upload URL.
func (c *Client) Upload(ctx context.Context, audio []byte) (string, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v2/upload", bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var out uploadResponse
	err = c.do(req, &out)
	c.metrics.RecordUpstreamCall("assemblyai", "upload", err, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", &APIError{StatusCode: http.StatusBadGateway, Message: "upload response missing upload_url"}
	}
	return out.UploadURL, nil
}

type submitRequest struct {
	AudioURL string `json:"audio_url"`
	// Language is force-pinned; detection is explicitly disabled because
	// the chosen speech model only supports specific languages reliably.
	LanguageCode      string `json:"language_code"`
	SpeechModel       string `json:"speech_model"`
	LanguageDetection bool   `json:"language_detection"`
}

type transcriptResponse struct {
	ID         string   `json:"id"`
	Status     string   `json:"status"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
	Error      string   `json:"error"`
}

// Submit creates a transcription job for the uploaded audio.
func (c *Client) Submit(ctx context.Context, uploadHandle string) (string, error) {
	start := time.Now()

	body, err := json.Marshal(submitRequest{
		AudioURL:          uploadHandle,
		LanguageCode:      c.cfg.LanguageCode,
		SpeechModel:       c.cfg.SpeechModel,
		LanguageDetection: false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	var out transcriptResponse
	err = c.do(req, &out)
	c.metrics.RecordUpstreamCall("assemblyai", "submit", err, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &APIError{StatusCode: http.StatusBadGateway, Message: "transcript response missing id"}
	}
	return out.ID, nil
}

// Status reads the current state of a job.
func (c *Client) Status(ctx context.Context, jobId string) (transcription.JobStatus, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v2/transcript/"+jobId, nil)
	if err != nil {
		return transcription.JobStatus{}, err
	}
	req.Header.Set("Authorization", c.cfg.APIKey)

	var out transcriptResponse
	err = c.do(req, &out)
	c.metrics.RecordUpstreamCall("assemblyai", "status", err, time.Since(start).Seconds())
	if err != nil {
		return transcription.JobStatus{}, err
	}

	st := transcription.JobStatus{
		Status:      out.Status,
		Text:        out.Text,
		ErrorDetail: out.Error,
	}
	if out.Confidence != nil {
		st.Confidence = *out.Confidence
	}
	return st, nil
}

// do executes the request and decodes a JSON body into out.
// Non-2xx responses become *APIError with the upstream message and status.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		msg := "upstream error"
		if json.Unmarshal(body, &errBody) == nil && errBody.Error != "" {
			msg = errBody.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{StatusCode: http.StatusBadGateway, Message: "malformed upstream response"}
	}
	return nil
}
