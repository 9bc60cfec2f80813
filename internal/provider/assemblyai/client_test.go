package assemblyai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		LanguageCode: "ar",
		SpeechModel:  "nano",
	})
}

func TestUpload(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody []byte

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/upload" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/abc"})
	})

	handle, err := c.Upload(context.Background(), []byte("raw-audio"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if handle != "https://cdn.example/abc" {
		t.Errorf("unexpected handle %s", handle)
	}
	if gotAuth != "test-key" {
		t.Errorf("expected API key in Authorization header, got %q", gotAuth)
	}
	if gotContentType != "application/octet-stream" {
		t.Errorf("expected octet-stream content type, got %q", gotContentType)
	}
	if string(gotBody) != "raw-audio" {
		t.Errorf("audio bytes not forwarded verbatim: %q", gotBody)
	}
}

func TestUpload_UpstreamErrorPreservesStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		json.NewEncoder(w).Encode(map[string]string{"error": "file too large"})
	})

	_, err := c.Upload(context.Background(), []byte("x"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "file too large" {
		t.Errorf("expected upstream detail, got %q", apiErr.Message)
	}
}

func TestSubmit_PinsLanguageAndDisablesDetection(t *testing.T) {
	var got map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/transcript" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]string{"id": "job-42", "status": "queued"})
	})

	id, err := c.Submit(context.Background(), "https://cdn.example/abc")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if id != "job-42" {
		t.Errorf("unexpected job id %s", id)
	}

	if got["audio_url"] != "https://cdn.example/abc" {
		t.Errorf("audio_url not forwarded: %v", got["audio_url"])
	}
	if got["language_code"] != "ar" {
		t.Errorf("language must be force-pinned to 'ar', got %v", got["language_code"])
	}
	if got["speech_model"] != "nano" {
		t.Errorf("speech model must be pinned, got %v", got["speech_model"])
	}
	if detect, ok := got["language_detection"].(bool); !ok || detect {
		t.Errorf("language_detection must be explicitly false, got %v", got["language_detection"])
	}
}

func TestStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/transcript/job-42" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":         "job-42",
			"status":     "completed",
			"text":       "إن الله مع الصابرين",
			"confidence": 0.91,
		})
	})

	st, err := c.Status(context.Background(), "job-42")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Status != "completed" {
		t.Errorf("unexpected status %s", st.Status)
	}
	if st.Text != "إن الله مع الصابرين" {
		t.Errorf("unexpected text %q", st.Text)
	}
	if st.Confidence != 0.91 {
		t.Errorf("unexpected confidence %v", st.Confidence)
	}
}

func TestStatus_NullConfidence(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"job-42","status":"processing","confidence":null}`))
	})

	st, err := c.Status(context.Background(), "job-42")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Confidence != 0 {
		t.Errorf("expected zero confidence for null, got %v", st.Confidence)
	}
}

func TestStatus_JobError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"job-42","status":"error","error":"download failed"}`))
	})

	st, err := c.Status(context.Background(), "job-42")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Status != "error" || st.ErrorDetail != "download failed" {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestDo_MalformedUpstreamBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := c.Upload(context.Background(), []byte("x"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502 for malformed body, got %d", apiErr.StatusCode)
	}
}
