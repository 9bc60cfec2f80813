package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPreflightAnyPath(t *testing.T) {
	oa := &fakeOpenAI{}
	async := &fakeAsync{}
	router := newTestRouter(testConfig(), oa, async)

	for _, path := range []string{"/api/openai/transcribe", "/api/assemblyai/transcribe", "/nowhere"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "https://recite.example.com")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("%s: expected 204, got %d", path, rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://recite.example.com" {
			t.Errorf("%s: expected origin echo, got %q", path, got)
		}
		if rec.Header().Get("Access-Control-Allow-Methods") == "" {
			t.Errorf("%s: missing Allow-Methods header", path)
		}
	}
	if oa.transcribeCalls != 0 || async.calls != 0 {
		t.Error("preflight must not reach any provider")
	}
}

func TestUnknownOriginGetsFallback(t *testing.T) {
	router := newTestRouter(testConfig(), &fakeOpenAI{}, &fakeAsync{})

	req := httptest.NewRequest(http.MethodOptions, "/api/openai/tts", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	// The first configured origin is the fallback; the browser enforces
	// the mismatch on its side.
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected fallback origin, got %q", got)
	}
}

func TestAllowedOriginEchoedOnActualRequest(t *testing.T) {
	oa := &fakeOpenAI{transcribeText: "ok"}
	router := newTestRouter(testConfig(), oa, &fakeAsync{})

	body, contentType := multipartAudio(t, "file")
	req := httptest.NewRequest(http.MethodPost, "/api/openai/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Origin", "https://recite.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://recite.example.com" {
		t.Errorf("expected origin echo, got %q", got)
	}
	if rec.Header().Get("Access-Control-Max-Age") != "86400" {
		t.Error("missing Max-Age header")
	}
}

func TestCORSPolicyNoOrigins(t *testing.T) {
	p := newCORSPolicy(nil)
	if got := p.allowOrigin("https://anything.example.com"); got != "" {
		t.Errorf("no configured origins should yield empty fallback, got %q", got)
	}
}
