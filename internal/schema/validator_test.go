package schema

import (
	"testing"
	"time"

	"recitation-gateway/internal/models"
)

func TestValidate_TranscriptionCompleted(t *testing.T) {
	v := New()

	ev := models.TranscriptionCompleted{
		EventType:    "recitation.transcription.completed",
		RequestID:    "req-1",
		Provider:     "assemblyai",
		LanguageCode: "ar",
		Text:         "بسم الله الرحمن الرحيم",
		Confidence:   0.93,
		DurationMs:   4200,
		Timestamp:    time.Now().UnixMilli(),
	}

	if err := v.Validate(ev.EventType, ev); err != nil {
		t.Errorf("valid event rejected: %v", err)
	}
}

func TestValidate_RejectsMissingRequestId(t *testing.T) {
	v := New()

	ev := models.TranscriptionCompleted{
		EventType: "recitation.transcription.completed",
		Provider:  "openai",
		Timestamp: time.Now().UnixMilli(),
	}

	if err := v.Validate(ev.EventType, ev); err == nil {
		t.Error("expected validation error for missing requestId")
	}
}

func TestValidate_RejectsUnknownProvider(t *testing.T) {
	v := New()

	ev := models.TranscriptionCompleted{
		EventType: "recitation.transcription.completed",
		RequestID: "req-1",
		Provider:  "someone-else",
		Timestamp: time.Now().UnixMilli(),
	}

	if err := v.Validate(ev.EventType, ev); err == nil {
		t.Error("expected validation error for unknown provider")
	}
}

func TestValidate_RecitationScored(t *testing.T) {
	v := New()

	ev := models.RecitationScored{
		EventType: "recitation.scored",
		RequestID: "req-2",
		Score:     0.5,
		Parsed:    false,
		Timestamp: time.Now().UnixMilli(),
	}

	if err := v.Validate(ev.EventType, ev); err != nil {
		t.Errorf("valid event rejected: %v", err)
	}

	ev.Score = 1.5
	if err := v.Validate(ev.EventType, ev); err == nil {
		t.Error("expected validation error for score > 1")
	}
}

func TestValidate_UnknownEventType(t *testing.T) {
	v := New()

	if err := v.Validate("recitation.unknown", struct{}{}); err == nil {
		t.Error("expected error for unregistered event type")
	}
}
