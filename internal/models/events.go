// Package models defines the data structures for recitation events.
package models

// TranscriptionCompleted is emitted when a recitation has been transcribed,
// by either the synchronous or the asynchronous provider.
type TranscriptionCompleted struct {
	EventType    string  `json:"eventType"`
	RequestID    string  `json:"requestId"`
	Provider     string  `json:"provider"`
	LanguageCode string  `json:"languageCode"`
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence"`
	DurationMs   int64   `json:"durationMs"`
	Timestamp    int64   `json:"timestamp"`
}

// RecitationScored is emitted when a similarity score has been extracted
// for a transcribed recitation.
type RecitationScored struct {
	EventType string  `json:"eventType"`
	RequestID string  `json:"requestId"`
	Score     float64 `json:"score"`
	Parsed    bool    `json:"parsed"`
	Timestamp int64   `json:"timestamp"`
}
