// Package transcription implements the asynchronous transcription job chain:
// upload the audio, submit a job, poll its status until a terminal state or
// the poll ceiling is reached.
package transcription

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a transcription job.
type State int

const (
	// StateUploading - audio bytes are being sent to the upload endpoint.
	StateUploading State = iota
	// StateSubmitting - job creation request is in flight.
	StateSubmitting
	// StatePolling - job exists upstream, status reads are being issued.
	StatePolling
	// StateCompleted - upstream reported completion; result text available.
	StateCompleted
	// StateFailed - upload, submit, a poll read, or the job itself failed.
	StateFailed
	// StateTimedOut - the poll ceiling was reached without a terminal status.
	// Distinct from StateFailed: the job's true outcome is unknown.
	StateTimedOut
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUploading:
		return "UPLOADING"
	case StateSubmitting:
		return "SUBMITTING"
	case StatePolling:
		return "POLLING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	case StateTimedOut:
		return "TIMED_OUT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true once no further requests will be issued for the job.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

// Errors for invalid state transitions.
var (
	ErrJobTerminal        = errors.New("job is in a terminal state")
	ErrInvalidTransition  = errors.New("invalid job state transition")
	ErrPollBeforeSubmit   = errors.New("cannot poll before the job is submitted")
	ErrResultNotAvailable = errors.New("result only available for a completed job")
)

// Job tracks a single in-flight request to the asynchronous provider.
// Thread-safe, though each job is owned by exactly one chain for its lifetime.
//
// State transitions:
//
//	UPLOADING → SUBMITTING → POLLING → COMPLETED
//	    │           │           ├────→ FAILED
//	    │           │           └────→ TIMED_OUT
//	    └───────────┴──────────────── → FAILED
//
// Transitions are monotonic and one-directional; terminal states are final.
type Job struct {
	mu          sync.RWMutex
	id          string
	state       State
	resultText  string
	confidence  float64
	errorDetail string
	pollReads   int
}

// NewJob creates a job in UPLOADING state.
func NewJob() *Job {
	return &Job{state: StateUploading}
}

// ID returns the provider-assigned job identifier, empty until submitted.
func (j *Job) ID() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.id
}

// State returns the current state.
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// PollReads returns the number of status reads issued so far.
func (j *Job) PollReads() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.pollReads
}

// Result returns the transcript text and confidence score.
// Only valid for a COMPLETED job.
func (j *Job) Result() (string, float64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.state != StateCompleted {
		return "", 0, ErrResultNotAvailable
	}
	return j.resultText, j.confidence, nil
}

// ErrorDetail returns the upstream error message, empty unless FAILED.
func (j *Job) ErrorDetail() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.errorDetail
}

// BeginSubmit transitions UPLOADING → SUBMITTING after a successful upload.
func (j *Job) BeginSubmit() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return ErrJobTerminal
	}
	if j.state != StateUploading {
		return fmt.Errorf("%w: %s → SUBMITTING", ErrInvalidTransition, j.state)
	}
	j.state = StateSubmitting
	return nil
}

// BeginPolling transitions SUBMITTING → POLLING and records the job ID
// assigned by the provider.
func (j *Job) BeginPolling(id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return ErrJobTerminal
	}
	if j.state != StateSubmitting {
		return fmt.Errorf("%w: %s → POLLING", ErrInvalidTransition, j.state)
	}
	j.id = id
	j.state = StatePolling
	return nil
}

// RecordPoll validates and counts one status read. Only legal while POLLING.
func (j *Job) RecordPoll() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return ErrJobTerminal
	}
	if j.state != StatePolling {
		return ErrPollBeforeSubmit
	}
	j.pollReads++
	return nil
}

// Complete transitions POLLING → COMPLETED and stores the result.
func (j *Job) Complete(text string, confidence float64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return ErrJobTerminal
	}
	if j.state != StatePolling {
		return fmt.Errorf("%w: %s → COMPLETED", ErrInvalidTransition, j.state)
	}
	j.resultText = text
	j.confidence = confidence
	j.state = StateCompleted
	return nil
}

// Fail transitions any non-terminal state → FAILED with the upstream detail.
func (j *Job) Fail(detail string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return ErrJobTerminal
	}
	j.errorDetail = detail
	j.state = StateFailed
	return nil
}

// TimeOut transitions POLLING → TIMED_OUT once the poll ceiling is reached.
// The upstream job is not cancelled; its true outcome remains unknown.
func (j *Job) TimeOut() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return ErrJobTerminal
	}
	if j.state != StatePolling {
		return fmt.Errorf("%w: %s → TIMED_OUT", ErrInvalidTransition, j.state)
	}
	j.state = StateTimedOut
	return nil
}
