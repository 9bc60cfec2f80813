package transcription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recitation-gateway/internal/observability/logging"
	"recitation-gateway/internal/observability/metrics"
)

// Provider-reported job statuses.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// JobStatus is one provider-reported snapshot of a job.
type JobStatus struct {
	Status      string
	Text        string
	Confidence  float64
	ErrorDetail string
}

// Backend is the asynchronous transcription provider surface.
// Each method maps to exactly one upstream call.
type Backend interface {
	// Upload sends raw audio as an opaque byte stream and returns an
	// upload handle (a URL or token).
	Upload(ctx context.Context, audio []byte) (string, error)

	// Submit creates a transcription job for the uploaded audio and
	// returns the provider-assigned job identifier. Language pinning and
	// model selection are the backend's concern.
	Submit(ctx context.Context, uploadHandle string) (string, error)

	// Status reads the current state of a job.
	Status(ctx context.Context, jobId string) (JobStatus, error)
}

// ErrTimedOut is returned when the poll ceiling is reached without a
// terminal status. Unlike a ProcessingError it does not mean the job failed;
// its outcome upstream is unknown.
var ErrTimedOut = errors.New("transcription timed out")

// ProcessingError reports a definite failure of the chain: upload, submit,
// a poll read, or the job itself.
type ProcessingError struct {
	Stage string // "upload", "submit", "poll", "job"
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("transcription %s failed: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Result summarizes a finished chain.
type Result struct {
	Text       string
	Confidence float64
	State      State
	PollReads  int
}

// Client runs the upload → submit → poll chain against a Backend.
// Each Transcribe call owns its job exclusively; the client holds no state
// across calls.
type Client struct {
	backend     Backend
	interval    time.Duration
	maxAttempts int
	clock       Clock
	metrics     *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithClock overrides the wall clock, for tests.
func WithClock(c Clock) Option {
	return func(cl *Client) { cl.clock = c }
}

// NewClient creates a transcription client polling every interval, for at
// most maxAttempts status reads per job.
func NewClient(backend Backend, interval time.Duration, maxAttempts int, opts ...Option) *Client {
	c := &Client{
		backend:     backend,
		interval:    interval,
		maxAttempts: maxAttempts,
		clock:       realClock{},
		metrics:     metrics.DefaultMetrics,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Transcribe runs the full chain for one audio buffer and returns the final
// transcript. On failure the returned error is a *ProcessingError, ErrTimedOut,
// or the context's error; the Result always reflects the job's final state.
//
// A status read is issued before any wait, so a job that is already complete
// on the first read incurs no sleep. At most maxAttempts reads are issued.
func (c *Client) Transcribe(ctx context.Context, requestId string, audio []byte) (Result, error) {
	job := NewJob()
	start := time.Now()
	logger := logging.WithJob(requestId, "")

	finish := func(outcome string) Result {
		c.metrics.RecordJob(outcome, job.PollReads(), time.Since(start).Seconds())
		text, confidence, _ := job.Result()
		return Result{
			Text:       text,
			Confidence: confidence,
			State:      job.State(),
			PollReads:  job.PollReads(),
		}
	}

	uploadHandle, err := c.backend.Upload(ctx, audio)
	if err != nil {
		job.Fail(err.Error())
		logger.Error().Err(err).Msg("Audio upload failed, no job created")
		return finish("failed"), &ProcessingError{Stage: "upload", Err: err}
	}

	job.BeginSubmit()
	jobId, err := c.backend.Submit(ctx, uploadHandle)
	if err != nil {
		job.Fail(err.Error())
		logger.Error().Err(err).Msg("Job submission failed")
		return finish("failed"), &ProcessingError{Stage: "submit", Err: err}
	}

	job.BeginPolling(jobId)
	logger = logging.WithJob(requestId, jobId)
	logger.Debug().Msg("Job submitted, polling for result")

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		job.RecordPoll()
		st, err := c.backend.Status(ctx, jobId)
		if err != nil {
			job.Fail(err.Error())
			logger.Error().Err(err).Int("attempt", attempt).Msg("Status read failed")
			return finish("failed"), &ProcessingError{Stage: "poll", Err: err}
		}

		switch st.Status {
		case StatusCompleted:
			job.Complete(st.Text, st.Confidence)
			logger.Info().
				Int("pollReads", job.PollReads()).
				Float64("confidence", st.Confidence).
				Msg("Transcription completed")
			return finish("completed"), nil
		case StatusError:
			detail := st.ErrorDetail
			if detail == "" {
				detail = "transcription error"
			}
			job.Fail(detail)
			logger.Warn().Str("detail", detail).Msg("Job reported error")
			return finish("failed"), &ProcessingError{Stage: "job", Err: errors.New(detail)}
		}

		// queued/processing: wait out the interval, unless this was the
		// final permitted read.
		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			job.Fail(ctx.Err().Error())
			logger.Warn().Int("attempt", attempt).Msg("Transcription cancelled")
			return finish("failed"), ctx.Err()
		case <-c.clock.After(c.interval):
		}
	}

	job.TimeOut()
	logger.Warn().Int("pollReads", job.PollReads()).Msg("Poll ceiling reached, giving up on job")
	return finish("timed_out"), ErrTimedOut
}
