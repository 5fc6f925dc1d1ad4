package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-extractor/internal/pipeline"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one OCR payload on disk to extract.
type Job struct {
	ID          uuid.UUID
	RunID       uuid.UUID
	Path        string
	SubmittedAt time.Time
}

// Result pairs a job with its outcome. Err is set when the job could not be
// processed at all.
type Result struct {
	Job     Job
	Outcome pipeline.Outcome
	Err     error
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// FileProcessor is the work a queue worker performs per job.
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string) (pipeline.Outcome, error)
}

// NewJob stamps a job for path within run.
func NewJob(run uuid.UUID, path string) Job {
	return Job{ID: uuid.New(), RunID: run, Path: path, SubmittedAt: time.Now().UTC()}
}
