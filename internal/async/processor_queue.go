package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
)

// ProcessorQueue runs jobs on a fixed pool of workers and publishes every
// result on Results. Results is closed once Shutdown has drained the workers.
type ProcessorQueue struct {
	proc    FileProcessor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch      chan Job
	results chan Result
	wg      sync.WaitGroup
	once    sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc FileProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 30 * time.Second,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.results = make(chan Result, cap(q.ch))
	q.start()
	return q
}

// Results must be drained by the caller or workers block once it fills.
func (q *ProcessorQueue) Results() <-chan Result { return q.results }

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.results <- q.process(workerID, job)
				}

				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
		go func() {
			q.wg.Wait()
			close(q.results)
		}()
	})
}

func (q *ProcessorQueue) process(workerID int, job Job) Result {
	ctx, cancel := common.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	ctx = common.WithRequestID(ctx, job.ID.String())

	out, err := q.proc.ProcessFile(ctx, job.Path)
	if err != nil {
		q.logger.Error("processing failed", "worker_id", workerID, "job_id", job.ID, "run_id", job.RunID, "path", job.Path, "error", err)
	} else {
		q.logger.Debug("processed file successfully", "worker_id", workerID, "job_id", job.ID, "path", job.Path, "step", out.Step)
	}
	return Result{Job: job, Outcome: out, Err: err}
}

// Enqueue blocks while the queue is full, applying backpressure to the caller.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", job.ID, "path", job.Path)
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queued file for processing", "job_id", job.ID, "path", job.Path)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "job_id", job.ID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
