package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budgenudge/internal/jobs"
	"github.com/dvloznov/budgenudge/internal/metrics"
)

const (
	// DefaultWorkers is the number of concurrent workers started by Start.
	DefaultWorkers = 5

	// DefaultRetryBackoff is multiplied by the retry count before a failed
	// job is re-enqueued.
	DefaultRetryBackoff = time.Second

	pruneInterval = 10 * time.Minute
)

// pruner is implemented by stores that can drop finished jobs.
type pruner interface {
	Prune(cutoff time.Time) int
}

// ErrQueueClosed is returned when publishing to a stopped queue.
var ErrQueueClosed = fmt.Errorf("queue is closed")

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// Suitable for single-instance deployments and testing.
type Queue struct {
	jobChan   chan *jobs.Job
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	workers   int
	backoff   time.Duration
	retention time.Duration
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithRetryBackoff sets the linear backoff step between retries.
func WithRetryBackoff(d time.Duration) Option {
	return func(q *Queue) { q.backoff = d }
}

// WithRetention keeps finished jobs in the store for d before they are
// pruned. Zero keeps them until restart. Only stores with a Prune method
// are pruned.
func WithRetention(d time.Duration) Option {
	return func(q *Queue) { q.retention = d }
}

// WithMetrics records job outcomes and queue depth.
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// WithLogger sets the queue logger.
func WithLogger(log zerolog.Logger) Option {
	return func(q *Queue) { q.log = log }
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before Publish blocks.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...Option) *Queue {
	q := &Queue{
		jobChan:   make(chan *jobs.Job, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   DefaultWorkers,
		backoff:   DefaultRetryBackoff,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Publish enqueues a job for asynchronous processing.
func (q *Queue) Publish(ctx context.Context, job *jobs.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	if !job.Type.Valid() {
		return fmt.Errorf("Publish: unknown job type %q", job.Type)
	}

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = jobs.DefaultMaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("Publish: save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		q.metrics.SetQueueDepth(len(q.jobChan))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return ErrQueueClosed
	}
}

// Start starts the worker goroutines. The handler is called concurrently,
// up to the configured number of workers.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	if p, ok := q.store.(pruner); ok && q.retention > 0 {
		q.wg.Add(1)
		go q.janitor(ctx, p)
	}
	return nil
}

func (q *Queue) janitor(ctx context.Context, p pruner) {
	defer q.wg.Done()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case now := <-ticker.C:
			if n := p.Prune(now.Add(-q.retention)); n > 0 {
				q.log.Debug().Int("pruned", n).Msg("Pruned finished jobs")
			}
		}
	}
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.metrics.SetQueueDepth(len(q.jobChan))
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.Job, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := q.run(ctx, job, handler)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Error = err.Error()

		if job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying

			backoff := time.Duration(job.RetryCount) * q.backoff
			q.log.Warn().Err(err).
				Str("job_id", job.ID).
				Str("job_type", string(job.Type)).
				Int("retry", job.RetryCount).
				Dur("backoff", backoff).
				Msg("Job failed, retrying")

			retry := *job
			retry.Status = jobs.JobStatusPending
			retry.StartedAt = nil
			retry.CompletedAt = nil
			time.AfterFunc(backoff, func() {
				if err := q.Publish(ctx, &retry); err != nil {
					q.log.Error().Err(err).Str("job_id", retry.ID).Msg("Failed to re-enqueue job")
				}
			})
		} else {
			job.Status = jobs.JobStatusFailed
			q.log.Error().Err(err).
				Str("job_id", job.ID).
				Str("job_type", string(job.Type)).
				Str("user_id", job.UserID).
				Msg("Job failed")
		}
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}
	q.metrics.Job(string(job.Type), string(job.Status))

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// run calls handler, turning a panic into an error so one bad job cannot
// stop a worker.
func (q *Queue) run(ctx context.Context, job *jobs.Job, handler jobs.JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

// Stop stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the queue and releases resources.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
