package scheduler

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
)

// JobProcessor executes one sync job to completion. Implementations own
// all outcome recording; the dispatcher only routes, times out, and logs.
type JobProcessor interface {
	Process(ctx context.Context, job *syncdomain.SyncJob) error
}

// DispatcherConfig holds configuration for the sync job dispatcher
type DispatcherConfig struct {
	// Workers is the number of workers, each owning one queue shard
	Workers int
	// QueueSize is the capacity of each worker's queue
	QueueSize int
	// JobTimeout is the maximum time a single job can run
	JobTimeout time.Duration
}

// DefaultDispatcherConfig returns default dispatcher configuration
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:    4,
		QueueSize:  256,
		JobTimeout: 2 * time.Minute,
	}
}

// Validate validates the configuration
func (c *DispatcherConfig) Validate() error {
	if c.Workers <= 0 {
		return ErrInvalidConfig
	}
	if c.QueueSize <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Dispatcher routes sync jobs onto a bounded worker pool. Each worker
// owns its own queue and jobs are routed by hashing the job key, so two
// jobs for the same entity always run on the same worker in submission
// order. A full shard rejects the job instead of blocking the caller.
type Dispatcher struct {
	config    DispatcherConfig
	processor JobProcessor
	logger    *zap.Logger

	queues    []chan *syncdomain.SyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewDispatcher creates a new sync job dispatcher
func NewDispatcher(config DispatcherConfig, processor JobProcessor, logger *zap.Logger) (*Dispatcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	queues := make([]chan *syncdomain.SyncJob, config.Workers)
	for i := range queues {
		queues[i] = make(chan *syncdomain.SyncJob, config.QueueSize)
	}

	return &Dispatcher{
		config:    config,
		processor: processor,
		logger:    logger,
		queues:    queues,
	}, nil
}

// Start starts the worker pool
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = true
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for i := range d.queues {
		d.wg.Add(1)
		go d.worker(ctx, i, d.queues[i])
	}

	d.logger.Info("Sync dispatcher started",
		zap.Int("workers", d.config.Workers),
		zap.Int("queue_size", d.config.QueueSize),
		zap.Duration("job_timeout", d.config.JobTimeout),
	)

	return nil
}

// Stop gracefully stops the dispatcher. The queues are closed first so
// workers drain their backlog; when the context expires before the drain
// completes, in-flight jobs are cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = false

	for _, queue := range d.queues {
		close(queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.Info("Sync dispatcher stopped gracefully")
		return nil
	case <-ctx.Done():
		d.cancel()
		d.logger.Warn("Sync dispatcher stop timed out, cancelling in-flight jobs")
		return ctx.Err()
	}
}

// Submit routes a job to its shard. Same-key jobs always land on the
// same shard, which is what serializes work per entity.
func (d *Dispatcher) Submit(job *syncdomain.SyncJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isRunning {
		return ErrDispatcherNotRunning
	}

	shard := shardIndex(job.Key(), len(d.queues))
	select {
	case d.queues[shard] <- job:
		d.logger.Debug("Sync job submitted",
			zap.String("job_key", job.Key()),
			zap.String("origin", string(job.Origin)),
			zap.Int("shard", shard),
			zap.Bool("reconcile", job.IsReconcile()),
		)
		return nil
	default:
		return fmt.Errorf("%w: shard %d", syncdomain.ErrQueueFull, shard)
	}
}

// QueueDepth returns the number of jobs waiting across all shards
func (d *Dispatcher) QueueDepth() int {
	depth := 0
	for _, queue := range d.queues {
		depth += len(queue)
	}
	return depth
}

// worker processes jobs from its own queue shard
func (d *Dispatcher) worker(ctx context.Context, workerID int, queue chan *syncdomain.SyncJob) {
	defer d.wg.Done()

	d.logger.Debug("Sync worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("Sync worker stopping", zap.Int("worker_id", workerID))
			return
		case job, ok := <-queue:
			if !ok {
				d.logger.Debug("Sync worker queue closed", zap.Int("worker_id", workerID))
				return
			}
			d.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job under the configured timeout
func (d *Dispatcher) processJob(ctx context.Context, job *syncdomain.SyncJob, workerID int) {
	jobCtx, cancel := context.WithTimeout(ctx, d.config.JobTimeout)
	defer cancel()

	start := time.Now()
	err := d.processor.Process(jobCtx, job)
	if err != nil {
		d.logger.Error("Sync job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_key", job.Key()),
			zap.String("origin", string(job.Origin)),
			zap.Bool("reconcile", job.IsReconcile()),
			zap.Duration("queued", start.Sub(job.EnqueuedAt)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}

	d.logger.Debug("Sync job processed",
		zap.Int("worker_id", workerID),
		zap.String("job_key", job.Key()),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// shardIndex maps a job key onto a shard with FNV-1a
func shardIndex(key string, shards int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(shards))
}

// Ensure Dispatcher implements the JobSink interface
var _ syncdomain.JobSink = (*Dispatcher)(nil)
