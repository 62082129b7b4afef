package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
)

// ChangeFeed pulls changed entities from one side of the sync boundary
// into the dispatcher queue.
type ChangeFeed interface {
	// FetchRemote enqueues remote changes since the stored cursor; full
	// restarts the listing from the beginning.
	FetchRemote(ctx context.Context, entityType syncdomain.EntityType, full bool) (int, error)
	// FetchLocal enqueues local changes since the stored watermark; full
	// rescans from the beginning of time.
	FetchLocal(ctx context.Context, entityType syncdomain.EntityType, full bool) (int, error)
}

// RetrySweeper re-enqueues failed mappings whose backoff has elapsed
type RetrySweeper interface {
	EnqueueDueRetries(ctx context.Context) (int, error)
}

// RetentionRunner archives and prunes aged sync attempts
type RetentionRunner interface {
	Run(ctx context.Context) (int, error)
}

// EntityPoll names one entity type and how often its feeds run
type EntityPoll struct {
	EntityType syncdomain.EntityType
	Interval   time.Duration
}

// PollTriggerConfig holds configuration for the poll trigger
type PollTriggerConfig struct {
	// CheckInterval is how often due tasks are checked
	CheckInterval time.Duration
	// RetryScanInterval is how often due retries are swept
	RetryScanInterval time.Duration
	// RetentionInterval is how often the retention pass runs
	RetentionInterval time.Duration
	// Polls lists the per-entity feed intervals
	Polls []EntityPoll
}

// DefaultPollTriggerConfig returns default poll trigger configuration
func DefaultPollTriggerConfig() PollTriggerConfig {
	return PollTriggerConfig{
		CheckInterval:     15 * time.Second,
		RetryScanInterval: time.Minute,
		RetentionInterval: 24 * time.Hour,
		Polls: []EntityPoll{
			{EntityType: syncdomain.EntityTypeInventoryLevel, Interval: 5 * time.Minute},
			{EntityType: syncdomain.EntityTypeProduct, Interval: 2 * time.Hour},
			{EntityType: syncdomain.EntityTypeCustomer, Interval: 2 * time.Hour},
			{EntityType: syncdomain.EntityTypeOrder, Interval: 24 * time.Hour},
		},
	}
}

// pollTask is one periodic unit of background work
type pollTask struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

// PollTrigger runs the periodic feed polls, the retry sweep, and the
// retention pass on a shared check-interval loop. A tick skips any task
// whose previous run is still in flight, so a slow poll never stacks.
type PollTrigger struct {
	config    PollTriggerConfig
	feeds     ChangeFeed
	retries   RetrySweeper
	retention RetentionRunner
	logger    *zap.Logger

	tasks []pollTask

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastStart map[string]time.Time
	inFlight  map[string]bool
}

// NewPollTrigger creates a poll trigger. The retention runner may be nil
// when retention is disabled.
func NewPollTrigger(
	config PollTriggerConfig,
	feeds ChangeFeed,
	retries RetrySweeper,
	retention RetentionRunner,
	logger *zap.Logger,
) (*PollTrigger, error) {
	if config.CheckInterval <= 0 {
		return nil, ErrInvalidConfig
	}

	t := &PollTrigger{
		config:    config,
		feeds:     feeds,
		retries:   retries,
		retention: retention,
		logger:    logger,
		lastStart: make(map[string]time.Time),
		inFlight:  make(map[string]bool),
	}
	t.tasks = t.buildTasks()
	return t, nil
}

// buildTasks assembles the task list from whatever is configured
func (t *PollTrigger) buildTasks() []pollTask {
	var tasks []pollTask

	for _, poll := range t.config.Polls {
		if poll.Interval <= 0 {
			continue
		}
		entityType := poll.EntityType
		tasks = append(tasks, pollTask{
			name:     "poll_" + string(entityType),
			interval: poll.Interval,
			run: func(ctx context.Context) error {
				return t.runFeedPoll(ctx, entityType)
			},
		})
	}

	if t.retries != nil && t.config.RetryScanInterval > 0 {
		tasks = append(tasks, pollTask{
			name:     "retry_scan",
			interval: t.config.RetryScanInterval,
			run:      t.runRetryScan,
		})
	}

	if t.retention != nil && t.config.RetentionInterval > 0 {
		tasks = append(tasks, pollTask{
			name:     "retention",
			interval: t.config.RetentionInterval,
			run:      t.runRetention,
		})
	}

	return tasks
}

// Start starts the check loop
func (t *PollTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Poll trigger started",
		zap.Duration("check_interval", t.config.CheckInterval),
		zap.Int("tasks", len(t.tasks)),
	)

	return nil
}

// Stop stops the check loop and waits for running tasks
func (t *PollTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Poll trigger stopped")
		return nil
	case <-ctx.Done():
		t.logger.Warn("Poll trigger stop timed out")
		return ctx.Err()
	}
}

// runLoop checks periodically which tasks are due
func (t *PollTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger starts every due task that is not already in flight
func (t *PollTrigger) checkAndTrigger(ctx context.Context) {
	now := time.Now()

	for _, task := range t.tasks {
		t.mu.Lock()
		if t.inFlight[task.name] || now.Sub(t.lastStart[task.name]) < task.interval {
			t.mu.Unlock()
			continue
		}
		t.inFlight[task.name] = true
		t.lastStart[task.name] = now
		t.mu.Unlock()

		t.wg.Add(1)
		go t.runTask(ctx, task)
	}
}

// runTask executes one task and logs its outcome
func (t *PollTrigger) runTask(ctx context.Context, task pollTask) {
	defer t.wg.Done()
	defer func() {
		t.mu.Lock()
		t.inFlight[task.name] = false
		t.mu.Unlock()
	}()

	start := time.Now()
	t.logger.Debug("Scheduled task started", zap.String("task", task.name))

	if err := task.run(ctx); err != nil {
		t.logger.Error("Scheduled task failed",
			zap.String("task", task.name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}

	t.logger.Debug("Scheduled task finished",
		zap.String("task", task.name),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// runFeedPoll pulls both sides of one entity type. Both feeds run even
// when the first fails, so one broken side never starves the other.
func (t *PollTrigger) runFeedPoll(ctx context.Context, entityType syncdomain.EntityType) error {
	remote, remoteErr := t.feeds.FetchRemote(ctx, entityType, false)
	local, localErr := t.feeds.FetchLocal(ctx, entityType, false)

	if remote > 0 || local > 0 {
		t.logger.Info("Change poll enqueued work",
			zap.String("entity_type", string(entityType)),
			zap.Int("remote", remote),
			zap.Int("local", local),
		)
	}

	if remoteErr != nil {
		return fmt.Errorf("remote feed: %w", remoteErr)
	}
	if localErr != nil {
		return fmt.Errorf("local feed: %w", localErr)
	}
	return nil
}

// runRetryScan sweeps due retries back into the queue
func (t *PollTrigger) runRetryScan(ctx context.Context) error {
	enqueued, err := t.retries.EnqueueDueRetries(ctx)
	if err != nil {
		return err
	}
	if enqueued > 0 {
		t.logger.Info("Retry sweep enqueued mappings", zap.Int("count", enqueued))
	}
	return nil
}

// runRetention archives and prunes aged attempts
func (t *PollTrigger) runRetention(ctx context.Context) error {
	pruned, err := t.retention.Run(ctx)
	if err != nil {
		return err
	}
	if pruned > 0 {
		t.logger.Info("Retention pass pruned attempts", zap.Int("count", pruned))
	}
	return nil
}
