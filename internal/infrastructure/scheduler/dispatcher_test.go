package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// mockJobProcessor implements JobProcessor for testing
type mockJobProcessor struct {
	processFunc func(ctx context.Context, job *syncdomain.SyncJob) error
	processed   atomic.Int32

	mu   sync.Mutex
	seen []string
}

func (m *mockJobProcessor) Process(ctx context.Context, job *syncdomain.SyncJob) error {
	m.processed.Add(1)
	if job.Event != nil {
		m.mu.Lock()
		m.seen = append(m.seen, job.Event.DedupeKey)
		m.mu.Unlock()
	}
	if m.processFunc != nil {
		return m.processFunc(ctx, job)
	}
	return nil
}

func (m *mockJobProcessor) seenKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.seen))
	copy(out, m.seen)
	return out
}

func eventJob(sourceID, dedupeKey string) *syncdomain.SyncJob {
	return syncdomain.NewEventJob(&syncdomain.ChangeEvent{
		EntityType: syncdomain.EntityTypeProduct,
		Origin:     syncdomain.OriginRemote,
		SourceID:   sourceID,
		Kind:       syncdomain.ChangeKindUpdated,
		ObservedAt: time.Now(),
		DedupeKey:  dedupeKey,
	})
}

func TestDefaultDispatcherConfig(t *testing.T) {
	cfg := DefaultDispatcherConfig()

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 256, cfg.QueueSize)
	assert.Equal(t, 2*time.Minute, cfg.JobTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestDispatcherConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*DispatcherConfig)
	}{
		{"zero workers", func(c *DispatcherConfig) { c.Workers = 0 }},
		{"zero queue size", func(c *DispatcherConfig) { c.QueueSize = 0 }},
		{"zero job timeout", func(c *DispatcherConfig) { c.JobTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDispatcherConfig()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestShardIndex(t *testing.T) {
	// Same key always maps to the same shard
	first := shardIndex("PRODUCT/p-1", 4)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, shardIndex("PRODUCT/p-1", 4))
	}
	assert.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, 4)

	// A spread of keys touches more than one shard
	shards := map[int]bool{}
	for i := 0; i < 32; i++ {
		shards[shardIndex(fmt.Sprintf("PRODUCT/p-%d", i), 4)] = true
	}
	assert.Greater(t, len(shards), 1)
}

func TestDispatcher_StartStop(t *testing.T) {
	processor := &mockJobProcessor{}
	dispatcher, err := NewDispatcher(DefaultDispatcherConfig(), processor, newTestLogger())
	require.NoError(t, err)

	ctx := context.Background()

	require.NoError(t, dispatcher.Start(ctx))
	// Start again should be idempotent
	require.NoError(t, dispatcher.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, dispatcher.Stop(stopCtx))
	// Stop again should be idempotent
	require.NoError(t, dispatcher.Stop(stopCtx))
}

func TestNewDispatcher_InvalidConfig(t *testing.T) {
	dispatcher, err := NewDispatcher(DispatcherConfig{}, &mockJobProcessor{}, newTestLogger())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Nil(t, dispatcher)
}

func TestDispatcher_Submit_NotRunning(t *testing.T) {
	dispatcher, err := NewDispatcher(DefaultDispatcherConfig(), &mockJobProcessor{}, newTestLogger())
	require.NoError(t, err)

	err = dispatcher.Submit(eventJob("p-1", "k-1"))
	assert.ErrorIs(t, err, ErrDispatcherNotRunning)
}

func TestDispatcher_ProcessesSubmittedJobs(t *testing.T) {
	processor := &mockJobProcessor{}
	dispatcher, err := NewDispatcher(DefaultDispatcherConfig(), processor, newTestLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, dispatcher.Start(ctx))

	for i := 0; i < 5; i++ {
		require.NoError(t, dispatcher.Submit(eventJob(fmt.Sprintf("p-%d", i), fmt.Sprintf("k-%d", i))))
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, dispatcher.Stop(stopCtx))

	// Stop drains the backlog before returning
	assert.EqualValues(t, 5, processor.processed.Load())
}

func TestDispatcher_SameKeyJobsKeepSubmissionOrder(t *testing.T) {
	processor := &mockJobProcessor{
		processFunc: func(_ context.Context, _ *syncdomain.SyncJob) error {
			time.Sleep(time.Millisecond)
			return nil
		},
	}
	config := DispatcherConfig{Workers: 4, QueueSize: 64, JobTimeout: time.Minute}
	dispatcher, err := NewDispatcher(config, processor, newTestLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, dispatcher.Start(ctx))

	var want []string
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("seq-%02d", i)
		want = append(want, key)
		require.NoError(t, dispatcher.Submit(eventJob("p-1", key)))
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, dispatcher.Stop(stopCtx))

	assert.Equal(t, want, processor.seenKeys())
}

func TestDispatcher_FullShardRejects(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	processor := &mockJobProcessor{
		processFunc: func(_ context.Context, _ *syncdomain.SyncJob) error {
			close(started)
			<-release
			return nil
		},
	}

	config := DispatcherConfig{Workers: 1, QueueSize: 1, JobTimeout: time.Minute}
	dispatcher, err := NewDispatcher(config, processor, newTestLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, dispatcher.Start(ctx))

	// First job occupies the worker, second fills the queue
	require.NoError(t, dispatcher.Submit(eventJob("p-1", "k-1")))
	<-started
	require.NoError(t, dispatcher.Submit(eventJob("p-2", "k-2")))

	err = dispatcher.Submit(eventJob("p-3", "k-3"))
	assert.ErrorIs(t, err, syncdomain.ErrQueueFull)
	assert.Equal(t, 1, dispatcher.QueueDepth())

	close(release)
	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, dispatcher.Stop(stopCtx))
}

func TestDispatcher_JobTimeout(t *testing.T) {
	timedOut := make(chan error, 1)
	processor := &mockJobProcessor{
		processFunc: func(ctx context.Context, _ *syncdomain.SyncJob) error {
			<-ctx.Done()
			timedOut <- ctx.Err()
			return ctx.Err()
		},
	}

	config := DispatcherConfig{Workers: 1, QueueSize: 4, JobTimeout: 20 * time.Millisecond}
	dispatcher, err := NewDispatcher(config, processor, newTestLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, dispatcher.Start(ctx))
	require.NoError(t, dispatcher.Submit(eventJob("p-1", "k-1")))

	select {
	case err := <-timedOut:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("job was never cancelled by its timeout")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, dispatcher.Stop(stopCtx))
}
