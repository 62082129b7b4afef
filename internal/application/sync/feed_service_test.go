package syncapp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
)

// ---------------------------------------------------------------------------
// Cursor repository fake
// ---------------------------------------------------------------------------

type mockCursorRepo struct {
	mu       sync.Mutex
	cursors  map[string]string
	advanced []string

	getErr     error
	advanceErr error
}

func newMockCursorRepo() *mockCursorRepo {
	return &mockCursorRepo{cursors: make(map[string]string)}
}

func cursorKey(entityType syncdomain.EntityType, origin syncdomain.Origin) string {
	return string(entityType) + "/" + string(origin)
}

func (r *mockCursorRepo) seed(entityType syncdomain.EntityType, origin syncdomain.Origin, cursor string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursors[cursorKey(entityType, origin)] = cursor
}

func (r *mockCursorRepo) advances() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.advanced))
	copy(out, r.advanced)
	return out
}

func (r *mockCursorRepo) Get(ctx context.Context, entityType syncdomain.EntityType, origin syncdomain.Origin) (*syncdomain.SyncCursor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	cursor, ok := r.cursors[cursorKey(entityType, origin)]
	if !ok {
		return nil, syncdomain.ErrCursorNotFound
	}
	return &syncdomain.SyncCursor{EntityType: entityType, Origin: origin, Cursor: cursor}, nil
}

func (r *mockCursorRepo) Advance(ctx context.Context, entityType syncdomain.EntityType, origin syncdomain.Origin, cursor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.advanceErr != nil {
		return r.advanceErr
	}
	r.cursors[cursorKey(entityType, origin)] = cursor
	r.advanced = append(r.advanced, cursor)
	return nil
}

var _ syncdomain.CursorRepository = (*mockCursorRepo)(nil)

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type feedHarness struct {
	remote  *mockRemotePlatform
	local   *mockLocalStore
	cursors *mockCursorRepo
	sink    *mockJobSink
	feeds   *ChangeFeedService
}

func newFeedHarness(t *testing.T, pageSize int) *feedHarness {
	t.Helper()
	h := &feedHarness{
		remote:  newMockRemotePlatform(),
		local:   newMockLocalStore(),
		cursors: newMockCursorRepo(),
		sink:    newMockJobSink(),
	}
	h.feeds = NewChangeFeedService(h.remote, h.local, h.cursors, h.sink, testSyncConfig(), pageSize, zap.NewNop())
	return h
}

func remoteRecord(id, name string) syncdomain.RemoteRecord {
	return syncdomain.RemoteRecord{
		ID:    id,
		State: productSnapshot(syncdomain.OriginRemote, id, name, time.Now()),
	}
}

// scriptRemotePages returns each page in order, keyed off the incoming
// cursor so re-fetches after backpressure replay the same page.
func scriptRemotePages(pages map[string]struct {
	records []syncdomain.RemoteRecord
	next    string
}) func(ctx context.Context, entityType syncdomain.EntityType, cursor string, pageSize int) ([]syncdomain.RemoteRecord, string, error) {
	return func(ctx context.Context, entityType syncdomain.EntityType, cursor string, pageSize int) ([]syncdomain.RemoteRecord, string, error) {
		page, ok := pages[cursor]
		if !ok {
			return nil, cursor, nil
		}
		return page.records, page.next, nil
	}
}

// ---------------------------------------------------------------------------
// Remote feed
// ---------------------------------------------------------------------------

func TestChangeFeedService_FetchRemote_PagesAndAdvancesCursor(t *testing.T) {
	h := newFeedHarness(t, 2)
	h.remote.listFunc = scriptRemotePages(map[string]struct {
		records []syncdomain.RemoteRecord
		next    string
	}{
		"":   {records: []syncdomain.RemoteRecord{remoteRecord("wp-1", "One"), remoteRecord("wp-2", "Two")}, next: "c1"},
		"c1": {records: []syncdomain.RemoteRecord{remoteRecord("wp-3", "Three")}, next: "c2"},
	})

	n, err := h.feeds.FetchRemote(context.Background(), syncdomain.EntityTypeProduct, false)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	jobs := h.sink.submitted()
	require.Len(t, jobs, 3)
	for i, id := range []string{"wp-1", "wp-2", "wp-3"} {
		require.NotNil(t, jobs[i].Event)
		assert.Equal(t, syncdomain.OriginRemote, jobs[i].Event.Origin)
		assert.Equal(t, id, jobs[i].Event.SourceID)
		assert.Equal(t, syncdomain.ChangeKindUpdated, jobs[i].Event.Kind)
		assert.NotEmpty(t, jobs[i].Event.DedupeKey)
	}

	assert.Equal(t, []string{"c1", "c2"}, h.cursors.advances())
	assert.Equal(t, []string{"", "c1"}, h.remote.listCursors)
}

func TestChangeFeedService_FetchRemote_ResumesFromStoredCursor(t *testing.T) {
	h := newFeedHarness(t, 10)
	h.cursors.seed(syncdomain.EntityTypeProduct, syncdomain.OriginRemote, "c42")

	n, err := h.feeds.FetchRemote(context.Background(), syncdomain.EntityTypeProduct, false)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{"c42"}, h.remote.listCursors)
	assert.Empty(t, h.cursors.advances())
}

func TestChangeFeedService_FetchRemote_FullScanIgnoresStoredCursor(t *testing.T) {
	h := newFeedHarness(t, 10)
	h.cursors.seed(syncdomain.EntityTypeProduct, syncdomain.OriginRemote, "c42")

	_, err := h.feeds.FetchRemote(context.Background(), syncdomain.EntityTypeProduct, true)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, h.remote.listCursors)
}

func TestChangeFeedService_FetchRemote_BackpressureLeavesCursorBehind(t *testing.T) {
	h := newFeedHarness(t, 2)
	h.sink.failAfter = 1
	h.remote.listFunc = scriptRemotePages(map[string]struct {
		records []syncdomain.RemoteRecord
		next    string
	}{
		"": {records: []syncdomain.RemoteRecord{remoteRecord("wp-1", "One"), remoteRecord("wp-2", "Two")}, next: "c1"},
	})

	n, err := h.feeds.FetchRemote(context.Background(), syncdomain.EntityTypeProduct, false)
	require.ErrorIs(t, err, syncdomain.ErrQueueFull)
	assert.Equal(t, 1, n)

	// The cursor stayed put so the next run replays the rejected page
	assert.Empty(t, h.cursors.advances())
}

func TestChangeFeedService_FetchRemote_SkipsDisabledEntityType(t *testing.T) {
	h := newFeedHarness(t, 10)
	cfg := testSyncConfig()
	cfg.Orders.Enabled = false
	h.feeds = NewChangeFeedService(h.remote, h.local, h.cursors, h.sink, cfg, 10, zap.NewNop())

	n, err := h.feeds.FetchRemote(context.Background(), syncdomain.EntityTypeOrder, false)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, h.remote.listCursors)
}

func TestChangeFeedService_FetchRemote_DeletionListingsBecomeDeleteEvents(t *testing.T) {
	h := newFeedHarness(t, 10)
	h.remote.listFunc = scriptRemotePages(map[string]struct {
		records []syncdomain.RemoteRecord
		next    string
	}{
		"": {records: []syncdomain.RemoteRecord{{ID: "wp-9", Deleted: true}}, next: ""},
	})

	n, err := h.feeds.FetchRemote(context.Background(), syncdomain.EntityTypeProduct, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	jobs := h.sink.submitted()
	require.Len(t, jobs, 1)
	assert.Equal(t, syncdomain.ChangeKindDeleted, jobs[0].Event.Kind)
	assert.Nil(t, jobs[0].Event.Payload)
	assert.Equal(t, "wp-9", jobs[0].Event.SourceID)
}

// ---------------------------------------------------------------------------
// Local feed
// ---------------------------------------------------------------------------

func TestChangeFeedService_FetchLocal_AdvancesWatermarkBehindOverlap(t *testing.T) {
	h := newFeedHarness(t, 10)
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	calls := 0
	h.local.listFunc = func(ctx context.Context, entityType syncdomain.EntityType, since time.Time, limit int) ([]syncdomain.LocalRecord, error) {
		calls++
		if calls > 1 {
			return nil, nil
		}
		return []syncdomain.LocalRecord{
			{ID: "loc-1", State: productSnapshot(syncdomain.OriginLocal, "loc-1", "One", base.Add(10*time.Second)), ModifiedAt: base.Add(10 * time.Second)},
			{ID: "loc-2", State: productSnapshot(syncdomain.OriginLocal, "loc-2", "Two", base.Add(20*time.Second)), ModifiedAt: base.Add(20 * time.Second)},
		}, nil
	}

	n, err := h.feeds.FetchLocal(context.Background(), syncdomain.EntityTypeProduct, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	jobs := h.sink.submitted()
	require.Len(t, jobs, 2)
	assert.Equal(t, syncdomain.OriginLocal, jobs[0].Event.Origin)

	// Watermark lands one overlap interval behind the newest row seen
	want := syncdomain.LocalWatermark(base.Add(19 * time.Second))
	assert.Equal(t, []string{want}, h.cursors.advances())
}

func TestChangeFeedService_FetchLocal_WatermarkNeverRegresses(t *testing.T) {
	h := newFeedHarness(t, 10)
	floor := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	h.cursors.seed(syncdomain.EntityTypeProduct, syncdomain.OriginLocal, syncdomain.LocalWatermark(floor))

	h.local.listFunc = func(ctx context.Context, entityType syncdomain.EntityType, since time.Time, limit int) ([]syncdomain.LocalRecord, error) {
		if len(h.sink.submitted()) > 0 {
			return nil, nil
		}
		// A single row just past the floor, inside the overlap window
		at := floor.Add(200 * time.Millisecond)
		return []syncdomain.LocalRecord{
			{ID: "loc-1", State: productSnapshot(syncdomain.OriginLocal, "loc-1", "One", at), ModifiedAt: at},
		}, nil
	}

	n, err := h.feeds.FetchLocal(context.Background(), syncdomain.EntityTypeProduct, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// maxSeen minus the overlap would fall behind the stored floor; the
	// watermark must not move backwards
	assert.Empty(t, h.cursors.advances())
	require.NotEmpty(t, h.local.listSinces)
	assert.True(t, h.local.listSinces[0].Equal(floor))
}

func TestChangeFeedService_FetchLocal_FullRescanStartsFromZero(t *testing.T) {
	h := newFeedHarness(t, 10)
	h.cursors.seed(syncdomain.EntityTypeProduct, syncdomain.OriginLocal,
		syncdomain.LocalWatermark(time.Now()))

	n, err := h.feeds.FetchLocal(context.Background(), syncdomain.EntityTypeProduct, true)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NotEmpty(t, h.local.listSinces)
	assert.True(t, h.local.listSinces[0].IsZero())
}

func TestChangeFeedService_FetchLocal_BackpressureStopsBeforeAdvance(t *testing.T) {
	h := newFeedHarness(t, 10)
	h.sink.failAfter = 0
	h.local.listFunc = func(ctx context.Context, entityType syncdomain.EntityType, since time.Time, limit int) ([]syncdomain.LocalRecord, error) {
		at := time.Now()
		return []syncdomain.LocalRecord{
			{ID: "loc-1", State: productSnapshot(syncdomain.OriginLocal, "loc-1", "One", at), ModifiedAt: at},
		}, nil
	}

	n, err := h.feeds.FetchLocal(context.Background(), syncdomain.EntityTypeProduct, false)
	require.ErrorIs(t, err, syncdomain.ErrQueueFull)
	assert.Zero(t, n)
	assert.Empty(t, h.cursors.advances())
}

func TestChangeFeedService_FetchLocal_DeactivatedRowsBecomeDeleteEvents(t *testing.T) {
	h := newFeedHarness(t, 10)
	calls := 0
	h.local.listFunc = func(ctx context.Context, entityType syncdomain.EntityType, since time.Time, limit int) ([]syncdomain.LocalRecord, error) {
		calls++
		if calls > 1 {
			return nil, nil
		}
		at := time.Now()
		state := productSnapshot(syncdomain.OriginLocal, "loc-1", "One", at)
		state.Deleted = true
		return []syncdomain.LocalRecord{{ID: "loc-1", State: state, ModifiedAt: at}}, nil
	}

	n, err := h.feeds.FetchLocal(context.Background(), syncdomain.EntityTypeProduct, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	jobs := h.sink.submitted()
	require.Len(t, jobs, 1)
	assert.Equal(t, syncdomain.ChangeKindDeleted, jobs[0].Event.Kind)
}

// ---------------------------------------------------------------------------
// Combined pass
// ---------------------------------------------------------------------------

func TestChangeFeedService_FetchAll_CollectsPerTypeErrors(t *testing.T) {
	h := newFeedHarness(t, 10)
	cfg := testSyncConfig()
	cfg.Customers.Enabled = false
	cfg.Inventory.Enabled = false
	h.feeds = NewChangeFeedService(h.remote, h.local, h.cursors, h.sink, cfg, 10, zap.NewNop())

	h.remote.listFunc = func(ctx context.Context, entityType syncdomain.EntityType, cursor string, pageSize int) ([]syncdomain.RemoteRecord, string, error) {
		if entityType == syncdomain.EntityTypeProduct {
			return nil, "", syncdomain.ErrPlatformUnavailable
		}
		return []syncdomain.RemoteRecord{remoteRecord("wp-5", "Order Five")}, "", nil
	}

	n, err := h.feeds.FetchAll(context.Background(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, syncdomain.ErrPlatformUnavailable)
	assert.Contains(t, err.Error(), "PRODUCT remote feed")

	// The failing product feed did not stop the order feed
	assert.Equal(t, 1, n)
	assert.Len(t, h.remote.listCursors, 2)
}
