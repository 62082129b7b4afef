package sync

import (
	"context"
	"time"
)

// SyncCursor tracks incremental fetch progress per entity type and side.
// The remote side stores the platform's opaque paging token; the local
// side stores a modification-time watermark. Cursors only advance after
// the corresponding page of change events is durably enqueued, so a crash
// mid-run re-fetches a seen page instead of skipping one.
type SyncCursor struct {
	EntityType EntityType
	Origin     Origin
	// Cursor is the opaque progress token
	Cursor string
	// UpdatedAt is when the cursor last advanced
	UpdatedAt time.Time
}

// CursorRepository persists fetch cursors
type CursorRepository interface {
	// Get retrieves the cursor for one entity type and side, or
	// ErrCursorNotFound before the first advance
	Get(ctx context.Context, entityType EntityType, origin Origin) (*SyncCursor, error)

	// Advance upserts the cursor value
	Advance(ctx context.Context, entityType EntityType, origin Origin, cursor string) error
}

// LocalWatermark encodes a local modification watermark as a cursor value
func LocalWatermark(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseLocalWatermark decodes a local watermark cursor; the zero time is
// returned for an empty or unparsable value so a damaged cursor falls back
// to a full scan rather than skipping changes.
func ParseLocalWatermark(cursor string) time.Time {
	if cursor == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, cursor)
	if err != nil {
		return time.Time{}
	}
	return t
}
