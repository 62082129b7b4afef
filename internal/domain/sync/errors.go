package sync

import "errors"

// Mapping store errors
var (
	// ErrMappingNotFound indicates no mapping exists for the given key
	ErrMappingNotFound = errors.New("sync: mapping not found")
	// ErrConflictingIdentity indicates a write would bind an id that is
	// already bound to a different counterpart
	ErrConflictingIdentity = errors.New("sync: conflicting identity")
	// ErrStaleWrite indicates an optimistic update lost to a concurrent
	// writer; the caller must re-read and retry
	ErrStaleWrite = errors.New("sync: stale write")
	// ErrAttemptNotFound indicates no attempt has been recorded yet
	ErrAttemptNotFound = errors.New("sync: attempt not found")
	// ErrCursorNotFound indicates no cursor has been stored yet
	ErrCursorNotFound = errors.New("sync: cursor not found")
)

// Validation errors
var (
	ErrInvalidEntityType = errors.New("sync: invalid entity type")
	ErrInvalidOrigin     = errors.New("sync: invalid origin")
	ErrInvalidChangeKind = errors.New("sync: invalid change kind")
	ErrInvalidDirection  = errors.New("sync: invalid sync direction")
	ErrInvalidSyncState  = errors.New("sync: invalid sync state")
	ErrInvalidTieBreak   = errors.New("sync: invalid tie break policy")
	ErrMissingSourceID   = errors.New("sync: missing source id")
)

// Adapter and orchestration errors
var (
	// ErrPlatformUnavailable indicates a transport failure or server-side
	// error on the remote platform; retryable
	ErrPlatformUnavailable = errors.New("sync: platform unavailable")
	// ErrPlatformRejected indicates the remote platform permanently
	// rejected the request; fatal
	ErrPlatformRejected = errors.New("sync: platform rejected request")
	// ErrRateLimited indicates the shared outbound limiter (or the
	// platform itself) refused the call within the bounded wait; retryable
	ErrRateLimited = errors.New("sync: rate limited")
	// ErrRemoteNotFound indicates the remote record does not exist
	ErrRemoteNotFound = errors.New("sync: remote record not found")
	// ErrLocalNotFound indicates the local record does not exist
	ErrLocalNotFound = errors.New("sync: local record not found")
	// ErrAutoCreateDisabled indicates a counterpart create was required
	// but disabled by configuration; fatal until reconfigured
	ErrAutoCreateDisabled = errors.New("sync: auto-create disabled for entity type")
	// ErrQueueFull indicates the dispatch queue rejected a job
	ErrQueueFull = errors.New("sync: job queue full")
	// ErrSignatureMismatch indicates webhook signature verification failed
	ErrSignatureMismatch = errors.New("sync: webhook signature mismatch")
	// ErrDuplicateEvent indicates the event was already ingested inside
	// the dedupe window
	ErrDuplicateEvent = errors.New("sync: duplicate event")
)

// ClassifyFailure maps an error from an apply path to an attempt outcome.
// Adapters classify at their boundary by wrapping the sentinels above;
// everything unrecognized is treated as retryable so a transient bug or a
// new transport failure mode never strands a mapping without retries.
func ClassifyFailure(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	switch {
	case errors.Is(err, ErrPlatformRejected),
		errors.Is(err, ErrConflictingIdentity),
		errors.Is(err, ErrAutoCreateDisabled),
		errors.Is(err, ErrInvalidEntityType),
		errors.Is(err, ErrInvalidDirection):
		return OutcomeFatalFailure
	default:
		return OutcomeRetryableFailure
	}
}
