package syncapp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/shared"
	syncdomain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/commerce"
	"github.com/storesync/backend/internal/infrastructure/config"
)

// IngestStatus is the terminal outcome of one webhook delivery.
type IngestStatus string

const (
	// IngestAccepted means the event was enqueued for processing
	IngestAccepted IngestStatus = "ACCEPTED"
	// IngestDuplicate means the event was already seen inside the dedupe window
	IngestDuplicate IngestStatus = "DUPLICATE"
	// IngestIgnored means the event carries nothing this engine syncs
	IngestIgnored IngestStatus = "IGNORED"
	// IngestRejected means the signature did not verify
	IngestRejected IngestStatus = "REJECTED"
	// IngestOverloaded means the queue was full; the sender should retry
	IngestOverloaded IngestStatus = "OVERLOADED"
)

// IngestResult describes how a webhook delivery was handled
type IngestResult struct {
	Status     IngestStatus
	EntityType syncdomain.EntityType
	Kind       syncdomain.ChangeKind
	EventID    string
	Detail     string
}

// WebhookIngestService runs the webhook pipeline: verify the signature,
// drop duplicates, normalize the envelope, enqueue. Everything is
// synchronous on receipt so the HTTP status truthfully reflects the
// delivery's fate.
type WebhookIngestService struct {
	secret    string
	dedupe    shared.IdempotencyStore
	dedupeTTL time.Duration
	sink      syncdomain.JobSink
	config    config.SyncConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewWebhookIngestService creates a new WebhookIngestService
func NewWebhookIngestService(
	secret string,
	dedupe shared.IdempotencyStore,
	sink syncdomain.JobSink,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *WebhookIngestService {
	ttl := cfg.DedupeWindow
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyConfig().TTL
	}
	return &WebhookIngestService{
		secret:    secret,
		dedupe:    dedupe,
		dedupeTTL: ttl,
		sink:      sink,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest handles one raw webhook delivery
func (s *WebhookIngestService) Ingest(ctx context.Context, raw []byte, signature string) IngestResult {
	if err := commerce.VerifySignature(raw, signature, s.secret); err != nil {
		s.logger.Warn("Webhook signature rejected", zap.Error(err))
		return IngestResult{Status: IngestRejected, Detail: "signature verification failed"}
	}

	envelope, err := commerce.ParseWebhookEnvelope(raw)
	if err != nil {
		s.logger.Warn("Webhook envelope unreadable", zap.Error(err))
		return IngestResult{Status: IngestIgnored, Detail: "malformed envelope"}
	}

	dedupeKey := envelope.ID
	if dedupeKey == "" {
		sum := sha256.Sum256(raw)
		dedupeKey = hex.EncodeToString(sum[:])
	}
	if s.alreadySeen(ctx, dedupeKey) {
		s.logger.Debug("Webhook duplicate discarded",
			zap.String("event_id", envelope.ID),
			zap.String("event_type", envelope.EventType))
		return IngestResult{Status: IngestDuplicate, EventID: envelope.ID}
	}
	// The key is marked only after a successful enqueue; a delivery refused
	// for a full queue must stay retryable for the sender.

	entityType, kind, ok := envelope.Route()
	if !ok {
		s.logger.Debug("Webhook event type ignored", zap.String("event_type", envelope.EventType))
		return IngestResult{Status: IngestIgnored, EventID: envelope.ID, Detail: "unhandled event type " + envelope.EventType}
	}
	if !entityConfig(s.config, entityType).Enabled {
		return IngestResult{Status: IngestIgnored, EntityType: entityType, EventID: envelope.ID, Detail: "entity type disabled"}
	}

	// A body that will not normalize is not fatal: the orchestrator
	// fetches the live record when the payload is nil.
	state, err := commerce.NormalizeWebhookData(entityType, envelope.EntityID, envelope.Data)
	if err != nil {
		s.logger.Warn("Webhook body not usable, deferring to live fetch",
			zap.String("event_type", envelope.EventType),
			zap.Error(err))
		state = nil
	}

	sourceID := envelope.EntityID
	if sourceID == "" && state != nil {
		sourceID = state.ID
	}

	event := &syncdomain.ChangeEvent{
		EntityType: entityType,
		Origin:     syncdomain.OriginRemote,
		SourceID:   sourceID,
		Kind:       kind,
		Payload:    state,
		ObservedAt: envelope.ObservedAt(),
		DedupeKey:  dedupeKey,
	}
	if err := event.Validate(); err != nil {
		s.logger.Warn("Webhook event not routable", zap.String("event_type", envelope.EventType), zap.Error(err))
		return IngestResult{Status: IngestIgnored, EntityType: entityType, EventID: envelope.ID, Detail: err.Error()}
	}

	if err := s.sink.Submit(syncdomain.NewEventJob(event)); err != nil {
		s.logger.Warn("Webhook enqueue refused",
			zap.String("event_type", envelope.EventType),
			zap.Error(err))
		return IngestResult{Status: IngestOverloaded, EntityType: entityType, Kind: kind, EventID: envelope.ID, Detail: "queue full"}
	}

	s.markSeen(ctx, dedupeKey)
	return IngestResult{Status: IngestAccepted, EntityType: entityType, Kind: kind, EventID: envelope.ID}
}

// alreadySeen reports whether the key is inside the dedupe window. A
// dedupe store failure fails open: a duplicate slipping through resolves
// to a no-op downstream, while a dropped event would be lost until the
// next poll. Two concurrent deliveries of one key can both pass the check;
// the second enqueue is absorbed the same way.
func (s *WebhookIngestService) alreadySeen(ctx context.Context, key string) bool {
	if s.dedupe == nil {
		return false
	}
	seen, err := s.dedupe.IsProcessed(ctx, key)
	if err != nil {
		s.logger.Warn("Dedupe store unavailable, accepting event", zap.Error(err))
		return false
	}
	return seen
}

func (s *WebhookIngestService) markSeen(ctx context.Context, key string) {
	if s.dedupe == nil {
		return
	}
	if _, err := s.dedupe.MarkProcessed(ctx, key, s.dedupeTTL); err != nil {
		s.logger.Warn("Dedupe store unavailable, key not marked", zap.Error(err))
	}
}
