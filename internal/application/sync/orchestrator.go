package syncapp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/config"
	"github.com/storesync/backend/internal/infrastructure/scheduler"
)

const (
	// retryScanBatch bounds how many errored mappings one sweep examines
	retryScanBatch = 200
	// retryPageSize is the page size used when walking errored mappings
	retryPageSize = 200
)

// deletedFingerprint is the marker recorded for a side whose record is
// gone, so later resolutions see the delete as already applied instead of
// re-propagating it.
var deletedFingerprint = (&syncdomain.EntityState{Deleted: true}).Fingerprint()

// Orchestrator drives one entity through the resolution state machine:
// find or create its mapping, gather both sides' current states, resolve,
// apply the winning side, and record the outcome. It is the dispatcher's
// job processor; each invocation covers exactly one delivery and appends
// exactly one attempt row.
type Orchestrator struct {
	mappings syncdomain.MappingRepository
	attempts syncdomain.AttemptRepository
	remote   syncdomain.RemotePlatform
	local    syncdomain.LocalStore
	resolver *syncdomain.Resolver
	config   config.SyncConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(
	mappings syncdomain.MappingRepository,
	attempts syncdomain.AttemptRepository,
	remote syncdomain.RemotePlatform,
	local syncdomain.LocalStore,
	resolver *syncdomain.Resolver,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Orchestrator{
		mappings: mappings,
		attempts: attempts,
		remote:   remote,
		local:    local,
		resolver: resolver,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Process synchronizes the entity a job refers to. Failures never panic
// the worker: the outcome is classified, recorded on the mapping, and the
// error returned for the dispatcher's log.
func (o *Orchestrator) Process(ctx context.Context, job *syncdomain.SyncJob) error {
	now := o.now()

	m, err := o.findOrCreateMapping(ctx, job, now)
	if err != nil {
		return err
	}

	if err := o.beginAttempt(ctx, m); err != nil {
		// The row is owned by a concurrent writer; record the delivery
		// without touching mapping state.
		o.appendAttempt(ctx, syncdomain.NewSyncAttempt(
			m, syncdomain.OutcomeRetryableFailure, failTitle(m.EntityType), err.Error(), now))
		return err
	}

	local, remote, err := o.gatherStates(ctx, job, m)
	if err != nil {
		return o.recordFailure(ctx, m, err, now)
	}

	decision := o.resolver.Resolve(m.Direction, local, remote, m)
	if !decision.IsApply() {
		return o.recordNoOp(ctx, m, decision, now)
	}

	localFP, remoteFP, err := o.applyDecision(ctx, m, decision)
	if err != nil {
		return o.recordFailure(ctx, m, err, now)
	}
	return o.recordApplied(ctx, m, decision, localFP, remoteFP, now)
}

// findOrCreateMapping resolves the job's source identity to its mapping,
// creating one with the per-entity default direction on first contact.
func (o *Orchestrator) findOrCreateMapping(ctx context.Context, job *syncdomain.SyncJob, now time.Time) (*syncdomain.EntityMapping, error) {
	m, err := o.mappings.FindBySource(ctx, job.EntityType, job.Origin, job.SourceID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, syncdomain.ErrMappingNotFound) {
		return nil, err
	}

	m, err = syncdomain.NewEntityMapping(job.EntityType, job.Origin, job.SourceID, o.directionFor(job.EntityType))
	if err != nil {
		return nil, err
	}
	if err := o.mappings.Create(ctx, m); err != nil {
		if errors.Is(err, syncdomain.ErrConflictingIdentity) {
			// The identity is already bound to another mapping; retrying
			// cannot succeed.
			o.appendAttempt(ctx, syncdomain.NewSyncAttempt(
				m, syncdomain.OutcomeFatalFailure, failTitle(m.EntityType), err.Error(), now))
		}
		return nil, err
	}
	return m, nil
}

// beginAttempt moves the mapping to InFlight under optimistic locking. A
// stale write re-reads once and retries the transition; losing again means
// a concurrent writer owns the key.
func (o *Orchestrator) beginAttempt(ctx context.Context, m *syncdomain.EntityMapping) error {
	m.BeginAttempt()
	err := o.mappings.Update(ctx, m)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syncdomain.ErrStaleWrite) {
		return err
	}

	fresh, readErr := o.mappings.FindByID(ctx, m.ID)
	if readErr != nil {
		return readErr
	}
	*m = *fresh
	m.BeginAttempt()
	if err := o.mappings.Update(ctx, m); err != nil {
		return fmt.Errorf("mapping contended by a concurrent writer: %w", err)
	}
	return nil
}

// gatherStates assembles both sides' current states. An event's payload
// serves as its origin side; everything else is fetched live. A record
// missing on its side resolves to a nil state, not an error.
func (o *Orchestrator) gatherStates(ctx context.Context, job *syncdomain.SyncJob, m *syncdomain.EntityMapping) (local, remote *syncdomain.EntityState, err error) {
	var origin *syncdomain.EntityState
	if job.Event != nil && job.Event.Payload != nil {
		origin = job.Event.Payload
		if job.Event.Kind == syncdomain.ChangeKindDeleted {
			origin.Deleted = true
		}
	} else {
		origin, err = o.sideState(ctx, m, job.Origin)
		if err != nil {
			return nil, nil, err
		}
	}

	counterpart, err := o.sideState(ctx, m, job.Origin.Opposite())
	if err != nil {
		return nil, nil, err
	}

	if job.Origin == syncdomain.OriginLocal {
		return origin, counterpart, nil
	}
	return counterpart, origin, nil
}

func (o *Orchestrator) sideState(ctx context.Context, m *syncdomain.EntityMapping, origin syncdomain.Origin) (*syncdomain.EntityState, error) {
	id := m.SourceID(origin)
	if id == "" {
		return nil, nil
	}
	if origin == syncdomain.OriginLocal {
		state, err := o.local.Get(ctx, m.EntityType, id)
		if errors.Is(err, syncdomain.ErrLocalNotFound) {
			return nil, nil
		}
		return state, err
	}
	state, err := o.remote.Get(ctx, m.EntityType, id)
	if errors.Is(err, syncdomain.ErrRemoteNotFound) {
		return nil, nil
	}
	return state, err
}

// applyDecision executes the winning side's write and returns the
// fingerprints both sides hold afterwards.
func (o *Orchestrator) applyDecision(ctx context.Context, m *syncdomain.EntityMapping, d syncdomain.Decision) (localFP, remoteFP string, err error) {
	if d.Op == syncdomain.ChangeKindDeleted {
		if err := o.applyDelete(ctx, m, d); err != nil {
			return "", "", err
		}
		return deletedFingerprint, deletedFingerprint, nil
	}

	fp := d.Payload.Fingerprint()
	switch {
	case d.Action == syncdomain.ActionApplyToRemote && d.Op == syncdomain.ChangeKindCreated:
		remoteID, err := o.remote.Create(ctx, m.EntityType, d.Payload)
		if err != nil {
			return "", "", err
		}
		m.LinkRemote(remoteID)

	case d.Action == syncdomain.ActionApplyToRemote:
		if err := o.remote.Update(ctx, m.EntityType, m.RemoteID, d.Payload); err != nil {
			return "", "", err
		}

	case d.Op == syncdomain.ChangeKindCreated:
		if err := o.checkAutoCreate(m.EntityType); err != nil {
			return "", "", err
		}
		localID, err := o.local.Create(ctx, m.EntityType, d.Payload)
		if err != nil {
			return "", "", err
		}
		m.LinkLocal(localID)

	default:
		if err := o.local.Update(ctx, m.EntityType, m.LocalID, d.Payload); err != nil {
			return "", "", err
		}
	}
	return fp, fp, nil
}

// applyDelete propagates a delete. A counterpart that is already gone
// counts as done: the intent, record absent, holds either way.
func (o *Orchestrator) applyDelete(ctx context.Context, m *syncdomain.EntityMapping, d syncdomain.Decision) error {
	var err error
	if d.Action == syncdomain.ActionApplyToRemote {
		err = o.remote.Delete(ctx, m.EntityType, m.RemoteID)
	} else {
		err = o.local.Delete(ctx, m.EntityType, m.LocalID)
	}
	if errors.Is(err, syncdomain.ErrRemoteNotFound) || errors.Is(err, syncdomain.ErrLocalNotFound) {
		return nil
	}
	return err
}

// checkAutoCreate guards local creates for entity kinds the operator may
// prefer to curate by hand.
func (o *Orchestrator) checkAutoCreate(entityType syncdomain.EntityType) error {
	switch entityType {
	case syncdomain.EntityTypeProduct:
		if !o.config.AutoCreateProducts {
			return fmt.Errorf("%w: products", syncdomain.ErrAutoCreateDisabled)
		}
	case syncdomain.EntityTypeCustomer:
		if !o.config.AutoCreateCustomers {
			return fmt.Errorf("%w: customers", syncdomain.ErrAutoCreateDisabled)
		}
	}
	return nil
}

func (o *Orchestrator) recordNoOp(ctx context.Context, m *syncdomain.EntityMapping, d syncdomain.Decision, now time.Time) error {
	m.RecordSuccess(m.LocalFingerprint, m.RemoteFingerprint, now)
	if err := o.mappings.Update(ctx, m); err != nil {
		return o.recordFailure(ctx, m, err, now)
	}

	o.appendAttempt(ctx, syncdomain.NewSyncAttempt(
		m, syncdomain.OutcomeSuccess, noOpTitle(m.EntityType), d.Reason, now))
	o.logger.Debug("Sync resolved to no-op",
		zap.String("entity_type", string(m.EntityType)),
		zap.String("reason", d.Reason))
	return nil
}

func (o *Orchestrator) recordApplied(ctx context.Context, m *syncdomain.EntityMapping, d syncdomain.Decision, localFP, remoteFP string, now time.Time) error {
	if d.Conflicted {
		m.RecordConflictResolved(localFP, remoteFP, now, d.Reason)
	} else {
		m.RecordSuccess(localFP, remoteFP, now)
	}
	if err := o.mappings.Update(ctx, m); err != nil {
		return o.recordFailure(ctx, m, err, now)
	}

	o.appendAttempt(ctx, syncdomain.NewSyncAttempt(
		m, syncdomain.OutcomeSuccess, applyTitle(m.EntityType, d), d.Reason, now))

	fields := []zap.Field{
		zap.String("entity_type", string(m.EntityType)),
		zap.String("target", string(d.Target())),
		zap.String("op", string(d.Op)),
		zap.String("reason", d.Reason),
	}
	if d.Conflicted {
		o.logger.Warn("Sync conflict resolved", fields...)
	} else {
		o.logger.Info("Sync change applied", fields...)
	}
	return nil
}

// recordFailure settles a failed delivery: the mapping moves to Error and
// one attempt row is appended with the classified outcome. A retryable
// failure that exhausts the attempt budget escalates to fatal so the
// retry scanner leaves it for manual intervention.
func (o *Orchestrator) recordFailure(ctx context.Context, m *syncdomain.EntityMapping, cause error, now time.Time) error {
	outcome := syncdomain.ClassifyFailure(cause)
	detail := cause.Error()

	m.RecordFailure(detail, now)
	if outcome == syncdomain.OutcomeRetryableFailure && m.AttemptCount >= o.config.MaxAttempts {
		outcome = syncdomain.OutcomeFatalFailure
		detail = fmt.Sprintf("retries exhausted after %d attempts: %s", m.AttemptCount, detail)
	}
	if err := o.mappings.Update(ctx, m); err != nil {
		o.logger.Error("Failed to persist mapping failure",
			zap.String("mapping_id", m.ID.String()),
			zap.Error(err))
	}

	o.appendAttempt(ctx, syncdomain.NewSyncAttempt(m, outcome, failTitle(m.EntityType), detail, now))
	return cause
}

func (o *Orchestrator) appendAttempt(ctx context.Context, attempt *syncdomain.SyncAttempt) {
	if err := o.attempts.Append(ctx, attempt); err != nil {
		o.logger.Error("Failed to append sync attempt",
			zap.String("title", attempt.Title),
			zap.Error(err))
	}
}

func (o *Orchestrator) directionFor(entityType syncdomain.EntityType) syncdomain.SyncDirection {
	direction, err := syncdomain.ParseSyncDirection(entityConfig(o.config, entityType).Direction)
	if err != nil {
		return syncdomain.DirectionBidirectional
	}
	return direction
}

func noOpTitle(et syncdomain.EntityType) string {
	return et.DisplayName() + " in sync"
}

func failTitle(et syncdomain.EntityType) string {
	return et.DisplayName() + " sync failed"
}

func applyTitle(et syncdomain.EntityType, d syncdomain.Decision) string {
	verb := "updated"
	switch d.Op {
	case syncdomain.ChangeKindCreated:
		verb = "created"
	case syncdomain.ChangeKindDeleted:
		verb = "deleted"
	}
	place := "locally"
	if d.Target() == syncdomain.OriginRemote {
		place = "on platform"
	}
	return fmt.Sprintf("%s %s %s", et.DisplayName(), verb, place)
}

// Ensure Orchestrator implements the dispatcher's processor contract
var _ scheduler.JobProcessor = (*Orchestrator)(nil)

// ---------------------------------------------------------------------------
// Triggers
// ---------------------------------------------------------------------------

// OrchestratorService exposes the manual and scheduled entry points that
// put work in front of the orchestrator: full passes, single-record
// reconciles, manual retries, and the periodic retry sweep.
type OrchestratorService struct {
	mappings    syncdomain.MappingRepository
	attempts    syncdomain.AttemptRepository
	sink        syncdomain.JobSink
	feeds       *ChangeFeedService
	backoff     syncdomain.Backoff
	maxAttempts int
	logger      *zap.Logger
	now         func() time.Time

	mu             sync.Mutex
	syncAllRunning bool
}

// NewOrchestratorService creates a new OrchestratorService
func NewOrchestratorService(
	mappings syncdomain.MappingRepository,
	attempts syncdomain.AttemptRepository,
	sink syncdomain.JobSink,
	feeds *ChangeFeedService,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *OrchestratorService {
	backoff := syncdomain.Backoff{Base: cfg.BackoffBase, Max: cfg.BackoffMax, Jitter: cfg.BackoffJitter}
	if backoff.Base <= 0 {
		backoff = syncdomain.DefaultBackoff()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &OrchestratorService{
		mappings:    mappings,
		attempts:    attempts,
		sink:        sink,
		feeds:       feeds,
		backoff:     backoff,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// SyncAll starts a reconciliation pass over both sides in the background
// and reports whether it was accepted. Only one pass runs at a time; a
// request made while one is active is refused.
func (s *OrchestratorService) SyncAll(ctx context.Context, full bool) bool {
	s.mu.Lock()
	if s.syncAllRunning {
		s.mu.Unlock()
		return false
	}
	s.syncAllRunning = true
	s.mu.Unlock()

	bg := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			s.mu.Lock()
			s.syncAllRunning = false
			s.mu.Unlock()
		}()

		start := time.Now()
		enqueued, err := s.feeds.FetchAll(bg, full)
		if err != nil {
			s.logger.Error("Sync pass finished with errors",
				zap.Int("enqueued", enqueued),
				zap.Bool("full", full),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			return
		}
		s.logger.Info("Sync pass enqueued",
			zap.Int("enqueued", enqueued),
			zap.Bool("full", full),
			zap.Duration("elapsed", time.Since(start)))
	}()
	return true
}

// SyncAllRunning reports whether a background pass is active
func (s *OrchestratorService) SyncAllRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncAllRunning
}

// SyncOne enqueues a reconcile job for a single record
func (s *OrchestratorService) SyncOne(ctx context.Context, entityType syncdomain.EntityType, origin syncdomain.Origin, sourceID string) error {
	if !entityType.IsValid() {
		return syncdomain.ErrInvalidEntityType
	}
	if !origin.IsValid() {
		return syncdomain.ErrInvalidOrigin
	}
	if sourceID == "" {
		return syncdomain.ErrMissingSourceID
	}
	return s.sink.Submit(syncdomain.NewReconcileJob(entityType, origin, sourceID, true))
}

// RetryFailed re-enqueues every errored mapping of the given type (nil
// means all types) as reconcile jobs, bypassing backoff eligibility. The
// re-attempt is classified fresh, so escalated mappings get exactly one
// more try.
func (s *OrchestratorService) RetryFailed(ctx context.Context, entityType *syncdomain.EntityType) (int, error) {
	errState := syncdomain.StateError
	filter := syncdomain.MappingFilter{
		EntityType: entityType,
		State:      &errState,
		PageSize:   retryPageSize,
	}

	enqueued := 0
	for page := 1; ; page++ {
		filter.Page = page
		mappings, err := s.mappings.FindAll(ctx, filter)
		if err != nil {
			return enqueued, err
		}
		for i := range mappings {
			if err := s.enqueueReconcile(&mappings[i], true); err != nil {
				return enqueued, err
			}
			enqueued++
		}
		if len(mappings) < filter.PageSize {
			return enqueued, nil
		}
	}
}

// EnqueueDueRetries sweeps errored mappings whose backoff has elapsed
// back into the queue. Fatal outcomes and mappings past the attempt
// budget are skipped; those wait for a manual retry.
func (s *OrchestratorService) EnqueueDueRetries(ctx context.Context) (int, error) {
	candidates, err := s.mappings.FindRetryCandidates(ctx, retryScanBatch)
	if err != nil {
		return 0, err
	}

	now := s.now()
	enqueued := 0
	for i := range candidates {
		m := &candidates[i]
		if m.AttemptCount >= s.maxAttempts {
			continue
		}
		last, err := s.attempts.LastForMapping(ctx, m)
		if err != nil {
			if errors.Is(err, syncdomain.ErrAttemptNotFound) {
				continue
			}
			return enqueued, err
		}
		if last.Outcome != syncdomain.OutcomeRetryableFailure {
			continue
		}
		if now.Before(s.backoff.NextEligibleAt(last.OccurredAt, m.AttemptCount)) {
			continue
		}
		if err := s.enqueueReconcile(m, false); err != nil {
			return enqueued, err
		}
		enqueued++
	}
	return enqueued, nil
}

// enqueueReconcile submits a reconcile job addressed by whichever side of
// the mapping is linked.
func (s *OrchestratorService) enqueueReconcile(m *syncdomain.EntityMapping, manual bool) error {
	origin := syncdomain.OriginLocal
	sourceID := m.LocalID
	if sourceID == "" {
		origin = syncdomain.OriginRemote
		sourceID = m.RemoteID
	}
	if sourceID == "" {
		return nil
	}
	return s.sink.Submit(syncdomain.NewReconcileJob(m.EntityType, origin, sourceID, manual))
}

// Ensure OrchestratorService implements the poll trigger's sweep contract
var _ scheduler.RetrySweeper = (*OrchestratorService)(nil)
