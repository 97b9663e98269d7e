// Package versioning owns the planning version lifecycle: the status state
// machine, copy-on-write duplication and the per-version write lock that
// serializes writers across instances.
package versioning

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"

	planningerrors "github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/events"
	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/models"
	sageredis "github.com/Ramsey-B/sage/pkg/redis"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

const (
	lockKeyPrefix = "version-write:"
	lockTTL       = 30 * time.Second
	lockAttempts  = 3
	lockRetryWait = 150 * time.Millisecond
)

// allowedTransitions is the version lifecycle state machine. Archived is
// terminal.
var allowedTransitions = map[models.VersionStatus][]models.VersionStatus{
	models.VersionDraft:    {models.VersionActive},
	models.VersionActive:   {models.VersionLocked},
	models.VersionLocked:   {models.VersionActive, models.VersionArchived},
	models.VersionArchived: {},
}

// Store is the persistence the manager drives.
type Store interface {
	Create(ctx context.Context, tenantID, userID string, req models.CreateVersionRequest) (*models.PlanningVersion, error)
	GetByID(ctx context.Context, tenantID string, id string) (*models.PlanningVersion, error)
	Transition(ctx context.Context, tenantID, userID, id string, from, to models.VersionStatus) (*models.PlanningVersion, error)
	Copy(ctx context.Context, tenantID, userID, sourceID string, req models.CopyVersionRequest) (*models.PlanningVersion, error)
	Delete(ctx context.Context, tenantID, userID string, id string) error
}

// Unlocker releases a held write lock.
type Unlocker interface {
	Release(ctx context.Context) error
}

// Locker hands out per-version write locks.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Unlocker, error)
}

// redisLocker adapts the redis locker to the manager's interface.
type redisLocker struct {
	locker *sageredis.Locker
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Unlocker, error) {
	lock, err := l.locker.Acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// NewRedisLocker wraps a redis locker for use by the manager.
func NewRedisLocker(locker *sageredis.Locker) Locker {
	return &redisLocker{locker: locker}
}

// noopLocker is used when Redis is not configured; the database row lock
// still serializes writers within a single instance.
type noopLocker struct{}

type noopLock struct{}

func (noopLock) Release(ctx context.Context) error { return nil }

func (noopLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Unlocker, error) {
	return noopLock{}, nil
}

// Manager drives version lifecycle operations.
type Manager struct {
	store   Store
	locker  Locker
	emitter *events.Emitter
	logger  ectologger.Logger
}

// NewManager creates a new version manager. A nil locker disables distributed
// locking.
func NewManager(store Store, locker Locker, emitter *events.Emitter, logger ectologger.Logger) *Manager {
	if locker == nil {
		locker = noopLocker{}
	}
	return &Manager{
		store:   store,
		locker:  locker,
		emitter: emitter,
		logger:  logger,
	}
}

// Create creates a new draft version
func (m *Manager) Create(ctx context.Context, tenantID, userID string, req models.CreateVersionRequest) (*models.PlanningVersion, error) {
	ctx, span := tracing.StartSpan(ctx, "versioning.Create")
	defer span.End()

	created, err := m.store.Create(ctx, tenantID, userID, req)
	if err != nil {
		return nil, err
	}

	m.emitter.Emit(ctx, events.TypeVersionCreated, created.ID, map[string]any{
		"name":   created.Name,
		"status": created.Status,
	})
	return created, nil
}

// Transition moves a version to a new status after validating the move
// against the lifecycle state machine.
func (m *Manager) Transition(ctx context.Context, tenantID, userID, id string, to models.VersionStatus) (*models.PlanningVersion, error) {
	ctx, span := tracing.StartSpan(ctx, "versioning.Transition")
	defer span.End()

	current, err := m.store.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, planningerrors.New(planningerrors.CodeNotFound, "version not found").WithVersion(id)
	}
	if current.Status == to {
		return current, nil
	}
	if !transitionAllowed(current.Status, to) {
		return nil, planningerrors.Newf(planningerrors.CodeInvalidTransition, "cannot transition version from %s to %s", current.Status, to).WithVersion(id)
	}

	updated, err := m.store.Transition(ctx, tenantID, userID, id, current.Status, to)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, planningerrors.New(planningerrors.CodeNotFound, "version not found").WithVersion(id)
	}

	metrics.RecordVersionTransition(tenantID, string(to))
	m.emitter.Emit(ctx, events.TypeVersionTransition, id, map[string]any{
		"from": current.Status,
		"to":   to,
	})
	return updated, nil
}

// Lock transitions an active version to locked
func (m *Manager) Lock(ctx context.Context, tenantID, userID, id string) (*models.PlanningVersion, error) {
	return m.Transition(ctx, tenantID, userID, id, models.VersionLocked)
}

// Unlock transitions a locked version back to active
func (m *Manager) Unlock(ctx context.Context, tenantID, userID, id string) (*models.PlanningVersion, error) {
	return m.Transition(ctx, tenantID, userID, id, models.VersionActive)
}

// Copy duplicates a version and its planning data into a new draft. The
// source's write lock is held for the duration so the snapshot is not
// interleaved with a cross-instance bulk write.
func (m *Manager) Copy(ctx context.Context, tenantID, userID, sourceID string, req models.CopyVersionRequest) (*models.PlanningVersion, error) {
	ctx, span := tracing.StartSpan(ctx, "versioning.Copy")
	defer span.End()

	lock, err := m.acquireWriteLock(ctx, tenantID, sourceID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			m.logger.WithContext(ctx).WithError(err).WithField("version_id", sourceID).Warn("failed to release version write lock")
		}
	}()

	start := time.Now()
	copied, err := m.store.Copy(ctx, tenantID, userID, sourceID, req)
	if err != nil {
		return nil, err
	}
	if copied == nil {
		return nil, planningerrors.New(planningerrors.CodeNotFound, "version not found").WithVersion(sourceID)
	}
	metrics.VersionCopyDuration.Observe(time.Since(start).Seconds())

	m.emitter.Emit(ctx, events.TypeVersionCopied, copied.ID, map[string]any{
		"source_version_id": sourceID,
		"name":              copied.Name,
	})
	return copied, nil
}

// Delete removes an archived version
func (m *Manager) Delete(ctx context.Context, tenantID, userID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "versioning.Delete")
	defer span.End()

	if err := m.store.Delete(ctx, tenantID, userID, id); err != nil {
		return err
	}

	m.emitter.Emit(ctx, events.TypeVersionDeleted, id, nil)
	return nil
}

// AcquireWriteLock takes the per-version write lock on behalf of a bulk data
// write. Callers must Release it when the write commits or fails.
func (m *Manager) AcquireWriteLock(ctx context.Context, tenantID, versionID string) (Unlocker, error) {
	return m.acquireWriteLock(ctx, tenantID, versionID)
}

// acquireWriteLock waits a short bounded time for the lock, then reports the
// version busy so the caller can retry instead of queueing indefinitely.
func (m *Manager) acquireWriteLock(ctx context.Context, tenantID, versionID string) (Unlocker, error) {
	var lastErr error
	for attempt := 0; attempt < lockAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(lockRetryWait):
			}
		}

		lock, err := m.locker.Acquire(ctx, lockKeyPrefix+versionID, lockTTL)
		if err == nil {
			return lock, nil
		}
		lastErr = err
		if !errors.Is(err, sageredis.ErrLockNotAcquired) {
			return nil, err
		}
	}

	metrics.VersionLockContention.WithLabelValues(tenantID).Inc()
	m.logger.WithContext(ctx).WithError(lastErr).WithField("version_id", versionID).Warn("version write lock busy")
	return nil, planningerrors.New(planningerrors.CodeVersionBusy, "version is being written by another request, retry shortly").WithVersion(versionID)
}

func transitionAllowed(from, to models.VersionStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
