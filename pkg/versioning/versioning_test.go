package versioning

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	planningerrors "github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/events"
	"github.com/Ramsey-B/sage/pkg/models"
	sageredis "github.com/Ramsey-B/sage/pkg/redis"
)

type fakeStore struct {
	versions    map[string]*models.PlanningVersion
	transitions []string
	deleted     []string
	copies      int
}

func newFakeStore(versions ...*models.PlanningVersion) *fakeStore {
	store := &fakeStore{versions: map[string]*models.PlanningVersion{}}
	for _, v := range versions {
		store.versions[v.ID] = v
	}
	return store
}

func (f *fakeStore) Create(_ context.Context, tenantID, userID string, req models.CreateVersionRequest) (*models.PlanningVersion, error) {
	v := &models.PlanningVersion{
		ID:        "v-new",
		TenantID:  tenantID,
		Name:      req.Name,
		Status:    models.VersionDraft,
		CreatedBy: userID,
	}
	f.versions[v.ID] = v
	return v, nil
}

func (f *fakeStore) GetByID(_ context.Context, _ string, id string) (*models.PlanningVersion, error) {
	return f.versions[id], nil
}

func (f *fakeStore) Transition(_ context.Context, _, _, id string, from, to models.VersionStatus) (*models.PlanningVersion, error) {
	v := f.versions[id]
	if v == nil || v.Status != from {
		return nil, planningerrors.New(planningerrors.CodeInvalidTransition, "unexpected status")
	}
	v.Status = to
	f.transitions = append(f.transitions, string(from)+"->"+string(to))
	return v, nil
}

func (f *fakeStore) Copy(_ context.Context, tenantID, userID, sourceID string, req models.CopyVersionRequest) (*models.PlanningVersion, error) {
	source := f.versions[sourceID]
	if source == nil {
		return nil, nil
	}
	f.copies++
	copied := &models.PlanningVersion{
		ID:         "v-copy",
		TenantID:   tenantID,
		Name:       req.Name,
		Status:     models.VersionDraft,
		CopiedFrom: &sourceID,
		CreatedBy:  userID,
	}
	f.versions[copied.ID] = copied
	return copied, nil
}

func (f *fakeStore) Delete(_ context.Context, _, _, id string) error {
	v := f.versions[id]
	if v == nil {
		return planningerrors.New(planningerrors.CodeNotFound, "version not found")
	}
	if v.Status != models.VersionArchived {
		return planningerrors.New(planningerrors.CodeVersionNotArchived, "not archived")
	}
	delete(f.versions, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type busyLocker struct {
	attempts int
}

func (l *busyLocker) Acquire(context.Context, string, time.Duration) (Unlocker, error) {
	l.attempts++
	return nil, sageredis.ErrLockNotAcquired
}

func testManager(store *fakeStore, locker Locker) *Manager {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	emitter := events.NewEmitter(nil, logger)
	return NewManager(store, locker, emitter, logger)
}

func version(id string, status models.VersionStatus) *models.PlanningVersion {
	return &models.PlanningVersion{ID: id, TenantID: "t-1", Name: id, Status: status}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from    models.VersionStatus
		to      models.VersionStatus
		allowed bool
	}{
		{models.VersionDraft, models.VersionActive, true},
		{models.VersionDraft, models.VersionLocked, false},
		{models.VersionDraft, models.VersionArchived, false},
		{models.VersionActive, models.VersionLocked, true},
		{models.VersionActive, models.VersionArchived, false},
		{models.VersionActive, models.VersionDraft, false},
		{models.VersionLocked, models.VersionActive, true},
		{models.VersionLocked, models.VersionArchived, true},
		{models.VersionLocked, models.VersionDraft, false},
		{models.VersionArchived, models.VersionActive, false},
		{models.VersionArchived, models.VersionDraft, false},
	}

	for _, tc := range cases {
		store := newFakeStore(version("v-1", tc.from))
		manager := testManager(store, nil)

		updated, err := manager.Transition(context.Background(), "t-1", "u-1", "v-1", tc.to)
		if tc.allowed {
			require.NoError(t, err, "%s -> %s", tc.from, tc.to)
			assert.Equal(t, tc.to, updated.Status)
		} else {
			require.Error(t, err, "%s -> %s", tc.from, tc.to)
			var planningErr *planningerrors.PlanningError
			require.ErrorAs(t, err, &planningErr)
			assert.Equal(t, planningerrors.CodeInvalidTransition, planningErr.Code)
		}
	}
}

func TestTransitionToSameStatusIsNoop(t *testing.T) {
	store := newFakeStore(version("v-1", models.VersionActive))
	manager := testManager(store, nil)

	updated, err := manager.Transition(context.Background(), "t-1", "u-1", "v-1", models.VersionActive)
	require.NoError(t, err)
	assert.Equal(t, models.VersionActive, updated.Status)
	assert.Empty(t, store.transitions)
}

func TestTransitionUnknownVersion(t *testing.T) {
	manager := testManager(newFakeStore(), nil)

	_, err := manager.Transition(context.Background(), "t-1", "u-1", "v-missing", models.VersionActive)
	var planningErr *planningerrors.PlanningError
	require.ErrorAs(t, err, &planningErr)
	assert.Equal(t, planningerrors.CodeNotFound, planningErr.Code)
}

func TestLockUnlockRoundTrip(t *testing.T) {
	store := newFakeStore(version("v-1", models.VersionActive))
	manager := testManager(store, nil)
	ctx := context.Background()

	locked, err := manager.Lock(ctx, "t-1", "u-1", "v-1")
	require.NoError(t, err)
	assert.Equal(t, models.VersionLocked, locked.Status)

	unlocked, err := manager.Unlock(ctx, "t-1", "u-1", "v-1")
	require.NoError(t, err)
	assert.Equal(t, models.VersionActive, unlocked.Status)
	assert.Equal(t, []string{"active->locked", "locked->active"}, store.transitions)
}

func TestCopyHeldLockReturnsBusy(t *testing.T) {
	store := newFakeStore(version("v-1", models.VersionActive))
	locker := &busyLocker{}
	manager := testManager(store, locker)

	_, err := manager.Copy(context.Background(), "t-1", "u-1", "v-1", models.CopyVersionRequest{Name: "copy"})
	var planningErr *planningerrors.PlanningError
	require.ErrorAs(t, err, &planningErr)
	assert.Equal(t, planningerrors.CodeVersionBusy, planningErr.Code)
	// Bounded wait retries before giving up.
	assert.Equal(t, lockAttempts, locker.attempts)
	assert.Equal(t, 0, store.copies)
}

func TestCopyCreatesDraftWithProvenance(t *testing.T) {
	store := newFakeStore(version("v-1", models.VersionLocked))
	manager := testManager(store, nil)

	copied, err := manager.Copy(context.Background(), "t-1", "u-1", "v-1", models.CopyVersionRequest{Name: "scenario b"})
	require.NoError(t, err)
	assert.Equal(t, models.VersionDraft, copied.Status)
	require.NotNil(t, copied.CopiedFrom)
	assert.Equal(t, "v-1", *copied.CopiedFrom)
}

func TestDeleteOnlyArchived(t *testing.T) {
	store := newFakeStore(version("v-1", models.VersionActive), version("v-2", models.VersionArchived))
	manager := testManager(store, nil)
	ctx := context.Background()

	err := manager.Delete(ctx, "t-1", "u-1", "v-1")
	var planningErr *planningerrors.PlanningError
	require.ErrorAs(t, err, &planningErr)
	assert.Equal(t, planningerrors.CodeVersionNotArchived, planningErr.Code)

	require.NoError(t, manager.Delete(ctx, "t-1", "u-1", "v-2"))
	assert.Equal(t, []string{"v-2"}, store.deleted)
}
