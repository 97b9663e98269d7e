package version

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sage/pkg/database"
	planningerrors "github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/models"
)

func setupMockRepo(t *testing.T) (sqlmock.Sqlmock, *Repository, func()) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(mockDB, "sqlmock")
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	repo := NewRepository(database.NewDatabaseInstance(sqlxDB, logger), logger)

	return mock, repo, func() { _ = sqlxDB.Close() }
}

func versionRow(id, tenantID string, status models.VersionStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(columns).
		AddRow(id, tenantID, "FY26 Plan", "", status, nil, nil, nil, "user-1", now, now)
}

func TestGetByID(t *testing.T) {
	mock, repo, cleanup := setupMockRepo(t)
	defer cleanup()

	tenantID := uuid.New().String()
	versionID := uuid.New().String()

	mock.ExpectQuery(`SELECT`).
		WithArgs(versionID, tenantID).
		WillReturnRows(versionRow(versionID, tenantID, models.VersionActive))

	result, err := repo.GetByID(context.Background(), tenantID, versionID)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, versionID, result.ID)
	assert.Equal(t, models.VersionActive, result.Status)
	assert.Nil(t, result.LockedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	mock, repo, cleanup := setupMockRepo(t)
	defer cleanup()

	tenantID := uuid.New().String()
	versionID := uuid.New().String()

	mock.ExpectQuery(`SELECT`).
		WithArgs(versionID, tenantID).
		WillReturnError(sql.ErrNoRows)

	result, err := repo.GetByID(context.Background(), tenantID, versionID)

	require.NoError(t, err)
	assert.Nil(t, result)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionLockStampsLockedBy(t *testing.T) {
	mock, repo, cleanup := setupMockRepo(t)
	defer cleanup()

	tenantID := uuid.New().String()
	versionID := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FOR UPDATE`).
		WithArgs(versionID, tenantID).
		WillReturnRows(versionRow(versionID, tenantID, models.VersionActive))
	mock.ExpectExec(`UPDATE planning_versions`).
		WithArgs(string(models.VersionLocked), sqlmock.AnyArg(), sqlmock.AnyArg(), "user-1", versionID, tenantID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO planning_history`).
		WithArgs(tenantID, versionID, string(models.HistoryVersionTransition), "status active -> locked", "user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	lockedBy := "user-1"
	now := time.Now()
	lockedRow := sqlmock.NewRows(columns).
		AddRow(versionID, tenantID, "FY26 Plan", "", models.VersionLocked, nil, now, lockedBy, "user-1", now, now)
	mock.ExpectQuery(`SELECT`).
		WithArgs(versionID, tenantID).
		WillReturnRows(lockedRow)

	result, err := repo.Transition(context.Background(), tenantID, "user-1", versionID, models.VersionActive, models.VersionLocked)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, models.VersionLocked, result.Status)
	require.NotNil(t, result.LockedBy)
	assert.Equal(t, "user-1", *result.LockedBy)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionRejectsStaleStatus(t *testing.T) {
	mock, repo, cleanup := setupMockRepo(t)
	defer cleanup()

	tenantID := uuid.New().String()
	versionID := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FOR UPDATE`).
		WithArgs(versionID, tenantID).
		WillReturnRows(versionRow(versionID, tenantID, models.VersionDraft))

	result, err := repo.Transition(context.Background(), tenantID, "user-1", versionID, models.VersionActive, models.VersionLocked)

	require.Error(t, err)
	assert.Nil(t, result)

	var planningErr *planningerrors.PlanningError
	require.True(t, errors.As(err, &planningErr))
	assert.Equal(t, planningerrors.CodeInvalidTransition, planningErr.Code)
	assert.Equal(t, versionID, planningErr.VersionID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRejectsUnarchivedVersion(t *testing.T) {
	mock, repo, cleanup := setupMockRepo(t)
	defer cleanup()

	tenantID := uuid.New().String()
	versionID := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FOR UPDATE`).
		WithArgs(versionID, tenantID).
		WillReturnRows(versionRow(versionID, tenantID, models.VersionActive))

	err := repo.Delete(context.Background(), tenantID, "user-1", versionID)

	require.Error(t, err)

	var planningErr *planningerrors.PlanningError
	require.True(t, errors.As(err, &planningErr))
	assert.Equal(t, planningerrors.CodeVersionNotArchived, planningErr.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteArchivedCascades(t *testing.T) {
	mock, repo, cleanup := setupMockRepo(t)
	defer cleanup()

	tenantID := uuid.New().String()
	versionID := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FOR UPDATE`).
		WithArgs(versionID, tenantID).
		WillReturnRows(versionRow(versionID, tenantID, models.VersionArchived))
	mock.ExpectExec(`DELETE FROM planning_data`).
		WithArgs(tenantID, versionID).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(`DELETE FROM alerts`).
		WithArgs(tenantID, versionID).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM planning_versions`).
		WithArgs(tenantID, versionID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO planning_history`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), tenantID, "user-1", versionID)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
