package planningdata

import (
	"context"
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

func TestBulkUpsertRejectsLockedVersion(t *testing.T) {
	mock, repo, cleanup := setupMockRepo(t)
	defer cleanup()

	tenantID := uuid.New().String()
	versionID := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM planning_versions`).
		WithArgs(versionID, tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("locked"))

	resp, err := repo.BulkUpsert(context.Background(), tenantID, "user-1", models.BulkUpdateRequest{
		VersionID: versionID,
		Cells: []models.CellUpdate{
			{KeyFigureID: uuid.New().String(), TimePeriod: "2024-02", PeriodType: models.GranularityMonth, Value: 40},
		},
	})

	require.Error(t, err)
	assert.Nil(t, resp)

	var planningErr *planningerrors.PlanningError
	require.True(t, errors.As(err, &planningErr))
	assert.Equal(t, planningerrors.CodeVersionLocked, planningErr.Code)
	assert.Equal(t, versionID, planningErr.VersionID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertRejectsArchivedVersion(t *testing.T) {
	mock, repo, cleanup := setupMockRepo(t)
	defer cleanup()

	tenantID := uuid.New().String()
	versionID := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM planning_versions`).
		WithArgs(versionID, tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("archived"))

	_, err := repo.BulkUpsert(context.Background(), tenantID, "user-1", models.BulkUpdateRequest{
		VersionID: versionID,
		Cells:     []models.CellUpdate{{KeyFigureID: uuid.New().String(), TimePeriod: "2024-02", PeriodType: models.GranularityMonth}},
	})

	require.Error(t, err)

	var planningErr *planningerrors.PlanningError
	require.True(t, errors.As(err, &planningErr))
	assert.Equal(t, planningerrors.CodeVersionLocked, planningErr.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRecordsDeleteAction(t *testing.T) {
	mock, repo, cleanup := setupMockRepo(t)
	defer cleanup()

	tenantID := uuid.New().String()
	versionID := uuid.New().String()
	keyFigureID := uuid.New().String()
	cellID := uuid.New().String()
	now := time.Now()

	dataColumns := []string{"id", "tenant_id", "version_id", "key_figure_id", "time_period", "period_type", "value", "notes", "updated_by", "created_at", "updated_at"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT pd\.`).
		WithArgs(cellID, tenantID).
		WillReturnRows(sqlmock.NewRows(dataColumns).
			AddRow(cellID, tenantID, versionID, keyFigureID, "2024-02", "month", 40.0, nil, "user-1", now, now))
	mock.ExpectQuery(`SELECT status FROM planning_versions`).
		WithArgs(versionID, tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("active"))
	mock.ExpectExec(`DELETE FROM planning_data`).
		WithArgs(cellID, tenantID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// A deletion is a distinct audit action with no new value, so it cannot
	// be mistaken for setting the cell to zero.
	mock.ExpectExec(`INSERT INTO planning_history`).
		WithArgs(tenantID, versionID, string(models.HistoryCellDelete), keyFigureID, "2024-02", 40.0, nil, "user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), tenantID, "user-1", cellID)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
