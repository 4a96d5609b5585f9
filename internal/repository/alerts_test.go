package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"wisefido-vision/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupAlertRepo(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *AlertRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewAlertRepository(db, zap.NewNop())
	return db, mock, repo
}

func TestInsertAlert_Success(t *testing.T) {
	db, mock, repo := setupAlertRepo(t)
	defer db.Close()

	alert := &models.Alert{
		EventID:   "evt-123",
		CameraID:  "cam-1",
		Timestamp: time.Now(),
		EventType: models.EventCrowdDensity,
		Severity:  models.SeverityMedium,
		Payload:   `{"person_count":5,"threshold":4}`,
	}

	mock.ExpectExec(`INSERT INTO alerts`).
		WithArgs(
			alert.EventID,
			alert.CameraID,
			alert.Timestamp,
			alert.EventType,
			alert.Severity,
			alert.Payload,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.InsertAlert(context.Background(), alert)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAlert_EmptyPayloadBecomesObject(t *testing.T) {
	db, mock, repo := setupAlertRepo(t)
	defer db.Close()

	alert := &models.Alert{
		EventID:   "evt-123",
		CameraID:  "cam-1",
		Timestamp: time.Now(),
		EventType: models.EventZoneEntry,
		Severity:  models.SeverityMedium,
	}

	// 空载荷落库为 "{}"，保持 JSONB 列非空
	mock.ExpectExec(`INSERT INTO alerts`).
		WithArgs(
			alert.EventID,
			alert.CameraID,
			alert.Timestamp,
			alert.EventType,
			alert.Severity,
			"{}",
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.InsertAlert(context.Background(), alert)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAlert_MissingEventID(t *testing.T) {
	db, _, repo := setupAlertRepo(t)
	defer db.Close()

	err := repo.InsertAlert(context.Background(), &models.Alert{CameraID: "cam-1"})
	assert.Error(t, err)
}

func TestListAlerts_NewestFirst(t *testing.T) {
	db, mock, repo := setupAlertRepo(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "event_id", "camera_id", "ts", "event_type", "severity", "payload"}).
		AddRow(2, "evt-2", "cam-1", now, models.EventDwellTime, models.SeverityHigh, sql.NullString{String: `{"track_id":1}`, Valid: true}).
		AddRow(1, "evt-1", "cam-1", now.Add(-time.Minute), models.EventZoneEntry, models.SeverityMedium, sql.NullString{})

	mock.ExpectQuery(`SELECT id, event_id, camera_id`).
		WithArgs("cam-1", 20).
		WillReturnRows(rows)

	alerts, err := repo.ListAlerts(context.Background(), "cam-1", 20)
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	assert.Equal(t, "evt-2", alerts[0].EventID)
	assert.Equal(t, models.EventDwellTime, alerts[0].EventType)
	assert.Equal(t, `{"track_id":1}`, alerts[0].Payload)
	// NULL 载荷读出为 "{}"
	assert.Equal(t, "{}", alerts[1].Payload)

	assert.NoError(t, mock.ExpectationsWereMet())
}
