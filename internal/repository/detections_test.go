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

func setupDetectionRepo(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *DetectionRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewDetectionRepository(db, zap.NewNop())
	return db, mock, repo
}

func TestInsertDetection_Success(t *testing.T) {
	db, mock, repo := setupDetectionRepo(t)
	defer db.Close()

	trackID := int64(3)
	detection := &models.Detection{
		CameraID:   "cam-1",
		Timestamp:  time.Now(),
		Label:      "person",
		Confidence: 0.87,
		BBox:       models.BBox{X1: 10, Y1: 20, X2: 50, Y2: 80},
		TrackID:    &trackID,
	}

	mock.ExpectExec(`INSERT INTO detections`).
		WithArgs(
			detection.CameraID,
			detection.Timestamp,
			detection.Label,
			detection.Confidence,
			sqlmock.AnyArg(), // bbox JSON
			sql.NullInt64{Int64: 3, Valid: true},
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.InsertDetection(context.Background(), detection)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDetection_WithoutTrackID(t *testing.T) {
	db, mock, repo := setupDetectionRepo(t)
	defer db.Close()

	detection := &models.Detection{
		CameraID:   "cam-1",
		Timestamp:  time.Now(),
		Label:      "car",
		Confidence: 0.6,
		BBox:       models.BBox{X1: 0, Y1: 0, X2: 100, Y2: 50},
	}

	mock.ExpectExec(`INSERT INTO detections`).
		WithArgs(
			detection.CameraID,
			detection.Timestamp,
			detection.Label,
			detection.Confidence,
			sqlmock.AnyArg(),
			sql.NullInt64{}, // track_id 为 NULL
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.InsertDetection(context.Background(), detection)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDetection_MissingCameraID(t *testing.T) {
	db, _, repo := setupDetectionRepo(t)
	defer db.Close()

	err := repo.InsertDetection(context.Background(), &models.Detection{Label: "person"})
	assert.Error(t, err)
}

func TestListDetections_NewestFirst(t *testing.T) {
	db, mock, repo := setupDetectionRepo(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "camera_id", "ts", "label", "confidence", "bbox", "track_id"}).
		AddRow(2, "cam-1", now, "person", 0.9, []byte(`{"x1":0,"y1":0,"x2":10,"y2":10}`), sql.NullInt64{Int64: 1, Valid: true}).
		AddRow(1, "cam-1", now.Add(-time.Second), "person", 0.8, []byte(`{"x1":5,"y1":5,"x2":15,"y2":15}`), sql.NullInt64{})

	mock.ExpectQuery(`SELECT id, camera_id, ts`).
		WithArgs("cam-1", 10).
		WillReturnRows(rows)

	detections, err := repo.ListDetections(context.Background(), "cam-1", 10)
	require.NoError(t, err)
	require.Len(t, detections, 2)

	assert.Equal(t, int64(2), detections[0].ID)
	require.NotNil(t, detections[0].TrackID)
	assert.Equal(t, int64(1), *detections[0].TrackID)
	assert.Nil(t, detections[1].TrackID)
	assert.Equal(t, models.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}, detections[0].BBox)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDetections_DefaultLimit(t *testing.T) {
	db, mock, repo := setupDetectionRepo(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "camera_id", "ts", "label", "confidence", "bbox", "track_id"})

	// limit <= 0 时使用默认值 100
	mock.ExpectQuery(`SELECT id, camera_id, ts`).
		WithArgs("cam-1", 100).
		WillReturnRows(rows)

	detections, err := repo.ListDetections(context.Background(), "cam-1", 0)
	require.NoError(t, err)
	assert.Empty(t, detections)

	assert.NoError(t, mock.ExpectationsWereMet())
}
