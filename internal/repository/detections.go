package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"wisefido-vision/internal/models"

	"go.uber.org/zap"
)

// DetectionRepository 检测记录仓库（只追加）
type DetectionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDetectionRepository 创建检测记录仓库
func NewDetectionRepository(db *sql.DB, logger *zap.Logger) *DetectionRepository {
	return &DetectionRepository{
		db:     db,
		logger: logger,
	}
}

// InsertDetection 写入一条检测记录
func (r *DetectionRepository) InsertDetection(ctx context.Context, detection *models.Detection) error {
	if detection == nil {
		return fmt.Errorf("detection is required")
	}
	if detection.CameraID == "" {
		return fmt.Errorf("camera_id is required")
	}

	bboxJSON, err := json.Marshal(detection.BBox)
	if err != nil {
		return fmt.Errorf("failed to marshal bbox: %w", err)
	}

	query := `
		INSERT INTO detections (camera_id, ts, label, confidence, bbox, track_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	var trackID sql.NullInt64
	if detection.TrackID != nil {
		trackID = sql.NullInt64{Int64: *detection.TrackID, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, query,
		detection.CameraID,
		detection.Timestamp,
		detection.Label,
		detection.Confidence,
		bboxJSON,
		trackID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert detection: %w", err)
	}

	return nil
}

// ListDetections 查询相机最近的检测记录（时间倒序，最多 limit 条）
func (r *DetectionRepository) ListDetections(ctx context.Context, cameraID string, limit int) ([]models.Detection, error) {
	if cameraID == "" {
		return nil, fmt.Errorf("camera_id is required")
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, camera_id, ts, label, confidence, bbox, track_id
		FROM detections
		WHERE camera_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, cameraID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list detections: %w", err)
	}
	defer rows.Close()

	var detections []models.Detection
	for rows.Next() {
		var detection models.Detection
		var bboxJSON []byte
		var trackID sql.NullInt64

		if err := rows.Scan(
			&detection.ID,
			&detection.CameraID,
			&detection.Timestamp,
			&detection.Label,
			&detection.Confidence,
			&bboxJSON,
			&trackID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}

		if len(bboxJSON) > 0 {
			if err := json.Unmarshal(bboxJSON, &detection.BBox); err != nil {
				return nil, fmt.Errorf("failed to unmarshal bbox: %w", err)
			}
		}
		if trackID.Valid {
			detection.TrackID = &trackID.Int64
		}

		detections = append(detections, detection)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate detections: %w", err)
	}

	return detections, nil
}
