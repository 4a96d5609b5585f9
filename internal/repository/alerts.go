package repository

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-vision/internal/models"

	"go.uber.org/zap"
)

// AlertRepository 报警事件仓库（只追加）
type AlertRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertRepository 创建报警事件仓库
func NewAlertRepository(db *sql.DB, logger *zap.Logger) *AlertRepository {
	return &AlertRepository{
		db:     db,
		logger: logger,
	}
}

// InsertAlert 写入一条报警事件
func (r *AlertRepository) InsertAlert(ctx context.Context, alert *models.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert is required")
	}
	if alert.CameraID == "" {
		return fmt.Errorf("camera_id is required")
	}
	if alert.EventID == "" {
		return fmt.Errorf("event_id is required")
	}

	payload := alert.Payload
	if payload == "" {
		payload = "{}"
	}

	query := `
		INSERT INTO alerts (event_id, camera_id, ts, event_type, severity, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		alert.EventID,
		alert.CameraID,
		alert.Timestamp,
		alert.EventType,
		alert.Severity,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	return nil
}

// ListAlerts 查询相机最近的报警事件（时间倒序，最多 limit 条）
func (r *AlertRepository) ListAlerts(ctx context.Context, cameraID string, limit int) ([]models.Alert, error) {
	if cameraID == "" {
		return nil, fmt.Errorf("camera_id is required")
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, event_id, camera_id, ts, event_type, severity, payload
		FROM alerts
		WHERE camera_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, cameraID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var alert models.Alert
		var payload sql.NullString

		if err := rows.Scan(
			&alert.ID,
			&alert.EventID,
			&alert.CameraID,
			&alert.Timestamp,
			&alert.EventType,
			&alert.Severity,
			&payload,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		if payload.Valid {
			alert.Payload = payload.String
		} else {
			alert.Payload = "{}"
		}

		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, nil
}
