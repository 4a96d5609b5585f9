package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"wisefido-vision/internal/models"

	"go.uber.org/zap"
)

// CameraRepository 相机配置仓库
type CameraRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCameraRepository 创建相机配置仓库
func NewCameraRepository(db *sql.DB, logger *zap.Logger) *CameraRepository {
	return &CameraRepository{
		db:     db,
		logger: logger,
	}
}

// CreateCamera 创建相机配置
// 相机ID已存在时返回 ErrDuplicateCamera（显式非 upsert 语义）
func (r *CameraRepository) CreateCamera(ctx context.Context, camera *models.CameraConfig) error {
	if camera == nil {
		return fmt.Errorf("camera is required")
	}
	if camera.CameraID == "" {
		return fmt.Errorf("camera_id is required")
	}

	zonesJSON, err := json.Marshal(camera.Zones)
	if err != nil {
		return fmt.Errorf("failed to marshal zones: %w", err)
	}
	rulesJSON, err := json.Marshal(camera.Rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	query := `
		INSERT INTO cameras (id, name, source_uri, enabled, fps, zones, rules, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		camera.CameraID,
		camera.Name,
		camera.SourceURI,
		camera.Enabled,
		camera.FPS,
		zonesJSON,
		rulesJSON,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create camera: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrDuplicateCamera
	}

	camera.CreatedAt = now
	camera.UpdatedAt = now
	return nil
}

// GetCamera 根据 camera_id 获取相机配置
func (r *CameraRepository) GetCamera(ctx context.Context, cameraID string) (*models.CameraConfig, error) {
	if cameraID == "" {
		return nil, fmt.Errorf("camera_id is required")
	}

	query := `
		SELECT id, name, source_uri, enabled, fps, zones, rules, created_at, updated_at
		FROM cameras
		WHERE id = $1
	`

	var camera models.CameraConfig
	var zonesJSON, rulesJSON []byte

	err := r.db.QueryRowContext(ctx, query, cameraID).Scan(
		&camera.CameraID,
		&camera.Name,
		&camera.SourceURI,
		&camera.Enabled,
		&camera.FPS,
		&zonesJSON,
		&rulesJSON,
		&camera.CreatedAt,
		&camera.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCameraNotFound
		}
		return nil, fmt.Errorf("failed to get camera: %w", err)
	}

	// 处理 JSONB 字段
	if len(zonesJSON) > 0 {
		if err := json.Unmarshal(zonesJSON, &camera.Zones); err != nil {
			return nil, fmt.Errorf("failed to unmarshal zones: %w", err)
		}
	}
	if len(rulesJSON) > 0 {
		if err := json.Unmarshal(rulesJSON, &camera.Rules); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rules: %w", err)
		}
	}

	return &camera, nil
}

// ListCameras 获取全部相机配置
func (r *CameraRepository) ListCameras(ctx context.Context) ([]models.CameraConfig, error) {
	query := `
		SELECT id, name, source_uri, enabled, fps, zones, rules, created_at, updated_at
		FROM cameras
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cameras: %w", err)
	}
	defer rows.Close()

	var cameras []models.CameraConfig
	for rows.Next() {
		var camera models.CameraConfig
		var zonesJSON, rulesJSON []byte

		if err := rows.Scan(
			&camera.CameraID,
			&camera.Name,
			&camera.SourceURI,
			&camera.Enabled,
			&camera.FPS,
			&zonesJSON,
			&rulesJSON,
			&camera.CreatedAt,
			&camera.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}

		if len(zonesJSON) > 0 {
			if err := json.Unmarshal(zonesJSON, &camera.Zones); err != nil {
				return nil, fmt.Errorf("failed to unmarshal zones: %w", err)
			}
		}
		if len(rulesJSON) > 0 {
			if err := json.Unmarshal(rulesJSON, &camera.Rules); err != nil {
				return nil, fmt.Errorf("failed to unmarshal rules: %w", err)
			}
		}

		cameras = append(cameras, camera)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cameras: %w", err)
	}

	return cameras, nil
}

// SetEnabled 更新相机启用标志
func (r *CameraRepository) SetEnabled(ctx context.Context, cameraID string, enabled bool) error {
	if cameraID == "" {
		return fmt.Errorf("camera_id is required")
	}

	query := `
		UPDATE cameras
		SET enabled = $2, updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, cameraID, enabled, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set enabled: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCameraNotFound
	}

	return nil
}

// UpdateRules 更新相机规则配置
func (r *CameraRepository) UpdateRules(ctx context.Context, cameraID string, rules models.RuleConfig) error {
	if cameraID == "" {
		return fmt.Errorf("camera_id is required")
	}

	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	query := `
		UPDATE cameras
		SET rules = $2, updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, cameraID, rulesJSON, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update rules: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCameraNotFound
	}

	return nil
}

// UpdateZones 更新相机区域配置
func (r *CameraRepository) UpdateZones(ctx context.Context, cameraID string, zones []models.Zone) error {
	if cameraID == "" {
		return fmt.Errorf("camera_id is required")
	}

	zonesJSON, err := json.Marshal(zones)
	if err != nil {
		return fmt.Errorf("failed to marshal zones: %w", err)
	}

	query := `
		UPDATE cameras
		SET zones = $2, updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, cameraID, zonesJSON, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update zones: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCameraNotFound
	}

	return nil
}
