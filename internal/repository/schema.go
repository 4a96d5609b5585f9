package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// 最小化建表语句（服务启动时执行，幂等）
const schema = `
CREATE TABLE IF NOT EXISTS cameras (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	source_uri TEXT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT FALSE,
	fps DOUBLE PRECISION NOT NULL DEFAULT 2.0,
	zones JSONB NOT NULL DEFAULT '[]',
	rules JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS detections (
	id BIGSERIAL PRIMARY KEY,
	camera_id TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	label TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	bbox JSONB NOT NULL,
	track_id BIGINT
);

CREATE INDEX IF NOT EXISTS idx_detections_camera_ts ON detections (camera_id, ts DESC);

CREATE TABLE IF NOT EXISTS alerts (
	id BIGSERIAL PRIMARY KEY,
	event_id TEXT NOT NULL,
	camera_id TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	event_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	payload JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_alerts_camera_ts ON alerts (camera_id, ts DESC);
`

// EnsureSchema 创建数据表（如不存在）
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
