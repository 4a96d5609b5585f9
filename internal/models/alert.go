package models

import (
	"time"
)

// 报警事件类型
const (
	EventZoneEntry    = "zone_entry"
	EventProximity    = "proximity"
	EventDwellTime    = "dwell_time"
	EventCrowdDensity = "crowd_density"
)

// 报警级别
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Alert 报警事件（对应 alerts 表，只追加）
type Alert struct {
	ID        int64     `json:"id,omitempty" db:"id"`
	EventID   string    `json:"event_id" db:"event_id"`
	CameraID  string    `json:"camera_id" db:"camera_id"`
	Timestamp time.Time `json:"ts" db:"ts"`
	EventType string    `json:"event_type" db:"event_type"`
	Severity  string    `json:"severity" db:"severity"`
	Payload   string    `json:"payload" db:"payload"` // JSONB
}

// CrowdPayload 人群密度报警载荷
type CrowdPayload struct {
	PersonCount int    `json:"person_count"`
	Threshold   int    `json:"threshold"`
	SnapshotURL string `json:"snapshot_url,omitempty"`
}

// ProximityPayload 接近报警载荷
type ProximityPayload struct {
	TrackA      *int64  `json:"track_a,omitempty"`
	TrackB      *int64  `json:"track_b,omitempty"`
	Distance    float64 `json:"distance"`
	Threshold   float64 `json:"threshold"`
	CenterA     Point   `json:"center_a"`
	CenterB     Point   `json:"center_b"`
	SnapshotURL string  `json:"snapshot_url,omitempty"`
}

// ZoneEntryPayload 区域进入报警载荷
type ZoneEntryPayload struct {
	TrackID     int64  `json:"track_id"`
	ZoneID      string `json:"zone_id"`
	ZoneName    string `json:"zone_name,omitempty"`
	SnapshotURL string `json:"snapshot_url,omitempty"`
}

// DwellPayload 停留超时报警载荷
type DwellPayload struct {
	TrackID     int64   `json:"track_id"`
	ZoneID      string  `json:"zone_id"`
	ZoneName    string  `json:"zone_name,omitempty"`
	ElapsedSec  float64 `json:"elapsed_sec"`
	Threshold   float64 `json:"threshold_sec"`
	SnapshotURL string  `json:"snapshot_url,omitempty"`
}
