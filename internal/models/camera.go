package models

import (
	"time"
)

// 停留报警重置策略
const (
	DwellRearmRepeat = "repeat" // 超过阈值后每帧重复报警（源系统行为）
	DwellRearmOnce   = "once"   // 每个 (track, zone) 只报一次，直到轨迹消失
)

// Point 多边形顶点（相机画面坐标系）
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Zone 监控区域（相机画面上的命名多边形）
type Zone struct {
	ZoneID  string  `json:"zone_id"`
	Name    string  `json:"name"`
	Polygon []Point `json:"polygon"`

	// 区域级停留阈值（秒），为空则使用相机默认值
	DwellThreshold *float64 `json:"dwell_threshold,omitempty"`
}

// RuleConfig 相机行为规则配置
type RuleConfig struct {
	ProximityThreshold  float64 `json:"proximity_threshold"`   // 接近报警距离阈值（像素）
	CrowdThreshold      int     `json:"crowd_threshold"`       // 人群密度报警人数阈值
	DwellThreshold      float64 `json:"dwell_threshold"`       // 默认停留阈值（秒）
	ConfidenceThreshold float64 `json:"confidence_threshold"`  // 检测置信度阈值
	WebhookURL          string  `json:"webhook_url,omitempty"` // 报警 Webhook 地址（可选）
	DwellRearmPolicy    string  `json:"dwell_rearm_policy,omitempty"`
}

// CameraConfig 相机配置（对应 cameras 表）
type CameraConfig struct {
	CameraID  string     `json:"camera_id" db:"id"`
	Name      string     `json:"name" db:"name"`
	SourceURI string     `json:"source_uri" db:"source_uri"`
	Enabled   bool       `json:"enabled" db:"enabled"`
	FPS       float64    `json:"fps" db:"fps"` // 目标采样帧率，必须 > 0
	Zones     []Zone     `json:"zones" db:"zones"`
	Rules     RuleConfig `json:"rules" db:"rules"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// Normalize 规范化配置（帧率、置信度阈值、停留策略默认值）
func (c *CameraConfig) Normalize(defaultFPS, defaultConfidence float64) {
	if c.FPS <= 0 {
		c.FPS = defaultFPS
	}
	if c.Rules.ConfidenceThreshold <= 0 {
		c.Rules.ConfidenceThreshold = defaultConfidence
	}
	if c.Rules.DwellRearmPolicy == "" {
		c.Rules.DwellRearmPolicy = DwellRearmRepeat
	}
}

// DwellThresholdFor 返回指定区域生效的停留阈值（秒）
// 优先使用区域级覆盖值，否则使用相机默认值
func (c *CameraConfig) DwellThresholdFor(zone Zone) float64 {
	if zone.DwellThreshold != nil {
		return *zone.DwellThreshold
	}
	return c.Rules.DwellThreshold
}
