package evaluator

import (
	"sync"
	"time"

	"wisefido-vision/internal/models"

	"go.uber.org/zap"
)

// Engine 行为规则评估引擎
// 每次调用无状态，只持有各相机的停留表（DwellTable）。
// 阈值在评估时刻从传入的相机配置读取，不做缓存。
type Engine struct {
	logger *zap.Logger

	mu sync.Mutex
	// 停留表：camera_id → (track_id, zone_id) → 进入时间
	dwell map[string]map[dwellKey]time.Time
	// 已触发停留报警的键（仅 rearm=once 策略使用）
	dwellFired map[string]map[dwellKey]bool
}

// dwellKey 停留表键
type dwellKey struct {
	TrackID int64
	ZoneID  string
}

// NewEngine 创建评估引擎
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		logger:     logger,
		dwell:      make(map[string]map[dwellKey]time.Time),
		dwellFired: make(map[string]map[dwellKey]bool),
	}
}

// Process 评估一帧已跟踪的检测结果，返回触发的报警事件列表
// 评估顺序：人群密度 → 接近 → 区域进入/停留
func (e *Engine) Process(cameraID string, detections []models.Detection, ts time.Time, camera models.CameraConfig) []models.Alert {
	var alerts []models.Alert

	// 评估人群密度
	alerts = append(alerts, e.evaluateCrowdDensity(cameraID, detections, ts, camera)...)

	// 评估人员接近
	alerts = append(alerts, e.evaluateProximity(cameraID, detections, ts, camera)...)

	// 评估区域进入/停留
	alerts = append(alerts, e.evaluateZones(cameraID, detections, ts, camera)...)

	if len(alerts) > 0 {
		e.logger.Debug("Behavior alerts emitted",
			zap.String("camera_id", cameraID),
			zap.Int("alert_count", len(alerts)),
		)
	}

	return alerts
}

// ResetCamera 清空指定相机的停留状态（相机重启时调用）
func (e *Engine) ResetCamera(cameraID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.dwell, cameraID)
	delete(e.dwellFired, cameraID)
}

// DwellEntries 返回指定相机停留表的快照（供状态查询使用）
func (e *Engine) DwellEntries(cameraID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.dwell[cameraID])
}
