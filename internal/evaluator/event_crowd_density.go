package evaluator

import (
	"time"

	"wisefido-vision/internal/models"
)

// evaluateCrowdDensity 人群密度评估
// 本帧人员数量 ≥ crowd_threshold 时发出一条 medium 报警；
// 每个满足条件的帧各发一条，跨帧不去重。
func (e *Engine) evaluateCrowdDensity(cameraID string, detections []models.Detection, ts time.Time, camera models.CameraConfig) []models.Alert {
	threshold := camera.Rules.CrowdThreshold
	if threshold <= 0 {
		return nil
	}

	personCount := 0
	for i := range detections {
		if detections[i].IsPerson() {
			personCount++
		}
	}

	if personCount < threshold {
		return nil
	}

	alert := e.buildAlert(cameraID, models.EventCrowdDensity, models.SeverityMedium, ts, &models.CrowdPayload{
		PersonCount: personCount,
		Threshold:   threshold,
	})

	return []models.Alert{alert}
}
