package evaluator

import (
	"time"

	"wisefido-vision/internal/models"
)

// evaluateProximity 人员接近评估
// 对每个无序人员对计算检测框中心的欧氏距离，小于 proximity_threshold
// 则发出一条 low 报警；每帧每对各发一条。
// 复杂度 O(n²)，单帧人员数量预期很小，可以接受。
func (e *Engine) evaluateProximity(cameraID string, detections []models.Detection, ts time.Time, camera models.CameraConfig) []models.Alert {
	threshold := camera.Rules.ProximityThreshold
	if threshold <= 0 {
		return nil
	}

	var persons []*models.Detection
	for i := range detections {
		if detections[i].IsPerson() {
			persons = append(persons, &detections[i])
		}
	}
	if len(persons) < 2 {
		return nil
	}

	var alerts []models.Alert
	for i := 0; i < len(persons); i++ {
		for j := i + 1; j < len(persons); j++ {
			centerA := persons[i].BBox.Center()
			centerB := persons[j].BBox.Center()
			dist := distance(centerA, centerB)
			if dist >= threshold {
				continue
			}

			alerts = append(alerts, e.buildAlert(cameraID, models.EventProximity, models.SeverityLow, ts, &models.ProximityPayload{
				TrackA:    persons[i].TrackID,
				TrackB:    persons[j].TrackID,
				Distance:  dist,
				Threshold: threshold,
				CenterA:   centerA,
				CenterB:   centerB,
			}))
		}
	}

	return alerts
}
