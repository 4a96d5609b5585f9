package evaluator

import (
	"time"

	"wisefido-vision/internal/models"
)

// evaluateZones 区域进入/停留评估
// 对每个有 track_id 的检测，用检测框中心做多边形包含测试：
//   - (track, zone) 首次包含 → 发一条 medium zone_entry 并记录进入时间
//   - 已有进入记录且持续时间超过停留阈值 → 发 high dwell_time
//
// 停留报警的重置策略由相机配置决定：
//   - repeat：超过阈值后每个满足条件的帧都报（源系统的字面行为）
//   - once：每个 (track, zone) 只报一次
//
// 停留表只在相机重启时清空，轨迹离开区域不删除进入记录。
func (e *Engine) evaluateZones(cameraID string, detections []models.Detection, ts time.Time, camera models.CameraConfig) []models.Alert {
	if len(camera.Zones) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	table, ok := e.dwell[cameraID]
	if !ok {
		table = make(map[dwellKey]time.Time)
		e.dwell[cameraID] = table
	}
	fired, ok := e.dwellFired[cameraID]
	if !ok {
		fired = make(map[dwellKey]bool)
		e.dwellFired[cameraID] = fired
	}

	rearmOnce := camera.Rules.DwellRearmPolicy == models.DwellRearmOnce

	var alerts []models.Alert
	for i := range detections {
		det := &detections[i]
		if det.TrackID == nil {
			continue
		}
		center := det.BBox.Center()

		for _, zone := range camera.Zones {
			if !pointInPolygon(center, zone.Polygon) {
				continue
			}

			key := dwellKey{TrackID: *det.TrackID, ZoneID: zone.ZoneID}
			enteredAt, entered := table[key]
			if !entered {
				// 首次进入：记录进入时间并报 zone_entry
				table[key] = ts
				alerts = append(alerts, e.buildAlert(cameraID, models.EventZoneEntry, models.SeverityMedium, ts, &models.ZoneEntryPayload{
					TrackID:  *det.TrackID,
					ZoneID:   zone.ZoneID,
					ZoneName: zone.Name,
				}))
				continue
			}

			// 已在区域内：检查停留时长
			elapsed := ts.Sub(enteredAt).Seconds()
			threshold := camera.DwellThresholdFor(zone)
			if elapsed <= threshold {
				continue
			}
			if rearmOnce && fired[key] {
				continue
			}

			fired[key] = true
			alerts = append(alerts, e.buildAlert(cameraID, models.EventDwellTime, models.SeverityHigh, ts, &models.DwellPayload{
				TrackID:    *det.TrackID,
				ZoneID:     zone.ZoneID,
				ZoneName:   zone.Name,
				ElapsedSec: elapsed,
				Threshold:  threshold,
			}))
		}
	}

	return alerts
}
