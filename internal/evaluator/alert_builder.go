package evaluator

import (
	"encoding/json"
	"time"

	"wisefido-vision/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// buildAlert 构建报警事件
// payload 序列化失败时降级为空对象，报警本身不丢弃
func (e *Engine) buildAlert(cameraID, eventType, severity string, ts time.Time, payload interface{}) models.Alert {
	payloadJSON := "{}"
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			e.logger.Error("Failed to marshal alert payload",
				zap.String("camera_id", cameraID),
				zap.String("event_type", eventType),
				zap.Error(err),
			)
		} else {
			payloadJSON = string(b)
		}
	}

	return models.Alert{
		EventID:   uuid.New().String(),
		CameraID:  cameraID,
		Timestamp: ts,
		EventType: eventType,
		Severity:  severity,
		Payload:   payloadJSON,
	}
}
