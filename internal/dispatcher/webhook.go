package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// webhookBody Webhook 请求体
// 契约：{camera_id, ts, event_type, severity, payload}，无认证、无重试
type webhookBody struct {
	CameraID  string          `json:"camera_id"`
	Timestamp time.Time       `json:"ts"`
	EventType string          `json:"event_type"`
	Severity  string          `json:"severity"`
	Payload   json.RawMessage `json:"payload"`
}

// webhookWorker Webhook 发送协程
// 从队列取任务直到队列关闭或上下文取消；失败只记日志（尽力而为交付）
func (d *Dispatcher) webhookWorker(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-d.queue:
			if !ok {
				return
			}
			d.sendWebhook(ctx, job)
		}
	}
}

// sendWebhook 发送一次 Webhook 推送
func (d *Dispatcher) sendWebhook(ctx context.Context, job webhookJob) {
	payload := json.RawMessage(job.alert.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	body := webhookBody{
		CameraID:  job.alert.CameraID,
		Timestamp: job.alert.Timestamp,
		EventType: job.alert.EventType,
		Severity:  job.alert.Severity,
		Payload:   payload,
	}

	resp, err := d.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		Post(job.url)
	if err != nil {
		d.logger.Warn("Webhook dispatch failed",
			zap.String("url", job.url),
			zap.String("event_id", job.alert.EventID),
			zap.Error(err),
		)
		return
	}

	if resp.IsError() {
		d.logger.Warn("Webhook returned non-success status",
			zap.String("url", job.url),
			zap.String("event_id", job.alert.EventID),
			zap.Int("status", resp.StatusCode()),
		)
		return
	}

	d.logger.Debug("Webhook dispatched",
		zap.String("url", job.url),
		zap.String("event_id", job.alert.EventID),
	)
}
