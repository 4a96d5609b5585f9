package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	commonmqtt "wisefido-vision/internal/common/mqtt"
	"wisefido-vision/internal/config"
	"wisefido-vision/internal/models"
	"wisefido-vision/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Dispatcher 报警分发器
// 报警先落库（只追加），再执行各路尽力而为的副作用：
// Webhook 推送（有界队列）、Redis 最近报警缓存、MQTT 发布。
// 各路副作用互相独立，任何一路失败只记日志，不影响帧循环。
type Dispatcher struct {
	config      *config.Config
	alertRepo   *repository.AlertRepository
	redisClient *redis.Client
	mqttClient  *commonmqtt.Client
	snapshots   SnapshotStore
	logger      *zap.Logger

	httpClient *resty.Client
	queue      chan webhookJob
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

// webhookJob 一次 Webhook 推送任务
type webhookJob struct {
	url   string
	alert models.Alert
}

// NewDispatcher 创建报警分发器
// redisClient、mqttClient、snapshots 均可为 nil（对应副作用关闭）
func NewDispatcher(
	cfg *config.Config,
	alertRepo *repository.AlertRepository,
	redisClient *redis.Client,
	mqttClient *commonmqtt.Client,
	snapshots SnapshotStore,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		config:      cfg,
		alertRepo:   alertRepo,
		redisClient: redisClient,
		mqttClient:  mqttClient,
		snapshots:   snapshots,
		logger:      logger,
		httpClient: resty.New().
			SetTimeout(time.Duration(cfg.Vision.Dispatcher.WebhookTimeout) * time.Second).
			SetHeader("Content-Type", "application/json"),
		queue: make(chan webhookJob, cfg.Vision.Dispatcher.QueueSize),
	}
}

// Start 启动 Webhook 发送协程池
func (d *Dispatcher) Start(ctx context.Context) {
	workers := d.config.Vision.Dispatcher.WebhookWorkers
	if workers <= 0 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.webhookWorker(ctx)
	}

	d.logger.Info("Alert dispatcher started",
		zap.Int("webhook_workers", workers),
		zap.Int("queue_size", cap(d.queue)),
	)
}

// Stop 停止分发器（等待队列中的任务发完）
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
	d.logger.Info("Alert dispatcher stopped")
}

// Dispatch 分发一条报警事件
// frame 为触发报警的帧（可为 nil），用于快照存储
func (d *Dispatcher) Dispatch(ctx context.Context, alert models.Alert, camera models.CameraConfig, frame []byte) {
	// 1. 快照存储（可选）：成功则把快照URL写入载荷
	if d.snapshots != nil && len(frame) > 0 {
		d.attachSnapshot(ctx, &alert, frame)
	}

	// 2. 持久化（先落库；失败记日志丢弃，不中断其余分发）
	if err := d.alertRepo.InsertAlert(ctx, &alert); err != nil {
		d.logger.Error("Failed to persist alert",
			zap.String("camera_id", alert.CameraID),
			zap.String("event_type", alert.EventType),
			zap.Error(err),
		)
	}

	// 3. 更新 Redis 最近报警缓存
	if d.redisClient != nil {
		if err := d.cacheAlert(ctx, alert); err != nil {
			d.logger.Error("Failed to cache alert",
				zap.String("camera_id", alert.CameraID),
				zap.Error(err),
			)
		}
	}

	// 4. 发布到 MQTT
	if d.mqttClient != nil && d.config.Vision.Dispatcher.MQTTEnabled {
		if err := d.publishAlert(alert); err != nil {
			d.logger.Error("Failed to publish alert to MQTT",
				zap.String("camera_id", alert.CameraID),
				zap.Error(err),
			)
		}
	}

	// 5. Webhook 推送（有界队列，满则丢弃）
	if camera.Rules.WebhookURL != "" {
		select {
		case d.queue <- webhookJob{url: camera.Rules.WebhookURL, alert: alert}:
		default:
			d.logger.Warn("Webhook queue full, dropping alert",
				zap.String("camera_id", alert.CameraID),
				zap.String("event_id", alert.EventID),
			)
		}
	}
}

// attachSnapshot 上传帧快照并把URL合入报警载荷
func (d *Dispatcher) attachSnapshot(ctx context.Context, alert *models.Alert, frame []byte) {
	key := fmt.Sprintf("%s/%s.jpg", alert.CameraID, alert.EventID)
	url, err := d.snapshots.SaveSnapshot(ctx, key, frame, "image/jpeg")
	if err != nil {
		d.logger.Error("Failed to save alert snapshot",
			zap.String("camera_id", alert.CameraID),
			zap.String("event_id", alert.EventID),
			zap.Error(err),
		)
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(alert.Payload), &payload); err != nil {
		payload = make(map[string]interface{})
	}
	payload["snapshot_url"] = url

	b, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("Failed to merge snapshot url into payload",
			zap.Error(err),
		)
		return
	}
	alert.Payload = string(b)
}

// cacheAlert 把报警追加到相机的最近报警列表（带 TTL，定长裁剪）
func (d *Dispatcher) cacheAlert(ctx context.Context, alert models.Alert) error {
	key := fmt.Sprintf("%s%s%s",
		d.config.Vision.Dispatcher.AlertKeyPrefix,
		alert.CameraID,
		d.config.Vision.Dispatcher.AlertSuffix,
	)

	jsonData, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	maxCached := int64(d.config.Vision.Dispatcher.AlertMaxCached)
	if maxCached <= 0 {
		maxCached = 50
	}

	pipe := d.redisClient.TxPipeline()
	pipe.LPush(ctx, key, jsonData)
	pipe.LTrim(ctx, key, 0, maxCached-1)
	pipe.Expire(ctx, key, time.Duration(d.config.Vision.Dispatcher.AlertTTL)*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update alert cache: %w", err)
	}

	return nil
}

// publishAlert 把报警发布到 MQTT 主题
// 主题格式: {prefix}/{camera_id}/alerts/{event_type}
func (d *Dispatcher) publishAlert(alert models.Alert) error {
	topic := fmt.Sprintf("%s/%s/alerts/%s",
		d.config.Vision.Dispatcher.MQTTTopic,
		alert.CameraID,
		alert.EventType,
	)

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if err := d.mqttClient.Publish(topic, d.config.MQTT.QoS, false, payload); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	return nil
}
