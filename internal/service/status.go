package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	commonmqtt "wisefido-vision/internal/common/mqtt"
	"wisefido-vision/internal/config"
	"wisefido-vision/internal/manager"
	"wisefido-vision/internal/worker"

	"github.com/go-redis/redis/v8"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// cameraStatusPayload 单相机状态负载
type cameraStatusPayload struct {
	CameraID    string `json:"camera_id"`
	State       string `json:"state"`
	LastFrameAt string `json:"last_frame_at,omitempty"`
	Reconnects  int    `json:"reconnects"`
	UpdatedAt   string `json:"updated_at"`
}

// servicePayload 服务级状态负载（进程指标）
type servicePayload struct {
	Service        string  `json:"service"`
	RunningCameras int     `json:"running_cameras"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemRSSBytes    uint64  `json:"mem_rss_bytes"`
	UpdatedAt      string  `json:"updated_at"`
}

// StatusPublisher 周期性发布相机与服务状态
// 写入 Redis（带 TTL），可选发布到 MQTT
type StatusPublisher struct {
	config      *config.Config
	manager     *manager.Manager
	redisClient *redis.Client
	mqttClient  *commonmqtt.Client
	proc        *process.Process
	logger      *zap.Logger
}

// NewStatusPublisher 创建状态发布器
func NewStatusPublisher(
	cfg *config.Config,
	mgr *manager.Manager,
	redisClient *redis.Client,
	mqttClient *commonmqtt.Client,
	logger *zap.Logger,
) *StatusPublisher {
	// 进程句柄获取失败时只丢掉进程指标，状态发布照常
	var proc *process.Process
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		proc = p
	}

	return &StatusPublisher{
		config:      cfg,
		manager:     mgr,
		redisClient: redisClient,
		mqttClient:  mqttClient,
		proc:        proc,
		logger:      logger,
	}
}

// Run 运行状态发布循环，直到上下文取消
func (p *StatusPublisher) Run(ctx context.Context) {
	interval := time.Duration(p.config.Vision.Status.Interval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	p.logger.Info("Status publisher started",
		zap.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Status publisher stopped")
			return
		case <-ticker.C:
			p.publish(ctx)
		}
	}
}

// publish 发布一轮状态
func (p *StatusPublisher) publish(ctx context.Context) {
	now := time.Now().UTC().Format(time.RFC3339)
	ttl := 2 * time.Duration(p.config.Vision.Status.Interval) * time.Second

	statuses := p.manager.RunningCameras()
	for _, st := range statuses {
		if err := p.publishCamera(ctx, st, now, ttl); err != nil {
			// 单相机发布失败不影响其他相机
			p.logger.Warn("Failed to publish camera status",
				zap.String("camera_id", st.CameraID),
				zap.Error(err),
			)
		}
	}

	if err := p.publishService(ctx, len(statuses), now, ttl); err != nil {
		p.logger.Warn("Failed to publish service status",
			zap.Error(err),
		)
	}
}

func (p *StatusPublisher) publishCamera(ctx context.Context, st worker.Status, now string, ttl time.Duration) error {
	payload := cameraStatusPayload{
		CameraID:   st.CameraID,
		State:      string(st.State),
		Reconnects: st.Reconnects,
		UpdatedAt:  now,
	}
	if !st.LastFrameAt.IsZero() {
		payload.LastFrameAt = st.LastFrameAt.UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal camera status: %w", err)
	}

	key := p.config.Vision.Status.KeyPrefix + st.CameraID + p.config.Vision.Status.KeySuffix
	if err := p.redisClient.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache camera status: %w", err)
	}

	if p.mqttClient != nil && p.config.Vision.Dispatcher.MQTTEnabled {
		topic := fmt.Sprintf("%s/%s/status", p.config.Vision.Dispatcher.MQTTTopic, st.CameraID)
		if err := p.mqttClient.Publish(topic, p.config.MQTT.QoS, true, data); err != nil {
			return fmt.Errorf("failed to publish camera status: %w", err)
		}
	}

	return nil
}

func (p *StatusPublisher) publishService(ctx context.Context, running int, now string, ttl time.Duration) error {
	payload := servicePayload{
		Service:        "wisefido-vision",
		RunningCameras: running,
		UpdatedAt:      now,
	}

	if p.proc != nil {
		if cpu, err := p.proc.CPUPercent(); err == nil {
			payload.CPUPercent = cpu
		}
		if memInfo, err := p.proc.MemoryInfo(); err == nil {
			payload.MemRSSBytes = memInfo.RSS
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal service status: %w", err)
	}

	key := p.config.Vision.Status.KeyPrefix + "service" + p.config.Vision.Status.KeySuffix
	if err := p.redisClient.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache service status: %w", err)
	}

	return nil
}
