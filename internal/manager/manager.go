package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"wisefido-vision/internal/capture"
	"wisefido-vision/internal/config"
	"wisefido-vision/internal/evaluator"
	"wisefido-vision/internal/models"
	"wisefido-vision/internal/repository"
	"wisefido-vision/internal/tracker"
	"wisefido-vision/internal/worker"

	"go.uber.org/zap"
)

// CameraStore 相机配置存储接口
type CameraStore interface {
	CreateCamera(ctx context.Context, camera *models.CameraConfig) error
	GetCamera(ctx context.Context, cameraID string) (*models.CameraConfig, error)
	ListCameras(ctx context.Context) ([]models.CameraConfig, error)
	SetEnabled(ctx context.Context, cameraID string, enabled bool) error
	UpdateRules(ctx context.Context, cameraID string, rules models.RuleConfig) error
	UpdateZones(ctx context.Context, cameraID string, zones []models.Zone) error
}

// CameraStatus 相机运行状态
type CameraStatus struct {
	CameraID    string       `json:"camera_id"`
	Exists      bool         `json:"exists"`
	Enabled     bool         `json:"enabled"`
	Running     bool         `json:"running"`
	State       worker.State `json:"state,omitempty"`
	LastFrameAt time.Time    `json:"last_frame_at,omitempty"`
	Reconnects  int          `json:"reconnects"`
}

// workerEntry 一个活跃相机的工作协程句柄
// 不变量：每个 camera_id 最多一个活跃条目
type workerEntry struct {
	worker *worker.Worker
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager 相机生命周期管理器
// 显式实例，持有全部相机的活跃配置与工作协程；
// 外部API层只接触本组件。
type Manager struct {
	config    *config.Config
	store     CameraStore
	newSource capture.Factory
	tracker   *tracker.Tracker
	engine    *evaluator.Engine
	processor *worker.Processor
	logger    *zap.Logger

	mu      sync.Mutex
	configs map[string]models.CameraConfig
	workers map[string]*workerEntry
}

// NewManager 创建相机管理器
func NewManager(
	cfg *config.Config,
	store CameraStore,
	det worker.Detector,
	trk *tracker.Tracker,
	engine *evaluator.Engine,
	detections worker.DetectionStore,
	dispatcher worker.AlertDispatcher,
	newSource capture.Factory,
	logger *zap.Logger,
) *Manager {
	m := &Manager{
		config:    cfg,
		store:     store,
		newSource: newSource,
		tracker:   trk,
		engine:    engine,
		logger:    logger,
		configs:   make(map[string]models.CameraConfig),
		workers:   make(map[string]*workerEntry),
	}
	// 帧处理管线的配置读取走管理器（规则变更下一帧生效）
	m.processor = worker.NewProcessor(det, trk, engine, detections, dispatcher, logger)
	return m
}

// GetConfig 实现 worker.ConfigProvider（每帧实时读取）
func (m *Manager) GetConfig(cameraID string) (models.CameraConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	camera, ok := m.configs[cameraID]
	return camera, ok
}

// CreateCamera 创建相机配置
// 相机ID已存在时返回 repository.ErrDuplicateCamera
func (m *Manager) CreateCamera(ctx context.Context, camera *models.CameraConfig) error {
	camera.Normalize(m.config.Vision.Worker.DefaultFPS, m.config.Vision.Detector.DefaultConfidence)

	if err := m.store.CreateCamera(ctx, camera); err != nil {
		return err
	}

	m.mu.Lock()
	m.configs[camera.CameraID] = *camera
	m.mu.Unlock()

	m.logger.Info("Camera created",
		zap.String("camera_id", camera.CameraID),
		zap.String("source_uri", camera.SourceURI),
	)
	return nil
}

// StartCamera 启动相机工作协程（幂等）
// 已在运行时直接返回成功，不创建第二个工作协程
func (m *Manager) StartCamera(ctx context.Context, cameraID string) error {
	m.mu.Lock()
	if _, running := m.workers[cameraID]; running {
		m.mu.Unlock()
		m.logger.Debug("Camera already running",
			zap.String("camera_id", cameraID),
		)
		return nil
	}
	m.mu.Unlock()

	// 启动时从存储加载最新配置
	camera, err := m.store.GetCamera(ctx, cameraID)
	if err != nil {
		return err
	}
	camera.Normalize(m.config.Vision.Worker.DefaultFPS, m.config.Vision.Detector.DefaultConfidence)

	source, err := m.newSource(camera.SourceURI)
	if err != nil {
		return err
	}

	// 重启清空内存状态：跟踪表与停留表不跨重启保留
	m.tracker.Reset(cameraID)
	m.engine.ResetCamera(cameraID)

	backoff := time.Duration(m.config.Vision.Worker.ReconnectBackoff) * time.Second
	w := worker.New(cameraID, source, m.processor, m, backoff, m.logger)

	// 工作协程生命周期独立于调用方上下文
	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	if _, running := m.workers[cameraID]; running {
		// 并发启动竞争：保持单工作协程不变量
		m.mu.Unlock()
		cancel()
		source.Close()
		return nil
	}
	m.configs[cameraID] = *camera
	m.workers[cameraID] = &workerEntry{
		worker: w,
		cancel: cancel,
		done:   done,
	}
	m.mu.Unlock()

	go func() {
		defer close(done)
		w.Run(workerCtx)
	}()

	if err := m.store.SetEnabled(ctx, cameraID, true); err != nil {
		m.logger.Error("Failed to mark camera enabled",
			zap.String("camera_id", cameraID),
			zap.Error(err),
		)
	}

	m.logger.Info("Camera started",
		zap.String("camera_id", cameraID),
	)
	return nil
}

// StopCamera 停止相机工作协程
// 发出取消信号后最多等待配置的超时时间，超时即返回
// （底层读取仍阻塞时存在已记录的泄漏风险）。
// 无论是否找到工作协程都标记相机为禁用。
func (m *Manager) StopCamera(ctx context.Context, cameraID string) error {
	// 未知相机直接返回 NotFound
	if _, err := m.store.GetCamera(ctx, cameraID); err != nil {
		return err
	}

	m.mu.Lock()
	entry, ok := m.workers[cameraID]
	if ok {
		delete(m.workers, cameraID)
	}
	m.mu.Unlock()

	if ok {
		entry.cancel()

		timeout := time.Duration(m.config.Vision.Worker.StopTimeout) * time.Second
		select {
		case <-entry.done:
			m.logger.Info("Camera worker exited gracefully",
				zap.String("camera_id", cameraID),
			)
		case <-time.After(timeout):
			m.logger.Warn("Camera worker did not exit within timeout, proceeding",
				zap.String("camera_id", cameraID),
				zap.Duration("timeout", timeout),
			)
		}
	}

	if err := m.store.SetEnabled(ctx, cameraID, false); err != nil {
		m.logger.Error("Failed to mark camera disabled",
			zap.String("camera_id", cameraID),
			zap.Error(err),
		)
	}

	m.logger.Info("Camera stopped",
		zap.String("camera_id", cameraID),
	)
	return nil
}

// Status 查询相机状态
// 相机不存在时返回 Exists=false，不报错
func (m *Manager) Status(ctx context.Context, cameraID string) (*CameraStatus, error) {
	camera, err := m.store.GetCamera(ctx, cameraID)
	if err != nil {
		if errors.Is(err, repository.ErrCameraNotFound) {
			return &CameraStatus{CameraID: cameraID}, nil
		}
		return nil, err
	}

	status := &CameraStatus{
		CameraID: cameraID,
		Exists:   true,
		Enabled:  camera.Enabled,
	}

	m.mu.Lock()
	entry, running := m.workers[cameraID]
	m.mu.Unlock()

	if running {
		snap := entry.worker.Snapshot()
		status.Running = true
		status.State = snap.State
		status.LastFrameAt = snap.LastFrameAt
		status.Reconnects = snap.Reconnects
	}

	return status, nil
}

// ListCameras 获取全部相机配置
func (m *Manager) ListCameras(ctx context.Context) ([]models.CameraConfig, error) {
	return m.store.ListCameras(ctx)
}

// UpdateRules 更新相机规则
// 持久化后刷新活跃配置，下一帧生效，无需重启
func (m *Manager) UpdateRules(ctx context.Context, cameraID string, rules models.RuleConfig) error {
	if err := m.store.UpdateRules(ctx, cameraID, rules); err != nil {
		return err
	}
	return m.refreshConfig(ctx, cameraID)
}

// UpdateZones 更新相机区域
// 持久化后刷新活跃配置，下一帧生效，无需重启
func (m *Manager) UpdateZones(ctx context.Context, cameraID string, zones []models.Zone) error {
	if err := m.store.UpdateZones(ctx, cameraID, zones); err != nil {
		return err
	}
	return m.refreshConfig(ctx, cameraID)
}

// refreshConfig 从存储重新加载配置到活跃配置表
func (m *Manager) refreshConfig(ctx context.Context, cameraID string) error {
	camera, err := m.store.GetCamera(ctx, cameraID)
	if err != nil {
		return err
	}
	camera.Normalize(m.config.Vision.Worker.DefaultFPS, m.config.Vision.Detector.DefaultConfidence)

	m.mu.Lock()
	m.configs[cameraID] = *camera
	m.mu.Unlock()
	return nil
}

// RunningCameras 返回所有活跃工作协程的状态快照
func (m *Manager) RunningCameras() []worker.Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]worker.Status, 0, len(m.workers))
	for _, entry := range m.workers {
		out = append(out, entry.worker.Snapshot())
	}
	return out
}

// Shutdown 停止所有相机工作协程
func (m *Manager) Shutdown() {
	m.mu.Lock()
	entries := make(map[string]*workerEntry, len(m.workers))
	for id, entry := range m.workers {
		entries[id] = entry
	}
	m.workers = make(map[string]*workerEntry)
	m.mu.Unlock()

	timeout := time.Duration(m.config.Vision.Worker.StopTimeout) * time.Second
	for cameraID, entry := range entries {
		entry.cancel()
		select {
		case <-entry.done:
		case <-time.After(timeout):
			m.logger.Warn("Camera worker did not exit during shutdown",
				zap.String("camera_id", cameraID),
			)
		}
	}

	m.logger.Info("Camera manager shutdown complete",
		zap.Int("stopped", len(entries)),
	)
}
