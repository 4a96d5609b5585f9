package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-vision/internal/capture"
	"wisefido-vision/internal/common/database"
	commonmqtt "wisefido-vision/internal/common/mqtt"
	commonredis "wisefido-vision/internal/common/redis"
	"wisefido-vision/internal/config"
	"wisefido-vision/internal/detector"
	"wisefido-vision/internal/dispatcher"
	"wisefido-vision/internal/evaluator"
	"wisefido-vision/internal/manager"
	"wisefido-vision/internal/repository"
	"wisefido-vision/internal/tracker"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// VisionService 视频监控服务（整合各层）
type VisionService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *commonmqtt.Client
	logger      *zap.Logger

	// 各层组件
	cameraRepo    *repository.CameraRepository
	detectionRepo *repository.DetectionRepository
	alertRepo     *repository.AlertRepository
	tracker       *tracker.Tracker
	engine        *evaluator.Engine
	dispatcher    *dispatcher.Dispatcher
	manager       *manager.Manager
	status        *StatusPublisher
}

// NewVisionService 创建视频监控服务
func NewVisionService(cfg *config.Config, logger *zap.Logger) (*VisionService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, err
	}

	// 初始化数据库表结构
	ctx := context.Background()
	if err := repository.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	// 2. 连接 Redis
	redisClient := commonredis.NewRedisClient(&cfg.Redis)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT（未配置 broker 则跳过）
	var mqttClient *commonmqtt.Client
	if cfg.MQTT.Broker != "" {
		mqttClient, err = commonmqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			// MQTT 不可用时降级运行，报警仍走数据库
			logger.Error("Failed to connect MQTT, alert publish disabled",
				zap.String("broker", cfg.MQTT.Broker),
				zap.Error(err),
			)
			mqttClient = nil
		}
	}

	// 4. 创建 Repository 层
	cameraRepo := repository.NewCameraRepository(db, logger)
	detectionRepo := repository.NewDetectionRepository(db, logger)
	alertRepo := repository.NewAlertRepository(db, logger)

	// 5. 创建快照存储（可选）
	var snapshots dispatcher.SnapshotStore
	if cfg.Vision.Snapshot.Enabled {
		store, err := dispatcher.NewMinioStore(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to init snapshot store: %w", err)
		}
		snapshots = store
	}

	// 6. 创建检测/跟踪/评估/分发
	det := detector.NewClient(
		cfg.Vision.Detector.BaseURL,
		time.Duration(cfg.Vision.Detector.Timeout)*time.Second,
		logger,
	)
	trk := tracker.New()
	engine := evaluator.NewEngine(logger)
	disp := dispatcher.NewDispatcher(cfg, alertRepo, redisClient, mqttClient, snapshots, logger)

	// 7. 创建相机管理器
	mgr := manager.NewManager(
		cfg,
		cameraRepo,
		det,
		trk,
		engine,
		detectionRepo,
		disp,
		capture.NewSource,
		logger,
	)

	// 8. 创建状态发布器
	status := NewStatusPublisher(cfg, mgr, redisClient, mqttClient, logger)

	return &VisionService{
		config:        cfg,
		db:            db,
		redisClient:   redisClient,
		mqttClient:    mqttClient,
		logger:        logger,
		cameraRepo:    cameraRepo,
		detectionRepo: detectionRepo,
		alertRepo:     alertRepo,
		tracker:       trk,
		engine:        engine,
		dispatcher:    disp,
		manager:       mgr,
		status:        status,
	}, nil
}

// Manager 获取相机管理器（外部API层入口）
func (s *VisionService) Manager() *manager.Manager {
	return s.manager
}

// Start 启动服务
func (s *VisionService) Start(ctx context.Context) error {
	s.logger.Info("Starting vision service")

	// 启动 Webhook 发送协程池
	s.dispatcher.Start(ctx)

	// 自动恢复启用状态的相机
	cameras, err := s.cameraRepo.ListCameras(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cameras: %w", err)
	}
	for _, camera := range cameras {
		if !camera.Enabled {
			continue
		}
		if err := s.manager.StartCamera(ctx, camera.CameraID); err != nil {
			// 单个相机启动失败不影响其他相机
			s.logger.Error("Failed to start camera",
				zap.String("camera_id", camera.CameraID),
				zap.Error(err),
			)
			continue
		}
	}

	// 启动状态发布循环
	go s.status.Run(ctx)

	return nil
}

// Stop 停止服务
func (s *VisionService) Stop() error {
	s.logger.Info("Stopping vision service")

	// 先停相机，再停分发（报警队列排空后关闭）
	s.manager.Shutdown()
	s.dispatcher.Stop()

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	return nil
}
