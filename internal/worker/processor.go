package worker

import (
	"context"
	"time"

	"wisefido-vision/internal/detector"
	"wisefido-vision/internal/evaluator"
	"wisefido-vision/internal/models"
	"wisefido-vision/internal/tracker"

	"go.uber.org/zap"
)

// Detector 检测能力接口（外部模型服务）
type Detector interface {
	Detect(ctx context.Context, frame []byte, confidenceThreshold float64) (*detector.Result, error)
}

// DetectionStore 检测记录持久化接口
type DetectionStore interface {
	InsertDetection(ctx context.Context, detection *models.Detection) error
}

// AlertDispatcher 报警分发接口
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alert models.Alert, camera models.CameraConfig, frame []byte)
}

// ConfigProvider 相机配置实时读取接口
// 工作协程每帧读取，规则/区域变更无需重启相机即可生效
type ConfigProvider interface {
	GetConfig(cameraID string) (models.CameraConfig, bool)
}

// Processor 帧处理管线
// 单帧流程：检测 → 落库 → 跟踪 → 行为评估 → 报警分发。
// 整条管线在帧边界捕获一切异常，单帧失败不终止工作协程。
type Processor struct {
	detector   Detector
	tracker    *tracker.Tracker
	engine     *evaluator.Engine
	detections DetectionStore
	dispatcher AlertDispatcher
	logger     *zap.Logger
}

// NewProcessor 创建帧处理管线
func NewProcessor(
	det Detector,
	trk *tracker.Tracker,
	engine *evaluator.Engine,
	detections DetectionStore,
	dispatcher AlertDispatcher,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		detector:   det,
		tracker:    trk,
		engine:     engine,
		detections: detections,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// ProcessFrame 处理一帧
// 帧边界的唯一兜底点：任何阶段 panic 都在这里恢复并记日志
func (p *Processor) ProcessFrame(ctx context.Context, cameraID string, frame []byte, ts time.Time, camera models.CameraConfig) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Frame processing panicked",
				zap.String("camera_id", cameraID),
				zap.Any("panic", r),
			)
		}
	}()

	// 1. 目标检测（失败降级为空检测集，检测永远不允许中断帧循环）
	result, err := p.detector.Detect(ctx, frame, camera.Rules.ConfidenceThreshold)
	if err != nil {
		p.logger.Warn("Detection failed, degrading to empty detection set",
			zap.String("camera_id", cameraID),
			zap.Error(err),
		)
		result = &detector.Result{}
	}

	// 2. 映射为检测记录
	detections := make([]models.Detection, 0, len(result.Objects))
	for _, obj := range result.Objects {
		detection := models.Detection{
			CameraID:   cameraID,
			Timestamp:  ts,
			Label:      obj.Class,
			Confidence: obj.Confidence,
			BBox: models.BBox{
				X1: obj.BBox[0],
				Y1: obj.BBox[1],
				X2: obj.BBox[2],
				Y2: obj.BBox[3],
			},
		}
		detections = append(detections, detection)
	}

	// 3. 跨帧跟踪（就地分配 track_id）
	p.tracker.Update(cameraID, detections)

	// 带 track_id 逐条落库（写失败记日志丢弃，不中断）
	for i := range detections {
		if err := p.detections.InsertDetection(ctx, &detections[i]); err != nil {
			p.logger.Error("Failed to persist detection",
				zap.String("camera_id", cameraID),
				zap.String("label", detections[i].Label),
				zap.Error(err),
			)
			// 继续处理，监控管线可用性优先于持久性
		}
	}

	// 4. 行为评估
	alerts := p.engine.Process(cameraID, detections, ts, camera)

	// 5. 报警分发
	for _, alert := range alerts {
		p.dispatcher.Dispatch(ctx, alert, camera, frame)
	}
}
