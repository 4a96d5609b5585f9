package worker

import (
	"context"
	"io"
	"sync"
	"time"

	"wisefido-vision/internal/capture"

	"go.uber.org/zap"
)

// State 工作协程状态
type State string

// 状态机：Stopped → Connecting → Streaming → Reconnecting ⇄ Streaming → Stopping → Stopped
const (
	StateStopped      State = "stopped"
	StateConnecting   State = "connecting"
	StateStreaming    State = "streaming"
	StateReconnecting State = "reconnecting"
	StateStopping     State = "stopping"
)

// Status 工作协程状态快照
type Status struct {
	CameraID    string    `json:"camera_id"`
	State       State     `json:"state"`
	LastFrameAt time.Time `json:"last_frame_at"`
	Reconnects  int       `json:"reconnects"`
}

// Worker 相机工作协程
// 独占一个相机的采集句柄，负责采集循环、重连策略和帧节流。
// 取消是协作式的：每轮循环顶部检查停止信号；
// 阻塞点只有帧读取、节流睡眠和重连退避睡眠，均可被取消打断。
type Worker struct {
	cameraID  string
	source    capture.Source
	processor *Processor
	provider  ConfigProvider
	backoff   time.Duration
	logger    *zap.Logger

	mu          sync.Mutex
	state       State
	lastFrameAt time.Time
	reconnects  int
}

// New 创建相机工作协程
func New(
	cameraID string,
	source capture.Source,
	processor *Processor,
	provider ConfigProvider,
	backoff time.Duration,
	logger *zap.Logger,
) *Worker {
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return &Worker{
		cameraID:  cameraID,
		source:    source,
		processor: processor,
		provider:  provider,
		backoff:   backoff,
		state:     StateStopped,
		logger:    logger,
	}
}

// Run 运行采集循环，直到上下文取消
// 连接失败按固定间隔无限重试（无指数退避、无上限）
func (w *Worker) Run(ctx context.Context) {
	defer func() {
		// 终态清理：无论处于哪个子状态都释放采集句柄
		w.setState(StateStopping)
		if err := w.source.Close(); err != nil {
			w.logger.Warn("Failed to close source",
				zap.String("camera_id", w.cameraID),
				zap.Error(err),
			)
		}
		w.setState(StateStopped)
		w.logger.Info("Camera worker stopped",
			zap.String("camera_id", w.cameraID),
		)
	}()

	w.logger.Info("Camera worker started",
		zap.String("camera_id", w.cameraID),
	)

	for {
		if ctx.Err() != nil {
			return
		}

		w.setState(StateConnecting)
		if err := w.source.Open(ctx); err != nil {
			w.logger.Warn("Failed to open source, retrying",
				zap.String("camera_id", w.cameraID),
				zap.Duration("backoff", w.backoff),
				zap.Error(err),
			)
			if !w.sleep(ctx, w.backoff) {
				return
			}
			continue
		}

		w.setState(StateStreaming)
		w.stream(ctx)

		if ctx.Err() != nil {
			return
		}

		// 读失败：句柄已释放，进入重连
		w.setState(StateReconnecting)
		w.incReconnects()
		if !w.sleep(ctx, w.backoff) {
			return
		}
	}
}

// stream 帧读取循环
// 读失败时释放句柄并返回（由外层进入重连）；
// 每个成功帧周期后按 1/fps 固定节流，不随处理耗时自适应。
func (w *Worker) stream(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := w.source.Read(ctx)
		if err != nil {
			if err == io.EOF {
				w.logger.Info("Stream ended",
					zap.String("camera_id", w.cameraID),
				)
			} else if ctx.Err() == nil {
				w.logger.Warn("Frame read failed",
					zap.String("camera_id", w.cameraID),
					zap.Error(err),
				)
			}
			w.source.Close()
			return
		}

		now := time.Now()
		w.setLastFrame(now)

		// 配置实时读取：规则/区域变更下一帧生效
		camera, ok := w.provider.GetConfig(w.cameraID)
		if !ok {
			w.logger.Warn("Camera config missing, skipping frame",
				zap.String("camera_id", w.cameraID),
			)
			if !w.sleep(ctx, time.Second) {
				return
			}
			continue
		}

		w.processor.ProcessFrame(ctx, w.cameraID, frame, now, camera)

		fps := camera.FPS
		if fps <= 0 {
			fps = 1
		}
		if !w.sleep(ctx, time.Duration(float64(time.Second)/fps)) {
			return
		}
	}
}

// sleep 可取消的睡眠；返回 false 表示上下文已取消
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Snapshot 返回当前状态快照（线程安全）
func (w *Worker) Snapshot() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{
		CameraID:    w.cameraID,
		State:       w.state,
		LastFrameAt: w.lastFrameAt,
		Reconnects:  w.reconnects,
	}
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = s
}

func (w *Worker) setLastFrame(t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastFrameAt = t
}

func (w *Worker) incReconnects() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reconnects++
}
