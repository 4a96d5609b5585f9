package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"wisefido-vision/internal/detector"
	"wisefido-vision/internal/evaluator"
	"wisefido-vision/internal/models"
	"wisefido-vision/internal/tracker"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// scriptedSource 按脚本回放 Open/Read 结果的采集源
type scriptedSource struct {
	mu       sync.Mutex
	openErrs []error // 依次消费，耗尽后 Open 成功
	reads    int
	opens    int
	closes   int
	failRead int // 第 N 次 Read 返回错误（0 表示不失败）
	readErr  error
}

func (s *scriptedSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if len(s.openErrs) > 0 {
		err := s.openErrs[0]
		s.openErrs = s.openErrs[1:]
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *scriptedSource) Read(ctx context.Context) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	s.mu.Lock()
	s.reads++
	n := s.reads
	s.mu.Unlock()

	if s.failRead > 0 && n >= s.failRead {
		return nil, s.readErr
	}
	return []byte("frame"), nil
}

func (s *scriptedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *scriptedSource) stats() (opens, reads, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.reads, s.closes
}

// staticProvider 固定配置提供者
type staticProvider struct {
	mu      sync.Mutex
	configs map[string]models.CameraConfig
}

func (p *staticProvider) GetConfig(cameraID string) (models.CameraConfig, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	camera, ok := p.configs[cameraID]
	return camera, ok
}

func fastCamera(cameraID string) models.CameraConfig {
	// 高帧率让节流间隔足够短，测试跑得快
	return models.CameraConfig{CameraID: cameraID, FPS: 200}
}

func setupWorker(t *testing.T, source *scriptedSource, backoff time.Duration) (*Worker, *memDetectionStore) {
	det := &stubDetector{result: &detector.Result{
		Objects: []detector.Object{personObject(0, 0, 10, 10)},
	}}
	store := &memDetectionStore{}
	p := NewProcessor(det, tracker.New(), evaluator.NewEngine(zap.NewNop()), store, &memDispatcher{}, zap.NewNop())

	provider := &staticProvider{
		configs: map[string]models.CameraConfig{"cam-1": fastCamera("cam-1")},
	}
	return New("cam-1", source, p, provider, backoff, zap.NewNop()), store
}

// waitFor 轮询等待条件成立
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestWorker_ProcessesFramesUntilCancelled(t *testing.T) {
	source := &scriptedSource{}
	w, store := setupWorker(t, source, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	waitFor(t, 2*time.Second, func() bool {
		return len(store.all()) >= 3
	})

	snap := w.Snapshot()
	assert.Equal(t, StateStreaming, snap.State)
	assert.False(t, snap.LastFrameAt.IsZero())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	assert.Equal(t, StateStopped, w.Snapshot().State)
	_, _, closes := source.stats()
	assert.GreaterOrEqual(t, closes, 1)
}

func TestWorker_RetriesOpenWithFixedBackoff(t *testing.T) {
	source := &scriptedSource{
		openErrs: []error{errors.New("refused"), errors.New("refused")},
	}
	w, store := setupWorker(t, source, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// 两次失败后第三次连上并开始出帧
	waitFor(t, 2*time.Second, func() bool {
		return len(store.all()) >= 1
	})

	opens, _, _ := source.stats()
	assert.GreaterOrEqual(t, opens, 3)
}

func TestWorker_ReconnectsAfterReadFailure(t *testing.T) {
	source := &scriptedSource{
		failRead: 2,
		readErr:  errors.New("connection reset"),
	}
	w, _ := setupWorker(t, source, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	waitFor(t, 2*time.Second, func() bool {
		return w.Snapshot().Reconnects >= 1
	})

	// 读失败先释放句柄再重连
	_, _, closes := source.stats()
	assert.GreaterOrEqual(t, closes, 1)
}

func TestWorker_EOFTriggersReconnect(t *testing.T) {
	source := &scriptedSource{
		failRead: 1,
		readErr:  io.EOF,
	}
	w, _ := setupWorker(t, source, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// 流结束按读失败处理：无限重连
	waitFor(t, 2*time.Second, func() bool {
		return w.Snapshot().Reconnects >= 2
	})
}

func TestWorker_CancelDuringBackoff(t *testing.T) {
	source := &scriptedSource{
		openErrs: []error{
			errors.New("refused"), errors.New("refused"), errors.New("refused"),
			errors.New("refused"), errors.New("refused"), errors.New("refused"),
		},
	}
	// 长退避：取消必须能打断睡眠
	w, _ := setupWorker(t, source, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	waitFor(t, 2*time.Second, func() bool {
		opens, _, _ := source.stats()
		return opens >= 1
	})

	start := time.Now()
	cancel()
	select {
	case <-done:
		assert.Less(t, time.Since(start), 2*time.Second)
	case <-time.After(3 * time.Second):
		t.Fatal("cancel did not interrupt backoff sleep")
	}
}

func TestWorker_MissingConfigSkipsFrame(t *testing.T) {
	source := &scriptedSource{}
	det := &stubDetector{result: &detector.Result{}}
	store := &memDetectionStore{}
	p := NewProcessor(det, tracker.New(), evaluator.NewEngine(zap.NewNop()), store, &memDispatcher{}, zap.NewNop())

	// 配置表为空：帧被跳过，不进处理管线
	provider := &staticProvider{configs: map[string]models.CameraConfig{}}
	w := New("cam-1", source, p, provider, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	waitFor(t, 2*time.Second, func() bool {
		_, reads, _ := source.stats()
		return reads >= 1
	})

	assert.Empty(t, store.all())
}

func TestWorker_DefaultBackoffWhenNonPositive(t *testing.T) {
	w := New("cam-1", &scriptedSource{}, nil, nil, 0, zap.NewNop())
	assert.Equal(t, 5*time.Second, w.backoff)
}
