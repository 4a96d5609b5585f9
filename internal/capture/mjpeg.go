package capture

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

// MJPEGSource MJPEG-over-HTTP 视频源
// IP相机常见的 multipart/x-mixed-replace 流，每个 part 是一帧 JPEG。
type MJPEGSource struct {
	uri  string
	http *http.Client

	cancel context.CancelFunc
	resp   *http.Response
	reader *multipart.Reader
}

// NewMJPEGSource 创建 MJPEG 视频源
func NewMJPEGSource(uri string) *MJPEGSource {
	return &MJPEGSource{
		uri: uri,
		// 流式读取，不设置整体超时
		http: &http.Client{},
	}
}

// Open 建立到视频源的HTTP连接并解析 multipart 边界
func (s *MJPEGSource) Open(ctx context.Context) error {
	// 请求生命周期与视频源句柄绑定，Close 时取消
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, s.uri, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create stream request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("failed to parse content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("not an mjpeg stream: content-type %s", mediaType)
	}

	s.cancel = cancel
	s.resp = resp
	s.reader = multipart.NewReader(resp.Body, params["boundary"])
	return nil
}

// Read 读取下一帧；流结束返回 io.EOF
// 上下文取消时底层连接中断，读取随之返回错误
func (s *MJPEGSource) Read(ctx context.Context) ([]byte, error) {
	if s.reader == nil {
		return nil, fmt.Errorf("source not open")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	part, err := s.reader.NextPart()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read next frame: %w", err)
	}
	defer part.Close()

	frame, err := io.ReadAll(part)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame body: %w", err)
	}

	return frame, nil
}

// Close 释放视频源句柄（幂等）
func (s *MJPEGSource) Close() error {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.resp != nil {
		s.resp.Body.Close()
		s.resp = nil
	}
	s.reader = nil
	return nil
}
