package detector

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Result 检测服务响应
type Result struct {
	Model     string   `json:"model"`
	Timestamp string   `json:"timestamp"`
	Objects   []Object `json:"objects"`
}

// Object 单个检测目标
type Object struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"` // [x1, y1, x2, y2]
}

// Client 检测能力HTTP客户端
// 检测模型是外部服务：帧字节进，目标列表出。
// 服务不可用或响应异常时降级为空目标列表，检测失败不允许中断帧循环。
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建检测客户端
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// Detect 对一帧图像执行目标检测
// frame 为空时直接返回空结果；传输或解析错误返回 error，
// 调用方按"降级为空检测集"处理。
func (c *Client) Detect(ctx context.Context, frame []byte, confidenceThreshold float64) (*Result, error) {
	if len(frame) == 0 {
		return &Result{}, nil
	}

	var result Result
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFileReader("frame", "frame.jpg", bytes.NewReader(frame)).
		SetMultipartFormData(map[string]string{
			"confidence": strconv.FormatFloat(confidenceThreshold, 'f', -1, 64),
		}).
		SetResult(&result).
		ForceContentType("application/json").
		Post("/detect")

	if err != nil {
		return nil, fmt.Errorf("detection request failed: %w", err)
	}

	if resp.IsError() {
		// 响应体截断后带入错误信息用于排查
		snippet := resp.Body()
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, fmt.Errorf("detection service returned status %d: %s", resp.StatusCode(), string(snippet))
	}

	c.logger.Debug("Detection completed",
		zap.String("model", result.Model),
		zap.Int("object_count", len(result.Objects)),
	)

	return &result, nil
}
