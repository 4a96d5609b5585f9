package capture

import (
	"context"
	"fmt"
	"net/url"
)

// Source 视频源抽象（拉取模式）
// Open 打开视频源；Read 返回下一帧字节，流结束返回 io.EOF；
// Close 释放底层句柄。Read 的阻塞通过 Open 传入的上下文取消打断。
type Source interface {
	Open(ctx context.Context) error
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Factory 视频源构造函数类型（便于测试注入）
type Factory func(uri string) (Source, error)

// NewSource 根据 URI 方案创建视频源
// 目前支持 http/https（MJPEG 流）；其他方案由外部采集网关转码接入
func NewSource(uri string) (Source, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid source uri: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		return NewMJPEGSource(uri), nil
	default:
		return nil, fmt.Errorf("unsupported source scheme: %s", u.Scheme)
	}
}
