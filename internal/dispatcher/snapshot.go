package dispatcher

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"wisefido-vision/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// SnapshotStore 报警帧快照存储接口
type SnapshotStore interface {
	// SaveSnapshot 保存一帧快照，返回可访问的对象URL
	SaveSnapshot(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// MinioStore 基于 MinIO 的快照存储
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL *url.URL
	useSSL  bool
	logger  *zap.Logger
}

// NewMinioStore 创建 MinIO 快照存储（bucket 不存在则创建）
func NewMinioStore(cfg *config.Config, logger *zap.Logger) (*MinioStore, error) {
	sn := cfg.Vision.Snapshot
	if sn.AccessKey == "" || sn.SecretKey == "" {
		return nil, fmt.Errorf("minio access key / secret key not configured")
	}

	cli, err := minio.New(sn.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(sn.AccessKey, sn.SecretKey, ""),
		Secure: sn.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 创建 bucket（如不存在）
	if err := cli.MakeBucket(ctx, sn.Bucket, minio.MakeBucketOptions{}); err != nil {
		exists, errBucketExists := cli.BucketExists(ctx, sn.Bucket)
		if errBucketExists != nil || !exists {
			return nil, fmt.Errorf("failed to create/verify bucket %s: %w", sn.Bucket, err)
		}
	}

	var base *url.URL
	if sn.PublicBaseURL != "" {
		base, err = url.Parse(sn.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid public base url: %w", err)
		}
	}

	return &MinioStore{
		client:  cli,
		bucket:  sn.Bucket,
		baseURL: base,
		useSSL:  sn.UseSSL,
		logger:  logger,
	}, nil
}

// SaveSnapshot 上传快照并返回对象URL
func (s *MinioStore) SaveSnapshot(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key = strings.TrimLeft(key, "/")

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to put snapshot object: %w", err)
	}

	return s.objectURL(key), nil
}

// objectURL 拼接对象的公开访问URL
func (s *MinioStore) objectURL(key string) string {
	if s.baseURL != nil {
		u := *s.baseURL
		u.Path = strings.TrimRight(u.Path, "/") + "/" + s.bucket + "/" + key
		return u.String()
	}

	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.client.EndpointURL().Host, s.bucket, key)
}
