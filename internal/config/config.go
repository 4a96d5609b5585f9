package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Config 视频监控服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// 视频监控服务特定配置
	Vision struct {
		// 检测能力（外部模型服务）
		Detector struct {
			BaseURL           string  // 检测服务地址，如 "http://localhost:9000"
			Timeout           int     // 请求超时（秒），默认 10秒
			DefaultConfidence float64 // 默认置信度阈值
		}

		// 相机工作协程配置
		Worker struct {
			ReconnectBackoff int     // 重连退避间隔（秒），固定间隔，默认 5秒
			StopTimeout      int     // 停止相机时等待工作协程退出的超时（秒），默认 3秒
			DefaultFPS       float64 // 采样帧率默认值
		}

		// 报警分发配置
		Dispatcher struct {
			WebhookTimeout int // Webhook 请求超时（秒），默认 5秒
			WebhookWorkers int // Webhook 发送协程数量，默认 4
			QueueSize      int // Webhook 队列容量（队列满则丢弃），默认 256

			// Redis 报警缓存配置
			AlertKeyPrefix string // 报警缓存键前缀，如 "vision:camera:"
			AlertSuffix    string // 报警缓存键后缀，如 ":alerts"
			AlertTTL       int    // 报警缓存 TTL（秒），默认 300秒
			AlertMaxCached int    // 每个相机缓存的最近报警数量，默认 50

			// MQTT 报警发布配置
			MQTTEnabled bool   // 是否发布报警到 MQTT
			MQTTTopic   string // 报警主题前缀，如 "vision/cameras"
		}

		// 快照存储配置（MinIO，可选）
		Snapshot struct {
			Enabled       bool
			Endpoint      string
			AccessKey     string
			SecretKey     string
			Bucket        string
			UseSSL        bool
			PublicBaseURL string
		}

		// 状态发布配置
		Status struct {
			Interval  int    // 状态发布间隔（秒），默认 30秒
			KeyPrefix string // 状态缓存键前缀，如 "vision:camera:"
			KeySuffix string // 状态缓存键后缀，如 ":status"
		}
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = 5432
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "owlrd")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", ""), 25)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", ""), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-vision")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	// 检测服务配置
	cfg.Vision.Detector.BaseURL = getEnv("DETECTOR_BASE_URL", "http://localhost:9000")
	cfg.Vision.Detector.Timeout = 10
	cfg.Vision.Detector.DefaultConfidence = 0.5

	// 工作协程配置
	cfg.Vision.Worker.ReconnectBackoff = 5
	cfg.Vision.Worker.StopTimeout = 3
	cfg.Vision.Worker.DefaultFPS = 2.0

	// 报警分发配置
	cfg.Vision.Dispatcher.WebhookTimeout = 5
	cfg.Vision.Dispatcher.WebhookWorkers = 4
	cfg.Vision.Dispatcher.QueueSize = 256
	cfg.Vision.Dispatcher.AlertKeyPrefix = getEnv("CACHE_ALERT_PREFIX", "vision:camera:")
	cfg.Vision.Dispatcher.AlertSuffix = ":alerts"
	cfg.Vision.Dispatcher.AlertTTL = 300
	cfg.Vision.Dispatcher.AlertMaxCached = 50
	cfg.Vision.Dispatcher.MQTTEnabled = getEnv("ALERT_MQTT_ENABLED", "false") == "true"
	cfg.Vision.Dispatcher.MQTTTopic = getEnv("ALERT_MQTT_TOPIC", "vision/cameras")

	// 快照存储配置
	cfg.Vision.Snapshot.Enabled = getEnv("SNAPSHOT_ENABLED", "false") == "true"
	cfg.Vision.Snapshot.Endpoint = getEnv("MINIO_ENDPOINT", "localhost:9000")
	cfg.Vision.Snapshot.AccessKey = getEnv("MINIO_ACCESS_KEY", "")
	cfg.Vision.Snapshot.SecretKey = getEnv("MINIO_SECRET_KEY", "")
	cfg.Vision.Snapshot.Bucket = getEnv("MINIO_BUCKET", "vision-snapshots")
	cfg.Vision.Snapshot.UseSSL = getEnv("MINIO_USE_SSL", "false") == "true"
	cfg.Vision.Snapshot.PublicBaseURL = getEnv("MINIO_PUBLIC_BASE_URL", "")

	// 状态发布配置
	cfg.Vision.Status.Interval = 30
	cfg.Vision.Status.KeyPrefix = getEnv("CACHE_STATUS_PREFIX", "vision:camera:")
	cfg.Vision.Status.KeySuffix = ":status"

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
