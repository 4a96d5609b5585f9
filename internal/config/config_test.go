package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 25, cfg.Database.MaxConns)
	assert.Equal(t, 5, cfg.Database.MaxIdle)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	assert.Equal(t, "http://localhost:9000", cfg.Vision.Detector.BaseURL)
	assert.Equal(t, 10, cfg.Vision.Detector.Timeout)
	assert.Equal(t, 0.5, cfg.Vision.Detector.DefaultConfidence)

	assert.Equal(t, 5, cfg.Vision.Worker.ReconnectBackoff)
	assert.Equal(t, 3, cfg.Vision.Worker.StopTimeout)
	assert.Equal(t, 2.0, cfg.Vision.Worker.DefaultFPS)

	assert.Equal(t, 4, cfg.Vision.Dispatcher.WebhookWorkers)
	assert.Equal(t, 256, cfg.Vision.Dispatcher.QueueSize)
	assert.Equal(t, "vision:camera:", cfg.Vision.Dispatcher.AlertKeyPrefix)
	assert.Equal(t, ":alerts", cfg.Vision.Dispatcher.AlertSuffix)
	assert.Equal(t, 50, cfg.Vision.Dispatcher.AlertMaxCached)
	assert.False(t, cfg.Vision.Dispatcher.MQTTEnabled)

	assert.False(t, cfg.Vision.Snapshot.Enabled)
	assert.Equal(t, 30, cfg.Vision.Status.Interval)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_MAX_CONNS", "40")
	t.Setenv("DB_MAX_IDLE", "8")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("DETECTOR_BASE_URL", "http://detector:8500")
	t.Setenv("ALERT_MQTT_ENABLED", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 40, cfg.Database.MaxConns)
	assert.Equal(t, 8, cfg.Database.MaxIdle)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, "http://detector:8500", cfg.Vision.Detector.BaseURL)
	assert.True(t, cfg.Vision.Dispatcher.MQTTEnabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestGetDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "secret",
		Database: "vision",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=secret dbname=vision sslmode=disable",
		cfg.GetDSN(),
	)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_CONFIG_KEY", "value")
	assert.Equal(t, "value", getEnv("TEST_CONFIG_KEY", "fallback"))
	assert.Equal(t, "fallback", getEnv("TEST_CONFIG_MISSING", "fallback"))
}

func TestParseInt(t *testing.T) {
	assert.Equal(t, 40, parseInt("40", 25))
	assert.Equal(t, 25, parseInt("", 25))
	assert.Equal(t, 25, parseInt("not-a-number", 25))
}
