package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"WORKER_COUNT", "QUEUE_BACKEND", "RENDERER", "PROMPT_TEXT_FORMAT", "JOB_RETENTION_SECONDS", "LLM_TIMEOUT_SECONDS", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, "asynq", cfg.QueueBackend)
	assert.Equal(t, "playwright", cfg.Renderer)
	assert.Equal(t, time.Hour, cfg.JobRetention)
	assert.Equal(t, time.Minute, cfg.LLMTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("QUEUE_BACKEND", "local")
	t.Setenv("RENDERER", "static")
	t.Setenv("LLM_TIMEOUT_SECONDS", "5")

	cfg := Load()

	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, "local", cfg.QueueBackend)
	assert.Equal(t, "static", cfg.Renderer)
	assert.Equal(t, 5*time.Second, cfg.LLMTimeout)
}

func TestValidate(t *testing.T) {
	base := Config{
		RedisAddr:        "localhost:6379",
		WorkerCount:      2,
		QueueBackend:     "asynq",
		Renderer:         "static",
		PromptTextFormat: "text",
		JobRetention:     time.Minute,
		LLMTimeout:       time.Minute,
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.WorkerCount = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.QueueBackend = "kafka"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Renderer = "lynx"
	assert.Error(t, bad.Validate())

	bad = base
	bad.PromptTextFormat = "pdf"
	assert.Error(t, bad.Validate())

	bad = base
	bad.LLMTimeout = 0
	assert.Error(t, bad.Validate())
}
