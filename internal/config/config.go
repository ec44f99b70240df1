package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	RedisAddr     string
	RedisPassword string
	DataDir       string

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	LabelStudioURL   string
	LabelStudioToken string

	LLMProvider          string
	GeminiAPIKey         string
	DefaultLLMModel      string
	LLMTimeout           time.Duration
	LLMRequestsPerMinute int

	WorkerCount  int
	QueueName    string
	QueueBackend string
	JobRetention time.Duration

	Renderer         string
	PromptTextFormat string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func Load() Config {
	cfg := Config{
		AppEnv:        getenv("APP_ENV", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8081"),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		DataDir:       getenv("DATA_DIR", "./data"),

		SupabaseURL:        os.Getenv("NEXT_PUBLIC_SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:     getenv("SUPABASE_STORAGE_BUCKET", "predictions"),

		LabelStudioURL:   os.Getenv("LABEL_STUDIO_URL"),
		LabelStudioToken: os.Getenv("LABEL_STUDIO_TOKEN"),

		LLMProvider:          getenv("LLM_PROVIDER", "gemini"),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		DefaultLLMModel:      getenv("DEFAULT_LLM_MODEL", "gemini-1.5-flash"),
		LLMTimeout:           time.Duration(getenvInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
		LLMRequestsPerMinute: getenvInt("LLM_REQUESTS_PER_MINUTE", 0),

		WorkerCount:  getenvInt("WORKER_COUNT", 2),
		QueueName:    getenv("QUEUE_NAME", "prelabel"),
		QueueBackend: getenv("QUEUE_BACKEND", "asynq"),
		JobRetention: time.Duration(getenvInt("JOB_RETENTION_SECONDS", 3600)) * time.Second,

		Renderer:         getenv("RENDERER", "playwright"),
		PromptTextFormat: getenv("PROMPT_TEXT_FORMAT", "text"),
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects settings the process cannot start with.
func (c Config) Validate() error {
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount)
	}
	switch c.QueueBackend {
	case "asynq", "local":
	default:
		return fmt.Errorf("QUEUE_BACKEND must be asynq or local, got %q", c.QueueBackend)
	}
	switch c.Renderer {
	case "playwright", "static":
	default:
		return fmt.Errorf("RENDERER must be playwright or static, got %q", c.Renderer)
	}
	switch c.PromptTextFormat {
	case "text", "markdown":
	default:
		return fmt.Errorf("PROMPT_TEXT_FORMAT must be text or markdown, got %q", c.PromptTextFormat)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT_SECONDS must be positive")
	}
	if c.JobRetention <= 0 {
		return fmt.Errorf("JOB_RETENTION_SECONDS must be positive")
	}
	return nil
}
