package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	// DashScope (Aliyun) AI services
	AliyunAPIKey            string
	AliyunAPIBaseURL        string
	AliyunCompatibleBaseURL string
	InterpreterModel        string
	SynthesisModel          string

	// Design
	BaseImageURL string

	// Supabase storage for generated renders (optional)
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// Auth
	JWTSecret string

	// Database
	DatabaseURL string

	// Synthesis worker pool
	SynthesisWorkers   int
	SynthesisQueueSize int

	// Server
	Port        string
	Environment string
}

func Load() (*Config, error) {
	cfg := &Config{
		AliyunAPIKey:            getEnv("ALIYUN_API_KEY", ""),
		AliyunAPIBaseURL:        getEnv("ALIYUN_API_BASE_URL", "https://dashscope.aliyuncs.com/api/v1"),
		AliyunCompatibleBaseURL: getEnv("ALIYUN_COMPATIBLE_BASE_URL", "https://dashscope.aliyuncs.com/compatible-mode/v1"),
		InterpreterModel:        getEnv("INTERPRETER_MODEL", "qwen-plus"),
		SynthesisModel:          getEnv("SYNTHESIS_MODEL", "qwen-vl-max"),

		BaseImageURL: getEnv("BASE_IMAGE_URL", ""),

		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "design-renders"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		SynthesisWorkers:   getEnvInt("SYNTHESIS_WORKERS", 4),
		SynthesisQueueSize: getEnvInt("SYNTHESIS_QUEUE_SIZE", 64),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.AliyunAPIKey == "" {
		return fmt.Errorf("ALIYUN_API_KEY is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.BaseImageURL == "" {
		return fmt.Errorf("BASE_IMAGE_URL is required")
	}
	if c.SynthesisWorkers < 1 {
		return fmt.Errorf("SYNTHESIS_WORKERS must be at least 1")
	}
	return nil
}

// StorageConfigured reports whether render persistence is enabled.
func (c *Config) StorageConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
