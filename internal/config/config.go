package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env            string
	ServiceName    string
	ServiceVersion string

	DatabaseURL string

	SupabaseURL            string
	SupabaseJWTSecret      string
	SupabaseServiceRoleKey string

	RedisURL string

	OpenAIKey string
	GroqKey   string

	WhisperServerURL string
	WhisperXURL      string
	WhisperXAPIKey   string

	TavilyAPIKey string

	OtelExporterOTLPEndpoint string
	OtelExporterOTLPHeaders  string
	SentryDSN                string

	Port string

	Transcription TranscriptionConfig
	Enhancement   EnhancementConfig
	Worker        WorkerConfig
}

type TranscriptionConfig struct {
	Provider string `yaml:"provider"`
}

type EnhancementConfig struct {
	Provider         string `yaml:"provider"`
	Model            string `yaml:"model"`
	FallbackEnabled  bool   `yaml:"fallback_enabled"`
	FallbackProvider string `yaml:"fallback_provider"`
}

// WorkerConfig tunes the background worker. Timeouts are given as Go
// duration strings in YAML ("10m", "1h30m").
type WorkerConfig struct {
	Concurrency     int
	SoftTimeout     time.Duration
	HardTimeout     time.Duration
	ProgressChannel string
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:                      os.Getenv("ENV"),
		ServiceName:              os.Getenv("SERVICE_NAME"),
		ServiceVersion:           os.Getenv("SERVICE_VERSION"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		SupabaseURL:              os.Getenv("SUPABASE_URL"),
		SupabaseJWTSecret:        os.Getenv("SUPABASE_JWT_SECRET"),
		SupabaseServiceRoleKey:   os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		RedisURL:                 os.Getenv("REDIS_URL"),
		OpenAIKey:                os.Getenv("OPENAI_API_KEY"),
		GroqKey:                  os.Getenv("GROQ_API_KEY"),
		WhisperServerURL:         os.Getenv("WHISPER_SERVER_URL"),
		WhisperXURL:              os.Getenv("WHISPERX_URL"),
		WhisperXAPIKey:           os.Getenv("WHISPERX_API_KEY"),
		TavilyAPIKey:             os.Getenv("TAVILY_API_KEY"),
		OtelExporterOTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelExporterOTLPHeaders:  os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		SentryDSN:                os.Getenv("SENTRY_DSN"),
		Port:                     os.Getenv("PORT"),
	}

	// Load from YAML file if available
	if err := cfg.LoadFromYAML("config.yaml"); err != nil {
		return nil, fmt.Errorf("failed to load YAML config: %w", err)
	}

	// Set defaults
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "mp4totext-backend"
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "1.0.0"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.WhisperServerURL == "" {
		cfg.WhisperServerURL = "http://localhost:8178"
	}

	cfg.SetTranscriptionDefaults()
	cfg.SetEnhancementDefaults()
	cfg.SetWorkerDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

func (c *Config) LoadFromYAML(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is not an error
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlConfig struct {
		Transcription TranscriptionConfig `yaml:"transcription"`
		Enhancement   EnhancementConfig   `yaml:"enhancement"`
		Worker        struct {
			Concurrency     int    `yaml:"concurrency"`
			SoftTimeout     string `yaml:"soft_timeout"`
			HardTimeout     string `yaml:"hard_timeout"`
			ProgressChannel string `yaml:"progress_channel"`
		} `yaml:"worker"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlConfig.Transcription.Provider != "" {
		c.Transcription.Provider = yamlConfig.Transcription.Provider
	}
	if yamlConfig.Enhancement.Provider != "" {
		c.Enhancement.Provider = yamlConfig.Enhancement.Provider
	}
	if yamlConfig.Enhancement.Model != "" {
		c.Enhancement.Model = yamlConfig.Enhancement.Model
	}
	if yamlConfig.Enhancement.FallbackEnabled {
		c.Enhancement.FallbackEnabled = yamlConfig.Enhancement.FallbackEnabled
	}
	if yamlConfig.Enhancement.FallbackProvider != "" {
		c.Enhancement.FallbackProvider = yamlConfig.Enhancement.FallbackProvider
	}
	if yamlConfig.Worker.Concurrency > 0 {
		c.Worker.Concurrency = yamlConfig.Worker.Concurrency
	}
	if yamlConfig.Worker.SoftTimeout != "" {
		d, err := time.ParseDuration(yamlConfig.Worker.SoftTimeout)
		if err != nil {
			return fmt.Errorf("invalid worker soft_timeout: %w", err)
		}
		c.Worker.SoftTimeout = d
	}
	if yamlConfig.Worker.HardTimeout != "" {
		d, err := time.ParseDuration(yamlConfig.Worker.HardTimeout)
		if err != nil {
			return fmt.Errorf("invalid worker hard_timeout: %w", err)
		}
		c.Worker.HardTimeout = d
	}
	if yamlConfig.Worker.ProgressChannel != "" {
		c.Worker.ProgressChannel = yamlConfig.Worker.ProgressChannel
	}

	return nil
}

func (c *Config) SetTranscriptionDefaults() {
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = "whisper"
	}
}

func (c *Config) SetEnhancementDefaults() {
	if c.Enhancement.Provider == "" {
		c.Enhancement.Provider = "openai"
	}
	if !c.Enhancement.FallbackEnabled {
		c.Enhancement.FallbackEnabled = true
	}
	if c.Enhancement.FallbackProvider == "" {
		c.Enhancement.FallbackProvider = "groq"
	}
}

func (c *Config) SetWorkerDefaults() {
	if c.Worker.Concurrency == 0 {
		if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Worker.Concurrency = n
			}
		}
	}
	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = 10
	}
	if c.Worker.SoftTimeout == 0 {
		c.Worker.SoftTimeout = 10 * time.Minute
	}
	if c.Worker.HardTimeout == 0 {
		c.Worker.HardTimeout = 30 * time.Minute
	}
	if c.Worker.ProgressChannel == "" {
		c.Worker.ProgressChannel = "transcription:progress"
	}
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.Worker.SoftTimeout >= c.Worker.HardTimeout {
		return fmt.Errorf("worker soft_timeout must be shorter than hard_timeout")
	}
	return nil
}
