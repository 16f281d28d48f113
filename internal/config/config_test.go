package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}
	return path
}

func TestLoadFromYAML(t *testing.T) {
	configPath := writeConfigFile(t, `transcription:
  provider: groq
enhancement:
  provider: groq
  model: llama-3.3-70b
worker:
  concurrency: 4
  soft_timeout: 5m
  hard_timeout: 20m
  progress_channel: jobs:progress`)

	cfg := &Config{}
	if err := cfg.LoadFromYAML(configPath); err != nil {
		t.Fatalf("Failed to load YAML config: %v", err)
	}

	if cfg.Transcription.Provider != "groq" {
		t.Errorf("Expected transcription provider 'groq', got '%s'", cfg.Transcription.Provider)
	}
	if cfg.Enhancement.Model != "llama-3.3-70b" {
		t.Errorf("Expected enhancement model 'llama-3.3-70b', got '%s'", cfg.Enhancement.Model)
	}
	if cfg.Worker.Concurrency != 4 {
		t.Errorf("Expected worker concurrency 4, got %d", cfg.Worker.Concurrency)
	}
	if cfg.Worker.SoftTimeout != 5*time.Minute {
		t.Errorf("Expected soft timeout 5m, got %v", cfg.Worker.SoftTimeout)
	}
	if cfg.Worker.HardTimeout != 20*time.Minute {
		t.Errorf("Expected hard timeout 20m, got %v", cfg.Worker.HardTimeout)
	}
	if cfg.Worker.ProgressChannel != "jobs:progress" {
		t.Errorf("Expected progress channel 'jobs:progress', got '%s'", cfg.Worker.ProgressChannel)
	}
}

func TestLoadFromYAMLPartial(t *testing.T) {
	// Only the provider is specified; defaults fill in the rest.
	configPath := writeConfigFile(t, `enhancement:
  provider: groq`)

	cfg := &Config{}
	cfg.SetEnhancementDefaults()
	if err := cfg.LoadFromYAML(configPath); err != nil {
		t.Fatalf("Failed to load YAML config: %v", err)
	}

	if cfg.Enhancement.Provider != "groq" {
		t.Errorf("Expected provider 'groq', got '%s'", cfg.Enhancement.Provider)
	}
	if cfg.Enhancement.FallbackEnabled != true {
		t.Errorf("Expected fallback_enabled true (default), got %v", cfg.Enhancement.FallbackEnabled)
	}
	if cfg.Enhancement.FallbackProvider != "groq" {
		t.Errorf("Expected fallback_provider 'groq' (default), got '%s'", cfg.Enhancement.FallbackProvider)
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetTranscriptionDefaults()
	cfg.SetEnhancementDefaults()
	cfg.SetWorkerDefaults()

	if cfg.Transcription.Provider != "whisper" {
		t.Errorf("Expected transcription provider 'whisper' (default), got '%s'", cfg.Transcription.Provider)
	}
	if cfg.Enhancement.Provider != "openai" {
		t.Errorf("Expected enhancement provider 'openai' (default), got '%s'", cfg.Enhancement.Provider)
	}
	if cfg.Worker.Concurrency != 10 {
		t.Errorf("Expected worker concurrency 10 (default), got %d", cfg.Worker.Concurrency)
	}
	if cfg.Worker.SoftTimeout != 10*time.Minute {
		t.Errorf("Expected soft timeout 10m (default), got %v", cfg.Worker.SoftTimeout)
	}
	if cfg.Worker.HardTimeout != 30*time.Minute {
		t.Errorf("Expected hard timeout 30m (default), got %v", cfg.Worker.HardTimeout)
	}
	if cfg.Worker.ProgressChannel != "transcription:progress" {
		t.Errorf("Expected progress channel 'transcription:progress' (default), got '%s'", cfg.Worker.ProgressChannel)
	}
}

func TestLoadFromYAMLFileNotFound(t *testing.T) {
	cfg := &Config{}
	// A missing config file is not an error; env vars alone are enough.
	if err := cfg.LoadFromYAML("non_existent_file.yaml"); err != nil {
		t.Errorf("Expected no error for non-existent file, got: %v", err)
	}
}

func TestLoadFromYAMLInvalidYAML(t *testing.T) {
	configPath := writeConfigFile(t, `worker:
  concurrency: [unclosed`)

	cfg := &Config{}
	if err := cfg.LoadFromYAML(configPath); err == nil {
		t.Error("Expected error for invalid YAML, got nil")
	}
}

func TestLoadFromYAMLInvalidDuration(t *testing.T) {
	configPath := writeConfigFile(t, `worker:
  soft_timeout: not-a-duration`)

	cfg := &Config{}
	if err := cfg.LoadFromYAML(configPath); err == nil {
		t.Error("Expected error for invalid duration, got nil")
	}
}

func TestValidateTimeoutOrdering(t *testing.T) {
	cfg := &Config{
		DatabaseURL:       "postgres://localhost/test",
		SupabaseJWTSecret: "secret",
		RedisURL:          "redis://localhost:6379",
	}
	cfg.SetWorkerDefaults()
	cfg.Worker.SoftTimeout = time.Hour
	cfg.Worker.HardTimeout = 30 * time.Minute

	if err := cfg.validate(); err == nil {
		t.Error("Expected error when soft_timeout >= hard_timeout, got nil")
	}
}

func TestValidateRequiredFields(t *testing.T) {
	cfg := &Config{}
	cfg.SetWorkerDefaults()
	if err := cfg.validate(); err == nil {
		t.Error("Expected error for missing DATABASE_URL, got nil")
	}
}
