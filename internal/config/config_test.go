package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 10s
database:
  driver: mysql
ai:
  writer:
    base_url: https://api.groq.com/openai/v1
    model: llama-3.3-70b-versatile
    max_tokens: 2048
  moderator:
    fail_open: true
story:
  max_retry: 5
  retry_backoff: 2s
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout.Duration() != 10*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 10s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want mysql", cfg.Database.Driver)
	}
	if cfg.AI.Writer.MaxTokens != 2048 {
		t.Errorf("Writer.MaxTokens = %d, want 2048", cfg.AI.Writer.MaxTokens)
	}
	if !cfg.AI.Moderator.FailOpen {
		t.Error("Moderator.FailOpen = false, want true")
	}
	if cfg.Story.MaxRetry != 5 {
		t.Errorf("Story.MaxRetry = %d, want 5", cfg.Story.MaxRetry)
	}
	if cfg.Story.RetryBackoff.Duration() != 2*time.Second {
		t.Errorf("Story.RetryBackoff = %v, want 2s", cfg.Story.RetryBackoff)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server: {}\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "file" {
		t.Errorf("Database.Driver = %q, want file", cfg.Database.Driver)
	}
	if cfg.Story.MaxRetry != 3 {
		t.Errorf("Story.MaxRetry = %d, want 3", cfg.Story.MaxRetry)
	}
	if cfg.Story.PriorChapterWindow != 2 {
		t.Errorf("Story.PriorChapterWindow = %d, want 2", cfg.Story.PriorChapterWindow)
	}
	if cfg.AI.Moderator.FailOpen {
		t.Error("Moderator.FailOpen defaults to true, want false")
	}
	if cfg.AI.Moderator.Model != cfg.AI.Writer.Model {
		t.Errorf("Moderator.Model = %q, want writer model %q", cfg.AI.Moderator.Model, cfg.AI.Writer.Model)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	if _, err := Load(writeConfig(t, "server:\n  read_timeout: soon\n")); err == nil {
		t.Error("Load() error = nil, want invalid duration error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() error = nil, want missing-file error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "env-groq")
	t.Setenv("STABLE_DIFFUSION_API_KEY", "env-sd")

	cfg, err := Load(writeConfig(t, "server: {}\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.AI.Writer.APIKey != "env-groq" {
		t.Errorf("Writer.APIKey = %q, want env value", cfg.AI.Writer.APIKey)
	}
	if cfg.AI.Moderator.APIKey != "env-groq" {
		t.Errorf("Moderator.APIKey = %q, want env value", cfg.AI.Moderator.APIKey)
	}
	if cfg.AI.Painter.APIKey != "env-sd" {
		t.Errorf("Painter.APIKey = %q, want env value", cfg.AI.Painter.APIKey)
	}
}

func TestLoad_FileKeyWinsOverEnv(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "env-groq")

	cfg, err := Load(writeConfig(t, `
ai:
  writer:
    api_key: file-key
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.Writer.APIKey != "file-key" {
		t.Errorf("Writer.APIKey = %q, want the file value to win", cfg.AI.Writer.APIKey)
	}
}
