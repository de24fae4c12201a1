package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s"
// or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	AI       AIConfig       `yaml:"ai"`
	Story    StoryConfig    `yaml:"story"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Driver string      `yaml:"driver"` // "file" or "mysql"
	File   FileConfig  `yaml:"file"`
	MySQL  MySQLConfig `yaml:"mysql"`
	Redis  RedisConfig `yaml:"redis"`
}

type FileConfig struct {
	Dir string `yaml:"dir"`
}

type MySQLConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	Username        string   `yaml:"username"`
	Password        string   `yaml:"password"`
	Database        string   `yaml:"database"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type AIConfig struct {
	Writer    WriterConfig    `yaml:"writer"`
	Moderator ModeratorConfig `yaml:"moderator"`
	Painter   PainterConfig   `yaml:"painter"`
}

// WriterConfig points at an OpenAI-compatible chat completion endpoint used
// for drafting chapter text.
type WriterConfig struct {
	BaseURL     string   `yaml:"base_url"`
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature float64  `yaml:"temperature"`
	Timeout     Duration `yaml:"timeout"`
}

// ModeratorConfig points at the judgment capability. It may share a backend
// with the writer but carries its own failure policy.
type ModeratorConfig struct {
	BaseURL     string   `yaml:"base_url"`
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	Temperature float64  `yaml:"temperature"`
	Timeout     Duration `yaml:"timeout"`
	// FailOpen accepts drafts when the judge errors. Off by default:
	// a children's-content gate fails closed.
	FailOpen bool `yaml:"fail_open"`
}

type PainterConfig struct {
	BaseURL   string   `yaml:"base_url"`
	APIKey    string   `yaml:"api_key"`
	Model     string   `yaml:"model"`
	OutputDir string   `yaml:"output_dir"`
	Width     int      `yaml:"width"`
	Height    int      `yaml:"height"`
	Timeout   Duration `yaml:"timeout"`
}

type StoryConfig struct {
	MaxRetry     int      `yaml:"max_retry"`
	RetryBackoff Duration `yaml:"retry_backoff"`
	// PriorChapterWindow bounds how many previous chapters are sent to the
	// judge for continuity.
	PriorChapterWindow int `yaml:"prior_chapter_window"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Load reads configuration from a YAML file and applies defaults and
// environment overrides for secrets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	return &cfg, nil
}

// Default returns a configuration usable without a config file, for the
// one-shot CLI.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(30 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "file"
	}
	if c.Database.File.Dir == "" {
		c.Database.File.Dir = "data/stories"
	}
	if c.AI.Writer.Model == "" {
		c.AI.Writer.Model = "llama-3.3-70b-versatile"
	}
	if c.AI.Writer.MaxTokens == 0 {
		c.AI.Writer.MaxTokens = 1024
	}
	if c.AI.Writer.Temperature == 0 {
		c.AI.Writer.Temperature = 0.7
	}
	if c.AI.Writer.Timeout == 0 {
		c.AI.Writer.Timeout = Duration(120 * time.Second)
	}
	if c.AI.Moderator.Model == "" {
		c.AI.Moderator.Model = c.AI.Writer.Model
	}
	if c.AI.Moderator.BaseURL == "" {
		c.AI.Moderator.BaseURL = c.AI.Writer.BaseURL
	}
	if c.AI.Moderator.Timeout == 0 {
		c.AI.Moderator.Timeout = Duration(60 * time.Second)
	}
	if c.AI.Painter.OutputDir == "" {
		c.AI.Painter.OutputDir = "data/images"
	}
	if c.AI.Painter.Width == 0 {
		c.AI.Painter.Width = 512
	}
	if c.AI.Painter.Height == 0 {
		c.AI.Painter.Height = 512
	}
	if c.AI.Painter.Timeout == 0 {
		c.AI.Painter.Timeout = Duration(60 * time.Second)
	}
	if c.Story.MaxRetry == 0 {
		c.Story.MaxRetry = 3
	}
	if c.Story.RetryBackoff == 0 {
		c.Story.RetryBackoff = Duration(time.Second)
	}
	if c.Story.PriorChapterWindow == 0 {
		c.Story.PriorChapterWindow = 2
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c *Config) applyEnv() {
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		if c.AI.Writer.APIKey == "" {
			c.AI.Writer.APIKey = key
		}
		if c.AI.Moderator.APIKey == "" {
			c.AI.Moderator.APIKey = key
		}
	}
	if key := os.Getenv("STABLE_DIFFUSION_API_KEY"); key != "" && c.AI.Painter.APIKey == "" {
		c.AI.Painter.APIKey = key
	}
}
