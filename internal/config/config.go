// Load envs from .env
// Load YAML config
// Override with env vars
// Provide default values
// Validate config

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	domainerrors "go-crowdworks-watcher/internal/errors"
	"go-crowdworks-watcher/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

// Delays are the fixed settle waits inserted after navigation and form
// interaction. They are waits, not retries.
type Delays struct {
	PageSettle   time.Duration `yaml:"page_settle"`
	FormDelay    time.Duration `yaml:"form_delay"`
	SubmitDelay  time.Duration `yaml:"submit_delay"`
	SearchSettle time.Duration `yaml:"search_settle"`
	DetailSettle time.Duration `yaml:"detail_settle"`
	DetailJitter time.Duration `yaml:"detail_jitter"`
}

type Config struct {
	//Marketplace
	Email    string `yaml:"crowdworks_email" env:"CROWDWORKS_EMAIL"`
	Password string `yaml:"crowdworks_password" env:"CROWDWORKS_PASSWORD"`
	BaseURL  string `yaml:"base_url"`
	Headless *bool  `yaml:"headless"`
	Delays   Delays `yaml:"delays"`
	// download Chromium on start, for fresh hosts
	InstallBrowser bool `yaml:"install_browser"`

	//LLM
	APIKey            string `yaml:"api_key" env:"OPENAI_API_KEY"`
	LLMBaseURL        string `yaml:"llm_base_url" env:"LLM_BASE_URL"`
	PromptPath        string `yaml:"prompt_path"`
	FilterConcurrency int    `yaml:"filter_concurrency"`

	//Paths
	DataDir       string `yaml:"data_dir"`
	LogPath       string `yaml:"log_path"`
	ErrorPagePath string `yaml:"error_page_path"`
	ScreenshotDir string `yaml:"screenshot_dir"`

	//Scheduling
	Schedule string `yaml:"schedule"`

	//Optional sinks
	DatabaseURL    string `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL       string `yaml:"redis_url" env:"REDIS_URL"`
	TelegramToken  string `yaml:"telegram_token" env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID int64  `yaml:"telegram_chat_id" env:"TELEGRAM_CHAT_ID"`

	ServerPort string `yaml:"server_port" env:"PORT"`
	Debug      bool   `yaml:"debug"`

	path string
}

// Load reads .env, the YAML file at path (DefaultPath when empty), applies
// environment overrides and fills defaults. A missing YAML file is not an
// error; a malformed one is.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath
	}
	cfg := &Config{path: path}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, domainerrors.Config("could not read "+path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domainerrors.Config("error parsing "+path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Reload re-reads the same sources Load used for c.
func (c *Config) Reload() (*Config, error) {
	return Load(c.path)
}

func (c *Config) applyEnv() error {
	overrides := map[string]*string{
		"CROWDWORKS_EMAIL":    &c.Email,
		"CROWDWORKS_PASSWORD": &c.Password,
		"OPENAI_API_KEY":      &c.APIKey,
		"LLM_BASE_URL":        &c.LLMBaseURL,
		"DATABASE_URL":        &c.DatabaseURL,
		"REDIS_URL":           &c.RedisURL,
		"TELEGRAM_BOT_TOKEN":  &c.TelegramToken,
		"PORT":                &c.ServerPort,
	}
	for key, field := range overrides {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return domainerrors.Config("invalid TELEGRAM_CHAT_ID", err)
		}
		c.TelegramChatID = id
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://crowdworks.jp"
	}
	if c.Headless == nil {
		c.Headless = boolPtr(true)
	}
	if c.LLMBaseURL == "" {
		c.LLMBaseURL = "https://api.openai.com/v1"
	}
	if c.PromptPath == "" {
		c.PromptPath = "prompt.txt"
	}
	if c.FilterConcurrency <= 0 {
		c.FilterConcurrency = 1
	}
	if c.DataDir == "" {
		c.DataDir = "crawled_data"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/crawler.log"
	}
	if c.ErrorPagePath == "" {
		c.ErrorPagePath = "error_page.html"
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = "logs/screenshots"
	}
	if c.Schedule == "" {
		c.Schedule = "@every 1h"
	}
	if c.ServerPort == "" {
		c.ServerPort = "8080"
	}

	d := &c.Delays
	setDefault(&d.PageSettle, 2*time.Second)
	setDefault(&d.FormDelay, time.Second)
	setDefault(&d.SubmitDelay, 5*time.Second)
	setDefault(&d.SearchSettle, 5*time.Second)
	setDefault(&d.DetailSettle, 3*time.Second)
	setDefault(&d.DetailJitter, 2*time.Second)
}

// Validate checks the fields the crawler cannot run without.
func (c *Config) Validate() error {
	if c.Email == "" || c.Password == "" {
		return domainerrors.Config("CROWDWORKS_EMAIL and CROWDWORKS_PASSWORD are required", nil)
	}
	return nil
}

func (c *Config) IsHeadless() bool {
	return c.Headless == nil || *c.Headless
}

// DefaultFilterConfig is used whenever the prompt file is missing or incomplete.
var DefaultFilterConfig = models.FilterConfig{
	Model:       "gpt-4o-mini",
	Prompt:      "予算が10,000以上のもののみピックする",
	Temperature: 0,
	MaxTokens:   100,
}

// LoadFilterConfig reads the JSON filter config at path. All four keys must be
// present; otherwise DefaultFilterConfig is returned along with the reason.
func LoadFilterConfig(path string) (models.FilterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultFilterConfig, fmt.Errorf("failed to read filter config: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return DefaultFilterConfig, fmt.Errorf("failed to parse filter config: %w", err)
	}
	for _, key := range []string{"model", "prompt", "temperature", "max_tokens"} {
		if _, ok := raw[key]; !ok {
			return DefaultFilterConfig, fmt.Errorf("filter config is missing %q", key)
		}
	}

	var fc models.FilterConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return DefaultFilterConfig, fmt.Errorf("failed to decode filter config: %w", err)
	}
	return fc, nil
}

func setDefault(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}

func boolPtr(b bool) *bool {
	return &b
}
