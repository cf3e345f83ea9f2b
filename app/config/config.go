package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const (
	defaultPath            = "config.yaml"
	defaultListen          = ":8080"
	defaultSessionTTL      = 2 * time.Hour
	defaultCleanupInterval = 5 * time.Minute
	defaultBaseURL         = "https://api.openai.com/v1"
	defaultModel           = "gpt-4o-mini"
	defaultTimeout         = 60 * time.Second
	defaultMaxUploadBytes  = 8 << 20
)

type Config struct {
	Log     Log     `yaml:"log"`
	Server  Server  `yaml:"server"`
	OpenAI  OpenAI  `yaml:"openai"`
	Storage Storage `yaml:"storage"`
}

type Server struct {
	// Listen address of the HTTP server
	Listen string `yaml:"listen" example:":8080" validate:"required"`
	// Idle sessions are evicted after this duration
	SessionTTL time.Duration `yaml:"session_ttl" example:"2h" validate:"gt=0"`
	// How often idle sessions are evicted
	CleanupInterval time.Duration `yaml:"cleanup_interval" example:"5m" validate:"gt=0"`
	// Maximum size of an uploaded food photo
	MaxUploadBytes int `yaml:"max_upload_bytes" example:"8388608" validate:"gt=0"`
	// Set the Secure flag on the session cookie
	SecureCookie bool `yaml:"secure_cookie" example:"false"`
}

type OpenAI struct {
	Chat   ModelConfig `yaml:"chat" validate:"required"`
	Vision ModelConfig `yaml:"vision" validate:"required"`
}

type ModelConfig struct {
	// OpenAI base url
	BaseURL string `yaml:"base_url" example:"https://api.openai.com/v1" validate:"required,url"`
	// OpenAI token, sessions may supply their own when empty
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX"`
	// OpenAI model
	Model string `yaml:"model" example:"gpt-4o-mini" validate:"required"`
	// Request timeout
	Timeout time.Duration `yaml:"timeout" example:"60s" validate:"gt=0"`
	// Completion token limit, 0 means provider default
	MaxTokens int `yaml:"max_tokens" example:"1500" validate:"gte=0"`
	// Sampling temperature
	Temperature float64 `yaml:"temperature" example:"0.7" validate:"gte=0,lte=2"`
}

type Storage struct {
	// Path of the sqlite meal journal, journal is disabled when empty
	Path string `yaml:"path" example:"data/meals.db"`
}

type Log struct {
	// Minimum level of the console handler: debug, info, warn or error
	Level string `yaml:"level" example:"info" validate:"omitempty,oneof=debug info warn error"`
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

// Load reads the config file named by FITAGENT_CONFIG (config.yaml by default).
// A missing file is not an error: everything has a default and the API key may come from OPENAI_API_KEY.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, oops.Errorf("failed to load .env file: %w", err)
	}

	path := os.Getenv("FITAGENT_CONFIG")
	if path == "" {
		path = defaultPath
	}

	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	var result Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, oops.Errorf("failed to read config file: %w", err)
	default:
		if err = yaml.Unmarshal(data, &result); err != nil {
			return nil, oops.Errorf("failed to parse YAML config: %w", err)
		}
	}

	result.applyDefaults()

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err = validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = defaultListen
	}
	if c.Server.SessionTTL == 0 {
		c.Server.SessionTTL = defaultSessionTTL
	}
	if c.Server.CleanupInterval == 0 {
		c.Server.CleanupInterval = defaultCleanupInterval
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = defaultMaxUploadBytes
	}

	envToken := os.Getenv("OPENAI_API_KEY")
	for _, m := range []*ModelConfig{&c.OpenAI.Chat, &c.OpenAI.Vision} {
		if m.BaseURL == "" {
			m.BaseURL = defaultBaseURL
		}
		if m.Model == "" {
			m.Model = defaultModel
		}
		if m.Timeout == 0 {
			m.Timeout = defaultTimeout
		}
		if m.Token == "" {
			m.Token = envToken
		}
	}
}
