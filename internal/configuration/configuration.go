package configuration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/malonaz/multichat/internal/file"
)

// defaultRateLimit in requests per second per API key.
const defaultRateLimit = 2

var defaultConfig = Config{
	Port:           3000,
	RequestTimeout: 60,
	DefaultModel:   "gpt-4o-mini",

	Logging: LoggingConfig{
		Level:  "info",
		Format: "console",
	},

	Database: DatabaseConfig{
		Driver: "json",
		Path:   "./data/database.json",
	},

	Generation: GenerationConfig{
		PollinationsURL:    "https://image.pollinations.ai/prompt",
		StableDiffusionURL: "https://api-inference.huggingface.co/models/stabilityai/stable-diffusion-2-1",
		Width:              1024,
		Height:             1024,
		HistoryWindow:      10,
	},

	Gateway: GatewayConfig{
		UpstreamURL:    "https://openrouter.ai/api/v1/chat/completions",
		RateLimitBurst: 10,
		Models: []string{
			"gpt-4o-mini",
			"gpt-4o",
			"claude-3-5-sonnet",
			"gemini-2.0-flash",
			"deepseek-v3",
			"flux",
			"stable-diffusion",
		},
	},

	Client: ClientConfig{
		ServerURL:          "http://localhost:3000",
		SessionFile:        "~/.config/multichat/session.json",
		PrimaryProxyURL:    "https://api.onlysq.ru/ai/openai",
		SecondaryProxyURL:  "https://openrouter.ai/api/v1",
		PublicInferenceURL: "https://text.pollinations.ai/openai",
		PublicModel:        "openai",
	},
}

// Config holds configuration for multichat.
type Config struct {
	Port             int    `json:"port" env:"PORT"`
	TelegramBotToken string `json:"telegram_bot_token" env:"TELEGRAM_BOT_TOKEN"`
	// Timeout in seconds applied to outbound provider requests.
	RequestTimeout int    `json:"request_timeout" env:"MULTICHAT_REQUEST_TIMEOUT"`
	DefaultModel   string `json:"default_model" env:"MULTICHAT_DEFAULT_MODEL"`

	Logging    LoggingConfig    `json:"logging"`
	Database   DatabaseConfig   `json:"database"`
	Generation GenerationConfig `json:"generation"`
	Gateway    GatewayConfig    `json:"gateway"`
	Client     ClientConfig     `json:"client"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `json:"level" env:"MULTICHAT_LOG_LEVEL"`
	Format string `json:"format" env:"MULTICHAT_LOG_FORMAT"`
}

// DatabaseConfig holds store configuration.
type DatabaseConfig struct {
	// Either 'json' or 'sqlite'.
	Driver string `json:"driver" env:"MULTICHAT_DATABASE_DRIVER"`
	Path   string `json:"path" env:"MULTICHAT_DATABASE_PATH"`
}

// GenerationConfig holds image generation provider endpoints.
type GenerationConfig struct {
	PollinationsURL    string `json:"pollinations_url" env:"MULTICHAT_POLLINATIONS_URL"`
	StableDiffusionURL string `json:"stable_diffusion_url" env:"MULTICHAT_STABLE_DIFFUSION_URL"`
	Width              int    `json:"width"`
	Height             int    `json:"height"`
	// Number of trailing chat messages scanned for a prior generation prompt.
	HistoryWindow int `json:"history_window"`
}

// GatewayConfig holds configuration of the public API.
type GatewayConfig struct {
	UpstreamURL    string   `json:"upstream_url" env:"MULTICHAT_UPSTREAM_URL"`
	UpstreamAPIKey string   `json:"upstream_api_key" env:"MULTICHAT_UPSTREAM_API_KEY"`
	// RateLimit in requests per second per API key. Zero or less disables limiting.
	RateLimit      *float64 `json:"rate_limit"`
	RateLimitBurst int      `json:"rate_limit_burst"`
	Models         []string `json:"models"`
}

// ClientConfig holds configuration of the terminal client.
type ClientConfig struct {
	ServerURL          string `json:"server_url" env:"MULTICHAT_SERVER_URL"`
	SessionFile        string `json:"session_file" env:"MULTICHAT_SESSION_FILE"`
	PrimaryProxyURL    string `json:"primary_proxy_url" env:"MULTICHAT_PRIMARY_PROXY_URL"`
	PrimaryProxyAPIKey string `json:"primary_proxy_api_key" env:"MULTICHAT_PRIMARY_PROXY_API_KEY"`
	SecondaryProxyURL  string `json:"secondary_proxy_url" env:"MULTICHAT_SECONDARY_PROXY_URL"`
	PublicInferenceURL string `json:"public_inference_url" env:"MULTICHAT_PUBLIC_INFERENCE_URL"`
	PublicModel        string `json:"public_model" env:"MULTICHAT_PUBLIC_MODEL"`
	// SystemPrompt is a text/template with sprig functions. Empty selects the built-in prompt.
	SystemPrompt     string `json:"system_prompt,omitempty" env:"MULTICHAT_SYSTEM_PROMPT"`
	TelegramInitData string `json:"-" env:"TELEGRAM_INIT_DATA"`
}

// RequestsPerSecond returns the per-key rate limit, zero when unset.
func (g *GatewayConfig) RequestsPerSecond() float64 {
	if g.RateLimit == nil {
		return 0
	}
	return *g.RateLimit
}

// Timeout returns the outbound request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Default returns a copy of the default configuration.
func Default() *Config {
	config := defaultConfig
	config.Gateway.Models = append([]string(nil), defaultConfig.Gateway.Models...)
	rateLimit := float64(defaultRateLimit)
	config.Gateway.RateLimit = &rateLimit
	return &config
}

// Parse a configuration file, then apply '.env' and environment overrides.
// An empty path skips the file.
func Parse(path string) (*Config, error) {
	config := &Config{}
	if path != "" {
		var err error
		path, err = file.ExpandPath(path)
		if err != nil {
			return nil, errors.Wrap(err, "expanding path")
		}
		if err := initializeIfNotPresent(path); err != nil {
			return nil, errors.Wrap(err, "initializing configuration")
		}
		bytes, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "reading file")
		}
		if err = json.Unmarshal(bytes, config); err != nil {
			return nil, errors.Wrap(err, "unmarshaling into config")
		}
	}

	// Pointers set by the file are kept as is, so an explicit zero survives.
	if err := mergo.Merge(config, Default(), mergo.WithoutDereference); err != nil {
		return nil, errors.Wrap(err, "merging default config")
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, errors.Wrap(err, "loading .env")
	}
	if err := env.Parse(config); err != nil {
		return nil, errors.Wrap(err, "parsing environment")
	}

	for _, p := range []*string{&config.Database.Path, &config.Client.SessionFile} {
		expanded, err := file.ExpandPath(*p)
		if err != nil {
			return nil, errors.Wrap(err, "expanding path")
		}
		*p = expanded
	}
	return config, config.validate()
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "json", "sqlite":
	default:
		return errors.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Port)
	}
	return nil
}

func loadDotEnv(path string) error {
	ok, err := file.Exists(path)
	if err != nil || !ok {
		return err
	}
	return godotenv.Load(path)
}

// save a configuration file.
func (c *Config) save(path string) error {
	bytes, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	err = os.WriteFile(path, bytes, 0644)
	if err != nil {
		return errors.Wrap(err, "writing file")
	}

	return nil
}

// initializeIfNotPresent initializes a config if it does not exist.
func initializeIfNotPresent(path string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	// Create the directories.
	dir, _ := filepath.Split(path)
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "creating folders")
		}
	}

	if err := Default().save(path); err != nil {
		return errors.Wrap(err, "saving default config")
	}
	return nil
}
