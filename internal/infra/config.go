package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"development" validate:"oneof=development test staging production cli"`
	LogLevel    string `env:"LOG_LEVEL"`
	Port        string `env:"PORT" envDefault:"11030" validate:"required,numeric"`
	DatabaseURL string `env:"DATABASE_URL" validate:"required"`
	RedisURL    string `env:"REDIS_URL"`
	GeoIPDBPath string `env:"GEOIP_DB_PATH"`
	StoragePath string `env:"STORAGE_PATH" envDefault:"./storage" validate:"required"`

	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"5s" validate:"gt=0"`
	PollMaxWait       time.Duration `env:"POLL_MAX_WAIT" envDefault:"0s" validate:"gte=0"`
	IdleInterval      time.Duration `env:"IDLE_INTERVAL" envDefault:"10s" validate:"gt=0"`
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY" envDefault:"1" validate:"min=1,max=64"`
	LeaseTTL          time.Duration `env:"LEASE_TTL" envDefault:"30m" validate:"gt=0"`

	DefaultVendor  string   `env:"DEFAULT_VENDOR" envDefault:"tensor_art" validate:"oneof=tensor_art civitai local"`
	PolicyVendor   string   `env:"POLICY_VENDOR" envDefault:"civitai" validate:"oneof=tensor_art civitai local"`
	PolicyKeywords []string `env:"POLICY_KEYWORDS" envSeparator:"," envDefault:"nsfw"`

	TensorArtEndpoint  string  `env:"TENSORART_ENDPOINT" envDefault:"https://ap-east-1.tensorart.cloud" validate:"omitempty,url"`
	TensorArtAPIKey    string  `env:"TENSORART_API_KEY"`
	CivitAIEndpoint    string  `env:"CIVITAI_ENDPOINT" envDefault:"https://orchestration.civitai.com" validate:"omitempty,url"`
	CivitAIAPIKey      string  `env:"CIVITAI_API_KEY"`
	LocalEndpoint      string  `env:"LOCAL_ENDPOINT" validate:"omitempty,url"`
	VendorProfilesPath string  `env:"VENDOR_PROFILES_PATH"`
	VendorRPS          float64 `env:"VENDOR_RPS" envDefault:"2" validate:"gt=0"`

	SlackAPIBaseURL  string        `env:"SLACK_API_BASE_URL" envDefault:"https://slack.com/api" validate:"url"`
	SignatureMaxSkew time.Duration `env:"SIGNATURE_MAX_SKEW" envDefault:"5m" validate:"gte=0"`

	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	RateLimitPerMin  int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120" validate:"gte=0"`
	CORSOrigins      []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// LoadConfig loads an optional .env file, parses the environment and validates the result.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.AppEnv = strings.ToLower(strings.TrimSpace(c.AppEnv))
	c.DefaultVendor = strings.ToLower(strings.TrimSpace(c.DefaultVendor))
	c.PolicyVendor = strings.ToLower(strings.TrimSpace(c.PolicyVendor))
	keywords := c.PolicyKeywords[:0]
	for _, kw := range c.PolicyKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	c.PolicyKeywords = keywords
	c.TensorArtEndpoint = strings.TrimRight(c.TensorArtEndpoint, "/")
	c.CivitAIEndpoint = strings.TrimRight(c.CivitAIEndpoint, "/")
	c.LocalEndpoint = strings.TrimRight(c.LocalEndpoint, "/")
	c.SlackAPIBaseURL = strings.TrimRight(c.SlackAPIBaseURL, "/")
}
