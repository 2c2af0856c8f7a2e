package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the mailer.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	SES       SESConfig       `yaml:"ses"`
	SparkPost SparkPostConfig `yaml:"sparkpost"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"` // public URL used in unsubscribe links

	// AllowedOrigins is the CORS allowlist for the admin frontend.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis settings. Redis is optional; when Addr is empty the
// dispatch lock falls back to PostgreSQL advisory locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SESConfig holds AWS SES credentials and region.
type SESConfig struct {
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	Region         string `yaml:"region"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// SparkPostConfig holds SparkPost API settings.
type SparkPostConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// DeliveryConfig holds the operational knobs of the delivery engine.
type DeliveryConfig struct {
	// Provider selects the outbound transport: "ses" or "sparkpost".
	Provider  string `yaml:"provider"`
	FromName  string `yaml:"from_name"`
	FromEmail string `yaml:"from_email"`
	ReplyTo   string `yaml:"reply_to"`

	// SigningKey signs unsubscribe URLs.
	SigningKey string `yaml:"signing_key"`

	// PacingDelayMs is the fixed wait after each delivery attempt. It is an
	// operational tuning parameter tied to the transport's rate limits.
	PacingDelayMs int `yaml:"pacing_delay_ms"`

	// WorkerPollSeconds is the scheduled-send worker's scan interval.
	WorkerPollSeconds int `yaml:"worker_poll_seconds"`

	// LockTTLSeconds bounds how long a crashed dispatcher can hold the
	// per-campaign lock.
	LockTTLSeconds int `yaml:"lock_ttl_seconds"`
}

// PacingDelay returns the inter-send pacing delay as a duration.
func (d DeliveryConfig) PacingDelay() time.Duration {
	return time.Duration(d.PacingDelayMs) * time.Millisecond
}

// WorkerPollInterval returns the worker scan interval as a duration.
func (d DeliveryConfig) WorkerPollInterval() time.Duration {
	return time.Duration(d.WorkerPollSeconds) * time.Second
}

// LockTTL returns the dispatch lock TTL as a duration.
func (d DeliveryConfig) LockTTL() time.Duration {
	return time.Duration(d.LockTTLSeconds) * time.Second
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads the YAML config, then overrides secrets and connection
// settings from the environment (a .env file is honored if present). A
// missing config file is not an error; defaults plus environment variables
// are enough to run.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg = &Config{}
		cfg.applyDefaults()
	} else if err != nil {
		return nil, err
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		cfg.Redis.Password = pass
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.SES.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.SES.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.SES.Region = region
	}
	if apiKey := os.Getenv("SPARKPOST_API_KEY"); apiKey != "" {
		cfg.SparkPost.APIKey = apiKey
	}
	if baseURL := os.Getenv("SPARKPOST_BASE_URL"); baseURL != "" {
		cfg.SparkPost.BaseURL = baseURL
	}
	if key := os.Getenv("UNSUBSCRIBE_SIGNING_KEY"); key != "" {
		cfg.Delivery.SigningKey = key
	}
	if ms := os.Getenv("PACING_DELAY_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v >= 0 {
			cfg.Delivery.PacingDelayMs = v
		}
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://%s", c.Server.Addr())
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.SES.Region == "" {
		c.SES.Region = "us-west-2"
	}
	if c.SES.TimeoutSeconds == 0 {
		c.SES.TimeoutSeconds = 30
	}
	if c.SparkPost.BaseURL == "" {
		c.SparkPost.BaseURL = "https://api.sparkpost.com"
	}
	if c.SparkPost.TimeoutSeconds == 0 {
		c.SparkPost.TimeoutSeconds = 30
	}
	if c.Delivery.Provider == "" {
		c.Delivery.Provider = "ses"
	}
	if c.Delivery.PacingDelayMs == 0 {
		c.Delivery.PacingDelayMs = 100
	}
	if c.Delivery.WorkerPollSeconds == 0 {
		c.Delivery.WorkerPollSeconds = 30
	}
	if c.Delivery.LockTTLSeconds == 0 {
		c.Delivery.LockTTLSeconds = 600
	}
}
