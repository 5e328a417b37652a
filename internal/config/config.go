// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type SelectionConfig struct {
	DefaultXPSlots     int    `yaml:"default_xp_slots"`
	DefaultRandomSlots int    `yaml:"default_random_slots"`
	JobEnabled         bool   `yaml:"job_enabled"`
	JobCron            string `yaml:"job_cron"`
	// Seed fixes the random source; zero seeds from the clock.
	Seed uint64 `yaml:"seed"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"`
}

type EmailConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Sender          string `yaml:"sender"`
	AccessKeyID     string `yaml:"-"`
	SecretAccessKey string `yaml:"-"`
}

// Secrets are never read from YAML.
type Secrets struct {
	AdminPasswordHash  string `env:"ADMIN_PASSWORD_HASH"`
	RedisPassword      string `env:"REDIS_PASSWORD"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
}

type Config struct {
	App struct {
		Name              string `yaml:"name"`
		Environment       string `yaml:"environment"`
		Port              int    `yaml:"port"`
		BaseURL           string `yaml:"base_url"`
		ShutdownTimeout   int    `yaml:"shutdown_timeout_seconds"`
		TrustProxy        bool   `yaml:"trust_proxy"`
		AdminPasswordHash string `yaml:"-"`
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	Selection SelectionConfig `yaml:"selection"`
	Redis     RedisConfig     `yaml:"redis"`
	Email     EmailConfig     `yaml:"email"`

	Features struct {
		EnableMetrics bool `yaml:"enable_metrics"`
		EnableDebug   bool `yaml:"enable_debug"`
	} `yaml:"features"`
}

const defaultSelectionCron = "*/5 * * * *"

// Load loads the .env file next to configPath, the YAML config, and then
// secrets from the environment.
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	var secrets Secrets
	if err := env.Parse(&secrets); err != nil {
		return nil, fmt.Errorf("error loading secrets from environment: %w", err)
	}
	cfg.ApplySecrets(secrets)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and fills defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.App.ShutdownTimeout <= 0 {
		c.App.ShutdownTimeout = 30
	}
	if strings.TrimSpace(c.Selection.JobCron) == "" {
		c.Selection.JobCron = defaultSelectionCron
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
}

func (c *Config) ApplySecrets(s Secrets) {
	c.App.AdminPasswordHash = s.AdminPasswordHash
	c.Redis.Password = s.RedisPassword
	c.Email.AccessKeyID = s.AWSAccessKeyID
	c.Email.SecretAccessKey = s.AWSSecretAccessKey
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Selection.DefaultXPSlots < 0 {
		return fmt.Errorf("selection default_xp_slots must be 0 or greater")
	}
	if c.Selection.DefaultRandomSlots < 0 {
		return fmt.Errorf("selection default_random_slots must be 0 or greater")
	}
	if _, err := cron.ParseStandard(c.Selection.JobCron); err != nil {
		return fmt.Errorf("selection job_cron is invalid: %w", err)
	}

	if c.Email.Enabled {
		if c.Email.Region == "" || c.Email.Sender == "" {
			return fmt.Errorf("email region and sender are required when email is enabled")
		}
		// Without keys the SES client uses the default AWS credential chain.
		if (c.Email.AccessKeyID == "") != (c.Email.SecretAccessKey == "") {
			return fmt.Errorf("aws access key id and secret access key must be set together")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when redis is enabled")
	}

	return nil
}
