package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"asset-engine"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	Log struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info"`
		Format string `envconfig:"LOG_FORMAT" default:"json"`
	}

	DB struct {
		Driver       string `envconfig:"DB_DRIVER" default:"sqlite"`
		DSN          string `envconfig:"DB_DSN" default:"./data/assets.db"`
		MaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	}

	// Empty Addr means run locks are held in process.
	Redis struct {
		Addr     string `envconfig:"REDIS_ADDR" default:""`
		Password string `envconfig:"REDIS_PASSWORD" default:""`
		DB       int    `envconfig:"REDIS_DB" default:"0"`
	}

	Depreciation struct {
		Workers int           `envconfig:"DEPRECIATION_WORKERS" default:"4"`
		LockTTL time.Duration `envconfig:"DEPRECIATION_LOCK_TTL" default:"5m"`
	}

	Scheduler struct {
		Enabled  bool          `envconfig:"SCHEDULER_ENABLED" default:"false"`
		Interval time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"1h"`
	}

	Server struct {
		ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
		WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
		ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
		AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	}
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DB.Driver)
	}
	if c.DB.Driver == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required for postgres")
	}
	if c.Depreciation.Workers <= 0 {
		return fmt.Errorf("DEPRECIATION_WORKERS must be positive, got %d", c.Depreciation.Workers)
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive when the scheduler is enabled")
	}
	return nil
}
