// Package config loads the YAML service configuration
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config structure for YAML configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Sampler  SamplerConfig  `yaml:"sampler"`
	Boundary BoundaryConfig `yaml:"boundary"`
	Photos   PhotosConfig   `yaml:"photos"`
	PostGIS  PostGISConfig  `yaml:"postgis"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	RateLimit       int           `yaml:"rate_limit" validate:"gte=0"`
	RateWindow      time.Duration `yaml:"rate_window" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	MaxBatch        int           `yaml:"max_batch" validate:"gte=1,lte=100000"`
}

type SamplerConfig struct {
	// Seed 0 seeds from the clock
	Seed        int64 `yaml:"seed"`
	MaxAttempts int   `yaml:"max_attempts" validate:"gte=1"`
	Workers     int   `yaml:"workers" validate:"gte=0"`
	// Indexed routes containment through the R-Tree ring index
	Indexed bool `yaml:"indexed"`
}

type BoundaryConfig struct {
	// File is a GeoJSON or .gob cache; empty uses the embedded Australia outline
	File string `yaml:"file"`
}

type PhotosConfig struct {
	Dir       string `yaml:"dir"`
	URLPrefix string `yaml:"url_prefix" validate:"required"`
}

type PostGISConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Host           string `yaml:"host" validate:"required_if=Enabled true"`
	Port           int    `yaml:"port" validate:"gte=0,lte=65535"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Database       string `yaml:"database" validate:"required_if=Enabled true"`
	SSLMode        string `yaml:"sslmode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
	MaxConnections int    `yaml:"max_connections" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			RateLimit:       120,
			RateWindow:      time.Minute,
			ShutdownTimeout: 10 * time.Second,
			MaxBatch:        1000,
		},
		Sampler: SamplerConfig{
			MaxAttempts: 10000,
			Indexed:     true,
		},
		Photos: PhotosConfig{
			Dir:       "public/aus_travel_photos",
			URLPrefix: "/aus_travel_photos/",
		},
		PostGIS: PostGISConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			Database:       "geodb",
			SSLMode:        "disable",
			MaxConnections: 25,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load overlays the YAML file at path on top of Default and validates the result
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct constraints
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
