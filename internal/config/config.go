// Package config loads the service configuration from a YAML file with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    Server            `yaml:"server"`
	Database  Database          `yaml:"database"`
	Scheduler Scheduler         `yaml:"scheduler"`
	Snapshot  Snapshot          `yaml:"snapshot"`
	RateLimit RateLimit         `yaml:"rate_limit"`
	Logging   Logging           `yaml:"logging"`
	Secrets   map[string]string `yaml:"secrets"`

	// AdminToken comes from the ADMIN_TOKEN environment variable, never
	// from the file.
	AdminToken string `yaml:"-"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Database struct {
	Path          string `yaml:"path"`
	MaxReadConns  int    `yaml:"max_read_conns"`
	RetentionDays int    `yaml:"retention_days"`
}

type Scheduler struct {
	// Internal runs the built-in minute ticker and midnight rollup
	// trigger. Disable it when an external scheduler drives the
	// trigger endpoints instead.
	Internal         bool `yaml:"internal"`
	Workers          int  `yaml:"workers"`
	FailureThreshold int  `yaml:"failure_threshold"`
	SuccessThreshold int  `yaml:"success_threshold"`

	// AllowPrivate disables the probe private-network guard. Local
	// development only; never enable on a deployment that probes
	// operator-supplied targets.
	AllowPrivate bool `yaml:"allow_private"`
}

type Snapshot struct {
	MaxAgeSec     int64 `yaml:"max_age_sec"`
	RefreshAgeSec int64 `yaml:"refresh_age_sec"`
}

type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:   Server{Addr: ":8080"},
		Database: Database{Path: "beacon.db", MaxReadConns: 0, RetentionDays: 30},
		Scheduler: Scheduler{
			Internal:         true,
			Workers:          5,
			FailureThreshold: 1,
			SuccessThreshold: 1,
		},
		Snapshot:  Snapshot{MaxAgeSec: 60, RefreshAgeSec: 30},
		RateLimit: RateLimit{RPS: 10, Burst: 20},
		Logging:   Logging{Level: "info", Format: "text"},
	}
}

// Load reads the file at path over the defaults. An empty path or a
// missing file yields the defaults. ADMIN_TOKEN is always read from
// the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")

	if cfg.Scheduler.Workers < 1 {
		cfg.Scheduler.Workers = 5
	}
	if cfg.Scheduler.FailureThreshold < 1 {
		cfg.Scheduler.FailureThreshold = 1
	}
	if cfg.Scheduler.SuccessThreshold < 1 {
		cfg.Scheduler.SuccessThreshold = 1
	}
	if cfg.Database.RetentionDays < 1 {
		cfg.Database.RetentionDays = 30
	}
	// The public page projects 7 days of heartbeats from raw checks, so
	// retention can never drop below that window plus a day of slack.
	if cfg.Database.RetentionDays < 8 {
		cfg.Database.RetentionDays = 8
	}
	return cfg, nil
}
