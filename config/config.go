/*
Package config loads service configuration.

PRECEDENCE (lowest to highest):
  1. Built-in defaults
  2. YAML file (optional)
  3. .env file next to the working directory (optional, never overrides
     variables already set in the process)
  4. FUELQUOTA_* environment variables
  5. Command-line flags applied by the caller

EXAMPLE config.yaml:
  server:
    port: 8080
    cors_origins: ["http://localhost:5173"]
  database:
    path: ./data/fleet.db
  log:
    level: info
    format: json
  scheduler:
    enabled: true
    interval: 1h
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "FUELQUOTA_"

type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`

	// Interval is a Go duration string such as "1h" or "30m".
	Interval string `yaml:"interval"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Database:  DatabaseConfig{Path: "fuelquota.db"},
		Log:       LogConfig{Level: "info", Format: "json"},
		Scheduler: SchedulerConfig{Enabled: true, Interval: "1h"},
	}
}

// Load builds a Config from defaults, the optional YAML file at path, a
// local .env file and the environment. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v, ok := lookup("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPORT: %w", envPrefix, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("DB"); ok {
		c.Database.Path = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	if v, ok := lookup("SCHEDULER_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSCHEDULER_ENABLED: %w", envPrefix, err)
		}
		c.Scheduler.Enabled = enabled
	}
	if v, ok := lookup("SCHEDULER_INTERVAL"); ok {
		c.Scheduler.Interval = v
	}
	if v, ok := lookup("CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitCSV(v)
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	if _, err := c.SchedulerInterval(); err != nil {
		return err
	}
	return nil
}

// SchedulerInterval parses Scheduler.Interval.
func (c Config) SchedulerInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Scheduler.Interval)
	if err != nil {
		return 0, fmt.Errorf("invalid scheduler interval %q: %w", c.Scheduler.Interval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("scheduler interval must be positive, got %s", d)
	}
	return d, nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
