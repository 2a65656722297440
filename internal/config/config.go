package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	NATS      NATSConfig      `yaml:"nats"`
	Store     StoreConfig     `yaml:"store"`
	Roster    RosterConfig    `yaml:"roster"`
	Web       WebConfig       `yaml:"web"`
	Retention RetentionConfig `yaml:"retention"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

type NATSConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type RosterConfig struct {
	// Path to a YAML roster file; empty selects the built-in roster.
	Path string `yaml:"path"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Auth    string `yaml:"auth"`
}

type RetentionConfig struct {
	// Schedule is a cron expression for the prune run.
	Schedule string        `yaml:"schedule"`
	MaxAge   time.Duration `yaml:"max_age"`
}

// UnmarshalYAML accepts max_age as a duration string ("720h", "30m"). Empty
// fields keep whatever value is already set, so defaults survive a partial
// retention section.
func (r *RetentionConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Schedule string `yaml:"schedule"`
		MaxAge   string `yaml:"max_age"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Schedule != "" {
		r.Schedule = raw.Schedule
	}
	if raw.MaxAge != "" {
		d, err := time.ParseDuration(raw.MaxAge)
		if err != nil {
			return fmt.Errorf("parse retention max_age: %w", err)
		}
		r.MaxAge = d
	}
	return nil
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

func defaults() Config {
	return Config{
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Store: StoreConfig{
			Path: "data/skopos.db",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Retention: RetentionConfig{
			Schedule: "0 3 * * *",
			MaxAge:   30 * 24 * time.Hour,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("SKOPOS_CONFIG")
	if path == "" {
		path = "config/skopos.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SKOPOS_WEB_PASSWORD"); v != "" {
		cfg.Web.Auth = v
	}
	if v := os.Getenv("SKOPOS_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("SKOPOS_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("SKOPOS_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("SKOPOS_ROSTER_PATH"); v != "" {
		cfg.Roster.Path = v
	}
	if v := os.Getenv("SKOPOS_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("SKOPOS_TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
}
