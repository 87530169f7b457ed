// Package config loads the service configuration: built-in defaults, an
// optional YAML file, a .env file and finally environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram   TelegramConfig   `yaml:"telegram"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Log        LogConfig        `yaml:"log"`
	Moderation ModerationConfig `yaml:"moderation"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat"`
}

type TelegramConfig struct {
	Token    string  `yaml:"token"`
	AdminIDs []int64 `yaml:"admin_ids"`
	Debug    bool    `yaml:"debug"`
}

type HTTPConfig struct {
	Addr      string `yaml:"addr"`
	JWTSecret string `yaml:"jwt_secret"`
	// AllowedOrigins restricts WebSocket upgrades; empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Dir holds the activity and error logs.
	Dir    string `yaml:"dir"`
	Pretty bool   `yaml:"pretty"`
}

type ModerationConfig struct {
	ComplaintWindow time.Duration `yaml:"complaint_window"`
	BanThreshold    int           `yaml:"ban_threshold"`
}

type HeartbeatConfig struct {
	Interval      time.Duration `yaml:"interval"`
	AllowedMissed int           `yaml:"allowed_missed"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		Database: DatabaseConfig{
			DSN: "host=localhost user=user password=password dbname=strangerchat port=5432 sslmode=disable",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Log:   LogConfig{Level: "info", Dir: "logs"},
		Moderation: ModerationConfig{
			ComplaintWindow: BanFrequencyWindow,
			BanThreshold:    BanThresholdWeight,
		},
		Heartbeat: HeartbeatConfig{
			Interval:      DefaultHeartbeatInterval,
			AllowedMissed: DefaultAllowedMissedBeats,
		},
	}
}

// Load builds the configuration. path may be empty; a missing .env file is
// not an error.
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

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	setString(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	setString(&c.Database.DSN, "DATABASE_DSN")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setString(&c.HTTP.JWTSecret, "JWT_SECRET")
	setString(&c.Log.Dir, "LOG_DIR")
	setString(&c.Log.Level, "LOG_LEVEL")

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		c.Redis.DB = db
	}
	if v := os.Getenv("ADMIN_IDS"); v != "" {
		ids, err := ParseAdminIDs(v)
		if err != nil {
			return fmt.Errorf("ADMIN_IDS: %w", err)
		}
		c.Telegram.AdminIDs = ids
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// ParseAdminIDs parses a comma separated list of Telegram user ids.
func ParseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if c.Telegram.Token == "" && c.HTTP.Addr == "" {
		return errors.New("config: neither telegram.token nor http.addr is set")
	}
	if c.HTTP.Addr != "" && c.HTTP.JWTSecret == "" {
		return errors.New("config: http.jwt_secret is required when http.addr is set")
	}
	if c.Database.DSN == "" {
		return errors.New("config: database.dsn is required")
	}
	if c.Moderation.BanThreshold <= 0 {
		return errors.New("config: moderation.ban_threshold must be positive")
	}
	if c.Moderation.ComplaintWindow <= 0 {
		return errors.New("config: moderation.complaint_window must be positive")
	}
	if c.Heartbeat.Interval <= 0 || c.Heartbeat.AllowedMissed <= 0 {
		return errors.New("config: heartbeat interval and allowed_missed must be positive")
	}
	return nil
}

// IsAdmin reports whether the Telegram user id is configured as an admin.
func (c Config) IsAdmin(telegramID int64) bool {
	return c.Telegram.IsAdmin(telegramID)
}

func (t TelegramConfig) IsAdmin(telegramID int64) bool {
	return slices.Contains(t.AdminIDs, telegramID)
}
