package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`
	JWT         JWTConfig         `yaml:"jwt"`
	Security    SecurityConfig    `yaml:"security"`
	Uploads     UploadsConfig     `yaml:"uploads"`
	Mail        MailConfig        `yaml:"mail"`
	Reminders   RemindersConfig   `yaml:"reminders"`
	DefaultUser DefaultUserConfig `yaml:"default_user"`
}

type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	Mode        string   `yaml:"mode"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

type DatabaseConfig struct {
	Type     string         `yaml:"type"` // sqlite, mysql, postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Charset  string `yaml:"charset"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type JWTConfig struct {
	Secret    string `yaml:"secret"`
	ExpiresIn string `yaml:"expires_in"`
	Issuer    string `yaml:"issuer"`
}

type SecurityConfig struct {
	BcryptCost int             `yaml:"bcrypt_cost"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

type UploadsConfig struct {
	Dir               string   `yaml:"dir"`
	MaxSize           int64    `yaml:"max_size"` // bytes
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// MailConfig is loaded for completeness; nothing sends mail yet.
type MailConfig struct {
	Server        string `yaml:"server"`
	Port          int    `yaml:"port"`
	UseTLS        bool   `yaml:"use_tls"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	DefaultSender string `yaml:"default_sender"`
}

// RemindersConfig holds the days-before-expiry thresholds. Only the widest
// one matches the renewal window used for license status; the others are
// not consumed.
type RemindersConfig struct {
	Days []int `yaml:"days"`
}

type DefaultUserConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

const (
	defaultMaxUploadSize = 16 * 1024 * 1024
	defaultBcryptCost    = 10
)

// Load reads the .env file (if any), the configuration file and environment variables
func Load(configPath string) (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure data directory exists for SQLite
	if cfg.Database.Type == "sqlite" {
		dataDir := filepath.Dir(cfg.Database.SQLite.Path)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	if err := os.MkdirAll(cfg.Uploads.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := firstEnv("COMPLIANCE_SECRET_KEY", "SECRET_KEY"); v != "" {
		cfg.JWT.Secret = v
	}

	if v := os.Getenv("COMPLIANCE_DB_TYPE"); v != "" {
		cfg.Database.Type = v
	}

	if v := os.Getenv("COMPLIANCE_DB_PATH"); v != "" {
		cfg.Database.SQLite.Path = v
	}

	if v := firstEnv("COMPLIANCE_DATABASE_URL", "DATABASE_URL"); v != "" {
		applyDatabaseURL(cfg, v)
	}

	if v := os.Getenv("COMPLIANCE_MYSQL_HOST"); v != "" {
		cfg.Database.MySQL.Host = v
	}

	if v := os.Getenv("COMPLIANCE_MYSQL_USER"); v != "" {
		cfg.Database.MySQL.Username = v
	}

	if v := os.Getenv("COMPLIANCE_MYSQL_PASSWORD"); v != "" {
		cfg.Database.MySQL.Password = v
	}

	if v := os.Getenv("COMPLIANCE_MYSQL_DATABASE"); v != "" {
		cfg.Database.MySQL.Database = v
	}

	if v := firstEnv("COMPLIANCE_MAX_UPLOAD_SIZE", "MAX_CONTENT_LENGTH"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Uploads.MaxSize = n
		}
	}

	if v := os.Getenv("COMPLIANCE_UPLOAD_DIR"); v != "" {
		cfg.Uploads.Dir = v
	}

	if v := firstEnv("COMPLIANCE_MAIL_SERVER", "MAIL_SERVER"); v != "" {
		cfg.Mail.Server = v
	}

	if v := firstEnv("COMPLIANCE_MAIL_USERNAME", "MAIL_USERNAME"); v != "" {
		cfg.Mail.Username = v
	}

	if v := firstEnv("COMPLIANCE_MAIL_PASSWORD", "MAIL_PASSWORD"); v != "" {
		cfg.Mail.Password = v
	}

	if v := os.Getenv("COMPLIANCE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// applyDatabaseURL accepts sqlite:///path, postgres:// and postgresql:// URLs.
func applyDatabaseURL(cfg *Config, url string) {
	switch {
	case strings.HasPrefix(url, "sqlite:///"):
		cfg.Database.Type = "sqlite"
		cfg.Database.SQLite.Path = strings.TrimPrefix(url, "sqlite:///")
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		cfg.Database.Type = "postgres"
		cfg.Database.Postgres.URL = url
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Database.Type == "sqlite" && cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = "data/compliance.db"
	}
	if cfg.Database.MySQL.Charset == "" {
		cfg.Database.MySQL.Charset = "utf8mb4"
	}
	if cfg.JWT.ExpiresIn == "" {
		cfg.JWT.ExpiresIn = "24h"
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "compliance-tracker"
	}
	if cfg.Security.BcryptCost == 0 {
		cfg.Security.BcryptCost = defaultBcryptCost
	}
	if cfg.Uploads.Dir == "" {
		cfg.Uploads.Dir = "data/uploads"
	}
	if cfg.Uploads.MaxSize == 0 {
		cfg.Uploads.MaxSize = defaultMaxUploadSize
	}
	if len(cfg.Uploads.AllowedExtensions) == 0 {
		cfg.Uploads.AllowedExtensions = []string{"pdf", "png", "jpg", "jpeg", "gif"}
	}
	if len(cfg.Reminders.Days) == 0 {
		cfg.Reminders.Days = []int{30, 15, 7}
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 587
	}
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite":
	case "mysql":
		if c.Database.MySQL.Username == "" {
			return fmt.Errorf("MySQL username is required")
		}
		if c.Database.MySQL.Database == "" {
			return fmt.Errorf("MySQL database name is required")
		}
	case "postgres":
		if c.Database.Postgres.URL == "" {
			return fmt.Errorf("postgres connection URL is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.Server.Mode == "release" && c.JWT.Secret == "" {
		return fmt.Errorf("a secret key is required in release mode")
	}

	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
