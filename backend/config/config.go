package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const minSecretLength = 32

var sizePattern = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*(B|KB|MB|GB|TB)?$`)

// ParseSize converts a human-readable size string (e.g., "1MB", "512KB")
// to bytes. Supports B, KB, MB, GB, TB suffixes (case-insensitive).
// Plain numbers are taken as bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid size format: %s (use e.g., '1MB', '512KB')", s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in size: %s", s)
	}

	unit := strings.ToUpper(matches[2])
	if unit == "" {
		unit = "B"
	}

	multipliers := map[string]float64{
		"B":  1,
		"KB": 1024,
		"MB": 1024 * 1024,
		"GB": 1024 * 1024 * 1024,
		"TB": 1024 * 1024 * 1024 * 1024,
	}

	return int64(value * multipliers[unit]), nil
}

type Config struct {
	Listen       string        `yaml:"listen"`
	DatabasePath string        `yaml:"database_path"`
	Server       ServerConfig  `yaml:"server"`
	Store        StoreConfig   `yaml:"store"`
	Session      SessionConfig `yaml:"session"`
	OTP          OTPConfig     `yaml:"otp"`
	Auth         AuthConfig    `yaml:"auth"`
	Logs         LogsConfig    `yaml:"logs"`
}

type ServerConfig struct {
	MaxBodySize    int64  `yaml:"-"`             // Parsed size in bytes
	MaxBodySizeRaw string `yaml:"max_body_size"` // Human-readable size (e.g., "1MB")
}

type StoreConfig struct {
	Driver    string     `yaml:"driver"` // memory | sqlite
	SeedUsers []SeedUser `yaml:"seed_users"`
}

// SeedUser is an account inserted at startup.
type SeedUser struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type SessionConfig struct {
	Name     string        `yaml:"name"`
	Timeout  time.Duration `yaml:"timeout"` // Inactivity expiry
	Secret   string        `yaml:"secret"`
	Secure   bool          `yaml:"secure"`
	Backend  string        `yaml:"backend"` // memory | redis
	RedisURL string        `yaml:"redis_url"`
}

type OTPConfig struct {
	Issuer string `yaml:"issuer"`
	QRSize int    `yaml:"qr_size"`
}

type AuthConfig struct {
	PasswordScheme string `yaml:"password_scheme"` // plaintext | bcrypt
	BcryptCost     int    `yaml:"bcrypt_cost"`
}

type LogsConfig struct {
	Persist bool          `yaml:"persist"` // Write log rows to the database
	MaxAge  time.Duration `yaml:"max_age"`
}

var C Config

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		Listen:       "0.0.0.0:3000",
		DatabasePath: "app.db",
		Server: ServerConfig{
			MaxBodySize: 1024 * 1024, // 1MB
		},
		Store: StoreConfig{
			Driver: "memory",
			SeedUsers: []SeedUser{
				{Email: "email@example.com", Password: "password"},
			},
		},
		Session: SessionConfig{
			Name:     "itsuki.sid",
			Timeout:  time.Hour,
			Backend:  "memory",
			RedisURL: "redis://localhost:6379/0",
		},
		OTP: OTPConfig{
			Issuer: "ItsukiServer",
			QRSize: 200,
		},
		Auth: AuthConfig{
			PasswordScheme: "plaintext",
			BcryptCost:     10,
		},
		Logs: LogsConfig{
			MaxAge: 48 * time.Hour,
		},
	}
}

func Load() error {
	C = Defaults()

	path := "config.yaml"
	if v := os.Getenv("CONFIG_FILE"); v != "" {
		path = v
	}

	// Load from YAML if exists
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &C); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if C.Server.MaxBodySizeRaw != "" {
		size, err := ParseSize(C.Server.MaxBodySizeRaw)
		if err != nil {
			return err
		}
		C.Server.MaxBodySize = size
	}

	// Environment overrides
	if v := os.Getenv("LISTEN"); v != "" {
		C.Listen = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		C.DatabasePath = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		C.Store.Driver = v
	}
	if v := os.Getenv("SESSION_NAME"); v != "" {
		C.Session.Name = v
	}
	if v := os.Getenv("SESSION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			C.Session.Timeout = d
		}
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		C.Session.Secret = v
	}
	if v := os.Getenv("SESSION_SECURE"); v == "true" {
		C.Session.Secure = true
	}
	if v := os.Getenv("SESSION_BACKEND"); v != "" {
		C.Session.Backend = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		C.Session.RedisURL = v
	}
	if v := os.Getenv("OTP_ISSUER"); v != "" {
		C.OTP.Issuer = v
	}
	if v := os.Getenv("PASSWORD_SCHEME"); v != "" {
		C.Auth.PasswordScheme = v
	}
	if v := os.Getenv("LOGS_PERSIST"); v == "true" {
		C.Logs.Persist = true
	}
	if v := os.Getenv("LOGS_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			C.Logs.MaxAge = d
		}
	}
	if v := os.Getenv("MAX_BODY_SIZE"); v != "" {
		if size, err := ParseSize(v); err == nil {
			C.Server.MaxBodySize = size
		}
	}

	return C.Validate()
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown store driver %q (use memory or sqlite)", c.Store.Driver)
	}
	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown session backend %q (use memory or redis)", c.Session.Backend)
	}
	switch c.Auth.PasswordScheme {
	case "plaintext", "bcrypt":
	default:
		return fmt.Errorf("unknown password scheme %q (use plaintext or bcrypt)", c.Auth.PasswordScheme)
	}
	if c.Session.Secret != "" && len(c.Session.Secret) < minSecretLength {
		return fmt.Errorf("session secret must be at least %d characters", minSecretLength)
	}
	if c.Session.Timeout <= 0 {
		return fmt.Errorf("session timeout must be positive")
	}
	if c.Session.Name == "" {
		return fmt.Errorf("session cookie name is required")
	}
	if c.OTP.Issuer == "" {
		return fmt.Errorf("otp issuer is required")
	}
	if (c.Store.Driver == "sqlite" || c.Logs.Persist) && c.DatabasePath == "" {
		return fmt.Errorf("database_path is required for the sqlite store or persisted logs")
	}
	return nil
}

// NeedsDatabase reports whether any component writes to the sqlite database.
func (c *Config) NeedsDatabase() bool {
	return c.Store.Driver == "sqlite" || c.Logs.Persist
}
