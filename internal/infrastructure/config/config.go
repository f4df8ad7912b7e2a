package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no path is given.
const DefaultPath = "configs/app.yaml"

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	BaseURL         string        `yaml:"base_url"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// TrustedProxies are CIDRs or addresses whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means the TCP peer is the client.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type SessionConfig struct {
	// AuthKey signs and EncKey encrypts the session cookie. Empty keys are
	// generated at start-up, which signs everyone out on restart.
	AuthKey    string `yaml:"auth_key"`
	EncKey     string `yaml:"enc_key"`
	CookieName string `yaml:"cookie_name"`
	Secure     bool   `yaml:"secure"`
}

type AuthConfig struct {
	TokenTTL        time.Duration `yaml:"token_ttl"`
	SignInPerMinute int           `yaml:"signin_per_minute"`
	SignInBurst     int           `yaml:"signin_burst"`
	TOTPIssuer      string        `yaml:"totp_issuer"`
}

type MailConfig struct {
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
}

// Enabled reports whether mail goes out over SMTP rather than to the log.
func (m MailConfig) Enabled() bool { return m.SMTPHost != "" }

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	OutputPath string `yaml:"output_path"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Auth     AuthConfig     `yaml:"auth"`
	Mail     MailConfig     `yaml:"mail"`
	Log      LogConfig      `yaml:"log"`
	CORS     CORSConfig     `yaml:"cors"`
}

// Default returns a config usable for local development.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "goal-tracker",
			Environment: "development",
			Version:     "v1.0.0",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			BaseURL:         "http://localhost:8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "data/goals.db",
		},
		Session: SessionConfig{
			CookieName: "goal_session",
		},
		Auth: AuthConfig{
			TokenTTL:        24 * time.Hour,
			SignInPerMinute: 5,
			SignInBurst:     3,
			TOTPIssuer:      "Goal Tracker",
		},
		Mail: MailConfig{
			SMTPPort: 587,
			From:     "no-reply@localhost",
			FromName: "Goal Tracker",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}

// Load reads path (DefaultPath when empty) over the defaults, applies
// environment overrides and validates the result. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := Default()

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.App.Environment = getEnv("APP_ENV", cfg.App.Environment)
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.BaseURL = getEnv("BASE_URL", cfg.Server.BaseURL)
	cfg.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.TrustedProxies = getEnvSlice("TRUSTED_PROXIES", cfg.Server.TrustedProxies)
	cfg.Database.Path = getEnv("DB_PATH", cfg.Database.Path)
	cfg.Session.AuthKey = getEnv("SESSION_AUTH_KEY", cfg.Session.AuthKey)
	cfg.Session.EncKey = getEnv("SESSION_ENC_KEY", cfg.Session.EncKey)
	cfg.Session.Secure = getEnvBool("SESSION_SECURE", cfg.Session.Secure)
	cfg.Auth.TokenTTL = getEnvDuration("AUTH_TOKEN_TTL", cfg.Auth.TokenTTL)
	cfg.Auth.SignInPerMinute = getEnvInt("AUTH_SIGNIN_PER_MINUTE", cfg.Auth.SignInPerMinute)
	cfg.Mail.SMTPHost = getEnv("SMTP_HOST", cfg.Mail.SMTPHost)
	cfg.Mail.SMTPPort = getEnvInt("SMTP_PORT", cfg.Mail.SMTPPort)
	cfg.Mail.Username = getEnv("SMTP_USERNAME", cfg.Mail.Username)
	cfg.Mail.Password = getEnv("SMTP_PASSWORD", cfg.Mail.Password)
	cfg.Mail.From = getEnv("SMTP_FROM", cfg.Mail.From)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.CORS.AllowedOrigins = getEnvSlice("CORS_ALLOWED_ORIGINS", cfg.CORS.AllowedOrigins)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "server.base_url must be an absolute URL")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Session.CookieName == "" {
		errs = append(errs, "session.cookie_name is required")
	}
	if n := len(c.Session.EncKey); n != 0 && n != 16 && n != 24 && n != 32 {
		errs = append(errs, "SESSION_ENC_KEY must be 16, 24 or 32 bytes")
	}
	if c.App.Environment == "production" {
		if len(c.Session.AuthKey) < 32 {
			errs = append(errs, "SESSION_AUTH_KEY must be at least 32 bytes in production")
		}
		if c.Session.EncKey == "" {
			errs = append(errs, "SESSION_ENC_KEY is required in production")
		}
		if !c.Session.Secure {
			errs = append(errs, "SESSION_SECURE must be true in production")
		}
		if !c.Mail.Enabled() {
			errs = append(errs, "SMTP_HOST is required in production")
		}
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, "auth.token_ttl must be positive")
	}
	if c.Auth.SignInPerMinute <= 0 || c.Auth.SignInBurst <= 0 {
		errs = append(errs, "auth sign-in rate limits must be positive")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q must be json or console", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
