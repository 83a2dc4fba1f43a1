package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultConfigFile is the settings file read when no path is given
const DefaultConfigFile = "./config/config.env"

// Deployment modes reported by NODE_ENV
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds all configuration for the job board service.
// Keys are flat because they come from a dotenv file; the nested structs only group them.
type Config struct {
	Server struct {
		Port            int           `mapstructure:"port"`
		Env             string        `mapstructure:"node_env"`
		PublicDir       string        `mapstructure:"public_dir"`
		TrustProxy      bool          `mapstructure:"trust_proxy"`
		CORSOrigin      string        `mapstructure:"cors_origin"`
		JSONBodyLimit   int64         `mapstructure:"json_body_limit"`
		RequestTimeout  time.Duration `mapstructure:"request_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:",squash"`

	Database struct {
		URI             string        `mapstructure:"db_uri"`
		Name            string        `mapstructure:"db_name"`
		MaxPoolSize     uint64        `mapstructure:"db_max_pool_size"`
		ConnectTimeout  time.Duration `mapstructure:"db_connect_timeout"`
		RetryMaxElapsed time.Duration `mapstructure:"db_retry_max_elapsed"`
	} `mapstructure:",squash"`

	Auth struct {
		JWTSecret        string        `mapstructure:"jwt_secret"`
		JWTExpiry        time.Duration `mapstructure:"jwt_expires_time"`
		CookieExpiryDays int           `mapstructure:"cookie_expires_time"`
		BcryptCost       int           `mapstructure:"bcrypt_cost"`
		// GeneratedSecret is set when JWT_SECRET was empty and a random one was used
		GeneratedSecret bool `mapstructure:"-"`
	} `mapstructure:",squash"`

	Uploads struct {
		Path        string `mapstructure:"upload_path"`
		MaxFileSize int64  `mapstructure:"max_file_size"`
	} `mapstructure:",squash"`

	RateLimit struct {
		Window          time.Duration `mapstructure:"rate_limit_window"`
		Max             int           `mapstructure:"rate_limit_max"`
		MaxClients      int           `mapstructure:"rate_limit_max_clients"`
		GlobalPerSecond int           `mapstructure:"global_rate_limit"`
		RedisAddr       string        `mapstructure:"rate_limit_redis_addr"`
		RedisPassword   string        `mapstructure:"rate_limit_redis_password"`
		RedisDB         int           `mapstructure:"rate_limit_redis_db"`
	} `mapstructure:",squash"`
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 3000)
	v.SetDefault("node_env", EnvDevelopment)
	v.SetDefault("public_dir", "public")
	v.SetDefault("trust_proxy", false)
	v.SetDefault("cors_origin", "*")
	v.SetDefault("json_body_limit", 1048576) // 1MB
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)

	v.SetDefault("db_uri", "mongodb://localhost:27017/jobboard")
	v.SetDefault("db_name", "jobboard")
	v.SetDefault("db_max_pool_size", 20)
	v.SetDefault("db_connect_timeout", 10*time.Second)
	v.SetDefault("db_retry_max_elapsed", 2*time.Minute)

	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_expires_time", 7*24*time.Hour)
	v.SetDefault("cookie_expires_time", 7) // days
	v.SetDefault("bcrypt_cost", 10)

	v.SetDefault("upload_path", "./public/uploads")
	v.SetDefault("max_file_size", 2000000) // 2MB

	v.SetDefault("rate_limit_window", 10*time.Minute)
	v.SetDefault("rate_limit_max", 100)
	v.SetDefault("rate_limit_max_clients", 100000)
	v.SetDefault("global_rate_limit", 0) // disabled
	v.SetDefault("rate_limit_redis_addr", "")
	v.SetDefault("rate_limit_redis_password", "")
	v.SetDefault("rate_limit_redis_db", 0)
}

// LoadConfig loads configuration from a dotenv settings file and the process environment.
// Environment variables win over the file. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		// Config file not found, will use defaults and env vars
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config.Server.Env = strings.ToLower(strings.TrimSpace(config.Server.Env))

	if config.Auth.JWTSecret == "" && config.Server.Env != EnvProduction {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		config.Auth.JWTSecret = secret
		config.Auth.GeneratedSecret = true
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// validateConfig validates the configuration for security and correctness
func validateConfig(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d (must be 1-65535)", config.Server.Port)
	}

	switch config.Server.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("invalid NODE_ENV %q (must be development, production or test)", config.Server.Env)
	}

	if !strings.HasPrefix(config.Database.URI, "mongodb://") && !strings.HasPrefix(config.Database.URI, "mongodb+srv://") {
		return fmt.Errorf("invalid DB_URI: must start with mongodb:// or mongodb+srv://")
	}
	parsed, err := url.Parse(config.Database.URI)
	if err != nil {
		return fmt.Errorf("invalid DB_URI: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid DB_URI: missing host")
	}
	if config.Database.Name == "" {
		return fmt.Errorf("DB_NAME cannot be empty")
	}
	if config.Database.ConnectTimeout <= 0 {
		return fmt.Errorf("DB_CONNECT_TIMEOUT must be positive, got %v", config.Database.ConnectTimeout)
	}

	if config.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %v", config.RateLimit.Window)
	}
	if config.RateLimit.Max <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", config.RateLimit.Max)
	}
	if config.RateLimit.MaxClients <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX_CLIENTS must be positive, got %d", config.RateLimit.MaxClients)
	}
	if config.RateLimit.GlobalPerSecond < 0 {
		return fmt.Errorf("GLOBAL_RATE_LIMIT cannot be negative, got %d", config.RateLimit.GlobalPerSecond)
	}

	if config.Uploads.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive, got %d", config.Uploads.MaxFileSize)
	}
	if config.Server.JSONBodyLimit <= 0 {
		return fmt.Errorf("JSON_BODY_LIMIT must be positive, got %d", config.Server.JSONBodyLimit)
	}
	if config.Server.RequestTimeout < 0 || config.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative and SHUTDOWN_TIMEOUT must be positive")
	}

	if config.Auth.JWTExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRES_TIME must be positive, got %v", config.Auth.JWTExpiry)
	}
	if config.Auth.CookieExpiryDays <= 0 {
		return fmt.Errorf("COOKIE_EXPIRES_TIME must be positive, got %d", config.Auth.CookieExpiryDays)
	}
	if config.Auth.BcryptCost < 4 || config.Auth.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", config.Auth.BcryptCost)
	}

	// Weak secrets are tolerated only while developing.
	if config.Server.Env == EnvProduction && len(config.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}

	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == EnvProduction
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == EnvDevelopment
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// Redacted returns a copy with credentials masked, safe to log or print.
func (c *Config) Redacted() Config {
	out := *c
	out.Database.URI = RedactURI(c.Database.URI)
	if out.Auth.JWTSecret != "" {
		out.Auth.JWTSecret = "[REDACTED]"
	}
	if out.RateLimit.RedisPassword != "" {
		out.RateLimit.RedisPassword = "[REDACTED]"
	}
	return out
}

// RedactURI masks the password of a connection string.
func RedactURI(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}
	if _, hasPassword := parsed.User.Password(); hasPassword {
		parsed.User = url.UserPassword(parsed.User.Username(), "xxxxx")
	}
	return parsed.String()
}

// randomSecret returns a process-local signing secret for development use.
func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
