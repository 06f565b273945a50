package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"signet/internal/license"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Keys     KeysConfig     `yaml:"keys" envconfig:"KEYS"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Gate     GateConfig     `yaml:"gate" envconfig:"GATE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// KeysConfig locates the signing and verification key material. Each half
// may be given inline as base64url text or as a path to a file holding
// that text; inline wins when both are set.
type KeysConfig struct {
	SecretKey     string `yaml:"secret_key" envconfig:"SECRET_KEY"`
	SecretKeyFile string `yaml:"secret_key_file" envconfig:"SECRET_KEY_FILE"`
	PublicKey     string `yaml:"public_key" envconfig:"PUBLIC_KEY"`
	PublicKeyFile string `yaml:"public_key_file" envconfig:"PUBLIC_KEY_FILE"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// GateConfig tunes the license gate middleware.
type GateConfig struct {
	// CacheTTL bounds how long a verified token result may be reused
	// before the gate re-verifies it. The remaining license validity
	// always caps the effective TTL.
	CacheTTL time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
	// CacheSize bounds the number of distinct tokens held in the gate
	// cache.
	CacheSize int `yaml:"cache_size" envconfig:"CACHE_SIZE"`
}

// Load loads configuration from defaults, an optional YAML file and the
// environment, in rising order of precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := configFilePath(); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays configuration from a YAML file onto cfg.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// configFilePath returns the first config file found in the common
// locations, or empty when none exists.
func configFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Keyring decodes the configured key material. Missing halves yield an
// empty slot; present halves must decode to correctly sized keys.
func (k KeysConfig) Keyring() (license.Keyring, error) {
	var kr license.Keyring

	secretText, err := k.resolve(k.SecretKey, k.SecretKeyFile)
	if err != nil {
		return license.Keyring{}, fmt.Errorf("reading secret key: %w", err)
	}
	if secretText != "" {
		kr.Secret, err = license.DecodeSecretKey(secretText)
		if err != nil {
			return license.Keyring{}, err
		}
	}

	publicText, err := k.resolve(k.PublicKey, k.PublicKeyFile)
	if err != nil {
		return license.Keyring{}, fmt.Errorf("reading public key: %w", err)
	}
	if publicText != "" {
		kr.Public, err = license.DecodePublicKey(publicText)
		if err != nil {
			return license.Keyring{}, err
		}
	}

	return kr, nil
}

// resolve returns the inline value when set, otherwise the file contents,
// otherwise empty.
func (k KeysConfig) resolve(inline, file string) (string, error) {
	if inline != "" {
		return inline, nil
	}
	if file == "" {
		return "", nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// validate checks ranges and normalizes the logging configuration.
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified when CORS is enabled")
	}
	if c.Gate.CacheTTL < 0 {
		return fmt.Errorf("gate cache TTL must not be negative")
	}
	if c.Gate.CacheSize < 0 {
		return fmt.Errorf("gate cache size must not be negative")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		c.Logging.Format = "json"
	}
	switch c.Logging.Output {
	case "stdout", "file", "both":
	default:
		c.Logging.Output = "stdout"
	}
	if c.Logging.Output != "stdout" && c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}

	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimitRPS,
				Burst:   DefaultRateLimitBurst,
			},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Output:      "stdout",
			FilePath:    DefaultLogFile,
			Development: false,
		},
		Gate: GateConfig{
			CacheTTL:  DefaultGateCacheTTL,
			CacheSize: DefaultGateCacheSize,
		},
	}
}
