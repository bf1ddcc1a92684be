// Package config loads the engine configuration from environment variables
// and an optional YAML file next to the executable. Environment values take
// precedence over file values.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// envPrefix namespaces all environment variables (BEIRUT_SERVER_PORT, ...).
const envPrefix = "BEIRUT"

// Config is the complete engine configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	License  LicenseConfig  `yaml:"license" envconfig:"LICENSE"`
}

// ServerConfig contains the local HTTP server settings. The server exists
// for the UI collaborator on the same machine; it binds to loopback.
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST" default:"127.0.0.1"`
	Port            int           `yaml:"port" envconfig:"PORT" default:"8970"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// SecurityConfig contains the activation-attempt rate limit. Vouchers are
// guessable in principle; the limiter makes brute-forcing the check
// character impractical through the API.
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig configures the token-bucket limiter on activation calls.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"2"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"5"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig overrides the storage locations. Empty values fall back to
// the executable-relative defaults from GetPaths.
type PathsConfig struct {
	DataDir        string `yaml:"data_dir" envconfig:"DATA_DIR"`
	ActivationFile string `yaml:"activation_file" envconfig:"ACTIVATION_FILE"`
	SaltFile       string `yaml:"salt_file" envconfig:"SALT_FILE"`
	LogsDir        string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// LicenseConfig carries the optional override of the embedded signing
// secret. Issuer and clients must agree on the value in use.
type LicenseConfig struct {
	Secret string `yaml:"secret" envconfig:"SECRET"`
}

// Load reads configuration from the environment and, if present, the YAML
// config file, then resolves storage paths.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	configFile, err := ConfigFilePath()
	if err == nil {
		if _, statErr := os.Stat(configFile); statErr == nil {
			fileCfg, loadErr := loadFromFile(configFile)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file %s: %w", configFile, loadErr)
			}
			cfg = merge(*fileCfg, cfg)
		}
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("resolving paths: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge fills zero-valued env fields from the file config; non-zero env
// values win.
func merge(file, env Config) Config {
	if env.Server.Host == "" {
		env.Server.Host = file.Server.Host
	}
	if env.Server.Port == 0 {
		env.Server.Port = file.Server.Port
	}
	if env.Server.ReadTimeout == 0 {
		env.Server.ReadTimeout = file.Server.ReadTimeout
	}
	if env.Server.WriteTimeout == 0 {
		env.Server.WriteTimeout = file.Server.WriteTimeout
	}
	if env.Server.IdleTimeout == 0 {
		env.Server.IdleTimeout = file.Server.IdleTimeout
	}
	if env.Server.ShutdownTimeout == 0 {
		env.Server.ShutdownTimeout = file.Server.ShutdownTimeout
	}
	if env.Security.RateLimit.RPS == 0 {
		env.Security.RateLimit.RPS = file.Security.RateLimit.RPS
	}
	if env.Security.RateLimit.Burst == 0 {
		env.Security.RateLimit.Burst = file.Security.RateLimit.Burst
	}
	if env.Logging.Level == "" {
		env.Logging.Level = file.Logging.Level
	}
	if env.Logging.Output == "" {
		env.Logging.Output = file.Logging.Output
	}
	if env.Logging.FilePath == "" {
		env.Logging.FilePath = file.Logging.FilePath
	}
	if env.Paths.DataDir == "" {
		env.Paths.DataDir = file.Paths.DataDir
	}
	if env.Paths.ActivationFile == "" {
		env.Paths.ActivationFile = file.Paths.ActivationFile
	}
	if env.Paths.SaltFile == "" {
		env.Paths.SaltFile = file.Paths.SaltFile
	}
	if env.Paths.LogsDir == "" {
		env.Paths.LogsDir = file.Paths.LogsDir
	}
	if env.License.Secret == "" {
		env.License.Secret = file.License.Secret
	}
	return env
}

// resolvePaths fills unset path fields from the executable-relative layout.
func (c *Config) resolvePaths() error {
	paths, err := GetPaths()
	if err != nil {
		return err
	}
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = paths.DataDir
	}
	if c.Paths.ActivationFile == "" {
		c.Paths.ActivationFile = paths.ActivationFile
	}
	if c.Paths.SaltFile == "" {
		c.Paths.SaltFile = paths.SaltFile
	}
	if c.Paths.LogsDir == "" {
		c.Paths.LogsDir = paths.LogsDir
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = paths.LogFile
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limit rps must be positive when enabled")
	}
	return nil
}

// SigningSecret returns the configured secret or nil when the embedded
// default should be used.
func (c *Config) SigningSecret() []byte {
	if c.License.Secret == "" {
		return nil
	}
	return []byte(c.License.Secret)
}
