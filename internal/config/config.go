// Package config loads service configuration: built-in defaults, then an
// optional YAML file, then environment overrides under the LICENSER prefix.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Signing SigningConfig `yaml:"signing" envconfig:"SIGNING"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Limits  LimitsConfig  `yaml:"limits" envconfig:"LIMITS"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// SigningConfig locates the service key material. The private key is needed
// for issuing; a service that only verifies can run with the public key
// alone.
type SigningConfig struct {
	PrivateKeyFile string `yaml:"private_key_file" envconfig:"PRIVATE_KEY_FILE"`
	PublicKeyFile  string `yaml:"public_key_file" envconfig:"PUBLIC_KEY_FILE"`
	// Passphrase for an encrypted private key file. Set via
	// LICENSER_SIGNING_PASSPHRASE, never via the YAML file.
	Passphrase string `yaml:"-" envconfig:"PASSPHRASE"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// LimitsConfig contains rate limiting configuration for the HTTP surface.
type LimitsConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// Default returns the built-in configuration. Defaults live here rather
// than in envconfig tags so that file values are not clobbered when the
// corresponding environment variable is unset.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Signing: SigningConfig{
			PrivateKeyFile: "license_private.pem",
			PublicKeyFile:  "license_public.pem",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "stdout",
			FilePath: "logs/licensed.log",
		},
		Limits: LimitsConfig{
			Enabled: true,
			RPS:     50,
			Burst:   25,
		},
	}
}

// Load reads configuration: defaults, then the YAML file at path (skipped
// when path is empty or the file does not exist), then environment
// overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Optional file; defaults and env carry the config.
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if err := envconfig.Process("LICENSER", &cfg); err != nil {
		return nil, fmt.Errorf("config: process environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid logging level %q", c.Logging.Level)
	}
	switch c.Logging.Output {
	case "stdout", "file", "both":
	default:
		return fmt.Errorf("config: invalid logging output %q", c.Logging.Output)
	}
	if c.Limits.Enabled && c.Limits.RPS <= 0 {
		return fmt.Errorf("config: rate limiting enabled with non-positive rps %v", c.Limits.RPS)
	}
	return nil
}
