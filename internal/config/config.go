package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/modpack-installer/internal/version"
)

// Config holds settings shared by the installer, the install server and the packager.
type Config struct {
	// ServerAddress is the gRPC address of the install server.
	// The server listens on its port, remote installs dial it.
	ServerAddress string `yaml:"server_addr,omitempty"`
	// Timeout bounds dialing and unary work against the install server.
	Timeout time.Duration `yaml:"timeout"`
	// DownloadTimeout bounds a single mod download. Zero selects DefaultDownloadTimeout.
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	// Concurrency caps parallel downloads. Zero starts one download per manifest entry.
	Concurrency int `yaml:"concurrency"`
	// UserAgent is sent with every download request.
	UserAgent string `yaml:"user_agent"`
	// BlockingProcesses lists executables that must not be running during an install,
	// usually the game launcher holding files in the instance folder.
	BlockingProcesses []string `yaml:"blocking_processes,omitempty"`
	// LogLevel is the minimum level of emitted log entries.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for installer settings.
	DefaultConfigFilename = "modpack-installer-settings.yaml"

	// DefaultTimeout is the default duration for RPC operations.
	DefaultTimeout = 5 * time.Second

	// DefaultDownloadTimeout is the default per-file download limit.
	DefaultDownloadTimeout = 10 * time.Minute

	// DefaultLogLevel is used when the settings file does not name one.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNegativeConcurrency is returned for a concurrency below zero.
	errNegativeConcurrency = errors.New("concurrency must not be negative")
	// errNegativeTimeout is returned for a negative download timeout.
	errNegativeTimeout = errors.New("download timeout must not be negative")
	// errUnknownLogLevel is returned for unrecognised log levels.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Default returns settings with every default filled in.
func Default() *Config {
	cfg := new(Config)
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault is Load that falls back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills defaults for unset fields.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
			return fmt.Errorf("invalid server socket: %w", err)
		}
	}

	if settings.Concurrency < 0 {
		return fmt.Errorf("%d: %w", settings.Concurrency, errNegativeConcurrency)
	}

	if settings.DownloadTimeout < 0 {
		return fmt.Errorf("%s: %w", settings.DownloadTimeout, errNegativeTimeout)
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.DownloadTimeout == 0 {
		settings.DownloadTimeout = DefaultDownloadTimeout
	}

	if strings.TrimSpace(settings.UserAgent) == "" {
		settings.UserAgent = version.UserAgent()
	}

	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))
	switch settings.LogLevel {
	case "":
		settings.LogLevel = DefaultLogLevel
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%q: %w", settings.LogLevel, errUnknownLogLevel)
	}

	return nil
}
