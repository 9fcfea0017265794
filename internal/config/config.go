// Package config loads fileconv settings from a YAML file, a .env file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// External tools; empty means discover them.
	OfficePath      string `yaml:"office_path"`
	ImageMagickPath string `yaml:"imagemagick_path"`

	// Conversion
	OutputDir      string   `yaml:"output_dir"`
	MaxParallel    int      `yaml:"max_parallel"`
	IsolateProfile bool     `yaml:"isolate_profile"`
	Resolver       Resolver `yaml:"resolver"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
	Level    string     `yaml:"log_level"`

	// Prometheus textfile output, empty to disable.
	MetricsFile string `yaml:"metrics_file"`
}

// Resolver holds the output probing policy. Zero values fall back to the
// converter defaults.
type Resolver struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	Interval     time.Duration `yaml:"interval"`
	MaxRetries   int           `yaml:"max_retries"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		MaxParallel: 1,
		LogFile:     filepath.Join(os.TempDir(), "fileconv.log"),
		LogLevel:    slog.LevelInfo,
		Level:       "INFO",
	}
}

// DefaultFile is the config file read when FILECONV_CONFIG is unset.
func DefaultFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "fileconv", "config.yaml")
}

// Load builds the configuration: defaults, then the YAML file, then the
// environment. A .env file at envFile is loaded into the environment first
// when it exists.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg := Defaults()

	file := getEnv("FILECONV_CONFIG", DefaultFile())
	if file != "" {
		if err := cfg.mergeFile(file); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.mergeEnv(); err != nil {
		return Config{}, err
	}

	cfg.LogLevel = parseLogLevel(cfg.Level)
	return cfg, nil
}

// mergeFile overlays values from a YAML file. A missing file is not an error.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	c.OfficePath = getEnv("FILECONV_OFFICE_PATH", c.OfficePath)
	c.ImageMagickPath = getEnv("FILECONV_IMAGEMAGICK_PATH", c.ImageMagickPath)
	c.OutputDir = getEnv("FILECONV_OUTPUT_DIR", c.OutputDir)
	c.LogFile = getEnv("FILECONV_LOG_FILE", c.LogFile)
	c.Level = getEnv("FILECONV_LOG_LEVEL", c.Level)
	c.MetricsFile = getEnv("FILECONV_METRICS_FILE", c.MetricsFile)

	var err error
	if c.MaxParallel, err = getEnvInt("FILECONV_MAX_PARALLEL", c.MaxParallel); err != nil {
		return err
	}
	if c.IsolateProfile, err = getEnvBool("FILECONV_ISOLATE_PROFILE", c.IsolateProfile); err != nil {
		return err
	}
	if c.Resolver.InitialDelay, err = getEnvDuration("FILECONV_RESOLVER_INITIAL_DELAY", c.Resolver.InitialDelay); err != nil {
		return err
	}
	if c.Resolver.Interval, err = getEnvDuration("FILECONV_RESOLVER_INTERVAL", c.Resolver.Interval); err != nil {
		return err
	}
	if c.Resolver.MaxRetries, err = getEnvInt("FILECONV_RESOLVER_MAX_RETRIES", c.Resolver.MaxRetries); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
