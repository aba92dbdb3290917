// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides the configuration of the hrv command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kortschak/hrv/session"
	"github.com/kortschak/hrv/stream"
)

// Config represents the application configuration.
type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Gate        GateConfig        `yaml:"gate"`
	RemoteWrite RemoteWriteConfig `yaml:"remoteWrite"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// DeviceConfig identifies the sensor and how it is read.
type DeviceConfig struct {
	// Address is the sensor's Bluetooth address. When
	// set it takes precedence over Name.
	Address      string        `yaml:"address" env:"HRV_DEVICE_ADDRESS"`
	Name         string        `yaml:"name" env:"HRV_DEVICE_NAME" env-default:"MYZONE"`
	ScanTimeout  time.Duration `yaml:"scanTimeout" env:"HRV_SCAN_TIMEOUT" env-default:"30s"`
	Mode         string        `yaml:"mode" env:"HRV_MODE" env-default:"poll"`
	PollInterval time.Duration `yaml:"pollInterval" env:"HRV_POLL_INTERVAL" env-default:"0s"`
	QueueSize    int           `yaml:"queueSize" env:"HRV_QUEUE_SIZE" env-default:"16"`
}

// Read modes.
const (
	ModePoll   = "poll"
	ModeNotify = "notify"
)

// GateConfig holds the stabilization gate periods. The periods are
// held as text so that an explicit zero is not replaced by the default.
type GateConfig struct {
	Warmup   string `yaml:"warmup" env:"HRV_WARMUP" env-default:"5s"`
	Cooldown string `yaml:"cooldown" env:"HRV_COOLDOWN" env-default:"3s"`

	periods stream.Gate
}

// Periods returns the validated gate periods.
func (g GateConfig) Periods() stream.Gate {
	return g.periods
}

func (g *GateConfig) parse() error {
	warmup, err := time.ParseDuration(strings.TrimSpace(g.Warmup))
	if err != nil {
		return fmt.Errorf("invalid warmup period: %w", err)
	}
	cooldown, err := time.ParseDuration(strings.TrimSpace(g.Cooldown))
	if err != nil {
		return fmt.Errorf("invalid cooldown period: %w", err)
	}
	if warmup < 0 || cooldown < 0 {
		return fmt.Errorf("gate periods must not be negative")
	}
	g.periods = stream.Gate{Warmup: warmup, Cooldown: cooldown}
	return nil
}

// RemoteWriteConfig holds Prometheus remote write export configuration.
// Export is disabled when URL is empty.
type RemoteWriteConfig struct {
	URL          string        `yaml:"url" env:"HRV_REMOTE_WRITE_URL"`
	Username     string        `yaml:"username" env:"HRV_REMOTE_WRITE_USERNAME"`
	Password     string        `yaml:"password" env:"HRV_REMOTE_WRITE_PASSWORD"`
	PushInterval time.Duration `yaml:"pushInterval" env:"HRV_REMOTE_WRITE_PUSH_INTERVAL" env-default:"15s"`
	BufferSize   int           `yaml:"bufferSize" env:"HRV_REMOTE_WRITE_BUFFER_SIZE" env-default:"1000"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Format string `yaml:"logFormat" env:"LOG_FORMAT" env-default:"console"`
	Level  string `yaml:"logLevel" env:"LOG_LEVEL" env-default:"info"`
}

var (
	macAddressRegex = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)
	// macOS identifies peripherals by UUID rather than address.
	uuidRegex = regexp.MustCompile(`^[0-9A-Fa-f]{8}-([0-9A-Fa-f]{4}-){3}[0-9A-Fa-f]{12}$`)
)

// Load loads configuration from a YAML file with environment variable
// overrides. If the file does not exist, only the environment and
// defaults are used.
func Load(path string) (*Config, error) {
	var cfg Config
	err := cleanenv.ReadConfig(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate normalises and validates the configuration.
func (c *Config) Validate() error {
	c.Device.Address = strings.ToUpper(strings.TrimSpace(c.Device.Address))
	if c.Device.Address != "" && !macAddressRegex.MatchString(c.Device.Address) && !uuidRegex.MatchString(c.Device.Address) {
		return fmt.Errorf("invalid device address format: %s (expected format: XX:XX:XX:XX:XX:XX or a UUID)", c.Device.Address)
	}
	if c.Device.Address == "" && c.Device.Name == "" {
		return fmt.Errorf("device address or name is required")
	}
	if c.Device.ScanTimeout <= 0 {
		return fmt.Errorf("scan timeout must be positive")
	}
	c.Device.Mode = strings.ToLower(c.Device.Mode)
	switch c.Device.Mode {
	case ModePoll:
	case ModeNotify:
		if c.Device.QueueSize < 1 {
			return fmt.Errorf("queue size must be at least 1")
		}
	default:
		return fmt.Errorf("mode must be '%s' or '%s', got: %s", ModePoll, ModeNotify, c.Device.Mode)
	}
	if c.Device.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative")
	}

	err := c.Gate.parse()
	if err != nil {
		return err
	}

	if c.RemoteWrite.URL != "" {
		if c.RemoteWrite.PushInterval < time.Second {
			return fmt.Errorf("push interval must be at least 1 second")
		}
		if c.RemoteWrite.BufferSize < 1 {
			return fmt.Errorf("buffer size must be at least 1")
		}
	}

	return ValidateLogging(&c.Logging)
}

// Session returns the session configuration.
func (c *Config) Session() session.Config {
	gate := c.Gate.Periods()
	return session.Config{
		Gate:         &gate,
		PollInterval: c.Device.PollInterval,
	}
}

// ValidateLogging validates logging configuration.
func ValidateLogging(cfg *LoggingConfig) error {
	cfg.Format = strings.ToLower(cfg.Format)
	if cfg.Format != "json" && cfg.Format != "console" && cfg.Format != "logfmt" {
		return fmt.Errorf("logFormat must be 'json', 'console', or 'logfmt', got '%s'", cfg.Format)
	}
	cfg.Level = strings.ToLower(cfg.Level)
	if _, err := zapcore.ParseLevel(cfg.Level); err != nil || cfg.Level == "" {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error, got '%s'", cfg.Level)
	}
	return nil
}

// NewLogger creates a zap logger based on the logging configuration.
// Logs are written to stderr so that stdout carries only records.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	if c.Logging.Format == "logfmt" {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "ts"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
		core := zapcore.NewCore(
			zaplogfmt.NewEncoder(encoderConfig),
			zapcore.Lock(os.Stderr),
			level,
		)
		return zap.New(core), nil
	}

	var zapConfig zap.Config
	if c.Logging.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}
	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s logger: %w", c.Logging.Format, err)
	}
	return logger, nil
}

// PrintConfig logs the configuration, masking sensitive fields.
func (c *Config) PrintConfig(logger *zap.Logger) {
	logger.Info("configuration loaded",
		zap.String("device_address", c.Device.Address),
		zap.String("device_name", c.Device.Name),
		zap.Duration("scan_timeout", c.Device.ScanTimeout),
		zap.String("mode", c.Device.Mode),
		zap.Duration("poll_interval", c.Device.PollInterval),
		zap.Duration("warmup", c.Gate.periods.Warmup),
		zap.Duration("cooldown", c.Gate.periods.Cooldown),
		zap.Bool("remote_write_enabled", c.RemoteWrite.URL != ""),
		zap.String("remote_write_url", c.RemoteWrite.URL),
		zap.String("remote_write_username", c.RemoteWrite.Username),
		zap.Bool("remote_write_password_set", c.RemoteWrite.Password != ""),
		zap.String("log_format", c.Logging.Format),
		zap.String("log_level", c.Logging.Level),
	)
}
