package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/ook-receiver/internal/protocol"
	"github.com/roman-kulish/ook-receiver/internal/publish"
	"github.com/roman-kulish/ook-receiver/internal/rf/gpioline"
)

const (
	SourceGPIO   = "gpio"
	SourceReplay = "replay"

	defaultQueueSize     = 4096
	defaultStatsInterval = time.Minute
)

// Config represents the main application configuration
type Config struct {
	Settings  Settings             `yaml:"settings"`
	Capture   CaptureConfig        `yaml:"capture"`
	Protocols []protocol.Protocol  `yaml:"protocols"`
	Storage   StorageConfig        `yaml:"storage"`
	MQTT      publish.MQTTConfig   `yaml:"mqtt"`
	Influx    publish.InfluxConfig `yaml:"influx"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel      string        `yaml:"logLevel"`
	Dev           bool          `yaml:"dev"`
	StatsInterval time.Duration `yaml:"-"`

	// StatsIntervalRaw is the YAML-facing form of StatsInterval ("30s").
	StatsIntervalRaw string `yaml:"statsInterval"`
}

// CaptureConfig selects and configures the edge source
type CaptureConfig struct {
	Source     string           `yaml:"source"`
	GPIO       *gpioline.Config `yaml:"gpio"`
	ReplayFile string           `yaml:"replayFile"`
	QueueSize  int              `yaml:"queueSize"`
	EdgeLog    string           `yaml:"edgeLog"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DataDirectory string `yaml:"dataDirectory"`
}

// LoadConfig reads and validates the application configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration file: %w", err)
	}

	if err = config.normalize(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) normalize() error {
	if c.Settings.StatsIntervalRaw != "" {
		interval, err := time.ParseDuration(c.Settings.StatsIntervalRaw)
		if err != nil {
			return fmt.Errorf("invalid stats interval: %w", err)
		}
		c.Settings.StatsInterval = interval
	} else {
		c.Settings.StatsInterval = defaultStatsInterval
	}

	if c.Capture.QueueSize <= 0 {
		c.Capture.QueueSize = defaultQueueSize
	}

	switch c.Capture.Source {
	case SourceGPIO, "":
		c.Capture.Source = SourceGPIO
		if c.Capture.GPIO == nil {
			return fmt.Errorf("capture source %q requires a gpio section", SourceGPIO)
		}
	case SourceReplay:
		if c.Capture.ReplayFile == "" {
			return fmt.Errorf("capture source %q requires replayFile", SourceReplay)
		}
	default:
		return fmt.Errorf("unknown capture source %q", c.Capture.Source)
	}

	// An empty protocol table means the built-in one; an explicit table
	// replaces it entirely and is validated at pipeline construction.
	if len(c.Protocols) == 0 {
		c.Protocols = protocol.Builtin()
	}

	return nil
}

// Level parses the configured log level, defaulting to info.
func (s Settings) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
