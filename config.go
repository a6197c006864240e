package mqttroute

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the file form of the broker options.
//
//	max_topic_levels: 128
//	max_filters: 100000
//	dollar_topic_isolation: true
//	log:
//	  level: info
//	  format: json
type Config struct {
	MaxTopicLevels       int       `yaml:"max_topic_levels" validate:"gte=0,lte=65535"`
	MaxFilters           int       `yaml:"max_filters" validate:"gte=0"`
	DollarTopicIsolation bool      `yaml:"dollar_topic_isolation"`
	Log                  LogConfig `yaml:"log"`
}

// LogConfig selects the slog handler used by Config.Options.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error none off"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultConfig returns the configuration New uses without options.
func DefaultConfig() Config {
	return Config{
		MaxTopicLevels: DefaultMaxLevels,
		Log: LogConfig{
			Level:  "none",
			Format: "text",
		},
	}
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
// Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Options converts the configuration into broker options. Logs are written
// to w; a nil w means os.Stderr.
func (c Config) Options(w io.Writer) ([]Option, error) {
	level, err := ParseLogLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithMaxTopicLevels(c.MaxTopicLevels),
		WithMaxFilters(c.MaxFilters),
		WithDollarTopicIsolation(c.DollarTopicIsolation),
	}

	if level == LogLevelNone {
		return opts, nil
	}

	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: level.slogLevel()}
	var handler slog.Handler
	if c.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	return append(opts, WithLogger(NewSlogLogger(slog.New(handler), level))), nil
}
