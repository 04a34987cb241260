// Package config holds the settings of a simulation run.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/csim/accesslog"
	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/trace"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the parameters of a simulation run.
type Config struct {
	// SetIndexBits is the number of set index bits (s). Default: 4.
	SetIndexBits uint `json:"set_index_bits" yaml:"set_index_bits"`

	// LinesPerSet is the associativity (E). Default: 1.
	LinesPerSet int `json:"lines_per_set" yaml:"lines_per_set"`

	// BlockOffsetBits is the number of block offset bits (b). Default: 4.
	BlockOffsetBits uint `json:"block_offset_bits" yaml:"block_offset_bits"`

	// Engine selects the cache model implementation. Default: "lru".
	Engine cache.Engine `json:"engine" yaml:"engine"`

	// TraceFile is the path of the trace to simulate.
	TraceFile string `json:"trace_file,omitempty" yaml:"trace_file,omitempty"`

	// Marker is the first character of data-access records. Default: " ".
	Marker string `json:"marker" yaml:"marker"`

	// Separator precedes the size field of a record. Default: ",".
	Separator string `json:"separator" yaml:"separator"`

	// AccessLog is the path of the per-access log. Empty disables it
	// unless AccessLogFormat is "sqlite".
	AccessLog string `json:"access_log,omitempty" yaml:"access_log,omitempty"`

	// AccessLogFormat is "text", "csv" or "sqlite". Default: "csv".
	AccessLogFormat accesslog.Format `json:"access_log_format" yaml:"access_log_format"`

	// LogLevel is one of debug, info, warn, error. Default: "info".
	LogLevel string `json:"log_level" yaml:"log_level"`

	// LogFormat is "text" or "json". Default: "text".
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// Default returns a Config with a small direct-mapped cache.
func Default() *Config {
	return &Config{
		SetIndexBits:    4,
		LinesPerSet:     1,
		BlockOffsetBits: 4,
		Engine:          cache.EngineLRU,
		Marker:          " ",
		Separator:       ",",
		AccessLogFormat: accesslog.FormatCSV,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// isYAML reports whether path names a YAML file.
func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load loads a Config from a JSON or YAML file, chosen by extension.
// Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// Save writes the Config to a JSON or YAML file, chosen by extension.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Geometry returns the cache geometry described by the Config.
func (c *Config) Geometry() cache.Geometry {
	return cache.Geometry{
		SetIndexBits:    c.SetIndexBits,
		LinesPerSet:     c.LinesPerSet,
		BlockOffsetBits: c.BlockOffsetBits,
	}
}

// ParserOptions returns the trace format options described by the Config.
// Call Validate first.
func (c *Config) ParserOptions() trace.ParserOptions {
	return trace.ParserOptions{
		Marker:    c.Marker[0],
		Separator: c.Separator[0],
	}
}

// AccessLogEnabled reports whether the run writes a per-access log file.
func (c *Config) AccessLogEnabled() bool {
	return c.AccessLog != "" || c.AccessLogFormat == accesslog.FormatSQLite
}

// Validate checks that the Config describes a runnable simulation.
func (c *Config) Validate() error {
	if err := c.Geometry().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch c.Engine {
	case cache.EngineLRU, cache.EngineAkita:
	default:
		return fmt.Errorf("%w: engine must be one of %v, got %q",
			ErrInvalidConfig, cache.Engines(), c.Engine)
	}

	if len(c.Marker) != 1 {
		return fmt.Errorf("%w: marker must be a single character", ErrInvalidConfig)
	}
	if len(c.Separator) != 1 {
		return fmt.Errorf("%w: separator must be a single character", ErrInvalidConfig)
	}

	switch c.AccessLogFormat {
	case accesslog.FormatText, accesslog.FormatCSV, accesslog.FormatSQLite:
	default:
		return fmt.Errorf("%w: access_log_format must be text, csv or sqlite, got %q",
			ErrInvalidConfig, c.AccessLogFormat)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log_level must be debug, info, warn or error, got %q",
			ErrInvalidConfig, c.LogLevel)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q",
			ErrInvalidConfig, c.LogFormat)
	}

	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
