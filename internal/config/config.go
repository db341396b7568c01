package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/caarlos0/env/v11"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "ASPECTJOBS_"

// Config holds all configuration settings for the job system.
type Config struct {
	Pool      PoolConfig      `json:"pool"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Log       LogConfig       `json:"log"`
	EventBus  EventBusConfig  `json:"eventBus"`
	Trace     TraceConfig     `json:"trace"`
}

// PoolConfig holds settings for the thread pool.
type PoolConfig struct {
	ThreadCount int `json:"threadCount" env:"THREAD_COUNT"` // 0 selects the CPU count
}

// SchedulerConfig holds settings for the job manager.
type SchedulerConfig struct {
	DetectCycles bool `json:"detectCycles" env:"DETECT_CYCLES"` // reject cyclic batches
	Frames       int  `json:"frames" env:"FRAMES"`              // frames per run
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `json:"level" env:"LOG_LEVEL"`   // trace, debug, info, warn, error
	Format string `json:"format" env:"LOG_FORMAT"` // console or json
}

// EventBusConfig holds settings for the event dispatcher.
type EventBusConfig struct {
	Capacity int `json:"capacity" env:"EVENT_CAPACITY"` // 0 means unbounded
}

// TraceConfig holds settings for the websocket trace stream.
type TraceConfig struct {
	Enabled      bool   `json:"enabled" env:"TRACE_ENABLED"`
	Addr         string `json:"addr" env:"TRACE_ADDR"`
	ClientBuffer int    `json:"clientBuffer" env:"TRACE_CLIENT_BUFFER"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{
			ThreadCount: 0,
		},
		Scheduler: SchedulerConfig{
			DetectCycles: true,
			Frames:       1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		EventBus: EventBusConfig{
			Capacity: 0,
		},
		Trace: TraceConfig{
			Enabled:      false,
			Addr:         "localhost:8089",
			ClientBuffer: 256,
		},
	}
}

// LoadFromFile loads configuration from a JSON file on top of the defaults.
// A missing file yields the defaults. Unknown members are rejected.
func LoadFromFile(filePath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg, json.RejectUnknownMembers(true)); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", filePath, err)
	}
	return cfg, nil
}

// SaveToFile saves the configuration to a JSON file.
func (c *Config) SaveToFile(filePath string) error {
	data, err := json.Marshal(c, json.Deterministic(true), jsontext.WithIndent("  "))
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// ApplyEnv overlays ASPECTJOBS_* variables onto c. A nil environ reads the
// process environment. Unset variables leave the current value alone.
func (c *Config) ApplyEnv(environ map[string]string) error {
	if err := env.ParseWithOptions(c, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}); err != nil {
		return fmt.Errorf("error reading environment: %w", err)
	}
	return nil
}

var (
	logLevels  = []string{"trace", "debug", "info", "warn", "error"}
	logFormats = []string{"console", "json"}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Pool.ThreadCount < 0 {
		return invalid("pool.threadCount cannot be negative")
	}
	if c.Scheduler.Frames < 1 {
		return invalid("scheduler.frames must be at least 1")
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		return invalid(fmt.Sprintf("log.level %q is not one of %v", c.Log.Level, logLevels))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		return invalid(fmt.Sprintf("log.format %q is not one of %v", c.Log.Format, logFormats))
	}
	if c.EventBus.Capacity < 0 {
		return invalid("eventBus.capacity cannot be negative")
	}
	if c.Trace.Enabled {
		if c.Trace.Addr == "" {
			return invalid("trace.addr is required when tracing is enabled")
		}
		if c.Trace.ClientBuffer < 1 {
			return invalid("trace.clientBuffer must be at least 1")
		}
	}
	return nil
}

func invalid(msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(msg)
}
