// control/config.go
// Author: momentics <momentics@gmail.com>
//
// File-based configuration loading for hioload-mux deployments. The
// processor itself is tuned through functional options; this layer maps
// a config file onto those options for binaries embedding the library.

package control

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Processor ProcessorConfig `mapstructure:"processor"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// File: when set, log to this path with rotation
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// ProcessorConfig carries the reactor tunables named by the public
// configuration surface.
type ProcessorConfig struct {
	// Processors is the number of reactor loops sharing the load.
	Processors int `mapstructure:"processors"`
	// SelectTimeoutMs bounds one multiplexer wait.
	SelectTimeoutMs int `mapstructure:"select_timeout_ms"`
	// IdleTimeoutMs closes sessions without IO activity; 0 disables.
	IdleTimeoutMs int `mapstructure:"idle_timeout_ms"`
	// ReadBufferSize sizes the reusable per-processor read buffer.
	ReadBufferSize int `mapstructure:"read_buffer_size"`
	// FairnessBytes caps bytes read from one session per loop pass.
	FairnessBytes int `mapstructure:"fairness_bytes"`
	// MaxEvents caps readiness notifications consumed per wait.
	MaxEvents int `mapstructure:"max_events"`
	// ExecutorWorkers sizes the event executor pool; 0 means NumCPU.
	ExecutorWorkers int `mapstructure:"executor_workers"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Processor: ProcessorConfig{
			Processors:      1,
			SelectTimeoutMs: 1000,
			IdleTimeoutMs:   0,
			ReadBufferSize:  64 * 1024,
			FairnessBytes:   256 * 1024,
			MaxEvents:       128,
		},
	}
}

// Load reads a config file and merges it over the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("HIOLOAD_MUX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	return cfg, nil
}
