package main

import (
	"fmt"
	"os"

	"kconsole/kernel/klog"

	"gopkg.in/yaml.v3"
)

// Config holds the serialtail settings. It can be loaded from a YAML file;
// command line flags override the file values.
type Config struct {
	// Input is the path of a captured serial log; "-" reads stdin.
	Input string `yaml:"input"`

	// Socket is the path of a unix socket exposed by the emulator serial
	// backend. It takes precedence over Input.
	Socket string `yaml:"socket"`

	// Level is the most verbose log level that is printed.
	Level string `yaml:"level"`

	// JSON selects JSON output with one entry per record.
	JSON bool `yaml:"json"`

	// NoRaw suppresses output that was not written by the kernel logger.
	NoRaw bool `yaml:"no_raw"`

	// Timestamps adds the time each record was received to the output.
	Timestamps bool `yaml:"timestamps"`
}

// DefaultConfig returns the settings used when neither a config file nor
// flags override them.
func DefaultConfig() Config {
	return Config{
		Input: "-",
		Level: klog.LevelTrace.String(),
	}
}

// LoadConfig reads a YAML config file on top of the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks that the config selects a known level.
func (c Config) Validate() error {
	if _, ok := klog.ParseLevel(c.Level); !ok {
		return fmt.Errorf("unknown log level %q", c.Level)
	}
	return nil
}

// MaxLevel returns the parsed level filter.
func (c Config) MaxLevel() klog.Level {
	level, _ := klog.ParseLevel(c.Level)
	return level
}
