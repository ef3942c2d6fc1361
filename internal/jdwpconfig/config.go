// Package jdwpconfig loads the process-level configuration for cmd/jdwp-mcp:
// default dial timeout, log level/format, and default summarization
// tunables. debug.attach still takes host/port per call; this covers what
// the process itself needs before any session exists.
package jdwpconfig

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shape of the YAML config file.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Attach    AttachConfig    `yaml:"attach"`
	Summarize SummarizeConfig `yaml:"summarize"`
}

// LogConfig controls the jdwplog output (spec SPEC_FULL AMBIENT STACK:
// "stderr, so stdout stays clean for the JSON-RPC stream").
type LogConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
	Trace bool   `yaml:"trace"` // per-packet wire tracing at debug level
}

// AttachConfig holds the settings every debug.attach call uses; the tool
// call itself supplies only host and port and cannot override them.
type AttachConfig struct {
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// SummarizeConfig mirrors jdwpsession.SummarizeOptions; it exists separately
// so the YAML file doesn't need to know about that package's Go types.
type SummarizeConfig struct {
	MaxDepth           int  `yaml:"max_depth"`
	MaxCollectionItems int  `yaml:"max_collection_items"`
	AutoExpandStrings  bool `yaml:"auto_expand_strings"`
	ExpandFields       bool `yaml:"expand_fields"`
}

// defaults matches spec.md §4.6's stated defaults.
func defaults() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Trace: false},
		Attach: AttachConfig{
			DialTimeout: 10 * time.Second,
		},
		Summarize: SummarizeConfig{
			MaxDepth:           2,
			MaxCollectionItems: 10,
			AutoExpandStrings:  true,
			ExpandFields:       true,
		},
	}
}

// Load reads path, merging over the built-in defaults. A missing file is not
// an error: cmd/jdwp-mcp runs fine with defaults alone, since every field
// debug.attach needs can still be overridden per call.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
