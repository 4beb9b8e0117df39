package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type RestackConfig struct {
	// WarnAbandoned prints a warning after a rewrite leaves descendants behind.
	WarnAbandoned bool `yaml:"warn_abandoned"`
}

type LogConfig struct {
	Level string `yaml:"level,omitempty"`
	File  string `yaml:"file,omitempty"`
}

type HooksConfig struct {
	Installed []string `yaml:"installed,omitempty"`
}

type Config struct {
	MainBranch  string        `yaml:"main_branch"`
	Restack     RestackConfig `yaml:"restack"`
	IgnoredRefs []string      `yaml:"ignored_refs,omitempty"`
	Log         LogConfig     `yaml:"log,omitempty"`
	Hooks       HooksConfig   `yaml:"hooks,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		MainBranch:  DefaultMainBranch,
		Restack:     RestackConfig{WarnAbandoned: true},
		IgnoredRefs: append([]string(nil), DefaultIgnoredRefs...),
		Log:         LogConfig{Level: "warn"},
	}
}

func LoadConfig(loc Location) (*Config, error) {
	data, err := os.ReadFile(loc.ConfigPath())
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.MainBranch == "" {
		cfg.MainBranch = DefaultMainBranch
	}
	return cfg, nil
}

func SaveConfig(loc Location, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(loc.ConfigPath()), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(loc.ConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// RefFilter compiles the configured exclusion patterns.
func (c *Config) RefFilter() RefFilter {
	return NewRefExclusionPolicy(c.IgnoredRefs).Filter()
}
