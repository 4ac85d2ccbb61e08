package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// profile is the YAML representation of Settings.
type profile struct {
	Settings `yaml:",inline"`

	// Payload is text in a profile, the settings hold raw bytes
	Payload string `yaml:"payload"`
}

// LoadSettings reads a YAML profile, overlays it on the default settings and validates the result.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	return ParseSettings(data)
}

// ParseSettings parses YAML settings, keys that are not present keep their default value.
func ParseSettings(data []byte) (*Settings, error) {
	p := profile{Settings: *DefaultSettings()}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	settings := p.Settings
	if p.Payload != "" {
		settings.Payload = []byte(p.Payload)
	}

	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return &settings, nil
}
