package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eculver/connect-flows/pkg/browser"
)

// AWS selects the shared config profile and region used for federated logins
// and whoami.
type AWS struct {
	Profile string `yaml:"profile"`
	Region  string `yaml:"region"`
}

// Config is the on-disk configuration for the CLI. Command-line flags take
// precedence over every field.
type Config struct {
	Instance   string `yaml:"instance"`
	InstanceID string `yaml:"instance_id"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`

	AWS     AWS            `yaml:"aws"`
	Browser browser.Config `yaml:"browser"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{Browser: browser.DefaultConfig()}
}

// New reads filename on top of Default. An empty filename returns Default.
func New(filename string) (*Config, error) {
	cfg := Default()
	if filename == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
