package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Mocks      MocksConfig      `yaml:"mocks" mapstructure:"mocks"`
	Generators GeneratorsConfig `yaml:"generators" mapstructure:"generators"`
	OAuth      OAuthConfig      `yaml:"oauth" mapstructure:"oauth"`
	Tracing    TracingConfig    `yaml:"tracing" mapstructure:"tracing"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port" mapstructure:"port"`
	Host string `yaml:"host" mapstructure:"host"`
}

// MocksConfig says where mock services live and where they are mounted
type MocksConfig struct {
	Root   string `yaml:"root" mapstructure:"root"`     // Directory scanned for services
	Prefix string `yaml:"prefix" mapstructure:"prefix"` // URL prefix every service is mounted under
}

// GeneratorsConfig holds field generator configuration
type GeneratorsConfig struct {
	File string `yaml:"file" mapstructure:"file"` // JSON or YAML list; empty means <mocks.root>/uniqueKeys.json
}

// OAuthConfig holds the signing key settings of the OAuth mock
type OAuthConfig struct {
	KeyFile      string `yaml:"keyFile" mapstructure:"keyFile"`           // PEM encoded RSA private key
	StorePath    string `yaml:"storePath" mapstructure:"storePath"`       // Where auto-generated keys are kept
	AutoGenerate bool   `yaml:"autoGenerate" mapstructure:"autoGenerate"` // Generate a key if none is found
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled   bool `yaml:"enabled" mapstructure:"enabled"`
	MaxTraces int  `yaml:"maxTraces" mapstructure:"maxTraces"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 4000,
			Host: "0.0.0.0",
		},
		Mocks: MocksConfig{
			Root:   "./mocks",
			Prefix: "/api/mocks",
		},
		OAuth: OAuthConfig{
			StorePath:    "./data/keys",
			AutoGenerate: true,
		},
		Tracing: TracingConfig{
			Enabled:   true,
			MaxTraces: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// GeneratorsFile resolves the generator config path
func (c *Config) GeneratorsFile() string {
	if c.Generators.File != "" {
		return c.Generators.File
	}
	return c.Mocks.Root + "/uniqueKeys.json"
}
