package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the hitcontract configuration
type Config struct {
	BaseURL         string            `yaml:"baseUrl,omitempty"`
	Timeout         int               `yaml:"timeout,omitempty"` // milliseconds
	FollowRedirects *bool             `yaml:"followRedirects,omitempty"`
	MaxRedirects    int               `yaml:"maxRedirects,omitempty"`
	ValidateSSL     *bool             `yaml:"validateSSL,omitempty"`
	Proxy           string            `yaml:"proxy,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty"`   // Default headers for all requests
	Reporters       []string          `yaml:"reporters,omitempty"` // Output formats
	OutputFile      string            `yaml:"outputFile,omitempty"`
	Concurrency     int               `yaml:"concurrency,omitempty"` // Cases run at once
	Rate            float64           `yaml:"rate,omitempty"`        // Requests per second, 0 is unlimited
	RequestIDHeader string            `yaml:"requestIdHeader,omitempty"`
	Verbose         *bool             `yaml:"verbose,omitempty"`
	NoColor         *bool             `yaml:"noColor,omitempty"`
	LogLevel        string            `yaml:"logLevel,omitempty"`
	HistoryDB       string            `yaml:"historyDb,omitempty"`
	NotifyOn        string            `yaml:"notifyOn,omitempty"`
	SlackWebhook    string            `yaml:"slackWebhook,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// TimeoutDuration returns Timeout as a duration.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// Validate rejects settings no run can use.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %d", c.Timeout)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must not be negative, got %g", c.Rate)
	}
	return nil
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".hitcontract.yaml",
	"hitcontract.yaml",
	".hitcontract.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.OutputFile != "" {
		result.OutputFile = other.OutputFile
	}
	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}
	if other.Rate > 0 {
		result.Rate = other.Rate
	}
	if other.RequestIDHeader != "" {
		result.RequestIDHeader = other.RequestIDHeader
	}
	if other.LogLevel != "" {
		result.LogLevel = other.LogLevel
	}
	if other.HistoryDB != "" {
		result.HistoryDB = other.HistoryDB
	}
	if other.NotifyOn != "" {
		result.NotifyOn = other.NotifyOn
	}
	if other.SlackWebhook != "" {
		result.SlackWebhook = other.SlackWebhook
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Headers) > 0 {
		merged := make(map[string]string, len(result.Headers)+len(other.Headers))
		for k, v := range result.Headers {
			merged[k] = v
		}
		for k, v := range other.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}

	if len(other.Reporters) > 0 {
		result.Reporters = other.Reporters
	}

	return &result
}

// SaveConfig saves the configuration to a YAML file
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
