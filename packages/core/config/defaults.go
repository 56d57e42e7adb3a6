package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:     30000, // 30 seconds
		Reporters:   []string{"console"},
		Concurrency: 1,
		LogLevel:    "warn",
		NotifyOn:    "failure",
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.BaseURL == defaults.BaseURL &&
		c.Timeout == defaults.Timeout &&
		c.FollowRedirects == nil &&
		c.MaxRedirects == defaults.MaxRedirects &&
		c.ValidateSSL == nil &&
		c.Proxy == defaults.Proxy &&
		len(c.Headers) == 0 &&
		len(c.Reporters) == 1 && c.Reporters[0] == defaults.Reporters[0] &&
		c.OutputFile == defaults.OutputFile &&
		c.Concurrency == defaults.Concurrency &&
		c.Rate == defaults.Rate &&
		c.RequestIDHeader == defaults.RequestIDHeader &&
		c.Verbose == nil &&
		c.NoColor == nil &&
		c.LogLevel == defaults.LogLevel &&
		c.HistoryDB == defaults.HistoryDB &&
		c.NotifyOn == defaults.NotifyOn &&
		c.SlackWebhook == defaults.SlackWebhook
}
