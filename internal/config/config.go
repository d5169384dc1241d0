package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.recap/config.toml.
type Config struct {
	DefaultSession string     `toml:"default_session"`
	Summarizer     Summarizer `toml:"summarizer"`
}

// Summarizer holds the tunables of the summarization pipeline.
type Summarizer struct {
	Endpoint             string `toml:"endpoint"`
	RequestTimeoutSecs   int    `toml:"request_timeout_secs"`
	RetryAttempts        int    `toml:"retry_attempts"`
	RetryDelayMillis     int    `toml:"retry_delay_ms"`
	GroupMemberThreshold int    `toml:"group_member_threshold"`
	MessageWindow        int    `toml:"message_window"`
	LookbackDays         int    `toml:"lookback_days"`
	FetchTimeoutSecs     int    `toml:"fetch_timeout_secs"`
	PollIntervalSecs     int    `toml:"poll_interval_secs"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Summarizer: Summarizer{
			Endpoint:             "https://telegpt-three.vercel.app",
			RequestTimeoutSecs:   120,
			RetryAttempts:        3,
			RetryDelayMillis:     2000,
			GroupMemberThreshold: 50,
			MessageWindow:        50,
			LookbackDays:         7,
			FetchTimeoutSecs:     10,
			PollIntervalSecs:     0, // 0 disables the periodic run
		},
	}
}

// Load reads config from the given path, filling unset fields with defaults.
// A missing file returns the defaults without error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// RequestTimeout returns the summarization request timeout as a duration.
func (s Summarizer) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSecs) * time.Second
}

// RetryDelay returns the delay between retry attempts as a duration.
func (s Summarizer) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelayMillis) * time.Millisecond
}

// FetchTimeout returns the per-conversation fetch timeout as a duration.
func (s Summarizer) FetchTimeout() time.Duration {
	return time.Duration(s.FetchTimeoutSecs) * time.Second
}

// Lookback returns the trailing message window as a duration.
func (s Summarizer) Lookback() time.Duration {
	return time.Duration(s.LookbackDays) * 24 * time.Hour
}

func (c *Config) fillDefaults() {
	def := Default().Summarizer
	s := &c.Summarizer
	if s.Endpoint == "" {
		s.Endpoint = def.Endpoint
	}
	if s.RequestTimeoutSecs <= 0 {
		s.RequestTimeoutSecs = def.RequestTimeoutSecs
	}
	if s.RetryAttempts < 0 {
		s.RetryAttempts = def.RetryAttempts
	}
	if s.RetryDelayMillis <= 0 {
		s.RetryDelayMillis = def.RetryDelayMillis
	}
	if s.GroupMemberThreshold <= 0 {
		s.GroupMemberThreshold = def.GroupMemberThreshold
	}
	if s.MessageWindow <= 0 {
		s.MessageWindow = def.MessageWindow
	}
	if s.LookbackDays <= 0 {
		s.LookbackDays = def.LookbackDays
	}
	if s.FetchTimeoutSecs <= 0 {
		s.FetchTimeoutSecs = def.FetchTimeoutSecs
	}
}
