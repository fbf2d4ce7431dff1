package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig describes the upstream economic-calendar provider.
type ProviderConfig struct {
	// BaseURL is the provider API root, e.g. "https://calendar.example.com".
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Timeout bounds a single fetch attempt.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// UserAgent is sent on every request when non-empty.
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// ReminderConfig controls the email reminder scheduler.
type ReminderConfig struct {
	// LeadDays is how many days before an event its reminder becomes due.
	LeadDays int `yaml:"lead_days" json:"lead_days"`
	// SendHour is the target-zone hour of day (0-23) at which reminders fire.
	SendHour int `yaml:"send_hour" json:"send_hour"`
	// Tick is the period of the scheduler loop.
	Tick time.Duration `yaml:"tick" json:"tick"`
	// Recipients is the default recipient list, comma-joined in the UI.
	Recipients []string `yaml:"recipients" json:"recipients"`
}

// SMTPConfig holds the outbound mail transport settings. Username and
// password are deliberately not part of the file; they come from the
// ECOCAL_SMTP_USERNAME / ECOCAL_SMTP_PASSWORD environment variables.
type SMTPConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
	From string `yaml:"from" json:"from"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA target zone all event times are converted into.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Countries is the default dashboard selection. Entries must be on the
	// provider allow-list.
	Countries []string `yaml:"countries" json:"countries"`

	// HorizonDays is the default number of future days to display.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *") used
	// to keep the cached dashboard batch warm.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Provider ProviderConfig `yaml:"provider" json:"provider"`
	Reminder ReminderConfig `yaml:"reminder" json:"reminder"`
	SMTP     SMTPConfig     `yaml:"smtp" json:"smtp"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Asia/Kolkata",
		Countries:   []string{"United States", "India"},
		HorizonDays: 14,
		RefreshCron: "*/15 * * * *",
		Provider: ProviderConfig{
			Timeout: 15 * time.Second,
		},
		Reminder: ReminderConfig{
			LeadDays: 14,
			SendHour: 9,
			Tick:     time.Second,
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Kolkata"
	}
	if len(c.Countries) == 0 {
		c.Countries = []string{"United States", "India"}
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 14
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.Provider.Timeout <= 0 {
		c.Provider.Timeout = 15 * time.Second
	}
	if c.Reminder.LeadDays <= 0 {
		c.Reminder.LeadDays = 14
	}
	// Hour 0 is indistinguishable from unset; midnight sends are not a
	// supported configuration.
	if c.Reminder.SendHour <= 0 || c.Reminder.SendHour > 23 {
		c.Reminder.SendHour = 9
	}
	if c.Reminder.Tick <= 0 {
		c.Reminder.Tick = time.Second
	}
	if c.SMTP.Port <= 0 {
		c.SMTP.Port = 587
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: create parent directory if needed, write a
//     default config with 0600 perms, and return the default config.
//   - If the file exists: read YAML, unmarshal, normalize defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".ecocal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Set permissions to 0600 on temp file before rename.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	// Rename over the target path.
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
