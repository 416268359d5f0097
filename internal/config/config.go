package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config keeps runtime settings for the service.
type Config struct {
	AppPort     string `mapstructure:"APP_PORT"`
	Env         string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`

	// LINE Messaging API credentials. Both are server-held secrets and must
	// never appear in logs or error messages.
	LineChannelSecret string `mapstructure:"LINE_CHANNEL_SECRET"`
	LineChannelToken  string `mapstructure:"LINE_CHANNEL_ACCESS_TOKEN"`

	// Reminder sweep cadence and tolerance window. The window must be at
	// least as wide as the interval or reminders can fall between polls.
	ReminderInterval      time.Duration `mapstructure:"REMINDER_INTERVAL"`
	ReminderWindowMinutes int           `mapstructure:"REMINDER_WINDOW_MINUTES"`

	// Daily HH:MM time for the expired linking-code sweep, evaluated in
	// SchedulerTimezone. Per-schedule timezones are independent of this.
	CleanupTime       string `mapstructure:"CLEANUP_TIME"`
	SchedulerTimezone string `mapstructure:"SCHEDULER_TIMEZONE"`
}

// Load reads configuration from environment variables and an optional
// config.yaml, applying defaults for everything that is not a secret.
func Load() (Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DATABASE_URL", "running_tracker.db")
	viper.SetDefault("REMINDER_INTERVAL", "10m")
	viper.SetDefault("REMINDER_WINDOW_MINUTES", 10)
	viper.SetDefault("CLEANUP_TIME", "03:00")
	viper.SetDefault("SCHEDULER_TIMEZONE", "Asia/Tokyo")

	// Secrets have no defaults, so Unmarshal only sees them when bound.
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("LINE_CHANNEL_SECRET")
	_ = viper.BindEnv("LINE_CHANNEL_ACCESS_TOKEN")

	// The config file is optional; env vars alone are enough.
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.LineChannelSecret == "" {
		return cfg, fmt.Errorf("LINE_CHANNEL_SECRET is required")
	}
	if cfg.LineChannelToken == "" {
		return cfg, fmt.Errorf("LINE_CHANNEL_ACCESS_TOKEN is required")
	}
	if cfg.ReminderInterval <= 0 {
		return cfg, fmt.Errorf("REMINDER_INTERVAL must be positive")
	}
	if cfg.ReminderWindowMinutes < int(cfg.ReminderInterval.Minutes()) {
		return cfg, fmt.Errorf("REMINDER_WINDOW_MINUTES must be at least REMINDER_INTERVAL")
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with the production profile.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}
