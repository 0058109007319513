// Package config provides configuration management for the closing notifier.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"sisu-notifier/internal/errors"
)

// Config holds all application configuration. It is built once at start-up
// and passed to the components that need it.
type Config struct {
	SISU          SISUConfig         `mapstructure:"sisu" yaml:"sisu"`
	Closing       ClosingConfig      `mapstructure:"closing" yaml:"closing"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Server        ServerConfig       `mapstructure:"server" yaml:"server"`
	Schedule      ScheduleConfig     `mapstructure:"schedule" yaml:"schedule"`
	Store         StoreConfig        `mapstructure:"store" yaml:"store"`
	Logging       LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// SISUConfig holds the record source configuration.
type SISUConfig struct {
	BaseURL          string        `mapstructure:"base_url" yaml:"base_url"`
	AuthHeader       string        `mapstructure:"auth_header" yaml:"auth_header"`
	AgentID          int64         `mapstructure:"agent_id" yaml:"agent_id"`
	TeamID           int64         `mapstructure:"team_id" yaml:"team_id"`
	MarketID         int64         `mapstructure:"market_id" yaml:"market_id"`
	Context          string        `mapstructure:"context" yaml:"context"` // "team" or "agent"
	ColumnFilter     string        `mapstructure:"column_filter" yaml:"column_filter"`
	Limit            int           `mapstructure:"limit" yaml:"limit"`
	AddReturnColumns []string      `mapstructure:"add_return_columns" yaml:"add_return_columns"`
	BatchSize        int           `mapstructure:"batch_size" yaml:"batch_size"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	RateLimit        float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RetryAttempts    int           `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	CircuitThreshold int           `mapstructure:"circuit_threshold" yaml:"circuit_threshold"`
	CircuitCooldown  time.Duration `mapstructure:"circuit_cooldown" yaml:"circuit_cooldown"`
}

// ClosingConfig holds the window settings.
type ClosingConfig struct {
	WindowDays int    `mapstructure:"window_days" yaml:"window_days"`
	Timezone   string `mapstructure:"timezone" yaml:"timezone"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Recipients   []string      `mapstructure:"recipients" yaml:"recipients"`
	GreetingName string        `mapstructure:"greeting_name" yaml:"greeting_name"`
	SenderName   string        `mapstructure:"sender_name" yaml:"sender_name"`
	Console      bool          `mapstructure:"console" yaml:"console"`
	Email        EmailConfig   `mapstructure:"email" yaml:"email"`
	Webhook      WebhookConfig `mapstructure:"webhook" yaml:"webhook"`
}

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	From     string `mapstructure:"from" yaml:"from"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ServerConfig holds the trigger endpoint configuration.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ScheduleConfig holds the in-process scheduler configuration.
type ScheduleConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval   time.Duration `mapstructure:"interval" yaml:"interval"`
	RunOnStart bool          `mapstructure:"run_on_start" yaml:"run_on_start"`
}

// StoreConfig holds the run journal configuration.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level    string `mapstructure:"level" yaml:"level"`
	JSON     bool   `mapstructure:"json" yaml:"json"`
	File     bool   `mapstructure:"file" yaml:"file"`
	FilePath string `mapstructure:"file_path" yaml:"file_path"`
}

// SecretSource looks up secrets that are not present in the file or environment.
type SecretSource interface {
	Get(key string) (string, error)
}

// Secret keys understood by SecretSource implementations.
const (
	SecretSISUAuthHeader = "sisu_auth_header"
	SecretSMTPPassword   = "smtp_password"
)

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	if dir := os.Getenv("SISU_NOTIFIER_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/sisu-notifier"
	}
	return filepath.Join(home, ".config", "sisu-notifier")
}

// ConfigPath returns the path of config.toml inside configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is replaced by a commented template and defaults apply.
// Secrets still empty after file and environment are looked up in secrets,
// which may be nil.
func Load(configDir string, secrets SecretSource) (*Config, error) {
	cfg, err := LoadUnvalidated(configDir, secrets)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadUnvalidated is Load without the final validation step.
func LoadUnvalidated(configDir string, secrets SecretSource) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	// Apply environment variable overrides
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	applySecrets(cfg, secrets)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sisu.base_url", "https://api.sisu.co/api/v1")
	v.SetDefault("sisu.context", "team")
	v.SetDefault("sisu.column_filter", "appt_set_dt")
	v.SetDefault("sisu.limit", 1000)
	v.SetDefault("sisu.batch_size", 10)
	v.SetDefault("sisu.request_timeout", "20s")
	v.SetDefault("sisu.rate_limit", 5.0)
	v.SetDefault("sisu.retry_attempts", 3)
	v.SetDefault("sisu.circuit_threshold", 3)
	v.SetDefault("sisu.circuit_cooldown", "5m")

	v.SetDefault("closing.window_days", 15)
	v.SetDefault("closing.timezone", "")

	v.SetDefault("notifications.greeting_name", "there")
	v.SetDefault("notifications.sender_name", "SISU Notifier")
	v.SetDefault("notifications.email.smtp_port", 465)
	v.SetDefault("notifications.webhook.timeout", "10s")

	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.interval", "24h")
	v.SetDefault("schedule.run_on_start", false)

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", "")

	v.SetDefault("logging.level", "info")
}

func loadConfigFile(configDir, name string, target *Config) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template and continue on defaults
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
	}

	if err := v.Unmarshal(target); err != nil {
		return err
	}
	if target.Store.Path == "" {
		target.Store.Path = filepath.Join(configDir, "runs.db")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	// SISU
	if v := os.Getenv("SISU_AUTH_HEADER"); v != "" {
		cfg.SISU.AuthHeader = v
	}
	if v := os.Getenv("SISU_BASE_URL"); v != "" {
		cfg.SISU.BaseURL = v
	}
	if err := envInt64("SISU_AGENT_ID", &cfg.SISU.AgentID); err != nil {
		return err
	}
	if err := envInt64("SISU_TEAM_ID", &cfg.SISU.TeamID); err != nil {
		return err
	}
	if err := envInt64("SISU_MARKET_ID", &cfg.SISU.MarketID); err != nil {
		return err
	}

	// SMTP
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Notifications.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.NewValidationError("SMTP_PORT", v, "must be an integer")
		}
		cfg.Notifications.Email.SMTPPort = port
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Notifications.Email.Username = v
	}
	if v := os.Getenv("SMTP_PASS"); v != "" {
		cfg.Notifications.Email.Password = v
	}
	if v := os.Getenv("NOTIFICATION_EMAILS"); v != "" {
		cfg.Notifications.Recipients = splitList(v)
	}

	// Window
	if v := os.Getenv("WINDOW_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return errors.NewValidationError("WINDOW_DAYS", v, "must be an integer")
		}
		cfg.Closing.WindowDays = days
	}

	// Server
	if v := os.Getenv("NOTIFIER_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}

	return nil
}

func envInt64(name string, target *int64) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return errors.NewValidationError(name, v, "must be an integer")
	}
	*target = n
	return nil
}

func applySecrets(cfg *Config, secrets SecretSource) {
	if secrets == nil {
		return
	}
	if cfg.SISU.AuthHeader == "" {
		if v, err := secrets.Get(SecretSISUAuthHeader); err == nil {
			cfg.SISU.AuthHeader = v
		}
	}
	if cfg.Notifications.Email.Password == "" && cfg.Notifications.Email.SMTPHost != "" {
		if v, err := secrets.Get(SecretSMTPPassword); err == nil {
			cfg.Notifications.Email.Password = v
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SISU.AuthHeader) == "" {
		return errors.NewValidationError("sisu.auth_header", "", "must be set (SISU_AUTH_HEADER)")
	}
	switch c.SISU.Context {
	case "team", "agent":
	default:
		return errors.NewValidationError("sisu.context", c.SISU.Context, "must be 'team' or 'agent'")
	}
	if c.SISU.BatchSize < 1 {
		return errors.NewValidationError("sisu.batch_size", c.SISU.BatchSize, "must be at least 1")
	}
	if c.SISU.Limit < 1 {
		return errors.NewValidationError("sisu.limit", c.SISU.Limit, "must be at least 1")
	}
	if c.SISU.CircuitThreshold < 0 {
		return errors.NewValidationError("sisu.circuit_threshold", c.SISU.CircuitThreshold, "must be non-negative")
	}
	if c.SISU.RateLimit < 0 {
		return errors.NewValidationError("sisu.rate_limit", c.SISU.RateLimit, "must be non-negative")
	}

	if c.Closing.WindowDays < 0 {
		return errors.NewValidationError("closing.window_days", c.Closing.WindowDays, "must be non-negative")
	}
	if _, err := c.Location(); err != nil {
		return errors.NewValidationError("closing.timezone", c.Closing.Timezone, err.Error())
	}

	email := c.Notifications.Email
	if email.SMTPPort < 1 || email.SMTPPort > 65535 {
		return errors.NewValidationError("notifications.email.smtp_port", email.SMTPPort, "must be between 1 and 65535")
	}
	if email.SMTPHost != "" && len(c.Notifications.Recipients) == 0 {
		return errors.NewValidationError("notifications.recipients", "", "at least one recipient is required when smtp_host is set")
	}

	if c.Schedule.Enabled && c.Schedule.Interval <= 0 {
		return errors.NewValidationError("schedule.interval", c.Schedule.Interval, "must be positive")
	}

	return nil
}

// ContextID returns the identifier sent as context_id for the configured context.
func (c *Config) ContextID() int64 {
	if c.SISU.Context == "agent" {
		return c.SISU.AgentID
	}
	return c.SISU.TeamID
}

// Location returns the time zone used to decide what "today" is.
func (c *Config) Location() (*time.Location, error) {
	if c.Closing.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Closing.Timezone)
}

// Redacted returns a copy with secrets masked, suitable for display.
func (c *Config) Redacted() Config {
	out := *c
	out.SISU.AuthHeader = mask(c.SISU.AuthHeader)
	out.Notifications.Email.Password = mask(c.Notifications.Email.Password)
	out.SISU.AddReturnColumns = append([]string(nil), c.SISU.AddReturnColumns...)
	out.Notifications.Recipients = append([]string(nil), c.Notifications.Recipients...)
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}
