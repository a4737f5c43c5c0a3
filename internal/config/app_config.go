package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

// LLM providers accepted by LLM_PROVIDER.
const (
	LLMProviderClaude   = "claude"
	LLMProviderTemplate = "template"
)

// AppConfig holds all application-level configuration loaded from environment variables.
type AppConfig struct {
	// Port is the HTTP server port. Defaults to 8990.
	Port int `envconfig:"PORT" default:"8990"`

	// DataDir is the root data directory. Defaults to ~/.kirana.
	DataDir string `envconfig:"KIRANA_DATA_DIR"`

	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// StoreDriver selects the buyer store: sqlite (file under DataDir) or postgres.
	StoreDriver string `envconfig:"STORE_DRIVER" default:"sqlite"`

	// DatabaseURL is the pgx connection string, required when StoreDriver is postgres.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// RedisURL enables the distributed sweep lock when set.
	RedisURL string `envconfig:"REDIS_URL"`

	// LLMProvider selects the reminder copy backend: claude or template.
	LLMProvider string `envconfig:"LLM_PROVIDER" default:"claude"`

	// ClaudeModel is the model used for reminder copy.
	// Priority: CLAUDE_MODEL > ANTHROPIC_DEFAULT_HAIKU_MODEL > built-in default.
	ClaudeModel string `envconfig:"CLAUDE_MODEL"`

	// AnthropicDefaultHaikuModel is the Anthropic-standard env var for a preferred Haiku model.
	AnthropicDefaultHaikuModel string `envconfig:"ANTHROPIC_DEFAULT_HAIKU_MODEL"`

	BaseInterval     time.Duration `envconfig:"REMINDER_BASE_INTERVAL" default:"30m"`
	MaxNotifications int           `envconfig:"REMINDER_MAX_NOTIFICATIONS" default:"3"`
	MinDwell         time.Duration `envconfig:"REMINDER_MIN_DWELL" default:"5m"`
	FireTimeout      time.Duration `envconfig:"REMINDER_FIRE_TIMEOUT" default:"2m"`

	// Escalation holds the per-attempt multipliers of BaseInterval. The last
	// entry applies to every later attempt.
	Escalation []int `envconfig:"REMINDER_ESCALATION" default:"1,2,4"`

	// DiscountThreshold is the cart total (INR) at or above which a discount
	// code is offered.
	DiscountThreshold decimal.Decimal `envconfig:"DISCOUNT_THRESHOLD" default:"500"`

	SweepInterval    time.Duration `envconfig:"SWEEP_INTERVAL" default:"15m"`
	AbandonThreshold time.Duration `envconfig:"ABANDON_THRESHOLD" default:"1h"`

	// SiteURL is the storefront base used for cart links in reminder footers.
	SiteURL string `envconfig:"SITE_URL" default:"https://kiranaconnect.in"`

	// CopyFile optionally points to a YAML file overriding prompts and discount codes.
	CopyFile string `envconfig:"REMINDER_COPY_FILE"`

	SMTPHost       string `envconfig:"SMTP_HOST"`
	SMTPPort       int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername   string `envconfig:"SMTP_USERNAME"`
	SMTPPassword   string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom       string `envconfig:"SMTP_FROM" default:"reminders@kiranaconnect.in"`
	SMTPEncryption string `envconfig:"SMTP_ENCRYPTION" default:"starttls"`

	// EmailRatePerMinute caps outbound reminder emails. Zero disables the limit.
	EmailRatePerMinute int `envconfig:"EMAIL_RATE_PER_MINUTE" default:"60"`

	// OpsAlertEmails receive an email when a sweep fails or a whole-cart
	// reminder cannot be delivered. Comma separated.
	OpsAlertEmails []string `envconfig:"OPS_ALERT_EMAILS"`

	// OTLPEndpoint enables trace export over OTLP/gRPC, e.g. http://localhost:4317.
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// CORSAllowedOrigins lists browser origins allowed to call the API. Empty allows any.
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`
}

// Load reads AppConfig from environment variables using envconfig.
// DataDir defaults to ~/.kirana if not set.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".kirana")
	}

	if c.ClaudeModel == "" {
		if c.AnthropicDefaultHaikuModel != "" {
			c.ClaudeModel = c.AnthropicDefaultHaikuModel
		} else {
			c.ClaudeModel = "haiku"
		}
	}

	return &c, nil
}

// Validate reports every invalid setting at once.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.BaseInterval <= 0 {
		errs = append(errs, errors.New("REMINDER_BASE_INTERVAL must be positive"))
	}
	if c.MaxNotifications < 1 {
		errs = append(errs, errors.New("REMINDER_MAX_NOTIFICATIONS must be at least 1"))
	}
	if c.MinDwell < 0 {
		errs = append(errs, errors.New("REMINDER_MIN_DWELL must not be negative"))
	}
	if c.MinDwell > c.BaseInterval {
		errs = append(errs, fmt.Errorf("REMINDER_MIN_DWELL (%s) must not exceed REMINDER_BASE_INTERVAL (%s)",
			c.MinDwell, c.BaseInterval))
	}
	if c.FireTimeout <= 0 {
		errs = append(errs, errors.New("REMINDER_FIRE_TIMEOUT must be positive"))
	}
	if len(c.Escalation) == 0 {
		errs = append(errs, errors.New("REMINDER_ESCALATION must list at least one multiplier"))
	}
	for _, m := range c.Escalation {
		if m < 1 {
			errs = append(errs, fmt.Errorf("REMINDER_ESCALATION multiplier %d must be at least 1", m))
		}
	}
	for i := 1; i < len(c.Escalation); i++ {
		if c.Escalation[i] < c.Escalation[i-1] {
			errs = append(errs, fmt.Errorf("REMINDER_ESCALATION must be non-decreasing: %d follows %d",
				c.Escalation[i], c.Escalation[i-1]))
		}
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	if c.AbandonThreshold <= 0 {
		errs = append(errs, errors.New("ABANDON_THRESHOLD must be positive"))
	}
	if c.DiscountThreshold.IsNegative() {
		errs = append(errs, errors.New("DISCOUNT_THRESHOLD must not be negative"))
	}
	switch c.StoreDriver {
	case StoreDriverSQLite:
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	switch c.LLMProvider {
	case LLMProviderClaude, LLMProviderTemplate:
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}
	if c.EmailRatePerMinute < 0 {
		errs = append(errs, errors.New("EMAIL_RATE_PER_MINUTE must not be negative"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	return errors.Join(errs...)
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogDir returns the path to the log directory (~/.kirana/logs).
func (c *AppConfig) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// SQLitePath returns the path to the embedded buyer database.
func (c *AppConfig) SQLitePath() string {
	return filepath.Join(c.DataDir, "kirana.db")
}

// SMTPEnabled reports whether outbound email is configured.
func (c *AppConfig) SMTPEnabled() bool {
	return c.SMTPHost != ""
}
