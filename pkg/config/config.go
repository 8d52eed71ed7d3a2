package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/equitraccion/site/pkg/session"
)

const (
	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"

	// InsecureSessionSecret is used when no secret is configured. It is only
	// tolerated outside production and always logged as a warning.
	InsecureSessionSecret = "fallback-secret-change-in-production"
	// InsecureCronToken protects the newsletter trigger when no token is configured.
	InsecureCronToken = "change-me-in-production"

	DefaultSessionTTL     = 7 * 24 * time.Hour
	DefaultAPIWindow      = 15 * time.Minute
	DefaultSweepInterval  = 5 * time.Minute
	DefaultNewsletterGap  = 100 * time.Millisecond
	DefaultCookieName     = "auth_token"
	DefaultListenAddress  = ":8080"
	DefaultSiteURL        = "https://equitraccion.com"
	DefaultDatabaseDriver = "postgres"
)

type Server struct {
	ListenAddress  string   `yaml:"listenAddress"`
	TLSCertFile    string   `yaml:"tlsCertFile"`
	TLSKeyFile     string   `yaml:"tlsKeyFile"`
	StaticDir      string   `yaml:"staticDir"`
	TrustedProxies []string `yaml:"trustedProxies"` // IPs/CIDRS gin trusts for X-Forwarded-For in request logs
}

type Site struct {
	// BaseURL is used to build absolute links in emails and the sitemap
	BaseURL string `yaml:"baseURL"`
	Name    string `yaml:"name"`
	// NotificationEmail receives a copy of every contact form submission.
	// Empty disables the notification.
	NotificationEmail string `yaml:"notificationEmail"`
}

type Session struct {
	Secret     string `yaml:"secret"`
	TTL        string `yaml:"ttl"`
	CookieName string `yaml:"cookieName"`
}

type Admin struct {
	Email string `yaml:"email"`
	// Password is either a bcrypt hash or, in development only, plain text
	Password string `yaml:"password"`
}

type RateLimit struct {
	APIMax        int    `yaml:"apiMax"`
	APIWindow     string `yaml:"apiWindow"`
	SweepInterval string `yaml:"sweepInterval"`
}

type Mail struct {
	Disabled           bool   `yaml:"disabled"`
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	SenderAddress      string `yaml:"senderAddress"`
	SenderName         string `yaml:"senderName"`
	RetryCount         int    `yaml:"retryCount"`
	RetryBackoffMs     int    `yaml:"retryBackoffMs"`
	QueueSize          int    `yaml:"queueSize"`
}

type Newsletter struct {
	CronToken string `yaml:"cronToken"`
	// Interval is the pause after every send attempt (e.g. "100ms")
	Interval string `yaml:"interval"`
	// Workers > 1 switches to the pooled dispatcher
	Workers int `yaml:"workers"`
}

type Database struct {
	// Driver is "postgres" or "sqlite"
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"autoMigrate"`
}

type KafkaAudit struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	TLS     bool     `yaml:"tls"`
	// SASLMechanism is one of PLAIN, SCRAM-SHA-256, SCRAM-SHA-512; empty disables SASL
	SASLMechanism string `yaml:"saslMechanism"`
	SASLUsername  string `yaml:"saslUsername"`
	SASLPassword  string `yaml:"saslPassword"`
}

type Audit struct {
	Kafka KafkaAudit `yaml:"kafka"`
}

type Config struct {
	Environment string     `yaml:"environment"`
	Server      Server     `yaml:"server"`
	Site        Site       `yaml:"site"`
	Session     Session    `yaml:"session"`
	Admin       Admin      `yaml:"admin"`
	RateLimit   RateLimit  `yaml:"rateLimit"`
	Mail        Mail       `yaml:"mail"`
	Newsletter  Newsletter `yaml:"newsletter"`
	Database    Database   `yaml:"database"`
	Audit       Audit      `yaml:"audit"`
}

// Load loads the site configuration from a file path, then applies
// environment overrides and defaults.
// If configPath is empty, defaults to "./config.yaml". A missing default file
// is not an error so the server can be configured from the environment alone.
func Load(configPath ...string) (Config, error) {
	var config Config

	path := "./config.yaml"
	explicit := false
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
		explicit = true
	}

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, &config); err != nil {
			return config, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return config, fmt.Errorf("trying to open site config file %s: %w", path, err)
	}

	if err := config.ApplyEnv(); err != nil {
		return config, err
	}
	config.Defaults()
	return config, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides secrets and deployment specific values from the environment.
func (c *Config) ApplyEnv() error {
	setString(&c.Environment, "SITE_ENV")
	setString(&c.Server.ListenAddress, "LISTEN_ADDRESS")
	setString(&c.Site.BaseURL, "SITE_URL")
	setString(&c.Site.NotificationEmail, "NOTIFICATION_EMAIL")
	setString(&c.Session.Secret, "JWT_SECRET")
	setString(&c.Admin.Email, "ADMIN_EMAIL")
	setString(&c.Admin.Password, "ADMIN_PASSWORD")
	setString(&c.Newsletter.CronToken, "NEWSLETTER_CRON_TOKEN")
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.DSN, "DATABASE_DSN")
	setString(&c.Mail.Host, "SMTP_HOST")
	setString(&c.Mail.User, "SMTP_USER")
	setString(&c.Mail.Password, "SMTP_PASSWORD")
	setString(&c.Audit.Kafka.SASLPassword, "AUDIT_KAFKA_PASSWORD")

	if v, ok := os.LookupEnv("SMTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SMTP_PORT %q: %w", v, err)
		}
		c.Mail.Port = port
	}
	if v, ok := os.LookupEnv("RATE_LIMIT_MAX"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_MAX %q: %w", v, err)
		}
		c.RateLimit.APIMax = n
	}
	// RATE_LIMIT_WINDOW is expressed in milliseconds
	if v, ok := os.LookupEnv("RATE_LIMIT_WINDOW"); ok && v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_WINDOW %q: %w", v, err)
		}
		c.RateLimit.APIWindow = (time.Duration(ms) * time.Millisecond).String()
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Defaults fills in unset values.
func (c *Config) Defaults() {
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = DefaultListenAddress
	}
	if c.Site.BaseURL == "" {
		c.Site.BaseURL = DefaultSiteURL
	}
	c.Site.BaseURL = strings.TrimRight(c.Site.BaseURL, "/")
	if c.Site.Name == "" {
		c.Site.Name = "Equitracción"
	}
	if c.Session.Secret == "" {
		c.Session.Secret = InsecureSessionSecret
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = DefaultCookieName
	}
	if c.RateLimit.APIMax <= 0 {
		c.RateLimit.APIMax = 100
	}
	if c.Newsletter.CronToken == "" {
		c.Newsletter.CronToken = InsecureCronToken
	}
	if c.Newsletter.Workers <= 0 {
		c.Newsletter.Workers = 1
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDatabaseDriver
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
}

// IsProduction reports whether the server runs with production hardening.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvironmentProduction)
}

// UsesInsecureSecret reports whether the built-in session secret is in use.
func (c Config) UsesInsecureSecret() bool {
	return c.Session.Secret == "" || c.Session.Secret == InsecureSessionSecret
}

// UsesInsecureCronToken reports whether the built-in newsletter token is in use.
func (c Config) UsesInsecureCronToken() bool {
	return c.Newsletter.CronToken == "" || c.Newsletter.CronToken == InsecureCronToken
}

// SessionTTL returns the configured token lifetime, defaulting to 7 days.
func (c Config) SessionTTL() (time.Duration, error) {
	return parseDuration("session.ttl", c.Session.TTL, DefaultSessionTTL)
}

// APIWindow returns the general API rate limit window.
func (c Config) APIWindow() (time.Duration, error) {
	return parseDuration("rateLimit.apiWindow", c.RateLimit.APIWindow, DefaultAPIWindow)
}

// SweepInterval returns how often expired rate limit entries are removed.
func (c Config) SweepInterval() (time.Duration, error) {
	return parseDuration("rateLimit.sweepInterval", c.RateLimit.SweepInterval, DefaultSweepInterval)
}

// NewsletterInterval returns the pause between two newsletter sends.
func (c Config) NewsletterInterval() (time.Duration, error) {
	return parseDuration("newsletter.interval", c.Newsletter.Interval, DefaultNewsletterGap)
}

// Validate checks the configuration for values the server cannot run with.
// Production refuses the insecure built-in secrets and plain text admin passwords.
func (c Config) Validate() error {
	var errs []error

	for _, fn := range []func() (time.Duration, error){c.SessionTTL, c.APIWindow, c.SweepInterval, c.NewsletterInterval} {
		if _, err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.IsProduction() {
		if c.UsesInsecureSecret() {
			errs = append(errs, errors.New("session.secret (JWT_SECRET) must be set in production"))
		}
		if c.UsesInsecureCronToken() {
			errs = append(errs, errors.New("newsletter.cronToken (NEWSLETTER_CRON_TOKEN) must be set in production"))
		}
		if c.Admin.Password != "" && !session.IsBcryptHash(c.Admin.Password) {
			errs = append(errs, errors.New("admin.password must be a bcrypt hash in production"))
		}
	}
	return errors.Join(errs...)
}

func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	duration := def
	if value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			return duration, fmt.Errorf("invalid %s %q; using default %s: %w", name, value, def.String(), err)
		}
		if d <= 0 {
			return duration, fmt.Errorf("invalid %s %q: must be positive", name, value)
		}
		duration = d
	}
	return duration, nil
}
