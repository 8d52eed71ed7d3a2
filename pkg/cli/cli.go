package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultShutdownTimeout bounds how long in-flight requests and queued mail get on shutdown.
const DefaultShutdownTimeout = 15 * time.Second

type Config struct {
	// Application flags
	Debug bool

	// Configuration flags
	ConfigPath string
	EnvFile    string

	// Server flags; empty values keep what the config file says
	ListenAddress string
	DisableEmail  bool

	ShutdownTimeout string
}

// Parse parses the process command line.
func Parse() *Config {
	config, err := ParseArgs(os.Args[1:])
	if err != nil {
		// flag.ExitOnError already reported the problem
		os.Exit(2)
	}
	return config
}

// ParseArgs parses the given arguments with environment variable fallbacks.
func ParseArgs(args []string) (*Config, error) {
	config := &Config{}
	fs := flag.NewFlagSet("site", flag.ContinueOnError)

	// The pattern: fs.XxxVar(&variable, "flag-name", defaultValueOrEnvValue, "help text")
	fs.BoolVar(&config.Debug, "debug", getEnvBool("SITE_DEBUG", false), "Enable debug level logging")

	fs.StringVar(&config.ConfigPath, "config", getEnvString("SITE_CONFIG_PATH", ""),
		"Path to the site configuration file; ./config.yaml is used when present")
	fs.StringVar(&config.EnvFile, "env-file", getEnvString("SITE_ENV_FILE", ".env"),
		"Optional .env file loaded before environment overrides are applied")

	fs.StringVar(&config.ListenAddress, "listen-address", getEnvString("SITE_LISTEN_ADDRESS", ""),
		"Override the HTTP listen address from the configuration file (host:port)")
	fs.BoolVar(&config.DisableEmail, "disable-email", getEnvBool("SITE_DISABLE_EMAIL", false),
		"Disable all outgoing email (contact notifications, welcome mails, newsletters)")
	fs.StringVar(&config.ShutdownTimeout, "shutdown-timeout", getEnvString("SITE_SHUTDOWN_TIMEOUT", DefaultShutdownTimeout.String()),
		"Grace period for in-flight requests and queued mail on shutdown (e.g., '15s')")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Print(log *zap.SugaredLogger) {
	log.Infow("CLI Configuration",
		"debug", c.Debug,
		"config_path", c.ConfigPath,
		"env_file", c.EnvFile,
		"listen_address", c.ListenAddress,
		"disable_email", c.DisableEmail,
		"shutdown_timeout", c.ShutdownTimeout,
	)
}

// ParseShutdownTimeout returns the shutdown grace period, falling back to the default on bad input.
func (c *Config) ParseShutdownTimeout(log *zap.SugaredLogger) time.Duration {
	timeout, err := parseDuration("shutdown-timeout", c.ShutdownTimeout, DefaultShutdownTimeout)
	if err != nil {
		log.Warn(err)
	}
	return timeout
}

func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	duration := def
	if value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			duration = d
		} else {
			return duration, fmt.Errorf("invalid %s %q; using default %s: %w", name, value, def.String(), err)
		}
	}

	return duration, nil
}

// getEnvString returns the value of an environment variable, or the provided default if not set.
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}
